package database

import (
	"log"

	"gorm.io/gorm"
)

// RunMigrations runs any custom data migrations after schema changes.
// Each step is safe to run repeatedly.
func RunMigrations(db *gorm.DB) error {
	if err := migrateScanSource(db); err != nil {
		return err
	}
	if err := addScanLookupIndex(db); err != nil {
		return err
	}
	return nil
}

// migrateScanSource backfills records written before the source column
// existed. Those came from the resolve endpoint.
func migrateScanSource(db *gorm.DB) error {
	if !db.Migrator().HasColumn("scan_records", "source") {
		return nil
	}
	result := db.Exec(`UPDATE scan_records SET source = 'resolve' WHERE source IS NULL OR source = ''`)
	if result.Error != nil {
		log.Printf("Warning: failed to backfill scan_records.source: %v", result.Error)
		return nil
	}
	if result.RowsAffected > 0 {
		log.Printf("Backfilled source on %d scan_records rows", result.RowsAffected)
	}
	return nil
}

// addScanLookupIndex adds the (status, created_at) index used by the
// history listing when filtering by status.
func addScanLookupIndex(db *gorm.DB) error {
	if !db.Migrator().HasTable("scan_records") {
		return nil
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_scan_status_created ON scan_records (status, created_at)`).Error
}
