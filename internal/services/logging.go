package services

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

const (
	levelDebug int32 = iota
	levelInfo
	levelWarn
)

var logLevel atomic.Int32

func init() {
	SetLogLevel(os.Getenv("LOG_LEVEL"))
}

// SetLogLevel sets the minimum level for service logging ("debug", "info", "warn").
// Unknown values fall back to info.
func SetLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		logLevel.Store(levelDebug)
	case "warn", "warning", "error":
		logLevel.Store(levelWarn)
	default:
		logLevel.Store(levelInfo)
	}
}

func debugLog(format string, args ...any) {
	if logLevel.Load() <= levelDebug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

func infoLog(format string, args ...any) {
	if logLevel.Load() <= levelInfo {
		log.Printf(format, args...)
	}
}

func warnLog(format string, args ...any) {
	log.Printf("Warning: "+format, args...)
}
