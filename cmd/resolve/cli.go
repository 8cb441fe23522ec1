package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/codyseavey/card-resolver/backend/internal/config"
	"github.com/codyseavey/card-resolver/backend/internal/database"
	"github.com/codyseavey/card-resolver/backend/internal/models"
	"github.com/codyseavey/card-resolver/backend/internal/services"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "resolve",
		Usage:   "Resolve Pokemon card attributes to a card",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "local", Aliases: []string{"l"}, Usage: "Search local pokemon-tcg-data in `DIR` instead of the API"},
			&cli.BoolFlag{Name: "download", Usage: "Download pokemon-tcg-data into the --local directory if missing"},
			&cli.StringFlag{Name: "db", Usage: "Record results in the scan history database at `PATH`"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "Service log level: debug|info|warn"},
		},
		Before: func(c *cli.Context) error {
			services.SetLogLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			resolveCmd(),
			scanCmd(),
			familyCmd(),
			correctCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// resolveCmd creates the resolve command.
func resolveCmd() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve extracted attributes (JSON) to a card",
		ArgsUsage: "[attributes.json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "ranked", Usage: "Print every scored candidate"},
		},
		Action: func(c *cli.Context) error {
			data, err := readInput(c)
			if err != nil {
				return outputError(err)
			}

			var extracted models.ExtractedAttributes
			if err := json.Unmarshal(data, &extracted); err != nil {
				return outputError(fmt.Errorf("invalid attributes JSON: %w", err))
			}

			scanService, err := buildScanService(c, nil)
			if err != nil {
				return outputError(err)
			}

			outcome := scanService.ResolveAttributes(c.Context, extracted, models.ScanSourceCLI, scanService.History() != nil)
			return outputOutcome(c, outcome)
		},
	}
}

// scanCmd creates the scan command.
func scanCmd() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Extract attributes from a card photo with Gemini and resolve them",
		ArgsUsage: "<image>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "ranked", Usage: "Print every scored candidate"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(fmt.Errorf("image path is required"))
			}
			path := c.Args().First()
			imageBytes, err := os.ReadFile(path)
			if err != nil {
				return outputError(err)
			}

			cfg, err := config.Load()
			if err != nil {
				return outputError(err)
			}
			extractor := services.NewGeminiExtractor(services.GeminiOptions{
				APIKey: cfg.Gemini.APIKey,
				Model:  cfg.Gemini.Model,
			})

			scanService, err := buildScanService(c, extractor)
			if err != nil {
				return outputError(err)
			}

			outcome, err := scanService.ScanImage(c.Context, imageBytes, mimeTypeForPath(path))
			if err != nil {
				return outputError(err)
			}
			return outputOutcome(c, outcome)
		},
	}
}

// familyCmd creates the family command.
func familyCmd() *cli.Command {
	return &cli.Command{
		Name:      "family",
		Usage:     "List the sets a generic set name expands to",
		ArgsUsage: "<set name>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(fmt.Errorf("set name is required"))
			}
			set := strings.Join(c.Args().Slice(), " ")
			family := services.GetSetFamily(set)
			if family == nil {
				family = []string{}
			}
			return outputJSON(c, map[string]any{"set": set, "family": family})
		},
	}
}

// correctCmd creates the correct command.
func correctCmd() *cli.Command {
	return &cli.Command{
		Name:  "correct",
		Usage: "Show the set corrections for a set name and card number",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "set", Aliases: []string{"s"}, Usage: "Extracted set name"},
			&cli.StringFlag{Name: "number", Aliases: []string{"n"}, Usage: "Extracted card number"},
			&cli.IntFlag{Name: "total", Usage: "Printed set total"},
			&cli.StringFlag{Name: "symbol", Usage: "Set symbol description"},
		},
		Action: func(c *cli.Context) error {
			set := c.String("set")
			number := c.String("number")
			out := map[string]any{
				"set":               set,
				"number":            number,
				"corrected_set":     services.CorrectSetBasedOnNumberPattern(set, number),
				"xy_set_for_number": services.CorrectXYSetBasedOnNumber(number),
			}
			if total := c.Int("total"); total > 0 {
				out["set_for_total"] = services.GetSetFromTotalCount(total)
				out["sets_with_total"] = services.SetsForTotalCount(total)
			}
			if symbol := c.String("symbol"); symbol != "" {
				out["set_for_symbol"] = services.ExtractSetNameFromSymbol(symbol)
			}
			return outputJSON(c, out)
		},
	}
}

// buildScanService wires the card source and optional history from the
// global flags.
func buildScanService(c *cli.Context, extractor services.AttributeExtractor) (*services.ScanService, error) {
	var searcher services.CardSearcher
	if dir := c.String("local"); dir != "" {
		index, err := services.NewLocalCardIndex(dir, c.Bool("download"))
		if err != nil {
			return nil, err
		}
		searcher = index
	} else {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		searcher = services.NewPokemonTCGService(services.PokemonTCGOptions{
			APIKey:           cfg.TCG.APIKey,
			BaseURL:          cfg.TCG.BaseURL,
			RateLimitPerHour: cfg.TCG.RateLimitPerHour,
			CacheTTL:         cfg.TCG.CacheTTL,
			CacheSize:        cfg.TCG.CacheSize,
		})
	}

	var history *services.ScanHistory
	if dbPath := c.String("db"); dbPath != "" {
		if err := database.Initialize(dbPath); err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		history = services.NewScanHistory(database.GetDB())
	}

	return services.NewScanService(extractor, services.NewCardResolver(searcher), nil, history), nil
}

// cliResult is printed for every resolution.
type cliResult struct {
	Status   services.ResolveStatus     `json:"status"`
	ScanID   string                     `json:"scan_id,omitempty"`
	Match    *services.ScanResponse     `json:"match,omitempty"`
	NotFound *services.NotFoundResponse `json:"not_found,omitempty"`
	Ranked   []models.ScoredMatch       `json:"ranked,omitempty"`
}

func outputOutcome(c *cli.Context, outcome *services.ScanOutcome) error {
	res := outcome.Resolution
	result := cliResult{Status: res.Status}
	if outcome.Record != nil {
		result.ScanID = outcome.Record.ID
	}
	if res.Winner != nil {
		result.Match = services.NewScanResponse(res)
		result.Match.ProcessingMS = outcome.Elapsed.Milliseconds()
	} else if res.Status != services.ResolveStatusNoName {
		result.NotFound = services.NewNotFoundResponse(res)
	}
	if c.Bool("ranked") {
		result.Ranked = res.Ranked
	}
	return outputJSON(c, result)
}

// outputJSON writes v as indented JSON to the app writer.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	return cli.Exit(err.Error(), 1)
}

// readInput reads the first argument as a file, or stdin when none is given.
func readInput(c *cli.Context) ([]byte, error) {
	if c.NArg() > 0 {
		return os.ReadFile(c.Args().First())
	}
	if !stdinHasData() {
		return nil, fmt.Errorf("attributes JSON must be given as a file or piped via stdin")
	}
	return io.ReadAll(os.Stdin)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func mimeTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
