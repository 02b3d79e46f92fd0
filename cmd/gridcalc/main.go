package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridcalc/gridcalc/engine"
)

var (
	// Global flags
	verbose    bool
	configPath string
	setFlags   []string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gridcalc",
	Short: "gridcalc - spreadsheet calculation engine",
	Long: `gridcalc evaluates spreadsheet formulas against an ad-hoc grid.

Cells are populated with repeated --set flags (--set A1=10) and commands
operate on the resulting sheet: evaluate a formula, inspect dependencies,
or run a fill.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringArrayVar(&setFlags, "set", nil, "Set a cell before running, e.g. --set A1=10 (repeatable)")

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(fillCmd)
}

// newSheet builds the sheet every command operates on: config from
// --config when given, cells from the --set flags.
func newSheet() (*engine.Sheet, error) {
	cfg := engine.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = engine.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}

	sheet := engine.NewSheetWithConfig(cfg, logger)
	for _, set := range setFlags {
		addr, text, err := parseSetFlag(set)
		if err != nil {
			return nil, err
		}
		if err := sheet.SetCell(addr, text); err != nil {
			return nil, fmt.Errorf("setting %s: %w", addr, err)
		}
	}
	return sheet, nil
}

func parseSetFlag(flag string) (engine.CellAddress, string, error) {
	name, text, found := strings.Cut(flag, "=")
	if !found {
		return engine.CellAddress{}, "", fmt.Errorf("--set wants CELL=VALUE, got %q", flag)
	}
	addr, _, _, err := engine.ParseAddress(strings.TrimSpace(name))
	if err != nil {
		return engine.CellAddress{}, "", fmt.Errorf("--set %q: %w", flag, err)
	}
	return addr, text, nil
}

func parseRangeArg(text string) (engine.CellRange, error) {
	startText, endText, found := strings.Cut(text, ":")
	if !found {
		endText = startText
	}
	start, _, _, err := engine.ParseAddress(strings.TrimSpace(startText))
	if err != nil {
		return engine.CellRange{}, fmt.Errorf("range %q: %w", text, err)
	}
	end, _, _, err := engine.ParseAddress(strings.TrimSpace(endText))
	if err != nil {
		return engine.CellRange{}, fmt.Errorf("range %q: %w", text, err)
	}
	return engine.CellRange{Start: start, End: end}.Normalized(), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
