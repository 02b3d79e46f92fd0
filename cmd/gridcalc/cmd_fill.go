package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridcalc/gridcalc/engine"
)

var (
	fillSource    string
	fillTarget    string
	fillDirection string
)

// fillCmd runs a fill and prints the generated cells
var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Extend a block of cells along one axis",
	Long: `Detect a series in the source block and extend it into the
target block, printing every generated cell. Formula cells replicate
with their references adjusted for each new position.

Example:
  gridcalc fill --set A1=1 --set A2=2 --source A1:A2 --target A3:A6 --direction down`,
	RunE: runFill,
}

func init() {
	fillCmd.Flags().StringVar(&fillSource, "source", "", "Source range, e.g. A1:A3 (required)")
	fillCmd.Flags().StringVar(&fillTarget, "target", "", "Target range, e.g. A4:A8 (required)")
	fillCmd.Flags().StringVar(&fillDirection, "direction", "down", "Fill direction: down, up, right, left")
	_ = fillCmd.MarkFlagRequired("source")
	_ = fillCmd.MarkFlagRequired("target")
}

func runFill(cmd *cobra.Command, args []string) error {
	sheet, err := newSheet()
	if err != nil {
		return err
	}

	source, err := parseRangeArg(fillSource)
	if err != nil {
		return err
	}
	target, err := parseRangeArg(fillTarget)
	if err != nil {
		return err
	}
	direction, err := parseDirection(fillDirection)
	if err != nil {
		return err
	}

	result, err := sheet.Fill(engine.FillOperation{
		Source:    source,
		Target:    target,
		Direction: direction,
	})
	if err != nil {
		return err
	}

	for _, update := range result.Updates {
		fmt.Printf("%s = %s -> %s\n", update.Addr, update.Text, sheet.Value(update.Addr))
	}
	fmt.Printf("%d cells written, %d formulas adjusted\n",
		len(result.AffectedCells)+len(result.FormulasAdjusted), len(result.FormulasAdjusted))
	return nil
}

func parseDirection(text string) (engine.FillDirection, error) {
	switch text {
	case "down":
		return engine.FillDown, nil
	case "up":
		return engine.FillUp, nil
	case "right":
		return engine.FillRight, nil
	case "left":
		return engine.FillLeft, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want down, up, right, left)", text)
	}
}
