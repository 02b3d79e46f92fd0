package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// evalCmd evaluates one formula against the --set cells
var evalCmd = &cobra.Command{
	Use:   "eval FORMULA",
	Short: "Evaluate a formula against the sheet",
	Long: `Evaluate a formula against the cells given with --set.

The leading '=' is optional. The result prints the way it would display
in a cell, so faults come out as error values like #DIV/0!.

Examples:
  gridcalc eval "=1+2*3"
  gridcalc eval --set A1=10 --set A2=20 "=SUM(A1:A2)"`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	sheet, err := newSheet()
	if err != nil {
		return err
	}

	formula := strings.TrimPrefix(args[0], "=")
	value, err := sheet.EvaluateFormula(formula)
	if err != nil {
		return err
	}

	fmt.Println(value)
	return nil
}
