package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/gridcalc/gridcalc/engine"
)

// depsCmd inspects the dependency graph around one cell
var depsCmd = &cobra.Command{
	Use:   "deps CELL",
	Short: "Show what a cell reads and what reads it",
	Long: `Print the dependency picture around one cell: the cells its
formula reads, the cells whose formulas read it, and the full set of
cells that would recalculate if it changed, in recalculation order.

Example:
  gridcalc deps --set A1=1 --set B1="=A1*2" --set C1="=B1+1" B1`,
	Args: cobra.ExactArgs(1),
	RunE: runDeps,
}

func runDeps(cmd *cobra.Command, args []string) error {
	sheet, err := newSheet()
	if err != nil {
		return err
	}

	addr, _, _, err := engine.ParseAddress(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("reads:      %s\n", formatSet(sheet.Dependencies(addr)))
	fmt.Printf("read by:    %s\n", formatSet(sheet.Dependents(addr)))
	fmt.Printf("recalc set: %s\n", formatList(sheet.AffectedBy(addr)))
	return nil
}

func formatSet(set engine.AddressSet) string {
	addrs := maps.Keys(set)
	slices.SortFunc(addrs, func(a, b engine.CellAddress) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	return formatList(addrs)
}

func formatList(addrs []engine.CellAddress) string {
	if len(addrs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(addrs))
	for i, addr := range addrs {
		parts[i] = addr.String()
	}
	return strings.Join(parts, " ")
}
