package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custlens-org/custlens/contract"
	"github.com/custlens-org/custlens/dataset"
)

var validateModule string

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check which module contracts a dataset satisfies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds := dataset.Load(args[0])
		if ds.IsEmpty() {
			return fmt.Errorf("could not read any rows from %s", args[0])
		}

		report, err := contract.Validate(ds, contract.Module(validateModule))
		if err != nil {
			return err
		}
		if validateJSON {
			return printJSON(report)
		}
		for _, m := range contract.Modules() {
			res, ok := report[m]
			if !ok {
				continue
			}
			status := "not ready"
			if res.IsReady() {
				status = "ready"
			}
			fmt.Printf("%-13s %s\n", m, status)
			if detail := res.Explain(); detail != "" {
				fmt.Printf("              %s\n", detail)
			}
		}
		return nil
	},
}

var validateJSON bool

func init() {
	validateCmd.Flags().StringVar(&validateModule, "module", "", "validate a single module instead of all")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "emit the full report as JSON")
	rootCmd.AddCommand(validateCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
