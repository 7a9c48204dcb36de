package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custlens-org/custlens/contract"
	"github.com/custlens-org/custlens/dataset"
	"github.com/custlens-org/custlens/router"
	"github.com/custlens-org/custlens/session"
)

var routeTarget string

var routeCmd = &cobra.Command{
	Use:   "route FILE",
	Short: "Route a dataset and show the resulting activations",
	Long: `Routes a single file through a fresh session. With --target the file is
validated strictly against that module (plus the geospatial piggyback probe);
without it, loose keyword matching activates every module that looks relevant.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()
		dataset.SetLogger(log)

		ds := dataset.Load(args[0])
		ctx := session.NewContext(cfg)
		rt := router.New(cfg.ModuleKeywords(), log)

		var out *router.Outcome
		if routeTarget == "" {
			out = rt.RouteLoose(ctx.Registry, ds, session.MemoryRef(ds), args[0])
		} else {
			out, err = rt.Route(ctx.Registry, ds, contract.Module(routeTarget), session.MemoryRef(ds), args[0])
			if err != nil {
				return err
			}
		}

		fmt.Printf("status: %s (%s)\n", out.Status, out.Strategy)
		for _, act := range out.Activated {
			suffix := ""
			if act.Flavor != "" {
				suffix = " flavor=" + act.Flavor
			}
			if act.Piggyback {
				suffix += " (piggyback)"
			}
			fmt.Printf("  %s%s\n", act.Module, suffix)
			for field, col := range act.Mapping {
				fmt.Printf("    %s -> %s\n", field, col)
			}
		}
		return printJSON(out)
	},
}

func init() {
	routeCmd.Flags().StringVar(&routeTarget, "target", "", "strict-route at this module")
	rootCmd.AddCommand(routeCmd)
}
