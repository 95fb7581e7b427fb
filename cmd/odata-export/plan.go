package main

import (
	"fmt"

	"github.com/Sternrassler/odata-export/pkg/dataset"
	"github.com/Sternrassler/odata-export/pkg/planner"
	"github.com/spf13/cobra"
)

func newPlanCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the request URLs of endpoints that need no driving values",
		Long: `Plan prints the request URL for each independent endpoint. Keyed
endpoints depend on fetched data, so only their driving source is shown.
No network requests are made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			order, err := cfg.ExecutionOrder()
			if err != nil {
				return err
			}

			pl := planner.New(cfg.API.BaseURL, cfg.API.ChunkSize)
			empty := dataset.NewStore()
			out := cmd.OutOrStdout()
			for _, name := range order {
				ep, _ := cfg.Endpoint(name)
				if ep.KeyFilter != "" {
					fmt.Fprintf(out, "%s: %s in %s, chunks of %d\n", name, ep.KeyFilter, ep.DrivingSource, cfg.API.ChunkSize)
					continue
				}
				reqs, err := pl.Plan(ep, empty)
				if err != nil {
					return err
				}
				for req := range reqs {
					fmt.Fprintf(out, "%s: %s\n", name, req.URL)
				}
			}
			return nil
		},
	}
}
