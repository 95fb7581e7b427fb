package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline file and print the endpoint execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			order, err := cfg.ExecutionOrder()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", global.configFile)
			for i, name := range order {
				ep, _ := cfg.Endpoint(name)
				if ep.DrivingSource != nil {
					fmt.Fprintf(out, "%d. %s (driven by %s)\n", i+1, name, ep.DrivingSource)
					continue
				}
				fmt.Fprintf(out, "%d. %s\n", i+1, name)
			}
			return nil
		},
	}
}
