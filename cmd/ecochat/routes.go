package main

import (
	"github.com/spf13/cobra"

	"github.com/luciancaetano/ecochat/internal/app"
	"github.com/luciancaetano/ecochat/internal/routing"
)

var routesFile string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the websocket URL patterns",
	Long: `Print the websocket URL patterns in routes file form.

Without --routes (or ECOCHAT_ROUTES_FILE) the built-in patterns are printed,
which makes a starting point for a custom file.`,
	Example: `  ecochat routes > routes.yaml
  ecochat routes --routes routes.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := routesFile
		if !cmd.Flags().Changed("routes") {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path = cfg.RoutesFile
		}
		patterns, err := routing.Load(path)
		if err != nil {
			return err
		}
		if err := app.CheckPatterns(patterns); err != nil {
			return err
		}
		return routing.Marshal(cmd.OutOrStdout(), patterns)
	},
}

func init() {
	routesCmd.Flags().StringVarP(&routesFile, "routes", "r", "", "Websocket routes file")
	rootCmd.AddCommand(routesCmd)
}
