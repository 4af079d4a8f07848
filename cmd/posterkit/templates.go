package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eringen/posterkit/poster"
)

func newTemplatesCmd() *cobra.Command {
	var (
		config string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the template catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(config)
			if err != nil {
				return err
			}
			templates := cfg.Templates
			if len(templates) == 0 {
				templates = poster.DefaultTemplates()
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(templates)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tPRICE AREA\tOVERLAY")
			for _, t := range templates {
				fmt.Fprintf(w, "%s\t%dx%d\t(%g, %g) %dpx\t%s\n",
					t.Name, t.Width, t.Height, t.PriceArea.X, t.PriceArea.Y, t.PriceArea.FontSize, t.Overlay)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&config, "config", "c", "", "TOML config file with the template catalog")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
