package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/creastat/voicedesk/catalog"
	"github.com/creastat/voicedesk/supabase"
)

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Print the menu the line will quote prices from",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			business := catalog.DefaultBusiness()
			if cfg.Business.File != "" {
				if business, err = catalog.LoadBusiness(cfg.Business.File); err != nil {
					return err
				}
			}
			source := "profile"
			if cfg.Supabase.Enabled() {
				client, err := supabase.New(supabase.Config{
					URL:       cfg.Supabase.URL,
					APIKey:    cfg.Supabase.Key,
					MenuTable: cfg.Supabase.MenuTable,
				})
				if err != nil {
					return err
				}
				defer client.Close()
				items, err := client.Menu(cmd.Context())
				if err != nil {
					logger.Warn().Err(err).Msg("could not load menu from supabase")
				} else if len(items) > 0 {
					business.Menu = items
					source = "supabase"
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s menu)\n", business.Name, source)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, item := range business.Catalog().Items() {
				fmt.Fprintf(w, "  %s\t%.2f %s\n", item.Name, item.Price, business.Currency)
			}
			return w.Flush()
		},
	}
}
