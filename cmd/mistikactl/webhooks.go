package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	checkoutpostgres "github.com/mistika/checkout/internal/checkout/adapters/postgres"
	"github.com/mistika/checkout/internal/checkout/app/queries"
	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/config"
	"github.com/mistika/checkout/internal/database"
)

func webhooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Inspect recorded provider webhook deliveries",
	}

	var (
		databaseURL string
		query       queries.ListWebhookEventsQuery
	)

	list := &cobra.Command{
		Use:   "list",
		Short: "List webhook events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				databaseURL = cfg.Database.URL
			}

			pool, err := database.NewPool(cmd.Context(), databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			handler := queries.NewListWebhookEventsQueryHandler(checkoutpostgres.NewWebhookEventStore(pool))
			events, err := handler.Handle(cmd.Context(), query)
			if err != nil {
				return err
			}
			return printWebhookEvents(cmd, events)
		},
	}
	list.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL or DB_* variables)")
	list.Flags().StringVar(&query.Status, "status", "", "filter by status (received, processed, failed)")
	list.Flags().StringVar(&query.Provider, "provider", "", "filter by provider")
	list.Flags().IntVarP(&query.Limit, "limit", "n", 50, "maximum rows")

	cmd.AddCommand(list)
	return cmd
}

func printWebhookEvents(cmd *cobra.Command, events []domain.WebhookEvent) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tPROVIDER\tEVENT\tTOPIC\tRESOURCE\tSTATUS\tRETRIES\tLAST ERROR")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.CreatedAt.Format(time.RFC3339),
			e.Provider,
			e.EventID,
			e.Topic,
			e.ResourceID,
			e.Status,
			e.RetryCount,
			e.LastError,
		)
	}
	return tw.Flush()
}
