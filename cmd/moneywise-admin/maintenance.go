package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"moneywise/internal/services"
)

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Recurring transaction processing",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Generate every due recurring occurrence once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			agg := services.NewAggregationService(repo)
			ledger := services.NewLedgerService(repo, services.NewAlertService(repo, agg, nil, logger), logger)
			created, err := services.NewRecurringProcessor(repo, ledger, logger).ProcessDue(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d recurring transactions\n", created)
			return nil
		},
	})
	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Login session maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := services.NewSessionService(repo, logger).PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired sessions\n", n)
			return nil
		},
	})
	return cmd
}
