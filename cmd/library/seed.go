package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SivaGaneshv1729/library-management-api/pkg/database"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample members and books if they are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			result, err := database.Seed(cmd.Context(), db, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d members and %d books\n", result.Members, result.Books)
			return nil
		},
	}
}
