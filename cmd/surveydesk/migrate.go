package main

import (
	"github.com/spf13/cobra"

	"github.com/paulexconde/surveydesk/internal/db"
)

var seedUsers []string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and optionally seed users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(ctx, conn); err != nil {
			return err
		}
		log.Info("Schema is up to date", "driver", cfg.Database.Driver)

		if len(seedUsers) > 0 {
			if err := db.SeedUsers(ctx, conn, seedUsers...); err != nil {
				return err
			}
			log.Info("Seeded users", "count", len(seedUsers))
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringSliceVar(&seedUsers, "seed-users", nil, "usernames to create if missing, comma separated")
}
