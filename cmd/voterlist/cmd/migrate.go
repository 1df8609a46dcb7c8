package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/VotersList/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		databaseURL string
		list        bool
	)

	c := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Migrate creates or upgrades the documents and voter_records tables.
convert and serve also migrate on startup when DATABASE_URL is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if list {
				files, err := store.MigrationFiles()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(out, f)
				}
				return nil
			}

			if cmd.Flags().Changed("database-url") {
				a.cfg.Database.URL = databaseURL
			}
			if !a.cfg.Database.HasDatabase() {
				return errors.New("migrate needs DATABASE_URL or --database-url")
			}
			if err := a.validate(); err != nil {
				return err
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			st.Close()

			fmt.Fprintf(out, "schema up to date (table %s)\n", a.cfg.Database.MigrationsTable)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (overrides DATABASE_URL)")
	c.Flags().BoolVar(&list, "list", false, "list the embedded migrations and exit")
	return c
}
