package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/PlotAtlas/pkg/errors"
)

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back listing database migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migration directory (default: database.migration_path)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(c *CLIContext, run migrator) error {
				version, err := run.RunMigrations(migrationDir(c, dir))
				if err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("schema at version %d", version))
				return nil
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last --steps migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return errors.InvalidParam("--steps must be positive")
			}
			return withDatabase(cmd, func(c *CLIContext, run migrator) error {
				if err := run.RollbackMigrations(migrationDir(c, dir), steps); err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

type migrator interface {
	RunMigrations(dir string) (uint, error)
	RollbackMigrations(dir string, n int) error
}

func withDatabase(cmd *cobra.Command, fn func(*CLIContext, migrator) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if !cliCtx.Config.Database.Enabled {
		return errors.New(errors.ErrCodeConfigurationMissing, "database is disabled; set database.enabled")
	}
	ctx, cancel := cliCtx.operation(cmd.Context())
	defer cancel()

	comps, err := cliCtx.components(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()
	return fn(cliCtx, comps.DB)
}

func migrationDir(c *CLIContext, flag string) string {
	if flag != "" {
		return flag
	}
	return c.Config.Database.MigrationPath
}

//Personal.AI order the ending
