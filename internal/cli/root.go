// Package cli implements evenupctl, the operator tool for schema
// migrations, first-run seeding and admin role assignments.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"evenup_web/internal/config"
	"evenup_web/internal/db"
)

// env carries what subcommands share. Tests swap openDB.
type env struct {
	cfg    config.Config
	out    io.Writer
	openDB func(config.Config) (*gorm.DB, error)
}

func defaultOpenDB(cfg config.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn not set (EVENUP_DATABASE__DSN or DATABASE_URL)")
	}
	return db.Connect(cfg.Database.Driver, cfg.Database.DSN)
}

// NewRootCmd builds the command tree. cfg is read once by the caller.
func NewRootCmd(cfg config.Config) *cobra.Command {
	e := &env{cfg: cfg, out: os.Stdout, openDB: defaultOpenDB}
	return newRoot(e)
}

func newRoot(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "evenupctl",
		Short:         "Operate the EvenUp admin portal database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			e.out = cmd.OutOrStdout()
		},
	}
	root.AddCommand(newMigrateCmd(e), newSeedCmd(e), newRolesCmd(e))
	return root
}

// Execute runs evenupctl with the process arguments.
func Execute(ctx context.Context, cfg config.Config) error {
	return NewRootCmd(cfg).ExecuteContext(ctx)
}
