package cli

import (
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"

	"evenup_web/internal/db"
	"evenup_web/internal/migrate"
)

func newMigrateCmd(e *env) *cobra.Command {
	var useGorm bool
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status|version|redo|reset|up-to N|down-to N]",
		Short: "Apply the schema migrations",
		Long: `Apply the embedded SQL migrations with goose (Postgres only).

With --gorm the tables are created from the models instead, which also
works against MySQL.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command = args[0]
			}
			var target int64
			if command == "up-to" || command == "down-to" {
				if len(args) != 2 {
					return fmt.Errorf("%s needs a target version", command)
				}
				v, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid target version %q", args[1])
				}
				target = v
			}

			if useGorm {
				gdb, err := e.openDB(e.cfg)
				if err != nil {
					return err
				}
				if err := db.AutoMigrate(gdb); err != nil {
					return err
				}
				fmt.Fprintln(e.out, "✅ Tables migrated from models")
				return nil
			}

			if e.cfg.Database.Driver != "postgres" {
				return fmt.Errorf("sql migrations only support postgres; use --gorm for %s", e.cfg.Database.Driver)
			}
			if e.cfg.Database.DSN == "" {
				return fmt.Errorf("database dsn not set (EVENUP_DATABASE__DSN or DATABASE_URL)")
			}
			return migrate.Run(migrate.Options{
				DSN:     e.cfg.Database.DSN,
				Command: command,
				Target:  target,
				Logger:  log.New(e.out, "", log.LstdFlags),
			})
		},
	}
	cmd.Flags().BoolVar(&useGorm, "gorm", false, "create tables from the gorm models instead of SQL files")
	return cmd
}
