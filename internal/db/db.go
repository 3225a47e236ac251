package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"evenup_web/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// groupedLogsView aggregates app_error_logs by its identifying columns. The
// statement is plain SQL accepted by both Postgres and MySQL.
const groupedLogsView = `CREATE OR REPLACE VIEW app_error_logs_grouped AS
SELECT source, error_kind, code, message, severity,
       COUNT(*) AS occurrences,
       MAX(duplicate_count) AS max_duplicate_count,
       MAX(occurred_at) AS last_seen_at
FROM app_error_logs
GROUP BY source, error_kind, code, message, severity`

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres, "":
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}
}

// Connect opens and pings the database.
func Connect(driver, dsn string) (*gorm.DB, error) {
	d, err := dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(d, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	slog.Info("✅ Database connected", "driver", gdb.Dialector.Name())
	return gdb, nil
}

// AutoMigrate creates the portal tables and the grouped log view. It is the
// development path; production schemas come from the goose migrations.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("db: automigrate: %w", err)
	}
	if err := gdb.Exec(groupedLogsView).Error; err != nil {
		return fmt.Errorf("db: create view: %w", err)
	}
	return nil
}
