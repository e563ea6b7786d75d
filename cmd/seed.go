package cmd

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/config"
	"github.com/jmehdipour/reminder-gateway/internal/db"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo reminders...")

		type demo struct {
			id      string
			title   string
			primary string
			backup  sql.NullString
			due     time.Duration
		}

		now := time.Now().UTC()
		demos := []demo{
			{
				id:      "01J00000000000000000SEED01",
				title:   "Take your evening medication",
				primary: "+14155550101",
				backup:  sql.NullString{String: "+14155550102", Valid: true},
				due:     time.Minute,
			},
			{
				id:      "01J00000000000000000SEED02",
				title:   "Dentist appointment at 3pm",
				primary: "+14155550103",
				due:     5 * time.Minute,
			},
			{
				id:      "01J00000000000000000SEED03",
				title:   "Call the pharmacy before it closes",
				primary: "+14155550104",
				backup:  sql.NullString{String: "+14155550105", Valid: true},
				due:     time.Hour,
			},
		}

		// idempotent upsert keyed on the fixed demo ids
		const q = `
INSERT INTO reminders
    (id, title, primary_phone, backup_phone, scheduled_at, next_attempt_at,
     attempts, backup_attempts, status, last_outcome, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, 0, 0, 'SCHEDULED', NULL, NOW(), NOW())
ON DUPLICATE KEY UPDATE
    title           = VALUES(title),
    primary_phone   = VALUES(primary_phone),
    backup_phone    = VALUES(backup_phone),
    scheduled_at    = VALUES(scheduled_at),
    next_attempt_at = VALUES(next_attempt_at),
    attempts        = 0,
    backup_attempts = 0,
    status          = 'SCHEDULED',
    last_outcome    = NULL,
    updated_at      = NOW()
`
		tx, err := sqlDB.Beginx()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		for _, d := range demos {
			at := now.Add(d.due)
			if _, err := tx.Exec(q, d.id, d.title, d.primary, d.backup, at, at); err != nil {
				return fmt.Errorf("insert reminder %q: %w", d.title, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit reminders: %w", err)
		}

		log.Println(">> Seed completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
