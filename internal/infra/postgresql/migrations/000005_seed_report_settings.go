package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"gorm.io/gorm"
)

// seedReportSettings inserts the scheduler defaults without touching values an
// operator has already saved.
func seedReportSettings() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_seed_report_settings",
		Migrate: func(tx *gorm.DB) error {
			statements := []struct {
				sql  string
				args []any
			}{
				{
					sql:  `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, NOW()) ON CONFLICT (key) DO NOTHING`,
					args: []any{domain.SettingSendTime, domain.DefaultSendTime.String()},
				},
				{
					sql:  `INSERT INTO settings (key, value, updated_at) VALUES (?, NULL, NOW()) ON CONFLICT (key) DO NOTHING`,
					args: []any{domain.SettingLastReportSentDate},
				},
			}
			for _, stmt := range statements {
				if err := tx.Exec(stmt.sql, stmt.args...).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DELETE FROM settings WHERE key IN (?, ?)`,
				domain.SettingSendTime, domain.SettingLastReportSentDate).Error
		},
	}
}
