package db

import (
	"fmt"

	"gorm.io/gorm"

	"dtr/internal/models"
)

// индекс гарантирует одну открытую сессию на (user_id, org_id);
// в MySQL частичных индексов нет, там достаточно блокировки в транзакции clock-in.
// Синтаксис общий для postgres и sqlite.
const activeEntryIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_time_entries_active
	ON time_entries (user_id, org_id) WHERE time_out IS NULL`

// Migrate создаёт/обновляет схему.
func Migrate(d *gorm.DB) error {
	if err := d.AutoMigrate(
		&models.Organization{},
		&models.UserOrganization{},
		&models.TimeEntry{},
		&models.Invitation{},
		&models.AuditEvent{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if name := d.Dialector.Name(); name == "postgres" || name == "sqlite" {
		if err := d.Exec(activeEntryIndex).Error; err != nil {
			return fmt.Errorf("active entry index: %w", err)
		}
	}
	return nil
}
