package db

import (
	"fmt"

	"github.com/lmslight/lms-core/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Class{},
		&models.ClassStudent{},
		&models.History{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_history_table_record_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_history_table_record_created_at
				ON history (table_name, record_id, created_at DESC, id DESC)
			`,
		},
		{
			name: "idx_history_class_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_history_class_created_at
				ON history (class_id, created_at DESC, id DESC)
				WHERE class_id IS NOT NULL
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}
	return nil
}
