package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrHistoryImmutable is returned when a history row is updated or deleted.
var ErrHistoryImmutable = errors.New("history records are append-only")

// History is an audit entry for a mutation of another table.
// UserID and ClassID are weak references so entries survive user and class deletion.
type History struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Table    string `gorm:"column:table_name;type:text;not null"` // Mutated table.
	RecordID string `gorm:"type:text;not null"`                   // Mutated record.
	Action   string `gorm:"type:text;not null"`                   // CREATE, UPDATE or DELETE.

	OldData datatypes.JSON `gorm:"type:jsonb"` // Snapshot before the mutation.
	NewData datatypes.JSON `gorm:"type:jsonb"` // Snapshot after the mutation.

	UserID  *string `gorm:"type:text;index"` // Acting user.
	ClassID *string `gorm:"type:text;index"` // Owning class.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (History) TableName() string {
	return "history"
}

// BeforeUpdate rejects updates.
func (*History) BeforeUpdate(*gorm.DB) error {
	return ErrHistoryImmutable
}

// BeforeDelete rejects deletes.
func (*History) BeforeDelete(*gorm.DB) error {
	return ErrHistoryImmutable
}
