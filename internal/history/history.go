// Package history records and queries the append-only audit trail of mutations.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lmslight/lms-core/internal/models"

	"gorm.io/datatypes"
)

// Action identifies the kind of mutation an entry documents.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// Entry is a mutation to record. OldData and NewData are arbitrary JSON-serializable snapshots.
type Entry struct {
	Table    string
	RecordID string
	Action   Action
	OldData  any
	NewData  any
	UserID   string
	ClassID  string
}

// Record is a stored history entry with the acting user's display fields when known.
type Record struct {
	ID        uint64         `json:"id"`
	TableName string         `json:"table_name"`
	RecordID  string         `json:"record_id"`
	Action    Action         `json:"action"`
	OldData   datatypes.JSON `json:"old_data"`
	NewData   datatypes.JSON `json:"new_data"`
	UserID    string         `json:"user_id,omitempty"`
	ClassID   string         `json:"class_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	User      *models.Actor  `json:"user,omitempty"`
}

var errInvalidSnapshot = errors.New("history: snapshot is not valid json")

// NewSnapshot serializes v into a JSON snapshot. A nil value or JSON null yields nil.
func NewSnapshot(v any) (datatypes.JSON, error) {
	var raw []byte
	switch value := v.(type) {
	case nil:
		return nil, nil
	case datatypes.JSON:
		raw = []byte(value)
	case json.RawMessage:
		raw = []byte(value)
	default:
		encoded, errMarshal := json.Marshal(v)
		if errMarshal != nil {
			return nil, fmt.Errorf("history: encode snapshot: %w", errMarshal)
		}
		raw = encoded
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, errInvalidSnapshot
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return datatypes.JSON(out), nil
}

// Decode unmarshals a snapshot into target. It reports false when the snapshot is absent.
func Decode(snapshot datatypes.JSON, target any) (bool, error) {
	if isAbsent(snapshot) {
		return false, nil
	}
	if errUnmarshal := json.Unmarshal(snapshot, target); errUnmarshal != nil {
		return false, fmt.Errorf("history: decode snapshot: %w", errUnmarshal)
	}
	return true, nil
}

func isAbsent(snapshot datatypes.JSON) bool {
	trimmed := bytes.TrimSpace(snapshot)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func toRecord(row models.History) Record {
	rec := Record{
		ID:        row.ID,
		TableName: row.Table,
		RecordID:  row.RecordID,
		Action:    Action(row.Action),
		CreatedAt: row.CreatedAt,
	}
	if !isAbsent(row.OldData) {
		rec.OldData = row.OldData
	}
	if !isAbsent(row.NewData) {
		rec.NewData = row.NewData
	}
	if row.UserID != nil {
		rec.UserID = *row.UserID
	}
	if row.ClassID != nil {
		rec.ClassID = *row.ClassID
	}
	return rec
}
