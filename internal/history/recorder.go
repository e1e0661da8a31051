package history

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lmslight/lms-core/internal/models"
	internalsettings "github.com/lmslight/lms-core/internal/settings"

	log "github.com/sirupsen/logrus"
)

// WriteObserver is notified of every persisted or failed audit write.
type WriteObserver interface {
	ObserveWrite(table string, err error)
}

// Recorder writes audit entries on a best-effort basis and serves history queries.
type Recorder struct {
	store Store

	mu       sync.RWMutex
	observer WriteObserver
}

// NewRecorder constructs a Recorder over store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// SetObserver registers a write observer.
func (r *Recorder) SetObserver(observer WriteObserver) {
	r.mu.Lock()
	r.observer = observer
	r.mu.Unlock()
}

// Record appends entry to the audit trail. Failures are logged and never returned.
// CREATE entries drop OldData and DELETE entries drop NewData before serialization; the
// remaining side is required.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	row, errBuild := buildRow(entry)
	if errBuild != nil {
		log.WithError(errBuild).WithFields(log.Fields{
			"table":  entry.Table,
			"record": entry.RecordID,
			"action": string(entry.Action),
		}).Warn("history: skip invalid entry")
		r.observe(entry.Table, errBuild)
		return
	}
	if r == nil || r.store == nil {
		log.Warn("history: recorder has no store")
		return
	}
	errInsert := r.store.Insert(ctx, row)
	if errInsert != nil {
		log.WithError(errInsert).WithFields(log.Fields{
			"table":  row.Table,
			"record": row.RecordID,
			"action": row.Action,
		}).Warn("history: failed to create history record")
	}
	r.observe(row.Table, errInsert)
}

// ByRecord returns the history of one record, newest first.
func (r *Recorder) ByRecord(ctx context.Context, table, recordID string) ([]Record, error) {
	table = strings.TrimSpace(table)
	recordID = strings.TrimSpace(recordID)
	if table == "" || recordID == "" {
		return nil, ErrInvalidQuery
	}
	return r.query(ctx, Filter{Table: table, RecordID: recordID}, 0)
}

// ByClass returns the most recent history of a class, newest first.
// A non-positive limit uses the default; larger limits are capped.
func (r *Recorder) ByClass(ctx context.Context, classID string, limit int) ([]Record, error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return nil, ErrInvalidQuery
	}
	return r.query(ctx, Filter{ClassID: classID}, NormalizeClassLimit(limit))
}

// NormalizeClassLimit applies the default and maximum page size for class queries.
func NormalizeClassLimit(limit int) int {
	if limit <= 0 {
		return internalsettings.DefaultHistoryClassLimit
	}
	if limit > internalsettings.MaxHistoryClassLimit {
		return internalsettings.MaxHistoryClassLimit
	}
	return limit
}

// ErrInvalidQuery is returned when a query key is empty.
var ErrInvalidQuery = errors.New("history: missing query key")

func (r *Recorder) query(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	if r == nil || r.store == nil {
		return nil, errors.New("history: recorder has no store")
	}
	rows, errFind := r.store.FindMany(ctx, filter, limit)
	if errFind != nil {
		return nil, errFind
	}

	records := make([]Record, 0, len(rows))
	seen := make(map[string]struct{})
	userIDs := make([]string, 0)
	for _, row := range rows {
		rec := toRecord(row)
		records = append(records, rec)
		if rec.UserID == "" {
			continue
		}
		if _, ok := seen[rec.UserID]; ok {
			continue
		}
		seen[rec.UserID] = struct{}{}
		userIDs = append(userIDs, rec.UserID)
	}
	if len(userIDs) == 0 {
		return records, nil
	}

	actors, errActors := r.store.LookupActors(ctx, userIDs)
	if errActors != nil {
		return nil, errActors
	}
	for i := range records {
		if actor, ok := actors[records[i].UserID]; ok {
			a := actor
			records[i].User = &a
		}
	}
	return records, nil
}

func (r *Recorder) observe(table string, err error) {
	if r == nil {
		return
	}
	r.mu.RLock()
	observer := r.observer
	r.mu.RUnlock()
	if observer != nil {
		observer.ObserveWrite(table, err)
	}
}

func buildRow(entry Entry) (*models.History, error) {
	table := strings.TrimSpace(entry.Table)
	recordID := strings.TrimSpace(entry.RecordID)
	if table == "" || recordID == "" {
		return nil, errors.New("history: missing table or record id")
	}
	if !entry.Action.Valid() {
		return nil, errors.New("history: unknown action " + string(entry.Action))
	}

	oldValue, newValue := entry.OldData, entry.NewData
	switch entry.Action {
	case ActionCreate:
		oldValue = nil
	case ActionDelete:
		newValue = nil
	}
	oldData, errOld := NewSnapshot(oldValue)
	if errOld != nil {
		return nil, errOld
	}
	newData, errNew := NewSnapshot(newValue)
	if errNew != nil {
		return nil, errNew
	}
	switch entry.Action {
	case ActionCreate:
		if newData == nil {
			return nil, errors.New("history: create entry requires new data")
		}
	case ActionDelete:
		if oldData == nil {
			return nil, errors.New("history: delete entry requires old data")
		}
	case ActionUpdate:
		if oldData == nil || newData == nil {
			return nil, errors.New("history: update entry requires old and new data")
		}
	}

	row := &models.History{
		Table:    table,
		RecordID: recordID,
		Action:   string(entry.Action),
		OldData:  oldData,
		NewData:  newData,
	}
	if userID := strings.TrimSpace(entry.UserID); userID != "" {
		row.UserID = &userID
	}
	if classID := strings.TrimSpace(entry.ClassID); classID != "" {
		row.ClassID = &classID
	}
	return row, nil
}
