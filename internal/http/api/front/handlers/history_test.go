package handlers

import (
	"context"
	"testing"

	"github.com/lmslight/lms-core/internal/access"
	"github.com/lmslight/lms-core/internal/history"
)

type countingChecker struct {
	allowed map[string]bool
	calls   int
}

func (c *countingChecker) CanAccessClass(_ context.Context, _ access.Principal, classID string) (bool, error) {
	c.calls++
	return c.allowed[classID], nil
}

func TestVisibleRecords(t *testing.T) {
	checker := &countingChecker{allowed: map[string]bool{"c1": true}}
	h := NewHistoryHandler(nil, checker)
	records := []history.Record{
		{ID: 1, UserID: "u1"},
		{ID: 2, UserID: "u2", ClassID: "c1"},
		{ID: 3, UserID: "u2", ClassID: "c2"},
		{ID: 4, UserID: "u3", ClassID: "c1"},
		{ID: 5, UserID: "u2"},
	}

	visible, err := h.visibleRecords(context.Background(), access.Principal{UserID: "u1"}, records)
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if len(visible) != 3 || visible[0].ID != 1 || visible[1].ID != 2 || visible[2].ID != 4 {
		t.Fatalf("unexpected visible records %+v", visible)
	}
	if checker.calls != 2 {
		t.Fatalf("expected one access check per class, got %d", checker.calls)
	}
}
