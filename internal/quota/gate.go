// Package quota gates AI assistance on two independent daily budgets: a global one per user
// and a scoped one per user and reading text.
package quota

import (
	"context"
	"errors"
	"time"

	"github.com/lmslight/lms-core/internal/ratelimit"
	internalsettings "github.com/lmslight/lms-core/internal/settings"
)

// Axis names the budget that denied a request.
type Axis string

const (
	AxisNone   Axis = ""
	AxisScoped Axis = "reading_text"
	AxisGlobal Axis = "global"
)

// Decision is the outcome of Authorize. Scoped is always populated; Global only when the
// scoped check passed.
type Decision struct {
	Allowed  bool
	DeniedBy Axis
	Scoped   ratelimit.Result
	Global   ratelimit.Result
}

// Limits reports the configured allowance of both axes.
type Limits struct {
	Global ratelimit.Policy
	Scoped ratelimit.Policy
}

// Gate enforces the global and per-reading-text AI quotas. The two axes live in separate
// registries so exhausting one never touches the other.
type Gate struct {
	global *ratelimit.Manager
	scoped *ratelimit.Manager
}

// NewGate constructs a Gate. global and scoped must be distinct managers.
func NewGate(global, scoped *ratelimit.Manager) (*Gate, error) {
	if global == nil || scoped == nil {
		return nil, errors.New("quota: nil manager")
	}
	if global == scoped {
		return nil, errors.New("quota: global and scoped quotas must not share a registry")
	}
	return &Gate{global: global, scoped: scoped}, nil
}

// Limits returns the configured policies.
func (g *Gate) Limits() Limits {
	return Limits{
		Global: g.global.Policies().AIRequest,
		Scoped: g.scoped.Policies().AIReadingText,
	}
}

// Now returns the gate's clock reading.
func (g *Gate) Now() time.Time {
	return g.global.Now()
}

// CheckScoped consumes one unit of the user's budget for a reading text.
func (g *Gate) CheckScoped(ctx context.Context, userID, readingTextID string) (bool, error) {
	result, err := g.checkScoped(ctx, userID, readingTextID)
	if err != nil {
		return false, err
	}
	return result.Allowed, nil
}

// ScopedRemaining reports the user's remaining budget for a reading text.
func (g *Gate) ScopedRemaining(ctx context.Context, userID, readingTextID string) (int, error) {
	subject, errSubject := ratelimit.ScopedSubject(userID, readingTextID)
	if errSubject != nil {
		return 0, errSubject
	}
	return g.scoped.Remaining(ctx, subject, internalsettings.ActionAIReadingText, g.scoped.Policies().AIReadingText.Limit)
}

// ScopedStatus returns the live per-reading-text counter, or nil.
func (g *Gate) ScopedStatus(ctx context.Context, userID, readingTextID string) (*ratelimit.Status, error) {
	subject, errSubject := ratelimit.ScopedSubject(userID, readingTextID)
	if errSubject != nil {
		return nil, errSubject
	}
	return g.scoped.Status(ctx, subject, internalsettings.ActionAIReadingText)
}

// ResetScoped drops the user's counter for a reading text.
func (g *Gate) ResetScoped(ctx context.Context, userID, readingTextID string) error {
	subject, errSubject := ratelimit.ScopedSubject(userID, readingTextID)
	if errSubject != nil {
		return errSubject
	}
	return g.scoped.Reset(ctx, subject, internalsettings.ActionAIReadingText)
}

// GlobalRemaining reports the user's remaining global AI budget.
func (g *Gate) GlobalRemaining(ctx context.Context, userID string) (int, error) {
	return g.global.AIRequestRemaining(ctx, userID)
}

// Authorize checks the scoped quota and then the global quota. A global denial leaves the
// scoped unit consumed.
func (g *Gate) Authorize(ctx context.Context, userID, readingTextID string) (Decision, error) {
	scoped, errScoped := g.checkScoped(ctx, userID, readingTextID)
	if errScoped != nil {
		return Decision{}, errScoped
	}
	if !scoped.Allowed {
		return Decision{Allowed: false, DeniedBy: AxisScoped, Scoped: scoped}, nil
	}

	global, errGlobal := g.global.CheckAIRequest(ctx, userID)
	if errGlobal != nil {
		return Decision{}, errGlobal
	}
	if !global.Allowed {
		return Decision{Allowed: false, DeniedBy: AxisGlobal, Scoped: scoped, Global: global}, nil
	}
	return Decision{Allowed: true, Scoped: scoped, Global: global}, nil
}

func (g *Gate) checkScoped(ctx context.Context, userID, readingTextID string) (ratelimit.Result, error) {
	subject, errSubject := ratelimit.ScopedSubject(userID, readingTextID)
	if errSubject != nil {
		return ratelimit.Result{}, errSubject
	}
	return g.scoped.Check(ctx, subject, internalsettings.ActionAIReadingText, g.scoped.Policies().AIReadingText)
}
