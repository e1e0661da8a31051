package ratelimit

import (
	"context"

	internalsettings "github.com/lmslight/lms-core/internal/settings"
)

// CheckAIRequest applies the global daily AI quota to a user.
func (m *Manager) CheckAIRequest(ctx context.Context, userID string) (Result, error) {
	return m.Check(ctx, userID, internalsettings.ActionAIRequest, m.Policies().AIRequest)
}

// AIRequestRemaining reports the global AI quota left for a user.
func (m *Manager) AIRequestRemaining(ctx context.Context, userID string) (int, error) {
	return m.Remaining(ctx, userID, internalsettings.ActionAIRequest, m.Policies().AIRequest.Limit)
}

// CheckLogin throttles login attempts by client IP.
func (m *Manager) CheckLogin(ctx context.Context, clientIP string) (Result, error) {
	return m.Check(ctx, clientIP, internalsettings.ActionLogin, m.Policies().Login)
}

// CheckAPIRequest throttles generic API traffic for an identifier.
func (m *Manager) CheckAPIRequest(ctx context.Context, identifier string) (Result, error) {
	return m.Check(ctx, identifier, internalsettings.ActionAPIRequest, m.Policies().APIRequest)
}

// CheckChat throttles chat messages for a user.
func (m *Manager) CheckChat(ctx context.Context, userID string) (Result, error) {
	return m.Check(ctx, userID, internalsettings.ActionChat, m.Policies().Chat)
}

// CheckAnnotation throttles annotations for a user.
func (m *Manager) CheckAnnotation(ctx context.Context, userID string) (Result, error) {
	return m.Check(ctx, userID, internalsettings.ActionAnnotation, m.Policies().Annotation)
}
