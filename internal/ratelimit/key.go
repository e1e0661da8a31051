package ratelimit

import (
	"fmt"
	"strings"
)

const (
	keySeparator    = ":"
	scopedSeparator = "\x1f"
)

// BuildKey builds the registry key for a subject and action.
// Actions must not contain ":" so keys stay unambiguous for subjects that do (IPv6).
func BuildKey(subject, action string) (string, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(action) == "" {
		return "", fmt.Errorf("%w: empty subject or action", ErrInvalidArgument)
	}
	if strings.Contains(action, keySeparator) {
		return "", fmt.Errorf("%w: action %q contains %q", ErrInvalidArgument, action, keySeparator)
	}
	return subject + keySeparator + action, nil
}

// ScopedSubject joins a user and a resource into one subject for per-resource quotas.
func ScopedSubject(userID, resourceID string) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(resourceID) == "" {
		return "", fmt.Errorf("%w: empty user or resource id", ErrInvalidArgument)
	}
	if strings.Contains(userID, scopedSeparator) || strings.Contains(resourceID, scopedSeparator) {
		return "", fmt.Errorf("%w: id contains reserved separator", ErrInvalidArgument)
	}
	return userID + scopedSeparator + resourceID, nil
}
