// Package permissions maps admin routes to the roles allowed to call them.
package permissions

import (
	"sort"
	"strings"

	"github.com/lmslight/lms-core/internal/models"
)

// Definition describes an admin route and the roles that may call it.
type Definition struct {
	Key    string   `json:"key"`
	Method string   `json:"method"`
	Path   string   `json:"path"`
	Label  string   `json:"label"`
	Module string   `json:"module"`
	Roles  []string `json:"roles"`
}

// Key builds a permission key from method and path.
func Key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Allowed reports whether role may call the route identified by key.
// Unknown routes are denied.
func Allowed(role, key string) bool {
	def, ok := definitionMap[key]
	if !ok {
		return false
	}
	role = strings.TrimSpace(role)
	for _, r := range def.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ForRole returns the keys available to role, sorted.
func ForRole(role string) []string {
	out := make([]string, 0, len(definitions))
	for _, def := range definitions {
		if Allowed(role, def.Key) {
			out = append(out, def.Key)
		}
	}
	sort.Strings(out)
	return out
}

// Definitions returns a copy of all permission definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	for i, def := range definitions {
		def.Roles = append([]string(nil), def.Roles...)
		out[i] = def
	}
	return out
}

// newDefinition builds a Definition with a normalized key.
func newDefinition(method, path, label, module string, roles ...string) Definition {
	upperMethod := strings.ToUpper(method)
	return Definition{
		Key:    Key(upperMethod, path),
		Method: upperMethod,
		Path:   path,
		Label:  label,
		Module: module,
		Roles:  roles,
	}
}

// definitions is the ordered list of permission definitions.
var definitions = []Definition{
	newDefinition("GET", "/v0/admin/permissions", "List Permissions", "Permissions", models.RoleAdmin, models.RoleTeacher),

	newDefinition("GET", "/v0/admin/rate-limits/:action", "Get Rate Limit", "Rate Limits", models.RoleAdmin, models.RoleTeacher),
	newDefinition("DELETE", "/v0/admin/rate-limits/:action", "Reset Rate Limit", "Rate Limits", models.RoleAdmin, models.RoleTeacher),
	newDefinition("GET", "/v0/admin/reading-texts/:id/ai-requests", "Get Reading Text AI Quota", "Rate Limits", models.RoleAdmin, models.RoleTeacher),
	newDefinition("DELETE", "/v0/admin/reading-texts/:id/ai-requests", "Reset Reading Text AI Quota", "Rate Limits", models.RoleAdmin),

	newDefinition("GET", "/v0/admin/history", "List History", "History", models.RoleAdmin),
}

// definitionMap indexes definitions by key.
var definitionMap = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}()
