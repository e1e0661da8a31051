package permissions

import (
	"testing"

	"github.com/lmslight/lms-core/internal/models"
)

func TestAllowedByRole(t *testing.T) {
	cases := []struct {
		role string
		key  string
		want bool
	}{
		{role: models.RoleAdmin, key: Key("delete", "/v0/admin/rate-limits/:action"), want: true},
		{role: models.RoleTeacher, key: Key("DELETE", "/v0/admin/rate-limits/:action"), want: true},
		{role: models.RoleStudent, key: Key("DELETE", "/v0/admin/rate-limits/:action"), want: false},
		{role: models.RoleTeacher, key: Key("DELETE", "/v0/admin/reading-texts/:id/ai-requests"), want: false},
		{role: models.RoleAdmin, key: Key("GET", "/v0/admin/unknown"), want: false},
		{role: "", key: Key("GET", "/v0/admin/permissions"), want: false},
	}
	for _, tc := range cases {
		if got := Allowed(tc.role, tc.key); got != tc.want {
			t.Fatalf("Allowed(%q, %q) = %v, want %v", tc.role, tc.key, got, tc.want)
		}
	}
}

func TestForRoleAndDefinitionsCopy(t *testing.T) {
	if keys := ForRole(models.RoleStudent); len(keys) != 0 {
		t.Fatalf("expected no admin keys for students, got %v", keys)
	}
	adminKeys := ForRole(models.RoleAdmin)
	if len(adminKeys) != len(Definitions()) {
		t.Fatalf("expected admin to hold every key, got %d of %d", len(adminKeys), len(Definitions()))
	}

	defs := Definitions()
	defs[0].Roles[0] = "intruder"
	if Definitions()[0].Roles[0] == "intruder" {
		t.Fatalf("Definitions must return a copy")
	}
}
