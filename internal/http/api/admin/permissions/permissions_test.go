package permissions

import (
	"testing"

	"github.com/ems-hq/attendance/internal/models"
)

func TestDefinitionMapIncludesBillingPermissions(t *testing.T) {
	t.Parallel()

	definitionMap := DefinitionMap()
	requiredKeys := []string{
		"POST /api/v1/admin/billing/calculate",
		"POST /api/v1/admin/billing/finalize",
		"POST /api/v1/admin/billing/manual",
		"GET /api/v1/admin/billing/records",
		"PATCH /api/v1/admin/billing/records/:id/status",
		"POST /api/v1/admin/projects/formula/check",
	}

	for _, key := range requiredKeys {
		key := key
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			if _, ok := definitionMap[key]; !ok {
				t.Fatalf("DefinitionMap() missing permission key %q", key)
			}
		})
	}
}

func TestDefinitionKeysAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for _, def := range Definitions() {
		if _, dup := seen[def.Key]; dup {
			t.Fatalf("duplicate permission key %q", def.Key)
		}
		seen[def.Key] = struct{}{}
		if def.Key != Key(def.Method, def.Path) {
			t.Fatalf("key %q does not match %s %s", def.Key, def.Method, def.Path)
		}
	}
}

func TestAdminAllowedEverywhere(t *testing.T) {
	t.Parallel()

	for _, def := range Definitions() {
		if !def.Allows(models.RoleAdmin) {
			t.Fatalf("admin denied on %q", def.Key)
		}
		if def.Allows(models.RoleEmployee) || def.Allows(models.RoleTrainee) {
			t.Fatalf("non-staff role allowed on %q", def.Key)
		}
	}
}

func TestManagerReviewsLeaveButNotBilling(t *testing.T) {
	t.Parallel()

	definitionMap := DefinitionMap()
	if !definitionMap["POST /api/v1/admin/leave-requests/:id/approve"].Allows(models.RoleManager) {
		t.Fatal("manager should approve leave requests")
	}
	if definitionMap["POST /api/v1/admin/billing/finalize"].Allows(models.RoleManager) {
		t.Fatal("manager must not finalize billing")
	}
}

func TestDefinitionsReturnsCopy(t *testing.T) {
	t.Parallel()

	defs := Definitions()
	defs[0].Key = "mutated"
	if Definitions()[0].Key == "mutated" {
		t.Fatal("Definitions() exposed internal slice")
	}
}
