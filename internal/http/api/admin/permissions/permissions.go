package permissions

import (
	"strings"

	"github.com/ems-hq/attendance/internal/models"
)

// Definition describes one admin route and the roles allowed to call it.
type Definition struct {
	Key    string
	Method string
	Path   string
	Label  string
	Module string
	Roles  []models.Role
}

// BasePath is the prefix shared by every admin route.
const BasePath = "/api/v1/admin"

var (
	adminOnly   = []models.Role{models.RoleAdmin}
	reviewers   = []models.Role{models.RoleAdmin, models.RoleManager}
	definitions = buildDefinitions()
)

func buildDefinitions() []Definition {
	raw := []struct {
		method string
		path   string
		label  string
		module string
		roles  []models.Role
	}{
		{"GET", "/permissions", "List permissions", "System", reviewers},
		{"GET", "/healthz", "Health check", "System", adminOnly},
		{"GET", "/settings", "List settings", "System", adminOnly},
		{"PUT", "/settings/:key", "Update setting", "System", adminOnly},
		{"PUT", "/company", "Update company", "Company", adminOnly},

		{"GET", "/employees", "List employees", "Employees", reviewers},
		{"POST", "/employees", "Create employee", "Employees", adminOnly},
		{"GET", "/employees/:id", "Get employee", "Employees", reviewers},
		{"PUT", "/employees/:id", "Update employee", "Employees", adminOnly},
		{"DELETE", "/employees/:id", "Delete employee", "Employees", adminOnly},
		{"POST", "/employees/:id/reset-password", "Reset employee password", "Employees", adminOnly},

		{"GET", "/projects", "List projects", "Projects", reviewers},
		{"POST", "/projects", "Create project", "Projects", adminOnly},
		{"GET", "/projects/:id", "Get project", "Projects", reviewers},
		{"PUT", "/projects/:id", "Update project", "Projects", adminOnly},
		{"DELETE", "/projects/:id", "Delete project", "Projects", adminOnly},
		{"POST", "/projects/formula/check", "Check billing formula", "Projects", adminOnly},

		{"GET", "/attendance", "List attendance", "Attendance", reviewers},

		{"GET", "/leave-requests", "List leave requests", "Leave", reviewers},
		{"POST", "/leave-requests/:id/approve", "Approve leave request", "Leave", reviewers},
		{"POST", "/leave-requests/:id/deny", "Deny leave request", "Leave", reviewers},

		{"GET", "/work-reports", "List work reports", "Work Reports", reviewers},
		{"PUT", "/work-reports/:id", "Update work report", "Work Reports", adminOnly},
		{"DELETE", "/work-reports/:id", "Delete work report", "Work Reports", adminOnly},

		{"GET", "/journal", "List journal entries", "Journal", reviewers},

		{"GET", "/training/modules", "List training modules", "Training", reviewers},
		{"POST", "/training/modules", "Create training module", "Training", adminOnly},
		{"PUT", "/training/modules/:id", "Update training module", "Training", adminOnly},
		{"DELETE", "/training/modules/:id", "Delete training module", "Training", adminOnly},
		{"POST", "/training/modules/:id/assign", "Assign training to employee", "Training", adminOnly},
		{"POST", "/training/modules/:id/assign-project", "Assign training to project", "Training", adminOnly},
		{"GET", "/training/assignments", "List training assignments", "Training", reviewers},

		{"POST", "/messages/broadcast", "Broadcast message", "Messages", adminOnly},

		{"POST", "/calendar/events", "Create calendar event", "Calendar", adminOnly},
		{"DELETE", "/calendar/events/:id", "Delete calendar event", "Calendar", adminOnly},

		{"POST", "/billing/calculate", "Preview billing", "Billing", adminOnly},
		{"POST", "/billing/finalize", "Finalize billing", "Billing", adminOnly},
		{"POST", "/billing/manual", "Create manual billing record", "Billing", adminOnly},
		{"GET", "/billing/records", "List billing records", "Billing", adminOnly},
		{"PATCH", "/billing/records/:id/status", "Update billing status", "Billing", adminOnly},
	}

	out := make([]Definition, 0, len(raw))
	for _, r := range raw {
		path := BasePath + r.path
		out = append(out, Definition{
			Key:    Key(r.method, path),
			Method: r.method,
			Path:   path,
			Label:  r.label,
			Module: r.module,
			Roles:  r.roles,
		})
	}
	return out
}

// Key builds the permission key of a route.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

// Definitions returns every admin route definition.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap indexes the definitions by key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}

// Allows reports whether role may call the route.
func (d Definition) Allows(role models.Role) bool {
	for _, r := range d.Roles {
		if r == role {
			return true
		}
	}
	return false
}
