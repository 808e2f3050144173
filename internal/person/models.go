package person

import "strings"

// Role is the role claim carried by the operator's credential.
type Role string

const (
	RoleRegistrar Role = "registrar"
	RoleDoctor    Role = "doctor"
	RoleNurse     Role = "nurse"
)

func (r Role) String() string { return string(r) }

// IsRegistrar reports whether r may use create, edit and delete forms.
// This only drives what the console renders; the backend decides what is allowed.
func (r Role) IsRegistrar() bool {
	return strings.EqualFold(strings.TrimSpace(string(r)), string(RoleRegistrar))
}

// CanManageRecords gates the create and edit forms on every resource page.
func (r Role) CanManageRecords() bool { return r.IsRegistrar() }

// CanViewSchedules gates the Schedules navigation entry and page.
func (r Role) CanViewSchedules() bool { return r.IsRegistrar() }
