package engine

import "fmt"

// Role identifies an actor's position in the approval chain or a
// non-chain role.
type Role string

const (
	RoleSecretary Role = "secretary_lands"
	RoleDirector  Role = "director_legal"
	RoleManager   Role = "manager_legal"
	RoleLitigator Role = "litigation_officer"
	RoleAdmin     Role = "admin"
	RoleViewer    Role = "viewer"
)

var allRoles = map[Role]bool{
	RoleSecretary: true,
	RoleDirector:  true,
	RoleManager:   true,
	RoleLitigator: true,
	RoleAdmin:     true,
	RoleViewer:    true,
}

// chain is the fixed approval order. The manager hands off to a
// litigation officer via assignment, not a chained entry.
var chain = []Role{RoleSecretary, RoleDirector, RoleManager}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !allRoles[r] {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// InChain reports whether the role owns a workflow entry in the approval
// chain.
func (r Role) InChain() bool {
	for _, c := range chain {
		if c == r {
			return true
		}
	}
	return false
}

// NextInChain returns the role notified after r signs off. The second
// return is false for the last chain role.
func (r Role) NextInChain() (Role, bool) {
	for i, c := range chain {
		if c == r && i+1 < len(chain) {
			return chain[i+1], true
		}
	}
	return "", false
}

// StageLabel is the workflow stage name written on the role's entry.
func (r Role) StageLabel() string {
	switch r {
	case RoleSecretary:
		return "secretary_review"
	case RoleDirector:
		return "directions"
	case RoleManager:
		return "manager_review"
	}
	return string(r)
}

// CanAssign reports whether the role may hand cases to litigation
// officers.
func (r Role) CanAssign() bool {
	return r == RoleManager || r == RoleAdmin
}

// ComplianceStatus values follow a court order from receipt to closure.
const (
	ComplianceStatusPending    = "pending"
	ComplianceStatusMemoSent   = "memo_sent"
	ComplianceStatusInProgress = "in_progress"
	ComplianceStatusCompleted  = "completed"
	ComplianceStatusOverdue    = "overdue"
	ComplianceStatusPartial    = "partially_complied"
)

var complianceStatuses = map[string]bool{
	ComplianceStatusPending:    true,
	ComplianceStatusMemoSent:   true,
	ComplianceStatusInProgress: true,
	ComplianceStatusCompleted:  true,
	ComplianceStatusOverdue:    true,
	ComplianceStatusPartial:    true,
}

func ValidComplianceStatus(s string) bool { return complianceStatuses[s] }

// Advisory return points written on partially complied records. They
// suggest where the case should re-enter the workflow; nothing enforces
// them.
const (
	ReturnToDirections = "step_2"
	ReturnToAssignment = "step_4"
	ReadyForClosure    = "ready_for_closure"
)

var returnSteps = map[string]bool{
	ReturnToDirections: true,
	ReturnToAssignment: true,
	ReadyForClosure:    true,
}

func ValidReturnStep(s string) bool { return returnSteps[s] }
