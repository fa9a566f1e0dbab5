package engine

import "fmt"

// RoleMismatchError is returned when an actor attempts a stage sign-off
// reserved for another role. Required is set only when a single role
// could have performed the operation.
type RoleMismatchError struct {
	Required Role
	Actual   Role
}

func (e RoleMismatchError) Error() string {
	if e.Required == "" {
		return fmt.Sprintf("role %s cannot sign off workflow stages", e.Actual)
	}
	return fmt.Sprintf("role %s required, actor holds %s", e.Required, e.Actual)
}

// NoPendingEntryError is returned when the (case, role) slot has no
// pending entry, either because it was already completed or never opened.
type NoPendingEntryError struct {
	CaseID string
	Role   Role
}

func (e NoPendingEntryError) Error() string {
	return fmt.Sprintf("no pending %s entry for case %s", e.Role, e.CaseID)
}

// UnauthorizedAssignerError is returned when an actor without assignment
// authority attempts a hand-off.
type UnauthorizedAssignerError struct {
	Role Role
}

func (e UnauthorizedAssignerError) Error() string {
	return fmt.Sprintf("role %s cannot assign cases", e.Role)
}

type CaseNotFoundError struct{ ID string }

func (e CaseNotFoundError) Error() string { return fmt.Sprintf("case %s not found", e.ID) }

type ActorNotFoundError struct{ ID string }

func (e ActorNotFoundError) Error() string { return fmt.Sprintf("actor %s not found", e.ID) }

type AssigneeNotFoundError struct{ ID string }

func (e AssigneeNotFoundError) Error() string { return fmt.Sprintf("assignee %s not found", e.ID) }

type ValidationError struct{ Msg string }

func (e ValidationError) Error() string { return e.Msg }

// Warning records a side effect that failed after the core write
// committed. The operation still succeeded.
type Warning struct {
	Step string `json:"step"`
	Err  string `json:"error"`
}

func warn(step string, err error) Warning {
	return Warning{Step: step, Err: err.Error()}
}
