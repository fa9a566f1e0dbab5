// Package engine implements the case workflow: registration, the
// role-gated approval chain, hand-off to litigation officers and
// compliance tracking. Core writes commit in their own transaction;
// side effects run afterwards and report failures as warnings.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseline/internal/advice"
	"caseline/internal/config"
	"caseline/internal/domain"
	"caseline/internal/history"
	"caseline/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	History history.Writer
	Config  *config.Config
	Log     *log.Logger
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		History: history.Writer{DB: db},
		Config:  cfg,
		Log:     log.Default(),
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) newID() string {
	return uuid.NewString()
}

// audit returns the history writer with its clock bound to the
// engine's, so audit timestamps and row timestamps agree.
func (e Engine) audit() history.Writer {
	w := e.History
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Printf(format, args...)
	}
}

// actorRole resolves an actor to their role or reports ActorNotFoundError.
func (e Engine) actorRole(ctx context.Context, actorID string) (Role, error) {
	o, err := e.Repo.GetOfficer(ctx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ActorNotFoundError{ID: actorID}
	}
	if err != nil {
		return "", err
	}
	return Role(o.Role), nil
}

// CaseRegisterOptions are the parameters for opening a new case file.
type CaseRegisterOptions struct {
	CaseNumber      string
	Title           string
	DepartmentRole  string
	Priority        string
	MatterType      string
	CourtReference  string
	CourtReturnDate string
	ActorID         string
}

// RegisterCase opens a case and seeds one pending workflow entry per
// chain role, so each approver has a slot waiting from day one.
func (e Engine) RegisterCase(ctx context.Context, opts CaseRegisterOptions) (domain.Case, []Warning, error) {
	if strings.TrimSpace(opts.CaseNumber) == "" {
		return domain.Case{}, nil, ValidationError{Msg: "case_number is required"}
	}
	if opts.DepartmentRole == "" {
		opts.DepartmentRole = "defendant"
	}
	if opts.DepartmentRole != "plaintiff" && opts.DepartmentRole != "defendant" {
		return domain.Case{}, nil, ValidationError{Msg: "department_role must be plaintiff or defendant"}
	}
	if _, err := e.actorRole(ctx, opts.ActorID); err != nil {
		return domain.Case{}, nil, err
	}
	if _, err := e.Repo.GetCaseByNumber(ctx, opts.CaseNumber); err == nil {
		return domain.Case{}, nil, ValidationError{Msg: "case_number already registered"}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Case{}, nil, err
	}

	now := e.nowRFC3339()
	c := domain.Case{
		ID:             e.newID(),
		CaseNumber:     opts.CaseNumber,
		Title:          opts.Title,
		DepartmentRole: opts.DepartmentRole,
		Status:         "registered",
		Priority:       opts.Priority,
		MatterType:     opts.MatterType,
		CourtReference: opts.CourtReference,
		CreatedBy:      opts.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if opts.CourtReturnDate != "" {
		c.CourtReturnDate = &opts.CourtReturnDate
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, nil, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertCaseTx(ctx, tx, c); err != nil {
		return domain.Case{}, nil, err
	}
	for _, role := range chain {
		entry := domain.WorkflowEntry{
			ID:          e.newID(),
			CaseID:      c.ID,
			OfficerRole: string(role),
			Stage:       role.StageLabel(),
			Status:      "pending",
			CreatedAt:   now,
		}
		if err := e.Repo.InsertWorkflowEntryTx(ctx, tx, entry); err != nil {
			return domain.Case{}, nil, err
		}
	}
	if err := e.audit().Append(ctx, tx, "case.registered", c.ID, "case "+c.CaseNumber+" registered", opts.ActorID, history.Metadata{"case_number": c.CaseNumber}); err != nil {
		return domain.Case{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, nil, err
	}

	var warnings []Warning
	if err := e.notifyRole(ctx, RoleSecretary, opts.ActorID, domain.Notification{
		CaseID:         c.ID,
		Title:          "New case awaiting review: " + c.CaseNumber,
		Type:           "case_registered",
		Priority:       c.Priority,
		ActionRequired: true,
	}); err != nil {
		warnings = append(warnings, warn("notify_secretary", err))
	}
	return c, warnings, nil
}

// AdviceOptions are the parameters for a stage sign-off.
type AdviceOptions struct {
	CaseID          string
	ActorID         string
	Commentary      string
	Advice          string
	Recommendations string
	ActionTaken     string
}

// AdviceResult carries the completed entry plus everything the caller
// needs to report: whether compiled commentary now exists, and warnings
// for side effects that failed after the core write committed.
type AdviceResult struct {
	Entry                     domain.WorkflowEntry
	CompiledSnapshotAvailable bool
	Warnings                  []Warning
}

// SubmitAdvice completes the actor's pending workflow entry for the case.
// The pending→completed flip is the core write; everything after it is
// best-effort.
func (e Engine) SubmitAdvice(ctx context.Context, opts AdviceOptions) (AdviceResult, error) {
	role, err := e.actorRole(ctx, opts.ActorID)
	if err != nil {
		return AdviceResult{}, err
	}
	if !role.InChain() {
		return AdviceResult{}, RoleMismatchError{Actual: role}
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if errors.Is(err, repo.ErrNotFound) {
		return AdviceResult{}, CaseNotFoundError{ID: opts.CaseID}
	}
	if err != nil {
		return AdviceResult{}, err
	}
	if strings.TrimSpace(opts.Advice) == "" && strings.TrimSpace(opts.Commentary) == "" && strings.TrimSpace(opts.Recommendations) == "" {
		return AdviceResult{}, ValidationError{Msg: "advice, commentary or recommendations required"}
	}

	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AdviceResult{}, err
	}
	defer tx.Rollback()

	entry, err := e.Repo.CompletePendingEntryTx(ctx, tx, c.ID, string(role), repo.CompleteEntryFields{
		Commentary:      opts.Commentary,
		Advice:          opts.Advice,
		Recommendations: opts.Recommendations,
		ActionTaken:     opts.ActionTaken,
		CompletedBy:     opts.ActorID,
		CompletedAt:     now,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return AdviceResult{}, NoPendingEntryError{CaseID: c.ID, Role: role}
	}
	if err != nil {
		return AdviceResult{}, err
	}
	if err := e.audit().Append(ctx, tx, "advice.submitted", c.ID, string(role)+" signed off stage "+entry.Stage, opts.ActorID, history.Metadata{"role": string(role), "stage": entry.Stage}); err != nil {
		return AdviceResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return AdviceResult{}, err
	}

	res := AdviceResult{Entry: entry}
	entries, err := e.Repo.ListWorkflowEntries(ctx, c.ID)
	if err != nil {
		res.Warnings = append(res.Warnings, warn("compile_check", err))
	} else {
		res.CompiledSnapshotAvailable = advice.Compile(entries) != advice.NoCommentary
	}

	if next, ok := role.NextInChain(); ok {
		if err := e.notifyRole(ctx, next, opts.ActorID, domain.Notification{
			CaseID:         c.ID,
			Title:          "Case " + c.CaseNumber + " ready for " + next.StageLabel(),
			Type:           "stage_ready",
			Priority:       c.Priority,
			ActionRequired: true,
		}); err != nil {
			res.Warnings = append(res.Warnings, warn("notify_next_role", err))
		}
	}
	if c.CreatedBy != opts.ActorID {
		if err := e.notifyOne(ctx, c.CreatedBy, domain.Notification{
			CaseID: c.ID,
			Title:  "Case " + c.CaseNumber + ": " + string(role) + " advice recorded",
			Type:   "stage_completed",
		}); err != nil {
			res.Warnings = append(res.Warnings, warn("notify_creator", err))
		}
	}
	return res, nil
}

// ReopenStage re-opens a completed chain stage by inserting a fresh
// pending entry, so a case returned by compliance review can collect
// advice again. The guarded insert keeps at most one pending entry per
// (case, role).
func (e Engine) ReopenStage(ctx context.Context, caseID string, role Role, actorID, reason string) (domain.WorkflowEntry, error) {
	actor, err := e.actorRole(ctx, actorID)
	if err != nil {
		return domain.WorkflowEntry{}, err
	}
	if !actor.CanAssign() {
		return domain.WorkflowEntry{}, UnauthorizedAssignerError{Role: actor}
	}
	if !role.InChain() {
		return domain.WorkflowEntry{}, ValidationError{Msg: "stage role must be in the approval chain"}
	}
	c, err := e.Repo.GetCase(ctx, caseID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.WorkflowEntry{}, CaseNotFoundError{ID: caseID}
	}
	if err != nil {
		return domain.WorkflowEntry{}, err
	}

	now := e.nowRFC3339()
	entry := domain.WorkflowEntry{
		ID:          e.newID(),
		CaseID:      c.ID,
		OfficerRole: string(role),
		Stage:       role.StageLabel(),
		Status:      "pending",
		Commentary:  reason,
		CreatedAt:   now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkflowEntry{}, err
	}
	defer tx.Rollback()

	inserted, err := e.Repo.InsertPendingEntryIfAbsentTx(ctx, tx, entry)
	if err != nil {
		return domain.WorkflowEntry{}, err
	}
	if !inserted {
		return domain.WorkflowEntry{}, ValidationError{Msg: "stage already has a pending entry"}
	}
	if err := e.audit().Append(ctx, tx, "stage.reopened", c.ID, string(role)+" stage reopened", actorID, history.Metadata{"role": string(role), "reason": reason}); err != nil {
		return domain.WorkflowEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkflowEntry{}, err
	}

	if err := e.notifyRole(ctx, role, actorID, domain.Notification{
		CaseID:         c.ID,
		Title:          "Case " + c.CaseNumber + " returned to " + role.StageLabel(),
		Type:           "stage_reopened",
		ActionRequired: true,
	}); err != nil {
		e.logf("notify reopened stage: %v", err)
	}
	return entry, nil
}
