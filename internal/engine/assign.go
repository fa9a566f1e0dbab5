package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"caseline/internal/advice"
	"caseline/internal/domain"
	"caseline/internal/history"
	"caseline/internal/repo"
)

// AssignOptions are the parameters for handing a case to a litigation
// officer.
type AssignOptions struct {
	CaseID         string
	ActorID        string
	AssigneeID     string
	AssignmentType string
	Instructions   string
	Attachments    []string
}

// AssignResult carries the created assignment and warnings for side
// effects that failed after the core write committed.
type AssignResult struct {
	Assignment domain.Assignment
	Warnings   []Warning
}

// AssignCase hands a case to a litigation officer. The executive
// commentary is compiled once at hand-off and embedded in the
// assignment as an immutable snapshot, together with a copy of the case
// fields current at that moment. Only the assignment insert is atomic;
// the case update, workflow completion, notification, audit entry and
// follow-up run afterwards and degrade to warnings.
func (e Engine) AssignCase(ctx context.Context, opts AssignOptions) (AssignResult, error) {
	role, err := e.actorRole(ctx, opts.ActorID)
	if err != nil {
		return AssignResult{}, err
	}
	if !role.CanAssign() {
		return AssignResult{}, UnauthorizedAssignerError{Role: role}
	}
	assignee, err := e.Repo.GetOfficer(ctx, opts.AssigneeID)
	if errors.Is(err, repo.ErrNotFound) {
		return AssignResult{}, AssigneeNotFoundError{ID: opts.AssigneeID}
	}
	if err != nil {
		return AssignResult{}, err
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if errors.Is(err, repo.ErrNotFound) {
		return AssignResult{}, CaseNotFoundError{ID: opts.CaseID}
	}
	if err != nil {
		return AssignResult{}, err
	}

	entries, err := e.Repo.ListWorkflowEntries(ctx, c.ID)
	if err != nil {
		return AssignResult{}, err
	}
	commentary := advice.Compile(entries)
	presence := advice.Contributions(entries)

	if opts.AssignmentType == "" {
		opts.AssignmentType = "primary_officer"
	}
	now := e.nowRFC3339()
	a := domain.Assignment{
		ID:                  e.newID(),
		CaseID:              c.ID,
		AssignedBy:          opts.ActorID,
		AssignedTo:          assignee.ID,
		AssignmentType:      opts.AssignmentType,
		Instructions:        opts.Instructions,
		ExecutiveCommentary: commentary,
		Attachments:         opts.Attachments,
		Status:              "active",
		Metadata: domain.CaseSnapshot{
			CaseNumber:     c.CaseNumber,
			CourtReference: c.CourtReference,
			MatterType:     c.MatterType,
			Priority:       c.Priority,
		},
		CreatedAt: now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AssignResult{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAssignmentTx(ctx, tx, a); err != nil {
		return AssignResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return AssignResult{}, err
	}

	res := AssignResult{Assignment: a}

	if err := e.Repo.SetAssignedOfficer(ctx, c.ID, assignee.ID, now); err != nil {
		res.Warnings = append(res.Warnings, warn("update_case", err))
	}

	err = func() error {
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		_, err = e.Repo.CompletePendingEntryTx(ctx, tx, c.ID, string(RoleManager), repo.CompleteEntryFields{
			ActionTaken: "assigned to " + assignee.DisplayName,
			Stage:       "officer_assigned",
			CompletedBy: opts.ActorID,
			CompletedAt: now,
		})
		if errors.Is(err, repo.ErrNotFound) {
			// Already completed by an earlier sign-off; nothing to close.
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Commit()
	}()
	if err != nil {
		res.Warnings = append(res.Warnings, warn("complete_workflow", err))
	}

	// The body summarizes the case and instructions only; which roles
	// contributed advice travels as presence flags in the metadata, the
	// compiled text stays on the assignment.
	presenceJSON, _ := json.Marshal(presence)
	if err := e.notifyOne(ctx, assignee.ID, domain.Notification{
		CaseID:         c.ID,
		Title:          "Case " + c.CaseNumber + " assigned to you",
		Body:           assignmentBody(c, opts.Instructions),
		Type:           "case_assigned",
		Priority:       c.Priority,
		ActionRequired: true,
		Metadata:       string(presenceJSON),
	}); err != nil {
		res.Warnings = append(res.Warnings, warn("notify_assignee", err))
	}

	if err := e.audit().Record(ctx, "case.assigned", c.ID, "case handed to "+assignee.DisplayName, opts.ActorID, history.Metadata{
		"assignment_id": a.ID,
		"assigned_to":   assignee.ID,
	}); err != nil {
		res.Warnings = append(res.Warnings, warn("history", err))
	}

	due := e.followUpDue(c)
	if err := e.Repo.InsertFollowUp(ctx, domain.FollowUp{
		ID:         e.newID(),
		CaseID:     c.ID,
		AssigneeID: assignee.ID,
		Title:      "Progress check: " + c.CaseNumber,
		Details:    "Report progress on assigned case " + c.CaseNumber,
		DueDate:    due,
		Status:     "open",
		CreatedAt:  now,
	}); err != nil {
		res.Warnings = append(res.Warnings, warn("follow_up", err))
	}

	return res, nil
}

// assignmentBody builds the hand-off notification text from the case
// details and the manager's instructions.
func assignmentBody(c domain.Case, instructions string) string {
	var b strings.Builder
	b.WriteString("You have been assigned case " + c.CaseNumber)
	if c.Title != "" {
		b.WriteString(": " + c.Title)
	}
	if c.MatterType != "" {
		b.WriteString(" (" + c.MatterType + ")")
	}
	if instructions != "" {
		b.WriteString("\n\nInstructions: " + instructions)
	}
	return b.String()
}

// followUpDue picks the court return date when the case has one,
// otherwise the configured number of days out.
func (e Engine) followUpDue(c domain.Case) string {
	if c.CourtReturnDate != nil && *c.CourtReturnDate != "" {
		if t, err := time.Parse("2006-01-02", *c.CourtReturnDate); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
		return *c.CourtReturnDate
	}
	days := 14
	if e.Config != nil {
		days = e.Config.FollowUpDays()
	}
	return e.now().UTC().AddDate(0, 0, days).Format(time.RFC3339)
}
