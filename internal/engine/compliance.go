package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"caseline/internal/domain"
	"caseline/internal/history"
	"caseline/internal/repo"
)

// ComplianceOptions are the parameters for logging a court order against
// a case.
type ComplianceOptions struct {
	CaseID           string
	DivisionID       string
	OrderReference   string
	OrderDate        string
	OrderDescription string
	Deadline         string
	ReturnToStep     string
	ActorID          string
}

// RecordComplianceOrder logs a court order that a division must comply
// with. The record starts pending; status moves through the memo and
// completion steps separately.
func (e Engine) RecordComplianceOrder(ctx context.Context, opts ComplianceOptions) (domain.ComplianceRecord, error) {
	if _, err := e.actorRole(ctx, opts.ActorID); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if strings.TrimSpace(opts.OrderDescription) == "" {
		return domain.ComplianceRecord{}, ValidationError{Msg: "order_description is required"}
	}
	if opts.DivisionID == "" {
		return domain.ComplianceRecord{}, ValidationError{Msg: "division_id is required"}
	}
	if e.Config != nil && len(e.Config.Divisions) > 0 {
		if _, ok := e.Config.Divisions[opts.DivisionID]; !ok {
			return domain.ComplianceRecord{}, ValidationError{Msg: "unknown division " + opts.DivisionID}
		}
	}
	if opts.ReturnToStep != "" && !ValidReturnStep(opts.ReturnToStep) {
		return domain.ComplianceRecord{}, ValidationError{Msg: "invalid return step " + opts.ReturnToStep}
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.ComplianceRecord{}, CaseNotFoundError{ID: opts.CaseID}
	}
	if err != nil {
		return domain.ComplianceRecord{}, err
	}

	now := e.nowRFC3339()
	rec := domain.ComplianceRecord{
		ID:               e.newID(),
		CaseID:           c.ID,
		DivisionID:       opts.DivisionID,
		OrderReference:   opts.OrderReference,
		OrderDate:        opts.OrderDate,
		OrderDescription: opts.OrderDescription,
		Status:           ComplianceStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if opts.Deadline != "" {
		rec.Deadline = &opts.Deadline
	}
	if opts.ReturnToStep != "" {
		rec.ReturnToStep = &opts.ReturnToStep
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ComplianceRecord{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertComplianceTx(ctx, tx, rec); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if err := e.audit().Append(ctx, tx, "compliance.recorded", c.ID, "court order logged for division "+opts.DivisionID, opts.ActorID, history.Metadata{
		"record_id":   rec.ID,
		"division_id": opts.DivisionID,
	}); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ComplianceRecord{}, err
	}
	return rec, nil
}

// ComplianceStatusUpdate is the payload for moving a record along.
type ComplianceStatusUpdate struct {
	RecordID      string
	Status        string
	MemoReference string
	ReturnToStep  string
	ActorID       string
}

// UpdateComplianceStatus moves a compliance record to a new status.
// Steps may be skipped; the update only stamps the timestamps implied by
// the target status. Partially complied records may carry an advisory
// return step.
func (e Engine) UpdateComplianceStatus(ctx context.Context, opts ComplianceStatusUpdate) (domain.ComplianceRecord, error) {
	if _, err := e.actorRole(ctx, opts.ActorID); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if !ValidComplianceStatus(opts.Status) {
		return domain.ComplianceRecord{}, ValidationError{Msg: "invalid compliance status " + opts.Status}
	}
	if opts.ReturnToStep != "" && !ValidReturnStep(opts.ReturnToStep) {
		return domain.ComplianceRecord{}, ValidationError{Msg: "invalid return step " + opts.ReturnToStep}
	}
	if opts.ReturnToStep != "" && opts.Status != ComplianceStatusPartial {
		return domain.ComplianceRecord{}, ValidationError{Msg: "return step only applies to partially complied records"}
	}
	rec, err := e.Repo.GetCompliance(ctx, opts.RecordID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.ComplianceRecord{}, ValidationError{Msg: "compliance record not found"}
	}
	if err != nil {
		return domain.ComplianceRecord{}, err
	}

	now := e.nowRFC3339()
	rec.Status = opts.Status
	rec.UpdatedAt = now
	if opts.MemoReference != "" {
		rec.MemoReference = opts.MemoReference
	}
	if opts.Status == ComplianceStatusMemoSent && rec.MemoSentAt == nil {
		rec.MemoSentAt = &now
	}
	if opts.Status == ComplianceStatusCompleted {
		rec.CompletedAt = &now
	}
	if opts.Status == ComplianceStatusPartial && opts.ReturnToStep != "" {
		rec.ReturnToStep = &opts.ReturnToStep
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ComplianceRecord{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateComplianceTx(ctx, tx, rec); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if err := e.audit().Append(ctx, tx, "compliance.status", rec.CaseID, "compliance record moved to "+opts.Status, opts.ActorID, history.Metadata{
		"record_id": rec.ID,
		"status":    opts.Status,
	}); err != nil {
		return domain.ComplianceRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ComplianceRecord{}, err
	}
	return rec, nil
}

// EffectiveStatus derives the reported status at a point in time. A
// record past its deadline and not yet completed reads as overdue even
// though the stored status is untouched.
func EffectiveStatus(rec domain.ComplianceRecord, now time.Time) string {
	if rec.Status == ComplianceStatusCompleted || rec.Status == ComplianceStatusPartial {
		return rec.Status
	}
	if rec.Deadline != nil {
		if d, err := time.Parse(time.RFC3339, *rec.Deadline); err == nil && now.After(d) {
			return ComplianceStatusOverdue
		}
	}
	return rec.Status
}
