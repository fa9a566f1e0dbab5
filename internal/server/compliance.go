package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"caseline/internal/domain"
	"caseline/internal/engine"
)

// complianceView wraps a record with its derived status so overdue shows
// up without a background job mutating rows.
type complianceView struct {
	domain.ComplianceRecord
	EffectiveStatus string `json:"effective_status"`
}

func registerCompliance(api huma.API, e engine.Engine) {
	type recordInput struct {
		CaseID string `path:"case_id"`
		Body   struct {
			DivisionID       string `json:"division_id" minLength:"1"`
			OrderReference   string `json:"order_reference,omitempty"`
			OrderDate        string `json:"order_date,omitempty" format:"date"`
			OrderDescription string `json:"order_description" minLength:"1"`
			Deadline         string `json:"deadline,omitempty" format:"date-time"`
			ReturnToStep     string `json:"return_to_step,omitempty" enum:"step_2,step_4,ready_for_closure"`
		}
	}
	type recordOutput struct {
		Body struct {
			Record domain.ComplianceRecord `json:"record"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID:   "compliance-record",
		Method:        http.MethodPost,
		Path:          "/cases/{case_id}/compliance",
		Summary:       "Log a court order for a division",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *recordInput) (*recordOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.RecordComplianceOrder(ctx, engine.ComplianceOptions{
			CaseID:           input.CaseID,
			DivisionID:       input.Body.DivisionID,
			OrderReference:   input.Body.OrderReference,
			OrderDate:        input.Body.OrderDate,
			OrderDescription: input.Body.OrderDescription,
			Deadline:         input.Body.Deadline,
			ReturnToStep:     input.Body.ReturnToStep,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := &recordOutput{}
		out.Body.Record = rec
		return out, nil
	})

	type listOutput struct {
		Body struct {
			Records []complianceView `json:"records"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "compliance-list",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/compliance",
		Summary:     "Compliance records for a case",
	}, func(ctx context.Context, input *casePath) (*listOutput, error) {
		if _, err := e.Repo.GetCase(ctx, input.CaseID); err != nil {
			return nil, handleError(err)
		}
		recs, err := e.Repo.ListCompliance(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC()
		out := &listOutput{}
		for _, rec := range recs {
			out.Body.Records = append(out.Body.Records, complianceView{
				ComplianceRecord: rec,
				EffectiveStatus:  engine.EffectiveStatus(rec, now),
			})
		}
		return out, nil
	})

	type statusInput struct {
		RecordID string `path:"record_id"`
		Body     struct {
			Status        string `json:"status" enum:"pending,memo_sent,in_progress,completed,overdue,partially_complied"`
			MemoReference string `json:"memo_reference,omitempty"`
			ReturnToStep  string `json:"return_to_step,omitempty" enum:"step_2,step_4,ready_for_closure"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "compliance-status",
		Method:      http.MethodPatch,
		Path:        "/compliance/{record_id}/status",
		Summary:     "Move a compliance record to a new status",
	}, func(ctx context.Context, input *statusInput) (*recordOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.UpdateComplianceStatus(ctx, engine.ComplianceStatusUpdate{
			RecordID:      input.RecordID,
			Status:        input.Body.Status,
			MemoReference: input.Body.MemoReference,
			ReturnToStep:  input.Body.ReturnToStep,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := &recordOutput{}
		out.Body.Record = rec
		return out, nil
	})
}
