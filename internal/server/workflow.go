package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"caseline/internal/domain"
	"caseline/internal/engine"
)

func registerWorkflow(api huma.API, e engine.Engine) {
	type adviceInput struct {
		CaseID string `path:"case_id"`
		Body   struct {
			Commentary      string `json:"commentary,omitempty"`
			Advice          string `json:"advice,omitempty"`
			Recommendations string `json:"recommendations,omitempty"`
			ActionTaken     string `json:"action_taken,omitempty"`
		}
	}
	type adviceOutput struct {
		Body struct {
			Entry                     domain.WorkflowEntry `json:"entry"`
			CompiledSnapshotAvailable bool                 `json:"compiled_snapshot_available"`
			Warnings                  []engine.Warning     `json:"warnings,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "advice-submit",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/advice",
		Summary:     "Sign off the actor's workflow stage",
	}, func(ctx context.Context, input *adviceInput) (*adviceOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.SubmitAdvice(ctx, engine.AdviceOptions{
			CaseID:          input.CaseID,
			ActorID:         actorID,
			Commentary:      input.Body.Commentary,
			Advice:          input.Body.Advice,
			Recommendations: input.Body.Recommendations,
			ActionTaken:     input.Body.ActionTaken,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := &adviceOutput{}
		out.Body.Entry = res.Entry
		out.Body.CompiledSnapshotAvailable = res.CompiledSnapshotAvailable
		out.Body.Warnings = res.Warnings
		return out, nil
	})

	type assignInput struct {
		CaseID string `path:"case_id"`
		Body   struct {
			AssigneeID     string   `json:"assignee_id" minLength:"1"`
			AssignmentType string   `json:"assignment_type,omitempty" default:"primary_officer"`
			Instructions   string   `json:"instructions,omitempty"`
			Attachments    []string `json:"attachments,omitempty"`
		}
	}
	type assignOutput struct {
		Body struct {
			Assignment domain.Assignment `json:"assignment"`
			Warnings   []engine.Warning  `json:"warnings,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID:   "case-assign",
		Method:        http.MethodPost,
		Path:          "/cases/{case_id}/assign",
		Summary:       "Hand the case to a litigation officer",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *assignInput) (*assignOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.AssignCase(ctx, engine.AssignOptions{
			CaseID:         input.CaseID,
			ActorID:        actorID,
			AssigneeID:     input.Body.AssigneeID,
			AssignmentType: input.Body.AssignmentType,
			Instructions:   input.Body.Instructions,
			Attachments:    input.Body.Attachments,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := &assignOutput{}
		out.Body.Assignment = res.Assignment
		out.Body.Warnings = res.Warnings
		return out, nil
	})

	type reopenInput struct {
		CaseID string `path:"case_id"`
		Body   struct {
			Role   string `json:"role" enum:"secretary_lands,director_legal,manager_legal"`
			Reason string `json:"reason,omitempty"`
		}
	}
	type reopenOutput struct {
		Body struct {
			Entry domain.WorkflowEntry `json:"entry"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID:   "stage-reopen",
		Method:        http.MethodPost,
		Path:          "/cases/{case_id}/reopen",
		Summary:       "Reopen a completed workflow stage",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *reopenInput) (*reopenOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		role, err := engine.ParseRole(input.Body.Role)
		if err != nil {
			return nil, handleError(engine.ValidationError{Msg: err.Error()})
		}
		entry, err := e.ReopenStage(ctx, input.CaseID, role, actorID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		out := &reopenOutput{}
		out.Body.Entry = entry
		return out, nil
	})
}
