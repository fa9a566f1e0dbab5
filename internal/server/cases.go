package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/repo"
)

type casePath struct {
	CaseID string `path:"case_id"`
}

func registerCases(api huma.API, e engine.Engine) {
	type createCaseInput struct {
		Body struct {
			CaseNumber      string `json:"case_number" minLength:"1"`
			Title           string `json:"title,omitempty"`
			DepartmentRole  string `json:"department_role,omitempty" enum:"plaintiff,defendant"`
			Priority        string `json:"priority,omitempty"`
			MatterType      string `json:"matter_type,omitempty"`
			CourtReference  string `json:"court_reference,omitempty"`
			CourtReturnDate string `json:"court_return_date,omitempty" format:"date"`
		}
	}
	type createCaseOutput struct {
		Body struct {
			Case     domain.Case      `json:"case"`
			Warnings []engine.Warning `json:"warnings,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID:   "case-register",
		Method:        http.MethodPost,
		Path:          "/cases",
		Summary:       "Register a case",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *createCaseInput) (*createCaseOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, warnings, err := e.RegisterCase(ctx, engine.CaseRegisterOptions{
			CaseNumber:      input.Body.CaseNumber,
			Title:           input.Body.Title,
			DepartmentRole:  input.Body.DepartmentRole,
			Priority:        input.Body.Priority,
			MatterType:      input.Body.MatterType,
			CourtReference:  input.Body.CourtReference,
			CourtReturnDate: input.Body.CourtReturnDate,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := &createCaseOutput{}
		out.Body.Case = c
		out.Body.Warnings = warnings
		return out, nil
	})

	type listCasesInput struct {
		Status     string `query:"status"`
		AssignedTo string `query:"assigned_to"`
		Department string `query:"department_role"`
		Limit      int    `query:"limit" minimum:"0"`
	}
	type listCasesOutput struct {
		Body struct {
			Cases []domain.Case `json:"cases"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "case-list",
		Method:      http.MethodGet,
		Path:        "/cases",
		Summary:     "List cases",
	}, func(ctx context.Context, input *listCasesInput) (*listCasesOutput, error) {
		cases, err := e.Repo.ListCases(ctx, repo.CaseFilters{
			Status:            input.Status,
			AssignedOfficerID: input.AssignedTo,
			DepartmentRole:    input.Department,
			Limit:             input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := &listCasesOutput{}
		out.Body.Cases = cases
		return out, nil
	})

	type caseDetailOutput struct {
		Body struct {
			Case        domain.Case            `json:"case"`
			Workflow    []domain.WorkflowEntry `json:"workflow"`
			Assignments []domain.Assignment    `json:"assignments,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "case-get",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}",
		Summary:     "Case detail with workflow entries",
	}, func(ctx context.Context, input *casePath) (*caseDetailOutput, error) {
		c, err := e.Repo.GetCase(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		entries, err := e.Repo.ListWorkflowEntries(ctx, c.ID)
		if err != nil {
			return nil, handleError(err)
		}
		assignments, err := e.Repo.ListAssignments(ctx, c.ID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &caseDetailOutput{}
		out.Body.Case = c
		out.Body.Workflow = entries
		out.Body.Assignments = assignments
		return out, nil
	})

	type historyInput struct {
		CaseID string `path:"case_id"`
		Limit  int    `query:"limit" minimum:"0"`
	}
	type historyOutput struct {
		Body struct {
			History []domain.HistoryEntry `json:"history"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "case-history",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/history",
		Summary:     "Case audit trail",
	}, func(ctx context.Context, input *historyInput) (*historyOutput, error) {
		if _, err := e.Repo.GetCase(ctx, input.CaseID); err != nil {
			return nil, handleError(err)
		}
		entries, err := e.Repo.ListHistory(ctx, input.CaseID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		out := &historyOutput{}
		out.Body.History = entries
		return out, nil
	})

	type reassignmentsOutput struct {
		Body struct {
			Reassignments []domain.OfficerReassignment `json:"reassignments"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "case-reassignments",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/reassignments",
		Summary:     "Officer assignment timeline",
	}, func(ctx context.Context, input *casePath) (*reassignmentsOutput, error) {
		if _, err := e.Repo.GetCase(ctx, input.CaseID); err != nil {
			return nil, handleError(err)
		}
		events, err := e.Repo.ListReassignments(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &reassignmentsOutput{}
		out.Body.Reassignments = events
		return out, nil
	})
}
