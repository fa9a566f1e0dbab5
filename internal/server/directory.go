package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/importer"
	"caseline/internal/parse"
)

func registerReassignments(api huma.API, e engine.Engine) {
	type parseInput struct {
		Body struct {
			Text string `json:"text"`
		}
	}
	type parseOutput struct {
		Body parse.Result
	}
	huma.Register(api, huma.Operation{
		OperationID: "reassignments-parse",
		Method:      http.MethodPost,
		Path:        "/reassignments/parse",
		Summary:     "Parse register free text into assignment events",
	}, func(ctx context.Context, input *parseInput) (*parseOutput, error) {
		return &parseOutput{Body: parse.ReassignmentHistory(input.Body.Text)}, nil
	})
}

func registerImport(api huma.API, e engine.Engine) {
	type importInput struct {
		RawBody []byte `contentType:"text/csv"`
	}
	type importOutput struct {
		Body importer.Summary
	}
	huma.Register(api, huma.Operation{
		OperationID: "import-register",
		Method:      http.MethodPost,
		Path:        "/import/register",
		Summary:     "Bulk import a litigation register CSV",
	}, func(ctx context.Context, input *importInput) (*importOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		imp := importer.Importer{Engine: e, Config: e.Config}
		sum, err := imp.Run(ctx, importer.NewCSVSource(strings.NewReader(string(input.RawBody))), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &importOutput{Body: sum}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	type listInput struct {
		Unread bool `query:"unread"`
		Limit  int  `query:"limit" minimum:"0"`
	}
	type notificationListOutput struct {
		Body struct {
			Notifications []domain.Notification `json:"notifications"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "notifications-list",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "Notifications for the authenticated officer",
	}, func(ctx context.Context, input *listInput) (*notificationListOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		notes, err := e.Repo.ListNotifications(ctx, actorID, input.Unread, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		out := &notificationListOutput{}
		out.Body.Notifications = notes
		return out, nil
	})

	type readInput struct {
		NotificationID string `path:"notification_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "notifications-read",
		Method:      http.MethodPost,
		Path:        "/notifications/{notification_id}/read",
		Summary:     "Mark a notification read",
	}, func(ctx context.Context, input *readInput) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.MarkNotificationRead(ctx, input.NotificationID, now); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "read"}}, nil
	})
}

func registerOfficers(api huma.API, e engine.Engine) {
	type createInput struct {
		Body struct {
			ID          string `json:"id,omitempty"`
			DisplayName string `json:"display_name" minLength:"1"`
			Role        string `json:"role" enum:"secretary_lands,director_legal,manager_legal,litigation_officer,admin,viewer"`
		}
	}
	type officerOutput struct {
		Body struct {
			Officer domain.Officer `json:"officer"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID:   "officer-create",
		Method:        http.MethodPost,
		Path:          "/officers",
		Summary:       "Register an officer",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *createInput) (*officerOutput, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		o := domain.Officer{
			ID:          input.Body.ID,
			DisplayName: input.Body.DisplayName,
			Role:        input.Body.Role,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if err := e.Repo.InsertOfficer(ctx, o); err != nil {
			return nil, handleError(err)
		}
		out := &officerOutput{}
		out.Body.Officer = o
		return out, nil
	})

	type listInput struct {
		Role string `query:"role"`
	}
	type officerListOutput struct {
		Body struct {
			Officers []domain.Officer `json:"officers"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "officer-list",
		Method:      http.MethodGet,
		Path:        "/officers",
		Summary:     "List officers",
	}, func(ctx context.Context, input *listInput) (*officerListOutput, error) {
		var officers []domain.Officer
		var err error
		if input.Role != "" {
			officers, err = e.Repo.ListOfficersByRole(ctx, input.Role)
		} else {
			officers, err = e.Repo.ListOfficers(ctx)
		}
		if err != nil {
			return nil, handleError(err)
		}
		out := &officerListOutput{}
		out.Body.Officers = officers
		return out, nil
	})
}
