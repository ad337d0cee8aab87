package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/taskflow-io/taskflow/internal/domain"
)

type ListActivityInput struct {
	ProjectID uuid.UUID `path:"projectID" doc:"Project ID"`
	Limit     int       `query:"limit" minimum:"0" maximum:"200" doc:"Max entries to return"`
	Offset    int       `query:"offset" minimum:"0" doc:"Entries to skip"`
}

type ListActivityOutput struct {
	Body []*domain.ActivityEntry
}

// RegisterActivityRoutes exposes the project audit trail. defaultLimit is
// applied when the caller does not pass one.
func RegisterActivityRoutes(api huma.API, store DataStore, defaultLimit int) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/projects/{projectID}/activity",
		Summary:     "List recent project activity",
		Tags:        []string{"Activity"},
	}, func(ctx context.Context, input *ListActivityInput) (*ListActivityOutput, error) {
		if _, err := requireMember(ctx, store, input.ProjectID); err != nil {
			return nil, err
		}

		limit := input.Limit
		if limit <= 0 {
			limit = defaultLimit
		}

		entries, err := store.Activity().ListByProject(ctx, input.ProjectID, limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list activity", err)
		}

		return &ListActivityOutput{Body: entries}, nil
	})
}
