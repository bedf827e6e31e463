package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ffview/internal/api/models"
	"github.com/smazurov/ffview/internal/session"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/session",
		Summary:     "Get Session",
		Description: "Get the stream address, decoder state, frame rate and buffer usage",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SessionResponse, error) {
		return &models.SessionResponse{Body: s.session.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reset-session",
		Method:      http.MethodPost,
		Path:        "/api/session/reset",
		Summary:     "Reset Session",
		Description: "Stop the running decoder and open a stream, the given address or the current one. The zoom returns to 0.",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409, 500},
	}, func(_ context.Context, input *models.ResetRequest) (*models.SessionResponse, error) {
		var address string
		if input.Body != nil {
			address = input.Body.Address
		}

		if err := s.session.Reset(address); err != nil {
			switch {
			case errors.Is(err, session.ErrNoAddress):
				return nil, huma.Error400BadRequest("no stream address given and none open")
			case errors.Is(err, session.ErrNotStarted):
				return nil, huma.Error409Conflict("session is not running")
			default:
				s.logger.Error("Failed to reset session", "address", address, "error", err)
				return nil, huma.Error500InternalServerError("failed to reset session", err)
			}
		}
		return &models.SessionResponse{Body: s.session.Status()}, nil
	})
}
