package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ffview/internal/api/models"
	"github.com/smazurov/ffview/internal/transform"
	"github.com/smazurov/ffview/internal/viewport"
)

func (s *Server) registerViewRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-view",
		Method:      http.MethodGet,
		Path:        "/api/view",
		Summary:     "Get View",
		Description: "Get the view parameters and the derived geometry",
		Tags:        []string{"view"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ViewResponse, error) {
		return &models.ViewResponse{Body: s.viewData(s.view.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-view",
		Method:      http.MethodPatch,
		Path:        "/api/view",
		Summary:     "Update View",
		Description: "Change view parameters in one batch. Values are clamped to their valid range; omitted fields are left alone.",
		Tags:        []string{"view"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.ViewUpdateRequest) (*models.ViewResponse, error) {
		in := input.Body

		mode := transform.ModeOff
		if in.FalseColor != nil {
			m, ok := transform.ParseMode(*in.FalseColor)
			if !ok {
				return nil, huma.Error400BadRequest("unknown false colour palette: " + *in.FalseColor)
			}
			mode = m
		}

		s.view.Batch(func(b *viewport.Batch) {
			if in.WidgetWidth != nil || in.WidgetHeight != nil {
				st := b.State()
				w, h := st.WidgetWidth, st.WidgetHeight
				if in.WidgetWidth != nil {
					w = *in.WidgetWidth
				}
				if in.WidgetHeight != nil {
					h = *in.WidgetHeight
				}
				b.SetWidgetSize(w, h)
			}
			if in.Zoom != nil {
				b.SetZoom(*in.Zoom)
			}
			// Pan after zoom, so it is clamped to the new geometry
			if in.X != nil {
				b.SetX(*in.X)
			}
			if in.Y != nil {
				b.SetY(*in.Y)
			}
			if in.GridX != nil {
				b.SetGx(*in.GridX)
			}
			if in.GridY != nil {
				b.SetGy(*in.GridY)
			}
			if in.GridSpacing != nil {
				b.SetGridSpacing(*in.GridSpacing)
			}
			if in.Grid != nil {
				b.SetGridEnabled(*in.Grid)
			}
			if in.GridColor != nil {
				b.SetGridColor(viewport.ColorFromValue(*in.GridColor))
			}
			if in.FalseColor != nil {
				b.SetFalseColor(mode)
			}
		})
		return &models.ViewResponse{Body: s.viewData(s.view.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "zoom-view",
		Method:      http.MethodPost,
		Path:        "/api/view/zoom",
		Summary:     "Zoom At",
		Description: "Zoom one level in or out keeping the image point under a surface position in place",
		Tags:        []string{"view"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.ZoomRequest) (*models.ViewResponse, error) {
		if input.Body.Delta == 0 {
			return nil, huma.Error400BadRequest("delta must not be 0")
		}
		s.view.ZoomAt(input.Body.Delta, input.Body.X, input.Body.Y)
		return &models.ViewResponse{Body: s.viewData(s.view.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-grid",
		Method:      http.MethodGet,
		Path:        "/api/view/grid",
		Summary:     "Get Grid",
		Description: "Get the grid parameters in the mirror format",
		Tags:        []string{"view", "mirror"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.GridResponse, error) {
		return &models.GridResponse{Body: gridData(s.view.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-grid",
		Method:      http.MethodPut,
		Path:        "/api/view/grid",
		Summary:     "Update Grid",
		Description: "Set grid parameters in the mirror format. Omitted fields are left alone.",
		Tags:        []string{"view", "mirror"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.GridUpdateRequest) (*models.GridResponse, error) {
		in := input.Body
		s.view.Batch(func(b *viewport.Batch) {
			if in.GX != nil {
				b.SetGx(int(*in.GX))
			}
			if in.GY != nil {
				b.SetGy(int(*in.GY))
			}
			if in.GCol != nil {
				b.SetGridColor(viewport.ColorFromValue(uint32(*in.GCol)))
			}
			if in.Grid != nil {
				b.SetGridEnabled(*in.Grid != 0)
			}
			if in.GS != nil {
				b.SetGridSpacing(int(*in.GS))
			}
		})
		return &models.GridResponse{Body: gridData(s.view.Snapshot())}, nil
	})
}

func (s *Server) viewData(snap viewport.Snapshot) models.ViewData {
	return models.ViewData{
		X:             snap.X,
		Y:             snap.Y,
		Zoom:          snap.Zoom,
		GridX:         snap.GridX,
		GridY:         snap.GridY,
		GridSpacing:   snap.GridSpacing,
		Grid:          snap.GridEnabled,
		GridColor:     viewport.ColorValue(snap.GridColor),
		FalseColor:    snap.FalseColor.String(),
		Backend:       s.view.Backend().String(),
		ImageWidth:    snap.ImageWidth,
		ImageHeight:   snap.ImageHeight,
		WidgetWidth:   snap.WidgetWidth,
		WidgetHeight:  snap.WidgetHeight,
		MaxX:          snap.MaxX,
		MaxY:          snap.MaxY,
		MaxGridX:      snap.MaxGridX(),
		MaxGridY:      snap.MaxGridY(),
		VisibleWidth:  snap.VisibleWidth,
		VisibleHeight: snap.VisibleHeight,
		Scale:         snap.SFX,
	}
}

func gridData(snap viewport.Snapshot) models.GridData {
	var enabled int64
	if snap.GridEnabled {
		enabled = 1
	}
	return models.GridData{
		GX:   int64(snap.GridX),
		GY:   int64(snap.GridY),
		GCol: int64(viewport.ColorValue(snap.GridColor)),
		Grid: enabled,
		GS:   int64(snap.GridSpacing),
	}
}
