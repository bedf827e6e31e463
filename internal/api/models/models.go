package models

import (
	"github.com/smazurov/ffview/internal/events"
	"github.com/smazurov/ffview/internal/session"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build date"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// View models
type ViewData struct {
	X             int     `json:"x" example:"0" doc:"Horizontal pan in image pixels"`
	Y             int     `json:"y" example:"0" doc:"Vertical pan in image pixels"`
	Zoom          int     `json:"zoom" example:"0" doc:"Zoom level, 0 to 30"`
	GridX         int     `json:"gx" example:"100" doc:"Grid centre x"`
	GridY         int     `json:"gy" example:"100" doc:"Grid centre y"`
	GridSpacing   int     `json:"gs" example:"10" doc:"Minor grid spacing in image pixels"`
	Grid          bool    `json:"grid" example:"true" doc:"Grid enabled"`
	GridColor     uint32  `json:"gcol" example:"16777215" doc:"Grid colour as 0xRRGGBB"`
	FalseColor    string  `json:"fcol" example:"off" enum:"off,rainbow,iron" doc:"False colour palette"`
	Backend       string  `json:"backend" example:"overlay" enum:"overlay,fallback" doc:"Presentation backend"`
	ImageWidth    int     `json:"image_width" example:"1024" doc:"Display frame width"`
	ImageHeight   int     `json:"image_height" example:"768" doc:"Display frame height"`
	WidgetWidth   int     `json:"widget_width" example:"800" doc:"Presentation surface width, 0 for the image size"`
	WidgetHeight  int     `json:"widget_height" example:"600" doc:"Presentation surface height, 0 for the image size"`
	MaxX          int     `json:"max_x" example:"0" doc:"Largest horizontal pan"`
	MaxY          int     `json:"max_y" example:"0" doc:"Largest vertical pan"`
	MaxGridX      int     `json:"max_gx" example:"1023" doc:"Largest grid x"`
	MaxGridY      int     `json:"max_gy" example:"767" doc:"Largest grid y"`
	VisibleWidth  int     `json:"visible_width" example:"1024" doc:"Visible region width in image pixels"`
	VisibleHeight int     `json:"visible_height" example:"768" doc:"Visible region height in image pixels"`
	Scale         float64 `json:"scale" example:"1" doc:"Image to screen scale factor"`
}

type ViewResponse struct {
	Body ViewData
}

// ViewUpdateData holds the view parameters to change. Omitted fields keep
// their value.
type ViewUpdateData struct {
	X            *int    `json:"x,omitempty" doc:"Horizontal pan"`
	Y            *int    `json:"y,omitempty" doc:"Vertical pan"`
	Zoom         *int    `json:"zoom,omitempty" doc:"Zoom level, clamped to 0..30"`
	GridX        *int    `json:"gx,omitempty" doc:"Grid centre x, clamped to 1..width-1"`
	GridY        *int    `json:"gy,omitempty" doc:"Grid centre y, clamped to 1..height-1"`
	GridSpacing  *int    `json:"gs,omitempty" doc:"Grid spacing, clamped to 10..2000"`
	Grid         *bool   `json:"grid,omitempty" doc:"Grid enabled"`
	GridColor    *uint32 `json:"gcol,omitempty" maximum:"16777215" doc:"Grid colour as 0xRRGGBB"`
	FalseColor   *string `json:"fcol,omitempty" enum:"off,rainbow,iron" doc:"False colour palette"`
	WidgetWidth  *int    `json:"widget_width,omitempty" minimum:"0" doc:"Presentation surface width"`
	WidgetHeight *int    `json:"widget_height,omitempty" minimum:"0" doc:"Presentation surface height"`
}

type ViewUpdateRequest struct {
	Body ViewUpdateData
}

// ZoomRequestData zooms one level around a surface position.
type ZoomRequestData struct {
	Delta int `json:"delta" example:"1" doc:"Positive to zoom in, negative to zoom out"`
	X     int `json:"x" example:"400" doc:"Surface x that stays in place"`
	Y     int `json:"y" example:"300" doc:"Surface y that stays in place"`
}

type ZoomRequest struct {
	Body ZoomRequestData
}

// Grid models, the mirror wire format
type GridData struct {
	GX   int64 `json:"gx" example:"100" doc:"Grid centre x"`
	GY   int64 `json:"gy" example:"100" doc:"Grid centre y"`
	GCol int64 `json:"gcol" example:"16777215" doc:"Grid colour as 0xRRGGBB"`
	Grid int64 `json:"grid" example:"1" doc:"Grid enabled, 0 or 1"`
	GS   int64 `json:"gs" example:"10" doc:"Grid spacing"`
}

type GridResponse struct {
	Body GridData
}

type GridUpdateData struct {
	GX   *int64 `json:"gx,omitempty" doc:"Grid centre x"`
	GY   *int64 `json:"gy,omitempty" doc:"Grid centre y"`
	GCol *int64 `json:"gcol,omitempty" minimum:"0" maximum:"16777215" doc:"Grid colour as 0xRRGGBB"`
	Grid *int64 `json:"grid,omitempty" minimum:"0" maximum:"1" doc:"Grid enabled, 0 or 1"`
	GS   *int64 `json:"gs,omitempty" doc:"Grid spacing"`
}

type GridUpdateRequest struct {
	Body GridUpdateData
}

// Session models
type SessionResponse struct {
	Body session.Status
}

type ResetRequestData struct {
	Address string `json:"address,omitempty" example:"rtsp://camera/stream" doc:"New stream address; empty reopens the current one"`
}

type ResetRequest struct {
	Body *ResetRequestData `required:"false"`
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Number of entries"`
	Module string `query:"module" doc:"Only entries from this module"`
}

type LogsData struct {
	Entries []events.LogEntryEvent `json:"entries" doc:"Most recent log entries, oldest first"`
	Count   int                    `json:"count" example:"100" doc:"Number of entries"`
}

type LogsResponse struct {
	Body LogsData
}
