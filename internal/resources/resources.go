// Package resources implements MCP resource handlers for routine data.
//
// Resources provide read-only JSON that the host can pull into context
// without a tool call. They use routinequest:// URIs.
package resources

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/routine-quest/internal/routine"
)

const (
	todayURI        = "routinequest://routines/today"
	routineTemplate = "routinequest://routines/{id}"
	routinePrefix   = "routinequest://routines/"
)

// Store is the read side of the routine store.
type Store interface {
	TodayRoutines(ctx context.Context, userID int64) ([]routine.Routine, error)
	GetRoutine(ctx context.Context, userID, routineID int64) (*routine.Routine, error)
}

// Handler manages routine resource endpoints for one user.
type Handler struct {
	store  Store
	userID int64
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store Store, userID int64) *Handler {
	return &Handler{store: store, userID: userID}
}

// TodayResource returns the MCP resource definition for today's routines.
func (h *Handler) TodayResource() mcp.Resource {
	return mcp.NewResource(
		todayURI,
		"Today's Routines",
		mcp.WithResourceDescription("Active routines shown on today's page, with their steps in order"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleToday returns today's routines as JSON.
func (h *Handler) HandleToday(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	routines, err := h.store.TodayRoutines(ctx, h.userID)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	if routines == nil {
		routines = []routine.Routine{}
	}
	return jsonResource(req.Params.URI, routines)
}

// RoutineTemplate returns the MCP resource template for a single routine.
func (h *Handler) RoutineTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		routineTemplate,
		"Routine",
		mcp.WithTemplateDescription("A routine with its steps in order, by routine ID"),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// HandleRoutine returns one routine as JSON.
func (h *Handler) HandleRoutine(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id, err := routineID(req.Params.URI)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	r, err := h.store.GetRoutine(ctx, h.userID, id)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, r)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
