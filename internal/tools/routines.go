package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/routine-quest/internal/routine"
	"github.com/HendryAvila/routine-quest/internal/store"
)

// stepItemSchema is the JSON schema of one element of routine_create's steps.
var stepItemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"type":        map[string]any{"type": "string", "enum": routine.StepTypeValues()},
		"difficulty":  map[string]any{"type": "string", "enum": routine.DifficultyValues()},
		"t_ref_sec":   map[string]any{"type": "integer"},
		"is_optional": map[string]any{"type": "boolean"},
		"xp_reward":   map[string]any{"type": "integer"},
	},
	"required": []string{"title"},
}

// --- routine_create ---

// CreateRoutineTool handles the routine_create MCP tool.
type CreateRoutineTool struct {
	store  Store
	userID int64
}

// NewCreateRoutineTool creates a CreateRoutineTool acting for userID.
func NewCreateRoutineTool(store Store, userID int64) *CreateRoutineTool {
	return &CreateRoutineTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for routine_create.
func (t *CreateRoutineTool) Definition() mcp.Tool {
	return mcp.NewTool("routine_create",
		mcp.WithDescription(
			"Create a routine, optionally with its initial steps. Steps are numbered 1..N "+
				"in the order given. Free accounts may hold a limited number of routines and steps.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Routine title (e.g. 'Morning start')"),
		),
		mcp.WithString("description",
			mcp.Description("What the routine is for"),
		),
		mcp.WithString("icon",
			mcp.Description("Emoji icon (default: 🎯)"),
		),
		mcp.WithString("color",
			mcp.Description("Hex color like #6366F1 (default: #6366F1)"),
		),
		mcp.WithBoolean("is_public",
			mcp.Description("Share the routine publicly (default: false)"),
		),
		mcp.WithArray("steps",
			mcp.Description("Initial steps in order. Each has a title and optional type, difficulty, t_ref_sec, is_optional, xp_reward."),
			mcp.Items(stepItemSchema),
		),
	)
}

// Handle processes the routine_create tool call.
func (t *CreateRoutineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := routine.NewRoutineParams{
		Title:       req.GetString("title", ""),
		Description: req.GetString("description", ""),
		Icon:        req.GetString("icon", ""),
		Color:       req.GetString("color", ""),
		IsPublic:    boolArg(req, "is_public", false),
	}
	if p.Title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	if err := decodeArg(req, "steps", &p.Steps); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, err := t.store.CreateRoutine(ctx, t.userID, p)
	if err != nil {
		return toolError(err), nil
	}

	response := fmt.Sprintf("✅ Routine created\n\n%s\n"+
		"Use `step_reorder` with `expected_version: %d` to change the order.",
		formatRoutine(r), r.Version)
	return mcp.NewToolResultText(response), nil
}

// --- routine_list ---

// ListRoutinesTool handles the routine_list MCP tool.
type ListRoutinesTool struct {
	store  Store
	userID int64
}

// NewListRoutinesTool creates a ListRoutinesTool acting for userID.
func NewListRoutinesTool(store Store, userID int64) *ListRoutinesTool {
	return &ListRoutinesTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for routine_list.
func (t *ListRoutinesTool) Definition() mcp.Tool {
	return mcp.NewTool("routine_list",
		mcp.WithDescription("List your routines with their id, version and step count."),
		mcp.WithBoolean("is_active",
			mcp.Description("Only routines with this active state. Omit for all."),
		),
		mcp.WithNumber("skip",
			mcp.Description("Number of routines to skip (default: 0)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum routines to return (default: 100)"),
		),
	)
}

// Handle processes the routine_list tool call.
func (t *ListRoutinesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := store.ListOptions{
		Skip:   intArg(req, "skip", 0),
		Limit:  intArg(req, "limit", 100),
		Active: optBool(req, "is_active"),
	}
	if opts.Skip < 0 || opts.Limit < 0 {
		return mcp.NewToolResultError("'skip' and 'limit' must not be negative"), nil
	}

	routines, err := t.store.ListRoutines(ctx, t.userID, opts)
	if err != nil {
		return toolError(err), nil
	}
	if len(routines) == 0 {
		return mcp.NewToolResultText("No routines found. Create one with `routine_create`."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Routines (%s)\n\n", english.Plural(len(routines), "routine", ""))
	for _, r := range routines {
		b.WriteString(formatRoutineLine(r))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// --- routine_get ---

// GetRoutineTool handles the routine_get MCP tool.
type GetRoutineTool struct {
	store  Store
	userID int64
}

// NewGetRoutineTool creates a GetRoutineTool acting for userID.
func NewGetRoutineTool(store Store, userID int64) *GetRoutineTool {
	return &GetRoutineTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for routine_get.
func (t *GetRoutineTool) Definition() mcp.Tool {
	return mcp.NewTool("routine_get",
		mcp.WithDescription(
			"Show a routine with its steps in order. The version shown is what "+
				"`step_reorder` expects as `expected_version`.",
		),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
	)
}

// Handle processes the routine_get tool call.
func (t *GetRoutineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, err := t.store.GetRoutine(ctx, t.userID, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatRoutine(r)), nil
}

// --- routine_update ---

// UpdateRoutineTool handles the routine_update MCP tool.
type UpdateRoutineTool struct {
	store  Store
	userID int64
}

// NewUpdateRoutineTool creates an UpdateRoutineTool acting for userID.
func NewUpdateRoutineTool(store Store, userID int64) *UpdateRoutineTool {
	return &UpdateRoutineTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for routine_update.
func (t *UpdateRoutineTool) Definition() mcp.Tool {
	return mcp.NewTool("routine_update",
		mcp.WithDescription("Change a routine's details. Only the fields you pass are updated."),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("icon", mcp.Description("New emoji icon")),
		mcp.WithString("color", mcp.Description("New hex color like #10B981")),
		mcp.WithBoolean("is_public", mcp.Description("Share publicly")),
		mcp.WithBoolean("is_active", mcp.Description("Active state")),
	)
}

// Handle processes the routine_update tool call.
func (t *UpdateRoutineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p := routine.UpdateRoutineParams{
		Title:       optString(req, "title"),
		Description: optString(req, "description"),
		Icon:        optString(req, "icon"),
		Color:       optString(req, "color"),
		IsPublic:    optBool(req, "is_public"),
		IsActive:    optBool(req, "is_active"),
	}
	if p.Empty() {
		return mcp.NewToolResultError("Nothing to update: pass at least one field."), nil
	}

	r, err := t.store.UpdateRoutine(ctx, t.userID, id, p)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("✅ Routine updated\n\n" + formatRoutine(r)), nil
}

// --- routine_delete ---

// DeleteRoutineTool handles the routine_delete MCP tool.
type DeleteRoutineTool struct {
	store  Store
	userID int64
}

// NewDeleteRoutineTool creates a DeleteRoutineTool acting for userID.
func NewDeleteRoutineTool(store Store, userID int64) *DeleteRoutineTool {
	return &DeleteRoutineTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for routine_delete.
func (t *DeleteRoutineTool) Definition() mcp.Tool {
	return mcp.NewTool("routine_delete",
		mcp.WithDescription("Delete a routine together with all its steps. This cannot be undone."),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
	)
}

// Handle processes the routine_delete tool call.
func (t *DeleteRoutineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := t.store.DeleteRoutine(ctx, t.userID, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("🗑️ Routine %d deleted.", id)), nil
}

// --- routine_toggle ---

// ToggleRoutineTool handles the routine_toggle MCP tool.
type ToggleRoutineTool struct {
	store  Store
	userID int64
}

// NewToggleRoutineTool creates a ToggleRoutineTool acting for userID.
func NewToggleRoutineTool(store Store, userID int64) *ToggleRoutineTool {
	return &ToggleRoutineTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for routine_toggle.
func (t *ToggleRoutineTool) Definition() mcp.Tool {
	return mcp.NewTool("routine_toggle",
		mcp.WithDescription("Flip a routine between active and inactive."),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
	)
}

// Handle processes the routine_toggle tool call.
func (t *ToggleRoutineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	active, err := t.store.ToggleActive(ctx, t.userID, id)
	if err != nil {
		return toolError(err), nil
	}
	if active {
		return mcp.NewToolResultText(fmt.Sprintf("▶️ Routine %d activated.", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("⏸️ Routine %d deactivated.", id)), nil
}

// --- routine_today_display ---

// TodayDisplayTool handles the routine_today_display MCP tool.
type TodayDisplayTool struct {
	store  Store
	userID int64
}

// NewTodayDisplayTool creates a TodayDisplayTool acting for userID.
func NewTodayDisplayTool(store Store, userID int64) *TodayDisplayTool {
	return &TodayDisplayTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for routine_today_display.
func (t *TodayDisplayTool) Definition() mcp.Tool {
	return mcp.NewTool("routine_today_display",
		mcp.WithDescription(
			"Show or hide a routine on today's page. Only active routines that are "+
				"shown appear in the routinequest://routines/today resource.",
		),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
	)
}

// Handle processes the routine_today_display tool call.
func (t *TodayDisplayTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	shown, err := t.store.ToggleTodayDisplay(ctx, t.userID, id)
	if err != nil {
		return toolError(err), nil
	}
	if shown {
		return mcp.NewToolResultText(fmt.Sprintf("📅 Routine %d is now shown on today's page.", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Routine %d is now hidden from today's page.", id)), nil
}

// --- routine_stats ---

// StatsTool handles the routine_stats MCP tool.
type StatsTool struct {
	store  Store
	userID int64
}

// NewStatsTool creates a StatsTool acting for userID.
func NewStatsTool(store Store, userID int64) *StatsTool {
	return &StatsTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for routine_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("routine_stats",
		mcp.WithDescription("Summary statistics for a routine: completions, success rate, step count."),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
	)
}

// Handle processes the routine_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s, err := t.store.RoutineStats(ctx, t.userID, id)
	if err != nil {
		return toolError(err), nil
	}

	last := "never"
	if s.LastCompleted != nil {
		last = since(*s.LastCompleted)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# 📊 %s\n\n", s.Title)
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Steps | %d |\n", s.TotalSteps)
	fmt.Fprintf(&b, "| Completions | %s |\n", humanize.Comma(int64(s.TotalCompletions)))
	fmt.Fprintf(&b, "| Success rate | %d%% |\n", s.SuccessRate)
	fmt.Fprintf(&b, "| Average completion time | %ds |\n", s.AvgCompletionTime)
	fmt.Fprintf(&b, "| Created | %s |\n", since(s.CreatedAt))
	fmt.Fprintf(&b, "| Last completed | %s |\n", last)
	return mcp.NewToolResultText(b.String()), nil
}
