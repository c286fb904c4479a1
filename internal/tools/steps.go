package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/routine-quest/internal/routine"
)

// stepContentOptions are the schema properties shared by step_add and step_update.
func stepContentOptions(titleRequired bool) []mcp.ToolOption {
	titleOpts := []mcp.PropertyOption{mcp.Description("Step title (e.g. 'Drink a glass of water')")}
	if titleRequired {
		titleOpts = append(titleOpts, mcp.Required())
	}
	return []mcp.ToolOption{
		mcp.WithString("title", titleOpts...),
		mcp.WithString("description",
			mcp.Description("Extra detail for the step"),
		),
		mcp.WithString("type",
			mcp.Description("How the step is completed (default: action)"),
			mcp.Enum(routine.StepTypeValues()...),
		),
		mcp.WithString("difficulty",
			mcp.Description("Expected effort (default: easy)"),
			mcp.Enum(routine.DifficultyValues()...),
		),
		mcp.WithNumber("t_ref_sec",
			mcp.Description("Reference duration in seconds (default: 120)"),
		),
		mcp.WithBoolean("is_optional",
			mcp.Description("The step may be skipped without breaking the run"),
		),
		mcp.WithNumber("xp_reward",
			mcp.Description("XP granted on completion (default: 10)"),
		),
	}
}

// --- step_add ---

// AddStepTool handles the step_add MCP tool.
type AddStepTool struct {
	store  Store
	userID int64
}

// NewAddStepTool creates an AddStepTool acting for userID.
func NewAddStepTool(store Store, userID int64) *AddStepTool {
	return &AddStepTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for step_add.
func (t *AddStepTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Add a step to a routine. Without `order` the step goes last; with it the step " +
				"is inserted there and later steps move down by one.",
		),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
		mcp.WithNumber("order",
			mcp.Description("1-based position to insert at. Out-of-range values are clamped."),
		),
	}
	return mcp.NewTool("step_add", append(opts, stepContentOptions(true)...)...)
}

// Handle processes the step_add tool call.
func (t *AddStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	routineID, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := routine.NewStepParams{
		Title:       req.GetString("title", ""),
		Description: req.GetString("description", ""),
		Type:        routine.StepType(req.GetString("type", "")),
		Difficulty:  routine.Difficulty(req.GetString("difficulty", "")),
		IsOptional:  boolArg(req, "is_optional", false),
	}
	if p.Position, err = optInt(req, "order"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if p.TRefSec, err = optInt(req, "t_ref_sec"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if p.XPReward, err = optInt(req, "xp_reward"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if p.Title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}

	s, err := t.store.AddStep(ctx, t.userID, routineID, p)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"✅ Step added\n\n**%s** (ID: %d) is now %s in routine %d.",
		s.Title, s.ID, humanize.Ordinal(s.Position), routineID,
	)), nil
}

// --- step_update ---

// UpdateStepTool handles the step_update MCP tool.
type UpdateStepTool struct {
	store  Store
	userID int64
}

// NewUpdateStepTool creates an UpdateStepTool acting for userID.
func NewUpdateStepTool(store Store, userID int64) *UpdateStepTool {
	return &UpdateStepTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for step_update.
func (t *UpdateStepTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Change a step's content. Fields you omit keep their current value. " +
				"The step's order is not changed here: use `step_reorder`.",
		),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
		mcp.WithNumber("step_id",
			mcp.Required(),
			mcp.Description("Step ID"),
		),
		mcp.WithNumber("expected_version",
			mcp.Description("Routine version you last read. Omit to skip the check."),
		),
	}
	return mcp.NewTool("step_update", append(opts, stepContentOptions(false)...)...)
}

// Handle processes the step_update tool call.
func (t *UpdateStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	routineID, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stepID, err := idArg(req, "step_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p := routine.StepPatch{
		Title:       optString(req, "title"),
		Description: optString(req, "description"),
		IsOptional:  optBool(req, "is_optional"),
	}
	if v := optString(req, "type"); v != nil {
		typ := routine.StepType(*v)
		p.Type = &typ
	}
	if v := optString(req, "difficulty"); v != nil {
		diff := routine.Difficulty(*v)
		p.Difficulty = &diff
	}
	if p.TRefSec, err = optInt(req, "t_ref_sec"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if p.XPReward, err = optInt(req, "xp_reward"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expected, err := optInt(req, "expected_version")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s, err := t.store.PatchStep(ctx, t.userID, routineID, stepID, p, deref(expected))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"✅ Step updated\n\n%s", formatSteps([]routine.Step{*s}),
	)), nil
}

// --- step_delete ---

// DeleteStepTool handles the step_delete MCP tool.
type DeleteStepTool struct {
	store  Store
	userID int64
}

// NewDeleteStepTool creates a DeleteStepTool acting for userID.
func NewDeleteStepTool(store Store, userID int64) *DeleteStepTool {
	return &DeleteStepTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for step_delete.
func (t *DeleteStepTool) Definition() mcp.Tool {
	return mcp.NewTool("step_delete",
		mcp.WithDescription("Remove a step. Later steps move up so the order stays 1..N without gaps."),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
		mcp.WithNumber("step_id",
			mcp.Required(),
			mcp.Description("Step ID"),
		),
	)
}

// Handle processes the step_delete tool call.
func (t *DeleteStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	routineID, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stepID, err := idArg(req, "step_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := t.store.DeleteStep(ctx, t.userID, routineID, stepID); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("🗑️ Step %d deleted from routine %d.", stepID, routineID)), nil
}

// --- step_reorder ---

// ReorderStepTool handles the step_reorder MCP tool.
type ReorderStepTool struct {
	store  Store
	userID int64
}

// NewReorderStepTool creates a ReorderStepTool acting for userID.
func NewReorderStepTool(store Store, userID int64) *ReorderStepTool {
	return &ReorderStepTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for step_reorder.
func (t *ReorderStepTool) Definition() mcp.Tool {
	return mcp.NewTool("step_reorder",
		mcp.WithDescription(
			"Move a step to a new 1-based position. The steps in between shift by one so "+
				"the order stays 1..N. A target past either end is clamped. Pass the version "+
				"from `routine_get` as `expected_version` to refuse the move if the routine "+
				"changed in the meantime.",
		),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
		mcp.WithNumber("step_id",
			mcp.Required(),
			mcp.Description("Step ID to move"),
		),
		mcp.WithNumber("new_order",
			mcp.Required(),
			mcp.Description("Target position, 1 is first"),
		),
		mcp.WithNumber("expected_version",
			mcp.Description("Routine version you last read. Omit to skip the check."),
		),
	)
}

// Handle processes the step_reorder tool call.
func (t *ReorderStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	routineID, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stepID, err := idArg(req, "step_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newOrder, err := optInt(req, "new_order")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if newOrder == nil {
		return mcp.NewToolResultError("'new_order' is required"), nil
	}
	expected, err := optInt(req, "expected_version")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.store.ReorderStep(ctx, t.userID, routineID, stepID, *newOrder, deref(expected))
	if err != nil {
		return toolError(err), nil
	}

	var b strings.Builder
	if res.OldPosition == res.NewPosition {
		fmt.Fprintf(&b, "Step %d is already %s. Nothing changed.\n\n", res.StepID, humanize.Ordinal(res.NewPosition))
	} else {
		fmt.Fprintf(&b, "✅ Step %d moved from %s to %s (%s shifted).\n\n",
			res.StepID,
			humanize.Ordinal(res.OldPosition),
			humanize.Ordinal(res.NewPosition),
			english.Plural(res.Shifted, "other step", ""),
		)
	}
	fmt.Fprintf(&b, "**Routine version:** %d\n\n", res.Version)
	b.WriteString(formatSteps(res.Steps))
	return mcp.NewToolResultText(b.String()), nil
}

// --- step_repair_order ---

// RepairOrderTool handles the step_repair_order MCP tool.
type RepairOrderTool struct {
	store  Store
	userID int64
}

// NewRepairOrderTool creates a RepairOrderTool acting for userID.
func NewRepairOrderTool(store Store, userID int64) *RepairOrderTool {
	return &RepairOrderTool{store: store, userID: userID}
}

// Definition returns the MCP tool definition for step_repair_order.
func (t *RepairOrderTool) Definition() mcp.Tool {
	return mcp.NewTool("step_repair_order",
		mcp.WithDescription(
			"Renumber a routine's steps 1..N, keeping their current relative order. "+
				"Use this only when another step tool reports inconsistent positions.",
		),
		mcp.WithNumber("routine_id",
			mcp.Required(),
			mcp.Description("Routine ID"),
		),
	)
}

// Handle processes the step_repair_order tool call.
func (t *RepairOrderTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	routineID, err := idArg(req, "routine_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := t.store.RepairPositions(ctx, t.userID, routineID)
	if err != nil {
		return toolError(err), nil
	}
	if n == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Routine %d is already in order. Nothing changed.", routineID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("🔧 Routine %d repaired: %s renumbered.",
		routineID, english.Plural(n, "step", ""))), nil
}
