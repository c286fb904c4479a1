// Package tools implements MCP tool handlers over the routine store.
//
// Each tool is a struct holding its dependencies, with Definition()
// returning the mcp.Tool schema and Handle() processing the call. Every
// tool acts for the single user the server was started for.
//
// Failures are returned as tool-result errors, never as protocol errors.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/routine-quest/internal/resequence"
	"github.com/HendryAvila/routine-quest/internal/routine"
	"github.com/HendryAvila/routine-quest/internal/store"
)

// Store is the persistence the tools need. *store.Store satisfies it.
type Store interface {
	CreateRoutine(ctx context.Context, userID int64, p routine.NewRoutineParams) (*routine.Routine, error)
	ListRoutines(ctx context.Context, userID int64, opts store.ListOptions) ([]routine.Routine, error)
	GetRoutine(ctx context.Context, userID, routineID int64) (*routine.Routine, error)
	UpdateRoutine(ctx context.Context, userID, routineID int64, p routine.UpdateRoutineParams) (*routine.Routine, error)
	DeleteRoutine(ctx context.Context, userID, routineID int64) error
	ToggleActive(ctx context.Context, userID, routineID int64) (bool, error)
	ToggleTodayDisplay(ctx context.Context, userID, routineID int64) (bool, error)
	RoutineStats(ctx context.Context, userID, routineID int64) (*routine.Stats, error)

	AddStep(ctx context.Context, userID, routineID int64, p routine.NewStepParams) (*routine.Step, error)
	PatchStep(ctx context.Context, userID, routineID, stepID int64, p routine.StepPatch, expectedVersion int) (*routine.Step, error)
	DeleteStep(ctx context.Context, userID, routineID, stepID int64) error
	ReorderStep(ctx context.Context, userID, routineID, stepID int64, newPosition, expectedVersion int) (*store.ReorderResult, error)
	RepairPositions(ctx context.Context, userID, routineID int64) (int, error)
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// idArg extracts a required positive id argument.
func idArg(req mcp.CallToolRequest, key string) (int64, error) {
	v, ok := req.GetArguments()[key].(float64)
	if !ok || v < 1 || v != float64(int64(v)) {
		return 0, fmt.Errorf("'%s' is required and must be a positive integer", key)
	}
	return int64(v), nil
}

// optString returns a pointer to the string argument, or nil when absent.
func optString(req mcp.CallToolRequest, key string) *string {
	v, ok := req.GetArguments()[key].(string)
	if !ok {
		return nil
	}
	return &v
}

// optBool returns a pointer to the boolean argument, or nil when absent.
func optBool(req mcp.CallToolRequest, key string) *bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

// optInt returns a pointer to the integer argument, or nil when absent.
// A number with a fractional part is an error, not truncated.
func optInt(req mcp.CallToolRequest, key string) (*int, error) {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return nil, nil
	}
	if v != float64(int64(v)) {
		return nil, fmt.Errorf("'%s' must be an integer, got %v", key, v)
	}
	i := int(v)
	return &i, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// decodeArg re-decodes a structured argument (array or object) into dst.
// A missing key leaves dst untouched.
func decodeArg(req mcp.CallToolRequest, key string, dst any) error {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("'%s': %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("'%s' has the wrong shape: %w", key, err)
	}
	return nil
}

// toolError converts a store or domain error into a tool-result error
// with a hint the assistant can act on.
func toolError(err error) *mcp.CallToolResult {
	var hint string
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, resequence.ErrNotFound):
		hint = "Use `routine_list` or `routine_get` to find valid ids."
	case errors.Is(err, store.ErrConflict):
		hint = "The routine changed since you read it. Call `routine_get` and retry with the new version."
	case errors.Is(err, store.ErrLimitExceeded):
		hint = "The account tier does not allow more. Remove something first or upgrade the tier."
	case errors.Is(err, resequence.ErrInvalidInput):
		hint = "Stored step positions are inconsistent. Run `step_repair_order` on this routine."
	case errors.Is(err, routine.ErrInvalid):
		hint = "Fix the argument and call the tool again."
	}
	if hint == "" {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("Error: %v\n\n%s", err, hint))
}

// ─── Formatting ──────────────────────────────────────────────────────────────

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// since renders a SQLite datetime as relative time, falling back to the
// raw value when it does not parse.
func since(ts string) string {
	t, err := time.Parse(time.DateTime, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func formatRoutine(r *routine.Routine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", r.Icon, r.Title)
	fmt.Fprintf(&b, "**ID:** %d\n", r.ID)
	fmt.Fprintf(&b, "**Version:** %d\n", r.Version)
	fmt.Fprintf(&b, "**Active:** %s | **On today's page:** %s | **Public:** %s\n",
		yesNo(r.IsActive), yesNo(r.TodayDisplay), yesNo(r.IsPublic))
	fmt.Fprintf(&b, "**Color:** %s\n", r.Color)
	fmt.Fprintf(&b, "**Created:** %s\n", since(r.CreatedAt))
	if r.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Description)
	}

	fmt.Fprintf(&b, "\n## Steps (%s)\n\n", english.Plural(len(r.Steps), "step", ""))
	if len(r.Steps) == 0 {
		b.WriteString("No steps yet. Add one with `step_add`.\n")
		return b.String()
	}
	b.WriteString(formatSteps(r.Steps))
	return b.String()
}

func formatSteps(steps []routine.Step) string {
	var b strings.Builder
	b.WriteString("| Order | ID | Step | Type | Difficulty | Duration | XP |\n")
	b.WriteString("|-------|----|------|------|------------|----------|----|\n")
	var total time.Duration
	for _, s := range steps {
		d := time.Duration(s.TRefSec) * time.Second
		total += d
		title := s.Title
		if s.IsOptional {
			title += " (optional)"
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s | %d |\n",
			humanize.Ordinal(s.Position), s.ID, title, s.Type, s.Difficulty, d, s.XPReward)
	}
	fmt.Fprintf(&b, "\nTotal reference time: %s\n", total)
	return b.String()
}

func formatRoutineLine(r routine.Routine) string {
	status := "active"
	if !r.IsActive {
		status = "inactive"
	}
	if r.TodayDisplay {
		status += ", on today"
	}
	return fmt.Sprintf("- **%s %s** (ID: %d, v%d, %s, %s)",
		r.Icon, r.Title, r.ID, r.Version, english.Plural(len(r.Steps), "step", ""), status)
}
