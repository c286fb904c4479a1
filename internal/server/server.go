// Package server wires the MCP server: tools, prompts and resources over
// one routine store, acting for one user.
package server

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/routine-quest/internal/prompts"
	"github.com/HendryAvila/routine-quest/internal/resources"
	"github.com/HendryAvila/routine-quest/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Store is everything the MCP surface reads and writes.
// *store.Store satisfies it.
type Store interface {
	tools.Store
	resources.Store
}

// New creates and configures the MCP server with every tool, prompt and
// resource registered for userID.
func New(st Store, userID int64, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}

	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		logger.Debug("tool call", "tool", req.Params.Name, "user_id", userID)
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logger.Warn("mcp request failed", "method", method, "error", err)
	})

	s := server.NewMCPServer(
		"routinequest",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions(serverInstructions()),
	)

	registerRoutineTools(s, st, userID)
	registerStepTools(s, st, userID)

	// --- Prompts ---

	planPrompt := prompts.NewPlanPrompt()
	s.AddPrompt(planPrompt.Definition(), planPrompt.Handle)

	reviewPrompt := prompts.NewReviewPrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(st, userID)
	s.AddResource(resourceHandler.TodayResource(), resourceHandler.HandleToday)
	s.AddResourceTemplate(resourceHandler.RoutineTemplate(), resourceHandler.HandleRoutine)

	return s
}

func registerRoutineTools(s *server.MCPServer, st tools.Store, userID int64) {
	create := tools.NewCreateRoutineTool(st, userID)
	s.AddTool(create.Definition(), create.Handle)

	list := tools.NewListRoutinesTool(st, userID)
	s.AddTool(list.Definition(), list.Handle)

	get := tools.NewGetRoutineTool(st, userID)
	s.AddTool(get.Definition(), get.Handle)

	update := tools.NewUpdateRoutineTool(st, userID)
	s.AddTool(update.Definition(), update.Handle)

	del := tools.NewDeleteRoutineTool(st, userID)
	s.AddTool(del.Definition(), del.Handle)

	toggle := tools.NewToggleRoutineTool(st, userID)
	s.AddTool(toggle.Definition(), toggle.Handle)

	today := tools.NewTodayDisplayTool(st, userID)
	s.AddTool(today.Definition(), today.Handle)

	stats := tools.NewStatsTool(st, userID)
	s.AddTool(stats.Definition(), stats.Handle)
}

func registerStepTools(s *server.MCPServer, st tools.Store, userID int64) {
	add := tools.NewAddStepTool(st, userID)
	s.AddTool(add.Definition(), add.Handle)

	update := tools.NewUpdateStepTool(st, userID)
	s.AddTool(update.Definition(), update.Handle)

	del := tools.NewDeleteStepTool(st, userID)
	s.AddTool(del.Definition(), del.Handle)

	reorder := tools.NewReorderStepTool(st, userID)
	s.AddTool(reorder.Definition(), reorder.Handle)

	repair := tools.NewRepairOrderTool(st, userID)
	s.AddTool(repair.Definition(), repair.Handle)
}

// serverInstructions tells the AI how to work with routines.
func serverInstructions() string {
	return `You manage the user's habit routines. A routine is an ordered list of small steps; the user runs them top to bottom.

## Working with steps
- Steps are numbered 1..N with no gaps or duplicates. Every step tool keeps that true.
- To change the order, ALWAYS use step_reorder. Moving a step shifts the steps between its old and new place by one.
- Targets past either end are clamped to the first or last place.
- Pass the version from routine_get as expected_version. If the tool reports the routine changed, read it again and retry.
- If a tool reports inconsistent positions, run step_repair_order once, then retry.

## Limits
Free accounts hold a limited number of routines and steps per routine. When a tool reports a tier limit, tell the user instead of retrying.

## Resources
- routinequest://routines/today: active routines shown on today's page.
- routinequest://routines/{id}: one routine with its steps.

## Prompts
- routine-plan: design and create a routine around a goal.
- routine-review: inspect a routine and suggest better ordering.`
}
