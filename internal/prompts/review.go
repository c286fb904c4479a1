package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the routine-review MCP prompt.
// It instructs the AI to inspect a routine and suggest a better step order.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("routine-review",
		mcp.WithPromptDescription(
			"Review a routine: its steps, order and statistics, "+
				"with concrete suggestions to reorder or trim it.",
		),
		mcp.WithArgument("routine_id",
			mcp.ArgumentDescription("ID of the routine to review"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the routine-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var routineID string
	if args := req.Params.Arguments; args != nil {
		routineID = args["routine_id"]
	}
	if routineID == "" {
		return nil, fmt.Errorf("routine_id is required")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review routine %s", routineID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Please review my routine %[1]s.\n\n"+
						"1. Run `routine_get` with routine_id=%[1]s and `routine_stats` for the same routine\n"+
						"2. Show the steps in order with their durations and the total time\n"+
						"3. Point out steps that are often skipped, too long, or in an awkward order\n"+
						"4. Suggest at most three moves. For each one I accept, call `step_reorder` "+
						"with the `expected_version` from `routine_get`, and use the new version from "+
						"each result for the next move\n"+
						"5. If a tool reports inconsistent positions, run `step_repair_order` first",
					routineID,
				)),
			},
		},
	}, nil
}
