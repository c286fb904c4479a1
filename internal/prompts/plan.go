// Package prompts implements MCP prompt handlers for routine workflows.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a specific sequence of tools. Unlike tools
// (which the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// PlanPrompt handles the routine-plan MCP prompt.
// It guides the AI to design a new routine and create it in one call.
type PlanPrompt struct{}

// NewPlanPrompt creates a PlanPrompt.
func NewPlanPrompt() *PlanPrompt {
	return &PlanPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("routine-plan",
		mcp.WithPromptDescription(
			"Design a new routine around a goal. The assistant proposes small, "+
				"ordered steps and creates the routine once you agree.",
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the routine should help with (e.g. 'calm mornings')"),
		),
		mcp.WithArgument("minutes",
			mcp.ArgumentDescription("Time budget for the whole routine in minutes. Default: 15"),
		),
	)
}

// Handle processes the routine-plan prompt request.
func (p *PlanPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	goal := "a better start to the day"
	minutes := "15"
	if args := req.Params.Arguments; args != nil {
		if g, ok := args["goal"]; ok && g != "" {
			goal = g
		}
		if m, ok := args["minutes"]; ok && m != "" {
			minutes = m
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan a routine for %s", goal),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Help me build a routine for %s that fits in about %s minutes.\n\n"+
						"Please:\n"+
						"1. Run `routine_list` to see what I already have and avoid duplicates\n"+
						"2. Propose 3 to 7 steps, easiest first, each with a type (action, timer, check, habit), "+
						"a difficulty and a reference duration in seconds\n"+
						"3. Keep the total reference time within my budget\n"+
						"4. Once I agree, create it with a single `routine_create` call passing all steps in order\n"+
						"5. Ask whether it should appear on today's page and use `routine_today_display` if so\n\n"+
						"Start small: a routine I actually finish beats an ambitious one I skip.",
					goal, minutes,
				)),
			},
		},
	}, nil
}
