package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/HendryAvila/routine-quest/internal/routine"
	"github.com/HendryAvila/routine-quest/internal/store"
)

func newTestServer(t *testing.T) (*store.Store, int64, func(method string, params any) map[string]any) {
	t.Helper()
	st, err := store.New(store.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	u, err := st.CreateUser(context.Background(), routine.NewUserParams{Email: "me@example.com", Tier: routine.TierPro})
	if err != nil {
		t.Fatal(err)
	}
	s := New(st, u.ID, nil)

	var nextID int
	call := func(method string, params any) map[string]any {
		t.Helper()
		nextID++
		raw, err := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      nextID,
			"method":  method,
			"params":  params,
		})
		if err != nil {
			t.Fatal(err)
		}
		resp := s.HandleMessage(context.Background(), raw)
		data, err := json.Marshal(resp)
		if err != nil {
			t.Fatal(err)
		}
		var out map[string]any
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatal(err)
		}
		if e, ok := out["error"]; ok {
			t.Fatalf("%s failed: %v", method, e)
		}
		result, _ := out["result"].(map[string]any)
		return result
	}
	return st, u.ID, call
}

func TestNew_RegistersTools(t *testing.T) {
	_, _, call := newTestServer(t)

	result := call("tools/list", map[string]any{})
	list, _ := result["tools"].([]any)
	var names []string
	for _, item := range list {
		tool, _ := item.(map[string]any)
		names = append(names, fmt.Sprint(tool["name"]))
	}
	sort.Strings(names)

	want := []string{
		"routine_create", "routine_delete", "routine_get", "routine_list",
		"routine_stats", "routine_today_display", "routine_toggle", "routine_update",
		"step_add", "step_delete", "step_reorder", "step_repair_order", "step_update",
	}
	sort.Strings(want)
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("tools = %v\nwant    %v", names, want)
	}
}

func TestNew_RegistersPrompts(t *testing.T) {
	_, _, call := newTestServer(t)

	result := call("prompts/list", map[string]any{})
	list, _ := result["prompts"].([]any)
	if len(list) != 2 {
		t.Errorf("got %d prompts, want 2", len(list))
	}
}

func TestNew_ToolCallRoundTrip(t *testing.T) {
	st, userID, call := newTestServer(t)

	result := call("tools/call", map[string]any{
		"name": "routine_create",
		"arguments": map[string]any{
			"title": "Morning",
			"steps": []any{
				map[string]any{"title": "A"},
				map[string]any{"title": "B"},
				map[string]any{"title": "C"},
			},
		},
	})
	if isErr, _ := result["isError"].(bool); isErr {
		t.Fatalf("routine_create failed: %v", result)
	}

	routines, err := st.ListRoutines(context.Background(), userID, store.ListOptions{})
	if err != nil || len(routines) != 1 {
		t.Fatalf("ListRoutines() = %d, %v", len(routines), err)
	}
	r := routines[0]

	result = call("tools/call", map[string]any{
		"name": "step_reorder",
		"arguments": map[string]any{
			"routine_id": r.ID,
			"step_id":    r.Steps[2].ID,
			"new_order":  1,
		},
	})
	if isErr, _ := result["isError"].(bool); isErr {
		t.Fatalf("step_reorder failed: %v", result)
	}

	got, err := st.GetRoutine(context.Background(), userID, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, s := range got.Steps {
		order = append(order, s.Title)
	}
	if strings.Join(order, ",") != "C,A,B" {
		t.Errorf("order = %v, want C,A,B", order)
	}
}

func TestNew_ToolErrorsAreResults(t *testing.T) {
	_, _, call := newTestServer(t)

	result := call("tools/call", map[string]any{
		"name":      "routine_get",
		"arguments": map[string]any{"routine_id": 12345},
	})
	if isErr, _ := result["isError"].(bool); !isErr {
		t.Errorf("unknown routine should be a tool error, got %v", result)
	}
}

func TestNew_TodayResource(t *testing.T) {
	_, _, call := newTestServer(t)

	result := call("resources/read", map[string]any{"uri": "routinequest://routines/today"})
	contents, _ := result["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("contents = %v", result)
	}
	c, _ := contents[0].(map[string]any)
	if c["text"] != "[]" {
		t.Errorf("today = %v, want []", c["text"])
	}
}

func TestServerInstructions(t *testing.T) {
	inst := serverInstructions()
	for _, want := range []string{"step_reorder", "expected_version", "step_repair_order", "routinequest://routines/today"} {
		if !strings.Contains(inst, want) {
			t.Errorf("instructions should mention %q", want)
		}
	}
}
