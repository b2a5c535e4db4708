package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/tango-game/game/catalog"
	"github.com/wricardo/tango-game/game/engine"
	"github.com/wricardo/tango-game/game/progress"
	"github.com/wricardo/tango-game/game/service"
	"github.com/wricardo/tango-game/game/session"
)

// solved is a valid 4x4 board, A=KindA B=KindB
var solved = []string{"ABBA", "BAAB", "ABAB", "BABA"}

func createTestServer(t *testing.T) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	build := func(keep func(r, c int) bool) [][]engine.CellState {
		cells := engine.NewCells(4)
		for r, row := range solved {
			for c, ch := range row {
				if keep != nil && !keep(r, c) {
					continue
				}
				cells[r][c] = engine.KindB
				if ch == 'A' {
					cells[r][c] = engine.KindA
				}
			}
		}
		return cells
	}
	cat := catalog.New(
		&catalog.LevelDefinition{
			ID:      1,
			Size:    4,
			Initial: build(func(r, c int) bool { return r == c }),
			Relations: map[engine.CellPair]engine.RelationKind{
				engine.NewCellPair(0, 1, 0, 2): engine.Equal,
				engine.NewCellPair(1, 0, 1, 1): engine.Opposite,
			},
			Solution: build(nil),
		},
		&catalog.LevelDefinition{
			ID:        2,
			Size:      4,
			Initial:   build(nil),
			Relations: map[engine.CellPair]engine.RelationKind{},
			Solution:  build(nil),
		},
	)

	manager := session.NewManager(cat, progress.NewMemoryBackend(), log,
		session.WithRandom(func(n int) int { return 0 }))
	svc := service.NewGameService(manager, cat, service.WithLogger(log))
	return NewServer(svc, log)
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}

	result, err := handler(context.Background(), request)
	if err != nil {
		t.Fatalf("%s returned a protocol error: %v", name, err)
	}
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("%s returned no content", name)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("%s: expected text content in result", name)
	}
	return text.Text, result.IsError
}

func TestNewServer(t *testing.T) {
	s := createTestServer(t)
	if s.MCPServer() == nil {
		t.Fatal("Expected MCP server to be initialized")
	}
}

func TestCreatePlayerAndState(t *testing.T) {
	s := createTestServer(t)

	text, isErr := callTool(t, s.handleCreatePlayer, "create_player", map[string]interface{}{"player_id": "m1"})
	if isErr {
		t.Fatalf("create_player failed: %s", text)
	}
	for _, want := range []string{"Created player: m1", "Level 1 of 2 (4x4)", "Coins: 3"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}

	text, _ = callTool(t, s.handleState, "player_state", map[string]interface{}{"player_id": "m1"})
	if !strings.Contains(text, " 0 B...") {
		t.Errorf("Expected the first row to show the given black cell, got: %s", text)
	}
	if !strings.Contains(text, "(0, 1) = (0, 2)") || !strings.Contains(text, "(1, 0) x (1, 1)") {
		t.Errorf("Expected both signs listed, got: %s", text)
	}

	text, isErr = callTool(t, s.handleState, "player_state", map[string]interface{}{"player_id": "none"})
	if !isErr || !strings.Contains(text, "player not found") {
		t.Errorf("Expected a tool error for an unknown player, got: %s", text)
	}
}

func TestToggleCellArguments(t *testing.T) {
	s := createTestServer(t)
	callTool(t, s.handleCreatePlayer, "create_player", map[string]interface{}{"player_id": "m2"})

	tests := []struct {
		name    string
		args    map[string]interface{}
		isError bool
		want    string
	}{
		{"valid", map[string]interface{}{"player_id": "m2", "row": float64(0), "col": float64(1)}, false, "✓ Cell (0, 1) is now black"},
		{"missing row", map[string]interface{}{"player_id": "m2", "col": float64(1)}, true, "row is required"},
		{"fractional col", map[string]interface{}{"player_id": "m2", "row": float64(0), "col": 1.5}, true, "whole number"},
		{"out of range", map[string]interface{}{"player_id": "m2", "row": float64(9), "col": float64(0)}, false, "✗"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callTool(t, s.handleToggleCell, "toggle_cell", tt.args)
			if isErr != tt.isError {
				t.Errorf("Expected isError=%v, got %v: %s", tt.isError, isErr, text)
			}
			if !strings.Contains(text, tt.want) {
				t.Errorf("Expected %q in result, got: %s", tt.want, text)
			}
		})
	}
}

func TestSolveThroughTools(t *testing.T) {
	s := createTestServer(t)
	callTool(t, s.handleCreatePlayer, "create_player", map[string]interface{}{"player_id": "m3"})

	var cells []interface{}
	for r, row := range solved {
		for c, ch := range row {
			if r == c {
				continue
			}
			cells = append(cells, []interface{}{float64(r), float64(c)})
			if ch == 'B' {
				cells = append(cells, []interface{}{float64(r), float64(c)})
			}
		}
	}

	text, isErr := callTool(t, s.handleToggleCells, "toggle_cells", map[string]interface{}{"player_id": "m3", "cells": cells})
	if isErr {
		t.Fatalf("toggle_cells failed: %s", text)
	}
	if !strings.Contains(text, "Rules: all satisfied") {
		t.Errorf("Expected a rule-satisfying board, got: %s", text)
	}

	text, _ = callTool(t, s.handleSubmit, "submit", map[string]interface{}{"player_id": "m3", "completion_seconds": 30.0})
	if !strings.Contains(text, "Correct! Level 1 completed") {
		t.Errorf("Expected a correct submission, got: %s", text)
	}

	text, _ = callTool(t, s.handleListLevels, "list_levels", map[string]interface{}{"player_id": "m3"})
	if !strings.Contains(text, "Level 1: 4x4, 4 given, 2 signs ✓ 30.0s") {
		t.Errorf("Expected level 1 marked completed, got: %s", text)
	}

	text, _ = callTool(t, s.handleNextLevel, "next_level", map[string]interface{}{"player_id": "m3"})
	if !strings.Contains(text, "Level 2 started") {
		t.Errorf("Expected level 2, got: %s", text)
	}

	text, _ = callTool(t, s.handleStats, "player_stats", map[string]interface{}{"player_id": "m3"})
	if !strings.Contains(text, "Completed: 1/2 levels") || !strings.Contains(text, "Fastest: level 1 in 30.0s") {
		t.Errorf("Unexpected stats: %s", text)
	}
}

func TestToggleCellsStopsAtFailure(t *testing.T) {
	s := createTestServer(t)
	callTool(t, s.handleCreatePlayer, "create_player", map[string]interface{}{"player_id": "m4"})

	cells := []interface{}{
		[]interface{}{float64(0), float64(1)},
		[]interface{}{float64(8), float64(8)},
		[]interface{}{float64(0), float64(2)},
	}
	text, isErr := callTool(t, s.handleToggleCells, "toggle_cells", map[string]interface{}{"player_id": "m4", "cells": cells})
	if isErr {
		t.Fatalf("Expected a normal result, got error: %s", text)
	}
	if !strings.Contains(text, "Toggled 1/3 cells") || !strings.Contains(text, "Stopped at (8, 8)") {
		t.Errorf("Expected the batch to stop at the bad cell, got: %s", text)
	}

	text, isErr = callTool(t, s.handleToggleCells, "toggle_cells", map[string]interface{}{"player_id": "m4", "cells": []interface{}{"a"}})
	if !isErr {
		t.Errorf("Expected a malformed cell to be rejected, got: %s", text)
	}
}

func TestWrongSubmitAndHint(t *testing.T) {
	s := createTestServer(t)
	callTool(t, s.handleCreatePlayer, "create_player", map[string]interface{}{"player_id": "m5"})

	text, _ := callTool(t, s.handleSubmit, "submit", map[string]interface{}{"player_id": "m5"})
	if !strings.Contains(text, "✗") || !strings.Contains(text, "Guesses: 2") {
		t.Errorf("Expected a wrong submission costing a guess, got: %s", text)
	}
	if !strings.Contains(text, "First wrong or empty cell: (0, 1)") {
		t.Errorf("Expected the first mismatch, got: %s", text)
	}

	text, _ = callTool(t, s.handleHint, "hint", map[string]interface{}{"player_id": "m5"})
	if !strings.Contains(text, "Coins: 2") {
		t.Errorf("Expected the hint to cost a coin, got: %s", text)
	}

	text, _ = callTool(t, s.handleUndo, "undo", map[string]interface{}{"player_id": "m5"})
	if !strings.Contains(text, "Last move undone") {
		t.Errorf("Expected the hint undone, got: %s", text)
	}
}

func TestPuzzleRules(t *testing.T) {
	s := createTestServer(t)
	text, _ := callTool(t, s.handleRules, "puzzle_rules", nil)
	for _, want := range []string{"No three consecutive", "as many blacks as whites", "Premium"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in rules", want)
		}
	}
}

func TestServeHTTP(t *testing.T) {
	s := createTestServer(t)

	t.Run("tools list", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
		req := httptest.NewRequest("POST", "/mcp", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var resp struct {
			Result struct {
				Tools []struct {
					Name string `json:"name"`
				} `json:"tools"`
			} `json:"result"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(resp.Result.Tools) != 13 {
			t.Errorf("Expected 13 tools, got %d", len(resp.Result.Tools))
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/mcp", nil)
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", w.Code)
		}
	})
}
