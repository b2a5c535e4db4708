package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/tango-game/game/engine"
	"github.com/wricardo/tango-game/game/service"
)

const (
	ServerName    = "Tango Puzzle"
	ServerVersion = "1.0.0"

	// maxBulkToggles bounds a single toggle_cells call
	maxBulkToggles = 64
)

// Server exposes the game service as MCP tools
type Server struct {
	service   service.GameService
	log       logrus.FieldLogger
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server backed by svc
func NewServer(svc service.GameService, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		service: svc,
		log:     log.WithField("component", "mcp"),
	}

	s.mcpServer = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Tango Puzzle - MCP Interface

GAME OBJECTIVE:
Fill every cell of the square grid with black or white so that no three
equal cells are adjacent in a row or column, every row and column has as
many blacks as whites, and every "=" / "x" sign between two cells holds.

AVAILABLE TOOLS:
- create_player / list_players: manage player profiles
- player_state: board, guesses, coins and the first broken rule
- enter_level / next_level / list_levels: choose what to play
- toggle_cell / toggle_cells: cycle cells empty -> black -> white -> empty
- undo: revert the last toggle or hint
- hint: reveal one cell for a coin
- submit: check the board against the solution (wrong answers cost a guess)
- player_stats: completion times and totals
- puzzle_rules: the full rules and economy

Call puzzle_rules first if you have not played before.`),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin and stdout until the input closes
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP handles one JSON-RPC message per POST request
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := s.mcpServer.HandleMessage(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	if response == nil {
		// notifications have no response
		w.WriteHeader(http.StatusAccepted)
		return
	}
	data, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

func playerProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Player ID",
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Players
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "create_player",
		Description: "Create a new player profile. The player starts on level 1 with 3 coins.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Player ID to use (optional, generated when empty)",
				},
			},
		},
	}, s.handleCreatePlayer)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_players",
		Description: "List all loaded players",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListPlayers)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "player_state",
		Description: "Get the player's board, guesses, coins and rule status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp()},
			Required:   []string{"player_id"},
		},
	}, s.handleState)

	// Gameplay
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "enter_level",
		Description: "Start a fresh attempt at an unlocked level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp(),
				"level": map[string]interface{}{
					"type":        "integer",
					"description": "Level ID",
				},
			},
			Required: []string{"player_id", "level"},
		},
	}, s.handleEnterLevel)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "toggle_cell",
		Description: "Cycle one cell: empty -> black -> white -> empty",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp(),
				"row": map[string]interface{}{
					"type":        "integer",
					"description": "Row, 0-based from the top",
				},
				"col": map[string]interface{}{
					"type":        "integer",
					"description": "Column, 0-based from the left",
				},
			},
			Required: []string{"player_id", "row", "col"},
		},
	}, s.handleToggleCell)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "toggle_cells",
		Description: "Toggle several cells in order, stopping at the first refused toggle",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp(),
				"cells": map[string]interface{}{
					"type":        "array",
					"description": "Cells to toggle, each as [row, col]",
					"items": map[string]interface{}{
						"type":     "array",
						"items":    map[string]interface{}{"type": "integer"},
						"minItems": 2,
						"maxItems": 2,
					},
				},
			},
			Required: []string{"player_id", "cells"},
		},
	}, s.handleToggleCells)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "undo",
		Description: "Revert the most recent toggle or hint",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp()},
			Required:   []string{"player_id"},
		},
	}, s.handleUndo)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "hint",
		Description: "Reveal the solution value of one random empty cell. Costs a coin unless premium.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp()},
			Required:   []string{"player_id"},
		},
	}, s.handleHint)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "submit",
		Description: "Check the board against the solution. A wrong answer costs a guess.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp(),
				"completion_seconds": map[string]interface{}{
					"type":        "number",
					"description": "Time taken, in seconds (optional, measured by the server when omitted)",
				},
			},
			Required: []string{"player_id"},
		},
	}, s.handleSubmit)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "next_level",
		Description: "Enter the next unlocked level after completing the current one",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp()},
			Required:   []string{"player_id"},
		},
	}, s.handleNextLevel)

	// Queries
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List levels, with lock and completion status when a player is given",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Player ID (optional)",
				},
			},
		},
	}, s.handleListLevels)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "player_stats",
		Description: "Get completion times and totals for a player",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp()},
			Required:   []string{"player_id"},
		},
	}, s.handleStats)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "puzzle_rules",
		Description: "Get the complete puzzle rules, board legend and economy",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleRules)
}

// Argument helpers

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func stringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}

func intArg(args map[string]interface{}, name string) (int, error) {
	switch v := args[name].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be a whole number", name)
		}
		return int(v), nil
	case int:
		return v, nil
	case nil:
		return 0, fmt.Errorf("%s is required", name)
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}

func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, error) {
	s.log.WithError(err).WithField("tool", tool).Debug("tool call failed")
	return mcp.NewToolResultError(err.Error()), nil
}

// Tool handlers

func (s *Server) handleCreatePlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	info, err := s.service.CreatePlayer(ctx, stringArg(args, "player_id"))
	if err != nil {
		return s.toolError("create_player", err)
	}

	result := fmt.Sprintf("Created player: %s\n\n%s", info.ID, formatState(info.State))
	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleListPlayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	players, err := s.service.ListPlayers(ctx)
	if err != nil {
		return s.toolError("list_players", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Players (%d):\n\n", len(players))
	for _, p := range players {
		fmt.Fprintf(&b, "- %s (level %d, %d/%d completed, last active %s)\n",
			p.ID, p.State.LevelID, len(p.State.CompletedLevels), p.State.LevelCount,
			p.LastAccessedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.service.GetState(ctx, stringArg(arguments(request), "player_id"))
	if err != nil {
		return s.toolError("player_state", err)
	}
	return mcp.NewToolResultText(formatState(state)), nil
}

func (s *Server) handleEnterLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	level, err := intArg(args, "level")
	if err != nil {
		return s.toolError("enter_level", err)
	}

	result, err := s.service.EnterLevel(ctx, stringArg(args, "player_id"), level)
	if err != nil {
		return s.toolError("enter_level", err)
	}
	return mcp.NewToolResultText(formatActionResult(result)), nil
}

func (s *Server) handleToggleCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	row, err := intArg(args, "row")
	if err != nil {
		return s.toolError("toggle_cell", err)
	}
	col, err := intArg(args, "col")
	if err != nil {
		return s.toolError("toggle_cell", err)
	}

	result, err := s.service.ToggleCell(ctx, stringArg(args, "player_id"), row, col)
	if err != nil {
		return s.toolError("toggle_cell", err)
	}
	return mcp.NewToolResultText(formatActionResult(result)), nil
}

func (s *Server) handleToggleCells(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	playerID := stringArg(args, "player_id")
	raw, _ := args["cells"].([]interface{})
	if len(raw) == 0 {
		return s.toolError("toggle_cells", errors.New("cells must list at least one [row, col]"))
	}
	if len(raw) > maxBulkToggles {
		return s.toolError("toggle_cells", fmt.Errorf("at most %d cells per call", maxBulkToggles))
	}

	coords := make([]engine.Coord, 0, len(raw))
	for i, item := range raw {
		pair, _ := item.([]interface{})
		if len(pair) != 2 {
			return s.toolError("toggle_cells", fmt.Errorf("cells[%d] must be [row, col]", i))
		}
		row, err := intArg(map[string]interface{}{"row": pair[0]}, "row")
		if err != nil {
			return s.toolError("toggle_cells", fmt.Errorf("cells[%d]: %w", i, err))
		}
		col, err := intArg(map[string]interface{}{"col": pair[1]}, "col")
		if err != nil {
			return s.toolError("toggle_cells", fmt.Errorf("cells[%d]: %w", i, err))
		}
		coords = append(coords, engine.Coord{Row: row, Col: col})
	}

	var last *service.ActionResult
	applied := 0
	for _, at := range coords {
		result, err := s.service.ToggleCell(ctx, playerID, at.Row, at.Col)
		if err != nil {
			return s.toolError("toggle_cells", err)
		}
		last = result
		if !result.Success {
			break
		}
		applied++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Toggled %d/%d cells\n", applied, len(coords))
	if applied < len(coords) {
		fmt.Fprintf(&b, "Stopped at %s: %s\n", coords[applied], last.Message)
	}
	b.WriteString("\n")
	b.WriteString(formatState(last.State))
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleUndo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.service.Undo(ctx, stringArg(arguments(request), "player_id"))
	if err != nil {
		return s.toolError("undo", err)
	}
	return mcp.NewToolResultText(formatActionResult(result)), nil
}

func (s *Server) handleHint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.service.Hint(ctx, stringArg(arguments(request), "player_id"))
	if err != nil {
		return s.toolError("hint", err)
	}
	return mcp.NewToolResultText(formatActionResult(result)), nil
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	var secs *float64
	if v, ok := args["completion_seconds"].(float64); ok {
		secs = &v
	}

	result, err := s.service.Submit(ctx, stringArg(args, "player_id"), secs)
	if err != nil {
		return s.toolError("submit", err)
	}
	return mcp.NewToolResultText(formatActionResult(result)), nil
}

func (s *Server) handleNextLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.service.NextLevel(ctx, stringArg(arguments(request), "player_id"))
	if err != nil {
		return s.toolError("next_level", err)
	}
	return mcp.NewToolResultText(formatActionResult(result)), nil
}

func (s *Server) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	levels, err := s.service.ListLevels(ctx, stringArg(arguments(request), "player_id"))
	if err != nil {
		return s.toolError("list_levels", err)
	}
	return mcp.NewToolResultText(formatLevels(levels)), nil
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.service.GetStats(ctx, stringArg(arguments(request), "player_id"))
	if err != nil {
		return s.toolError("player_stats", err)
	}
	return mcp.NewToolResultText(formatStats(stats)), nil
}

func (s *Server) handleRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(rulesText), nil
}

const rulesText = `Tango Puzzle - Complete Rules

BOARD:
An even-sized square grid (4x4, 6x6, 8x8). Some cells are given at the start.
Each cell is empty, black (B) or white (W).

RULES:
1. No three consecutive cells in a row or column may share a color.
2. Every row and every column holds as many blacks as whites.
3. "=" between two cells: they must share a color.
4. "x" between two cells: they must differ.
5. Every cell must be filled.

A level has exactly one solution. Submissions are graded against it.

CONTROLS:
- toggle_cell cycles a cell: empty -> black -> white -> empty
- undo reverts the last toggle or hint, any number of times
- player_state shows the first rule the board currently breaks

ECONOMY:
- You get 3 guesses per level. A wrong submit costs one guess.
- Losing the last guess costs a coin and refills the guesses.
- A hint reveals one random empty cell and costs a coin.
- With no coins you cannot hint or submit. Coins refill to 3 each day.
- Premium players never spend coins.

PROGRESSION:
Solving the highest unlocked level unlocks the next one. Completed levels
can be replayed; the last recorded time is kept.

BOARD LEGEND (player_state):
  B black   W white   . empty
  Signs are listed below the board as "(r, c) = (r, c)" or "(r, c) x (r, c)".`

// Formatting

func cellChar(c engine.CellState) byte {
	switch c {
	case engine.KindA:
		return 'B'
	case engine.KindB:
		return 'W'
	default:
		return '.'
	}
}

func relationSymbol(kind string) string {
	switch kind {
	case engine.TagEquals:
		return "="
	case engine.TagArrow:
		return "->"
	default:
		return "x"
	}
}

func formatState(state *service.PlayerState) string {
	if state == nil {
		return "No state"
	}

	var b strings.Builder
	if state.LevelID == 0 {
		fmt.Fprintf(&b, "Player %s has no level in play\n", state.PlayerID)
	} else {
		status := "in progress"
		if state.LevelCompleted {
			status = "COMPLETED"
		}
		fmt.Fprintf(&b, "Level %d of %d (%dx%d) - %s\n", state.LevelID, state.LevelCount, state.Size, state.Size, status)
	}
	premium := ""
	if state.IsPremium {
		premium = " (premium)"
	}
	fmt.Fprintf(&b, "Guesses: %d  Coins: %d%s\n", state.GuessesLeft, state.Coins, premium)

	if len(state.Grid) > 0 {
		b.WriteString("\n   ")
		for c := range state.Grid[0] {
			fmt.Fprintf(&b, "%d", c%10)
		}
		b.WriteString("\n")
		for r, row := range state.Grid {
			fmt.Fprintf(&b, "%2d ", r)
			for _, cell := range row {
				b.WriteByte(cellChar(cell))
			}
			b.WriteString("\n")
		}
	}

	if len(state.Relations) > 0 {
		b.WriteString("\nSigns:\n")
		for _, rel := range state.Relations {
			fmt.Fprintf(&b, "  %s %s %s\n", rel.From, relationSymbol(rel.Kind), rel.To)
		}
	}

	if state.Rules != nil {
		if state.Rules.OK {
			b.WriteString("\nRules: all satisfied\n")
		} else {
			fmt.Fprintf(&b, "\nRules: %s\n", state.Rules.Reason)
		}
	}
	if state.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", state.LastError)
	}
	return b.String()
}

func formatActionResult(result *service.ActionResult) string {
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "✓ %s\n", result.Message)
	} else {
		fmt.Fprintf(&b, "✗ %s\n", result.Message)
	}
	if sub := result.Submit; sub != nil && !sub.Correct {
		if sub.Mismatch != nil {
			fmt.Fprintf(&b, "First wrong or empty cell: %s\n", sub.Mismatch)
		}
		if sub.CoinCharged {
			b.WriteString("Out of guesses: a coin was charged and guesses refilled\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(formatState(result.State))
	return b.String()
}

func formatLevels(levels []*service.LevelInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Levels (%d):\n\n", len(levels))
	for _, l := range levels {
		status := ""
		switch {
		case l.Completed:
			status = " ✓"
			if l.BestTime != nil {
				status += fmt.Sprintf(" %.1fs", *l.BestTime)
			}
		case l.Locked:
			status = " (locked)"
		}
		fmt.Fprintf(&b, "- Level %d: %dx%d, %d given, %d signs%s\n", l.ID, l.Size, l.Size, l.Givens, l.Relations, status)
	}
	return b.String()
}

func formatStats(stats *service.PlayerStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Player %s\n", stats.PlayerID)
	fmt.Fprintf(&b, "Completed: %d/%d levels\n", stats.CompletedLevels, stats.LevelCount)
	fmt.Fprintf(&b, "Total play time: %.0fs\n", stats.TotalPlayTime)
	if stats.FastestLevel > 0 {
		fmt.Fprintf(&b, "Fastest: level %d in %.1fs\n", stats.FastestLevel, stats.FastestTime)
		fmt.Fprintf(&b, "Average: %.1fs\n", stats.AverageTime)
	}
	fmt.Fprintf(&b, "Coins: %d\n", stats.Coins)
	return b.String()
}
