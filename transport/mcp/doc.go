// Package mcp exposes the Tango game to AI agents over the Model Context Protocol.
//
// Every tool calls the game service in-process and answers with plain text:
// a board drawn with B, W and . plus the signs, guesses, coins and the first
// rule the board breaks. Request problems (unknown player, bad arguments)
// come back as tool errors; refused moves come back as normal results
// marked with ✗.
//
// MCP Tools:
//   - create_player, list_players, player_state
//   - enter_level, next_level, list_levels
//   - toggle_cell, toggle_cells, undo, hint, submit
//   - player_stats, puzzle_rules
//
// Transport Modes:
//   - Stdio: ServeStdio, for local MCP clients
//   - HTTP: Server is an http.Handler taking one JSON-RPC message per POST
//
// Usage:
//
//	srv := mcp.NewServer(gameService, log)
//	srv.ServeStdio()
//
//	// or, mounted next to the REST API
//	api.NewServer(gameService, hub, api.WithMCPHandler(srv))
package mcp
