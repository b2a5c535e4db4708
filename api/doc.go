// Package api provides the HTTP REST API for the Tango puzzle game.
//
// Endpoints:
//
// Players:
//   - POST   /api/players              create a player, body {"id": "ab12"} (optional)
//   - GET    /api/players              list players (?sort=id|created|accessed&order=asc|desc&limit=N)
//   - GET    /api/players/{id}         player info with state
//   - DELETE /api/players/{id}         delete the player and their progress
//
// Gameplay:
//   - GET    /api/players/{id}/state
//   - POST   /api/players/{id}/enter   {"level": 3}
//   - POST   /api/players/{id}/toggle  {"row": 0, "col": 1}
//   - POST   /api/players/{id}/undo
//   - POST   /api/players/{id}/hint
//   - POST   /api/players/{id}/submit  {"completion_seconds": 42.5} (optional)
//   - POST   /api/players/{id}/next
//
// Economy and preferences:
//   - POST   /api/players/{id}/coins        grant the coin for a watched ad
//   - POST   /api/players/{id}/premium
//   - PUT    /api/players/{id}/theme        {"theme": "dark"}
//   - POST   /api/players/{id}/session/end
//   - DELETE /api/players/{id}/error        dismiss the last error
//
// Queries:
//   - GET    /api/levels                    the catalog
//   - GET    /api/players/{id}/levels       the catalog with lock and completion status
//   - GET    /api/players/{id}/stats
//
// Other:
//   - GET    /ws?player={id}   WebSocket feed of the player's state
//   - POST   /mcp              MCP JSON-RPC endpoint, when configured
//   - GET    /health
//
// Error Handling:
//
// Gameplay operations answer 200 with an ActionResult even when the move is
// refused; "success" is false and the state's "last_error" says why. Other
// errors are returned as {"error": "message"} with a status code: 400 for a
// malformed body or argument, 404 for an unknown player or level, 409 for a
// duplicate player id.
package api
