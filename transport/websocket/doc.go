// Package websocket pushes player state to browsers and other watchers.
//
// A Hub keeps the connections following each player and implements
// service.Broadcaster, so every operation the game service runs for a player
// reaches that player's connections. Clients only listen; anything they send
// is read and discarded to keep the connection alive.
//
// Message Protocol:
//
//	{"type": "connected",    "player_id": "ab12", "state": {...}}
//	{"type": "state_update", "player_id": "ab12", "state": {...}, "events": [...]}
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//	svc := service.NewGameService(manager, cat, service.WithBroadcaster(hub))
//
//	// in an HTTP handler
//	hub.ServeWS(w, r, playerID, state)
//
// Concurrency:
//
// Registration and fan-out run on the Run goroutine. BroadcastToPlayer never
// blocks the caller; a full queue drops the update, and a client whose send
// buffer is full is disconnected.
package websocket
