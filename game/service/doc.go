// Package service provides the business logic layer for the Tango puzzle game.
//
// GameService is what every transport talks to. It looks players up through a
// PlayerManager, runs one operation on the player's session.Controller while
// holding that player's lock, and returns an ActionResult carrying the new
// PlayerState and the events the operation produced.
//
// Errors:
//
// A returned error is about the request: an unknown player or level id, or a
// malformed argument such as an unknown theme. Gameplay failures (a locked
// level, no coins left, a wrong submission) are not errors here; they come
// back with Success false, a Message, and the state's LastError set.
//
// Events:
//
// Controller events are collected per player and handed out once, stamped
// with a ULID, in the ActionResult of the operation that caused them. When a
// Broadcaster is configured it receives the same state and events, which is
// how WebSocket clients follow a player.
//
// Usage:
//
//	manager := session.NewManager(cat, backend, log)
//	svc := service.NewGameService(manager, cat, service.WithBroadcaster(hub))
//
//	info, err := svc.CreatePlayer(ctx, "")
//	res, err := svc.ToggleCell(ctx, info.ID, 0, 1)
//	res, err = svc.Submit(ctx, info.ID, nil)
package service
