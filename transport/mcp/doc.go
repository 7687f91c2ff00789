// Package mcp exposes the reservation API to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool call becomes one REST request
// against a running server, and the JSON answer is rendered as plain text.
//
// MCP Tools:
//   - create_session, get_session, list_sessions, delete_session
//   - seat_map: seat grid, selection, total and inactivity state
//   - select_seat: select or release a seat
//   - confirm_continue, cancel_session, restart_session
//   - update_passenger: save a passenger draft for a selected seat
//   - submit_passengers: validate and complete the reservation
//   - list_venues
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: POST /mcp on the API server forwards JSON-RPC messages to
//     GetMCPServer().HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
