// Package websocket pushes reservation session views to browsers.
//
// A central Hub keeps the connected clients grouped by session id. Each
// client has a write goroutine and a read goroutine; the hub's own goroutine
// is the only writer of the client registry.
//
// Message Protocol:
//
// Every message is one JSON frame:
//
//	{"session_id": "…", "event": "seat.selected", "view": {…}}
//
// A "snapshot" message with the current view is sent right after the
// connection is established. Clients never need to send anything; incoming
// frames only keep the connection alive.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	sessions := session.NewManager(session.ManagerOptions{
//		OnChange: hub.OnChange,
//	})
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		id := r.URL.Query().Get("session")
//		hub.ServeWS(w, r, id, view)
//	})
//
// Broadcast never blocks the caller: updates are queued and dropped with a
// warning when the queue is full, and clients that cannot keep up are
// disconnected.
package websocket
