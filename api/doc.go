// Package api provides the HTTP REST API of the reservation server.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session ({"venue_id": "reference"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Session info with its current view
//   - DELETE /api/sessions/{id} - Close a session and purge its persisted state
//
// Reservation:
//   - GET /api/sessions/{id}/view - Current view
//   - POST /api/sessions/{id}/seats/{seat}/toggle - Select or release a seat
//   - POST /api/sessions/{id}/continue - Answer the inactivity warning
//   - POST /api/sessions/{id}/cancel - Expire the session now
//   - POST /api/sessions/{id}/restart - Start over after expiry
//   - PUT /api/sessions/{id}/passengers/{seat} - Save a passenger draft
//   - POST /api/sessions/{id}/forms/{seat}/toggle - Open or close a passenger form
//   - POST /api/sessions/{id}/submit - Validate and accept passenger details
//
// Venues:
//   - GET /api/venues - List venue configurations
//   - GET /api/venues/{id} - One venue configuration
//
// Push:
//   - GET /ws?session={id} - WebSocket stream of views
//
// Error Handling:
//
// Errors are returned as JSON with a status derived from the domain error:
//
//	404 unknown session, venue or seat
//	400 malformed input, nothing selected, seat not selected
//	409 seat occupied, selection limit reached, session not expired
//	410 session expired
//	422 passenger validation failed
//	429 rate limit exceeded
//
//	{"error": "seat is already occupied: 5"}
//
// Validation failures carry the per-seat field errors:
//
//	{"error": "...", "errors": {"11": {"phone": "Phone number must be exactly 10 digits"}}}
//
// The API does not broadcast by itself: the session manager's change hook
// feeds the WebSocket hub, so timer-driven transitions are pushed as well.
package api
