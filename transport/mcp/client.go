package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/seatsession/reservation/config"
	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/inactivity"
	"github.com/wricardo/seatsession/reservation/passenger"
	"github.com/wricardo/seatsession/reservation/service"
	"github.com/wricardo/seatsession/reservation/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Seat Reservation",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Seat Reservation - MCP Interface

This is a thin client that proxies all requests to the REST API server.

FLOW:
1. create_session (optionally with a venue_id from list_venues)
2. seat_map to see free (.), occupied (X) and selected (*) seats
3. select_seat to select or release a seat, up to the venue limit
4. update_passenger for every selected seat
5. submit_passengers to validate and complete the reservation

INACTIVITY:
A session that sits idle raises a warning. Call confirm_continue while the
countdown runs, otherwise the selection is cleared and the session expires.
An expired session only accepts restart_session.

AVAILABLE TOOLS:
- create_session, get_session, list_sessions, delete_session
- seat_map, select_seat, confirm_continue, cancel_session, restart_session
- update_passenger, submit_passengers
- list_venues`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	sessionArg := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID"))

	// Session management
	c.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a new reservation session"),
		mcp.WithString("venue_id", mcp.Description("Venue to reserve seats in (optional, see list_venues)")),
	), c.handleCreateSession)

	c.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List all active reservation sessions"),
	), c.handleListSessions)

	c.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get details of a specific session"),
		sessionArg,
	), c.handleGetSession)

	c.mcpServer.AddTool(mcp.NewTool("delete_session",
		mcp.WithDescription("Close a session and discard its persisted state"),
		sessionArg,
	), c.handleDeleteSession)

	// Reservation operations
	c.mcpServer.AddTool(mcp.NewTool("seat_map",
		mcp.WithDescription("Show the seat map, the selection, the total price and the inactivity state"),
		sessionArg,
	), c.handleSeatMap)

	c.mcpServer.AddTool(mcp.NewTool("select_seat",
		mcp.WithDescription("Select a free seat, or release it if it is already selected"),
		sessionArg,
		mcp.WithNumber("seat", mcp.Required(), mcp.Description("Seat number, starting at 1")),
	), c.handleSelectSeat)

	c.mcpServer.AddTool(mcp.NewTool("confirm_continue",
		mcp.WithDescription("Answer the inactivity warning and keep the session alive"),
		sessionArg,
	), c.handleConfirmContinue)

	c.mcpServer.AddTool(mcp.NewTool("cancel_session",
		mcp.WithDescription("Expire the session now and clear the selection"),
		sessionArg,
	), c.handleCancelSession)

	c.mcpServer.AddTool(mcp.NewTool("restart_session",
		mcp.WithDescription("Start over after the session expired"),
		sessionArg,
	), c.handleRestartSession)

	c.mcpServer.AddTool(mcp.NewTool("update_passenger",
		mcp.WithDescription("Save passenger details for a selected seat; fields left out are kept empty"),
		sessionArg,
		mcp.WithNumber("seat", mcp.Required(), mcp.Description("Selected seat number")),
		mcp.WithString("name", mcp.Description("First name, letters and spaces")),
		mcp.WithString("surname", mcp.Description("Last name, letters and spaces")),
		mcp.WithString("phone", mcp.Description("Exactly 10 digits")),
		mcp.WithString("email", mcp.Description("Email address")),
		mcp.WithString("gender", mcp.Enum("Male", "Female"), mcp.Description("Male or Female")),
		mcp.WithString("date_of_birth", mcp.Description("YYYY-MM-DD, in the past")),
	), c.handleUpdatePassenger)

	c.mcpServer.AddTool(mcp.NewTool("submit_passengers",
		mcp.WithDescription("Validate the passenger details of every selected seat and complete the reservation"),
		sessionArg,
		mcp.WithArray("passengers",
			mcp.Description("Passenger records ({seat, name, surname, phone, email, gender, dateOfBirth}); omit to submit the saved drafts"),
			mcp.Items(map[string]any{"type": "object"}),
		),
	), c.handleSubmitPassengers)

	// Venues
	c.mcpServer.AddTool(mcp.NewTool("list_venues",
		mcp.WithDescription("List available venue configurations"),
	), c.handleListVenues)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiError carries the status and message of a failed API call
type apiError struct {
	Status  int
	Message string
	Fields  map[string]map[string]string
}

func (e *apiError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	seats := make([]string, 0, len(e.Fields))
	for seat := range e.Fields {
		seats = append(seats, seat)
	}
	sort.Strings(seats)

	var b strings.Builder
	b.WriteString(e.Message)
	for _, seat := range seats {
		fields := make([]string, 0, len(e.Fields[seat]))
		for f := range e.Fields[seat] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(&b, "\n- seat %s %s: %s", seat, f, e.Fields[seat][f])
		}
	}
	return b.String()
}

// apiCall makes an HTTP request to the REST API
func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string                       `json:"error"`
			Errors map[string]map[string]string `json:"errors"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return &apiError{Status: resp.StatusCode, Message: errResp.Error, Fields: errResp.Errors}
		}
		return &apiError{Status: resp.StatusCode, Message: fmt.Sprintf("API error: %d", resp.StatusCode)}
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{}
	if venueID := request.GetString("venue_id", ""); venueID != "" {
		body["venue_id"] = venueID
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\n\n%s", info.ID, formatSessionInfo(&info))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		line := fmt.Sprintf("- %s (Venue: %s, Created: %s", s.ID, s.VenueID, s.CreatedAt.Format("15:04:05"))
		if s.View != nil {
			line += fmt.Sprintf(", Seats: %s, Phase: %s", formatSelection(s.View.Selection), s.View.Phase)
		}
		result += line + ")\n"
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+sessionID, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Message string `json:"message"`
	}
	if err := c.apiCall(ctx, "DELETE", "/api/sessions/"+sessionID, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message), nil
}

func (c *Client) handleSeatMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.viewCall(ctx, request, "GET", "/view", "")
}

func (c *Client) handleSelectSeat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seat, err := request.RequireInt("seat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return c.viewCall(ctx, request, "POST", fmt.Sprintf("/seats/%d/toggle", seat), fmt.Sprintf("Toggled seat %d", seat))
}

func (c *Client) handleConfirmContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.viewCall(ctx, request, "POST", "/continue", "Session continued")
}

func (c *Client) handleCancelSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.viewCall(ctx, request, "POST", "/cancel", "Session cancelled")
}

func (c *Client) handleRestartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.viewCall(ctx, request, "POST", "/restart", "Session restarted")
}

// viewCall runs a session operation that answers with a view
func (c *Client) viewCall(ctx context.Context, request mcp.CallToolRequest, method, suffix, headline string) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var view session.View
	if err := c.apiCall(ctx, method, "/api/sessions/"+sessionID+suffix, nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatView(&view)
	if headline != "" {
		result = headline + "\n\n" + result
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleUpdatePassenger(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	seat, err := request.RequireInt("seat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec := passenger.Record{
		Seat:        seat,
		Name:        request.GetString("name", ""),
		Surname:     request.GetString("surname", ""),
		Phone:       request.GetString("phone", ""),
		Email:       request.GetString("email", ""),
		Gender:      passenger.Gender(request.GetString("gender", "")),
		DateOfBirth: request.GetString("date_of_birth", ""),
	}

	var view session.View
	path := fmt.Sprintf("/api/sessions/%s/passengers/%d", sessionID, seat)
	if err := c.apiCall(ctx, "PUT", path, rec, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Saved passenger for seat %d\n\n%s", seat, formatPassengers(view.Passengers))), nil
}

func (c *Client) handleSubmitPassengers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var records []passenger.Record
	if raw, ok := request.GetArguments()["passengers"]; ok && raw != nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return mcp.NewToolResultErrorf("invalid passengers: %v", err), nil
		}
		if err := json.Unmarshal(data, &records); err != nil {
			return mcp.NewToolResultErrorf("invalid passengers: %v", err), nil
		}
	}

	var result session.SubmitResult
	body := map[string]any{"passengers": records}
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/submit", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSubmitResult(&result)), nil
}

func (c *Client) handleListVenues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var venues []*config.VenueInfo
	if err := c.apiCall(ctx, "GET", "/api/venues", nil, &venues); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Venues:\n\n"
	for _, v := range venues {
		result += fmt.Sprintf("• %s (%s)\n  %s\n  Seats: %d, Max per session: %d, Price: %s\n\n",
			v.VenueID, v.Name, v.Description, v.SeatCount, v.MaxSelectable, formatPrice(v.PricePerSeat, v.Currency))
	}

	return mcp.NewToolResultText(result), nil
}

// Formatting helpers

func formatSessionInfo(info *service.SessionInfo) string {
	result := fmt.Sprintf("Session: %s\nVenue: %s\nCreated: %s\n",
		info.ID, info.VenueID, info.CreatedAt.Format(time.RFC3339))
	if info.View != nil {
		result += "\n" + formatView(info.View)
	}
	return result
}

func formatView(view *session.View) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%d columns, up to %d seats)\n", view.VenueName, view.Columns, view.MaxSelectable)
	b.WriteString(formatSeatMap(view))
	b.WriteString("\nLegend: .NN free, XNN occupied, *NN selected\n\n")

	fmt.Fprintf(&b, "Selection: %s\n", formatSelection(view.Selection))
	fmt.Fprintf(&b, "Total: %s\n", formatPrice(view.TotalPrice, view.Currency))

	switch view.Phase {
	case inactivity.Warning:
		fmt.Fprintf(&b, "⚠ Inactivity warning: call confirm_continue within %.0f seconds\n", view.RemainingSeconds)
	case inactivity.Expired:
		b.WriteString("Session expired: call restart_session to start over\n")
	default:
		fmt.Fprintf(&b, "Phase: %s (idle %.0fs)\n", view.Phase, view.IdleSeconds)
	}

	if view.PersistenceWarning != "" {
		fmt.Fprintf(&b, "Warning: %s\n", view.PersistenceWarning)
	}
	if len(view.Passengers) > 0 {
		b.WriteString("\n" + formatPassengers(view.Passengers))
	}
	return b.String()
}

func formatSeatMap(view *session.View) string {
	cols := view.Columns
	if cols <= 0 {
		cols = 4
	}

	var b strings.Builder
	for i, seat := range view.Seats {
		if i > 0 && i%cols == 0 {
			b.WriteString("\n")
		} else if i > 0 {
			b.WriteString(" ")
		}
		mark := "."
		switch seat.Status {
		case grid.Occupied:
			mark = "X"
		case grid.Selected:
			mark = "*"
		}
		fmt.Fprintf(&b, "%s%02d", mark, seat.Number)
	}
	if len(view.Seats) > 0 {
		b.WriteString("\n")
	}

	var occupants []string
	for _, seat := range view.Seats {
		if seat.Status == grid.Occupied && seat.OccupantName != "" {
			occupants = append(occupants, fmt.Sprintf("%d: %s", seat.Number, seat.OccupantName))
		}
	}
	if len(occupants) > 0 {
		b.WriteString("Occupied by: " + strings.Join(occupants, ", ") + "\n")
	}
	return b.String()
}

func formatSelection(selection []int) string {
	if len(selection) == 0 {
		return "none"
	}
	parts := make([]string, len(selection))
	for i, n := range selection {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}

func formatPrice(amount float64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%.0f %s", amount, currency))
}

func formatPassengers(records []passenger.Record) string {
	if len(records) == 0 {
		return "No passenger details yet\n"
	}
	var b strings.Builder
	b.WriteString("Passengers:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- seat %d: %s %s, %s, %s, %s, %s\n",
			r.Seat, orDash(r.Name), orDash(r.Surname), orDash(r.Phone), orDash(r.Email), orDash(string(r.Gender)), orDash(r.DateOfBirth))
	}
	return b.String()
}

func formatSubmitResult(result *session.SubmitResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Reservation accepted for %d passenger(s)\n", len(result.Passengers))
	fmt.Fprintf(&b, "Total: %s\n\n", formatPrice(result.TotalPrice, result.Currency))
	b.WriteString(formatPassengers(result.Passengers))
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
