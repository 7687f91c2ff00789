package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/inactivity"
	"github.com/wricardo/seatsession/reservation/passenger"
	"github.com/wricardo/seatsession/reservation/session"
)

// Controller is the part of a session the terminal UI drives.
type Controller interface {
	SelectSeat(ctx context.Context, seat int) (*session.View, error)
	ConfirmContinue(ctx context.Context) (*session.View, error)
	CancelSession(ctx context.Context) (*session.View, error)
	Restart(ctx context.Context) (*session.View, error)
	UpdatePassenger(ctx context.Context, rec passenger.Record) (*session.View, error)
	SubmitPassengers(ctx context.Context, records []passenger.Record) (*session.SubmitResult, error)
	Tick() inactivity.Phase
	View() *session.View
}

type appState int

const (
	stateSeats appState = iota
	stateForm
	stateDone
)

const defaultTickInterval = time.Second

var formFields = []string{"Name", "Surname", "Phone", "Email", "Gender", "Date of birth"}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	freeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	occupiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Faint(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type tickMsg time.Time

// formState is the passenger form being edited.
type formState struct {
	seat   int
	values []string
	focus  int
}

type appModel struct {
	ctx      context.Context
	ctrl     Controller
	interval time.Duration

	state  appState
	view   *session.View
	cursor int
	form   formState
	result *session.SubmitResult

	status string
	err    error
	errors map[int]passenger.Errors
	width  int
}

// New builds the model for one session. interval is the inactivity check
// cadence; zero means one second.
func New(ctx context.Context, ctrl Controller, interval time.Duration) tea.Model {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	m := appModel{
		ctx:      ctx,
		ctrl:     ctrl,
		interval: interval,
		view:     ctrl.View(),
	}
	m.cursor = m.firstFreeSeat()
	return m
}

// Run starts the terminal UI and blocks until the user quits.
func Run(ctx context.Context, ctrl Controller, interval time.Duration) error {
	p := tea.NewProgram(New(ctx, ctrl, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m appModel) Init() tea.Cmd {
	return m.tickCmd()
}

func (m appModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		before := m.view.Phase
		m.ctrl.Tick()
		m.view = m.ctrl.View()
		if before != inactivity.Expired && m.view.Phase == inactivity.Expired {
			m.state = stateSeats
			m.status = "Session expired, your selection was released"
		}
		return m, m.tickCmd()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.state {
		case stateForm:
			return m.updateForm(msg)
		case stateDone:
			if msg.String() == "q" || msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter {
				return m, tea.Quit
			}
			return m, nil
		default:
			return m.updateSeats(msg)
		}
	}
	return m, nil
}

func (m appModel) updateSeats(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.columns()
	seats := len(m.view.Seats)

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "l":
		if m.cursor < seats-1 {
			m.cursor++
		}
	case "up", "k":
		if m.cursor-cols >= 0 {
			m.cursor -= cols
		}
	case "down", "j":
		if m.cursor+cols < seats {
			m.cursor += cols
		}
	case " ", "enter":
		if seats == 0 {
			return m, nil
		}
		number := m.view.Seats[m.cursor].Number
		m.apply(m.ctrl.SelectSeat(m.ctx, number))
		if m.err == nil {
			if seat, ok := m.view.Seat(number); ok && seat.Status == grid.Selected {
				m.status = fmt.Sprintf("Seat %d selected", number)
			} else {
				m.status = fmt.Sprintf("Seat %d released", number)
			}
		}
	case "c":
		m.apply(m.ctrl.ConfirmContinue(m.ctx))
		if m.err == nil {
			m.status = "Session continued"
		}
	case "x":
		m.apply(m.ctrl.CancelSession(m.ctx))
		if m.err == nil {
			m.status = "Session cancelled"
		}
	case "r":
		m.apply(m.ctrl.Restart(m.ctx))
		if m.err == nil {
			m.errors = nil
			m.cursor = m.firstFreeSeat()
			m.status = "Session restarted"
		}
	case "p":
		number := m.view.Seats[m.cursor].Number
		if !m.isSelected(number) {
			m.err = fmt.Errorf("%w: %d", grid.ErrSeatNotSelected, number)
			return m, nil
		}
		m.openForm(number)
	case "s":
		result, err := m.ctrl.SubmitPassengers(m.ctx, nil)
		m.view = m.ctrl.View()
		if err != nil {
			m.err = err
			var verr *session.ValidationError
			if errors.As(err, &verr) {
				m.errors = verr.Errors
			}
			return m, nil
		}
		m.err = nil
		m.errors = nil
		m.result = result
		m.state = stateDone
	}
	return m, nil
}

func (m appModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.state = stateSeats
		m.status = "Changes discarded"
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		m.form.focus = (m.form.focus + 1) % len(formFields)
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.form.focus = (m.form.focus + len(formFields) - 1) % len(formFields)
		return m, nil
	case tea.KeyBackspace:
		v := []rune(m.form.values[m.form.focus])
		if len(v) > 0 {
			m.form.values[m.form.focus] = string(v[:len(v)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.form.values[m.form.focus] += " "
		return m, nil
	case tea.KeyRunes:
		m.form.values[m.form.focus] += string(msg.Runes)
		return m, nil
	case tea.KeyEnter:
		m.apply(m.ctrl.UpdatePassenger(m.ctx, m.form.record()))
		if m.err == nil {
			m.state = stateSeats
			m.status = fmt.Sprintf("Passenger for seat %d saved", m.form.seat)
		}
		return m, nil
	}
	return m, nil
}

func (m *appModel) openForm(seat int) {
	rec, _ := m.view.Passenger(seat)
	m.form = formState{
		seat: seat,
		values: []string{
			rec.Name, rec.Surname, rec.Phone, rec.Email, string(rec.Gender), rec.DateOfBirth,
		},
	}
	m.state = stateForm
	m.err = nil
}

func (f formState) record() passenger.Record {
	gender := passenger.Gender(strings.TrimSpace(f.values[4]))
	switch strings.ToLower(string(gender)) {
	case "m", "male":
		gender = passenger.GenderMale
	case "f", "female":
		gender = passenger.GenderFemale
	}
	return passenger.Record{
		Seat:        f.seat,
		Name:        f.values[0],
		Surname:     f.values[1],
		Phone:       f.values[2],
		Email:       f.values[3],
		Gender:      gender,
		DateOfBirth: strings.TrimSpace(f.values[5]),
	}
}

// apply stores the outcome of a controller call
func (m *appModel) apply(view *session.View, err error) {
	if err != nil {
		m.err = err
		m.status = ""
		m.view = m.ctrl.View()
		return
	}
	m.err = nil
	m.view = view
}

func (m appModel) columns() int {
	if m.view.Columns > 0 {
		return m.view.Columns
	}
	return 4
}

func (m appModel) firstFreeSeat() int {
	for i, s := range m.view.Seats {
		if s.Status == grid.Free {
			return i
		}
	}
	return 0
}

func (m appModel) isSelected(seat int) bool {
	for _, n := range m.view.Selection {
		if n == seat {
			return true
		}
	}
	return false
}

func (m appModel) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	switch m.state {
	case stateDone:
		b.WriteString(m.doneView())
		b.WriteString("\n" + hint("Press enter or q to quit."))
		return b.String()
	case stateForm:
		b.WriteString(m.formView())
		b.WriteString("\n" + hint("tab/↓ next field • shift+tab/↑ previous • enter save • esc back"))
	default:
		b.WriteString(m.renderSeatMap())
		b.WriteString("\n")
		b.WriteString(m.summaryView())
		b.WriteString("\n" + hint("←↑→↓ move • space select • p passenger • s submit • c continue • x cancel • r restart • q quit"))
	}

	if banner := m.bannerView(); banner != "" {
		b.WriteString("\n\n" + banner)
	}
	if m.err != nil {
		b.WriteString("\n\n" + errorStyle.Render(m.err.Error()))
	} else if m.status != "" {
		b.WriteString("\n\n" + okStyle.Render(m.status))
	}
	return b.String()
}

func (m appModel) headerView() string {
	title := titleStyle.Render(m.view.VenueName)
	sub := []string{
		fmt.Sprintf("Session: %s", m.view.SessionID),
		fmt.Sprintf("Up to %d seats", m.view.MaxSelectable),
		fmt.Sprintf("%s per seat", formatPrice(m.view.PricePerSeat, m.view.Currency)),
	}
	return title + "\n" + hint(strings.Join(sub, " • "))
}

func (m appModel) bannerView() string {
	switch m.view.Phase {
	case inactivity.Warning:
		return warningStyle.Render(fmt.Sprintf("Are you still there? Press c to continue (%0.fs left)", m.view.RemainingSeconds))
	case inactivity.Expired:
		return warningStyle.Render("Session expired. Press r to start over.")
	}
	return ""
}

func (m appModel) renderSeatMap() string {
	if len(m.view.Seats) == 0 {
		return "No seat map data."
	}
	cols := m.columns()

	var rows []string
	var row []string
	for i, seat := range m.view.Seats {
		label := fmt.Sprintf("%3d", seat.Number)
		var cell string
		switch seat.Status {
		case grid.Occupied:
			cell = occupiedStyle.Render(label)
		case grid.Selected:
			cell = selectedStyle.Render(label)
		default:
			cell = freeStyle.Render(label)
		}
		if i == m.cursor && m.state == stateSeats {
			cell = cursorStyle.Render(cell)
		}
		row = append(row, cell)
		if len(row) == cols {
			rows = append(rows, strings.Join(row, " "))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, strings.Join(row, " "))
	}

	legend := hint("free ") + selectedStyle.Render("selected") + " " + occupiedStyle.Render("occupied")
	out := boxStyle.Render(strings.Join(rows, "\n")) + "\n" + legend

	if len(m.view.Seats) > m.cursor {
		seat := m.view.Seats[m.cursor]
		if seat.Status == grid.Occupied && seat.OccupantName != "" {
			out += "\n" + hint(fmt.Sprintf("Seat %d: %s", seat.Number, seat.OccupantName))
		}
	}
	return out
}

func (m appModel) summaryView() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Selected: %s\n", formatSelection(m.view.Selection))
	fmt.Fprintf(&b, "Total: %s\n", formatPrice(m.view.TotalPrice, m.view.Currency))

	for _, seat := range m.view.Selection {
		rec, _ := m.view.Passenger(seat)
		line := fmt.Sprintf("  seat %d: %s %s", seat, orDash(rec.Name), orDash(rec.Surname))
		if errs, ok := m.errors[seat]; ok && !errs.Valid() {
			line += " " + errorStyle.Render(formatFieldErrors(errs))
		}
		b.WriteString(line + "\n")
	}
	if m.view.PersistenceWarning != "" {
		b.WriteString(warningStyle.Render(m.view.PersistenceWarning) + "\n")
	}
	return b.String()
}

func (m appModel) formView() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Passenger for seat %d\n\n", m.form.seat)
	errs := m.errors[m.form.seat]
	keys := []string{"name", "surname", "phone", "email", "gender", "dateOfBirth"}
	for i, label := range formFields {
		value := m.form.values[i]
		if i == m.form.focus {
			value += "█"
		}
		line := fmt.Sprintf("%-14s %s", label+":", value)
		if i == m.form.focus {
			line = titleStyle.Render(line)
		}
		if msg, ok := errs[keys[i]]; ok {
			line += "  " + errorStyle.Render(msg)
		}
		b.WriteString(line + "\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m appModel) doneView() string {
	var b strings.Builder
	b.WriteString(okStyle.Render(fmt.Sprintf("Reservation accepted for %d passenger(s)", len(m.result.Passengers))))
	b.WriteString("\n\n")
	for _, rec := range m.result.Passengers {
		fmt.Fprintf(&b, "  seat %d: %s %s\n", rec.Seat, rec.Name, rec.Surname)
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", formatPrice(m.result.TotalPrice, m.result.Currency))
	return b.String()
}

func hint(text string) string {
	return lipgloss.NewStyle().Faint(true).Render(text)
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

func formatFieldErrors(errs passenger.Errors) string {
	fields := make([]string, 0, len(errs))
	for _, key := range []string{"seat", "name", "surname", "phone", "email", "gender", "dateOfBirth"} {
		if msg, ok := errs[key]; ok {
			fields = append(fields, msg)
		}
	}
	return strings.Join(fields, "; ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
