package tui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bilheteria-cli/model"
	"bilheteria-cli/service"
	"bilheteria-cli/ticket"
)

type appState int

const (
	stateRooms appState = iota
	stateSchedule
	stateFilter
	stateVerify
	stateConfirmReset
	stateAdminPassword
	stateWorking
	stateResult
	stateError
)

// TicketVerifier checks a ticket file's contents. Implemented by
// ticket.Verifier.
type TicketVerifier interface {
	VerifyBytes(data []byte) (model.VerifiedTicket, error)
}

// Deps are the box office collaborators the interface drives. Save and
// WriteTicket persist after every change; Admin is nil when no
// administrator password has been set.
type Deps struct {
	Office      *service.BoxOffice
	Save        func(model.State) error
	WriteTicket func(model.Ticket) (string, error)
	Verifier    TicketVerifier
	Admin       func(password string) error
}

type appModel struct {
	deps Deps

	state     appState
	lastState appState
	err       error

	width  int
	height int

	roomList list.Model
	filter   service.FilterOptions

	form      []textinput.Model
	formFocus int
	formRoom  int

	working string
	status  string
	failed  bool

	result resultView

	spinner spinner.Model
}

type resultView struct {
	verdict  string
	ok       bool
	verified model.VerifiedTicket
}

type errMsg struct {
	err error
}

type savedMsg struct {
	status string
	err    error
}

type issuedMsg struct {
	ticket model.Ticket
	path   string
	err    error
}

type verifiedMsg struct {
	verified model.VerifiedTicket
	err      error
}

type filteredMsg struct {
	rooms []model.Room
	opts  service.FilterOptions
	err   error
}

const (
	fieldTitle = iota
	fieldGenre
	fieldAge
	fieldClosing
)

func New(deps Deps) tea.Model {
	m := appModel{
		deps:  deps,
		state: stateRooms,
	}
	m.roomList = newList("Rooms")
	m.roomList.SetItems(buildRoomItems(deps.Office.Rooms()))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	m.spinner = sp

	return m
}

func (m appModel) Init() tea.Cmd {
	return nil
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		next, cmd, handled := m.handleKey(msg)
		if handled {
			return next, cmd
		}
		m = next
		// fallthrough to component update
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.isLoadingState() {
			return m, cmd
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		m.lastState = recoverStateFrom(m.state)
		m.state = stateError
		return m, nil

	case savedMsg:
		m.state = stateRooms
		m.refreshRooms()
		m.setStatus(msg.status, msg.err)
		return m, nil

	case issuedMsg:
		m.state = stateRooms
		m.refreshRooms()
		if msg.err != nil {
			m.setStatus("", msg.err)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Ticket %s for %s written to %s", msg.ticket.ID, msg.ticket.Film, msg.path), nil)
		return m, nil

	case verifiedMsg:
		m.result = resultView{
			verdict:  ticket.Message(msg.err),
			ok:       msg.err == nil,
			verified: msg.verified,
		}
		if msg.err != nil && !ticket.Known(msg.err) {
			m.result.verdict += "\n" + msg.err.Error()
		}
		m.state = stateResult
		return m, nil

	case filteredMsg:
		m.state = stateRooms
		if msg.err != nil {
			m.setStatus("", msg.err)
			return m, nil
		}
		m.filter = msg.opts
		m.roomList.SetItems(buildRoomItems(msg.rooms))
		m.roomList.Select(0)
		m.status = ""
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case stateRooms:
		m.roomList, cmd = m.roomList.Update(msg)
	case stateSchedule, stateFilter, stateVerify, stateAdminPassword:
		m.form[m.formFocus], cmd = m.form[m.formFocus].Update(msg)
	}
	return m, cmd
}

func (m appModel) View() string {
	header := m.headerView()
	switch m.state {
	case stateRooms:
		return header + "\n\n" + m.roomList.View() + m.statusView()
	case stateSchedule, stateFilter, stateVerify, stateAdminPassword:
		return header + "\n\n" + m.formView() + m.statusView()
	case stateConfirmReset:
		return header + "\n\n" + lipgloss.NewStyle().Bold(true).Render("Discard every screening in every room?") + "\n\n" + hint("y confirm • n/esc cancel")
	case stateWorking:
		return header + "\n\n" + m.loadingView()
	case stateResult:
		return header + "\n\n" + m.resultPanel()
	case stateError:
		return header + "\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error()) + "\n\n" + hint("Press esc to go back or ctrl+c to quit.")
	default:
		return header
	}
}

func (m appModel) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Render("Bilheteria")
	sub := []string{}
	if m.filter.Title != "" {
		sub = append(sub, fmt.Sprintf("Title: %s", m.filter.Title))
	}
	if m.filter.From != "" {
		sub = append(sub, fmt.Sprintf("From: %s", service.FormatDate(m.filter.From)))
	}
	if m.filter.To != "" {
		sub = append(sub, fmt.Sprintf("To: %s", service.FormatDate(m.filter.To)))
	}
	if m.state == stateSchedule {
		sub = append(sub, fmt.Sprintf("Room %d", m.formRoom))
	}
	meta := strings.Join(sub, " • ")
	if meta != "" {
		meta = "\n" + lipgloss.NewStyle().Faint(true).Render(meta)
	}

	hints := "q quit • a schedule • d unschedule • i issue • v verify • / filter • R reset"
	if m.filtered() {
		hints += " • esc clear filter"
	}
	switch m.state {
	case stateSchedule, stateFilter:
		hints = "ctrl+c quit • esc cancel • tab next field • enter confirm"
	case stateVerify, stateAdminPassword:
		hints = "ctrl+c quit • esc cancel • enter confirm"
	case stateResult:
		hints = "ctrl+c quit • esc/enter back"
	}
	return title + meta + "\n" + hint(hints)
}

func (m appModel) handleKey(msg tea.KeyMsg) (appModel, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit, true
	}

	switch m.state {
	case stateRooms:
		return m.handleRoomsKey(msg)
	case stateSchedule, stateFilter, stateVerify, stateAdminPassword:
		return m.handleFormKey(msg)
	case stateConfirmReset:
		switch msg.String() {
		case "y", "Y":
			if m.deps.Admin == nil {
				return m.startWork("Resetting rooms", m.resetCmd(""))
			}
			m.openForm(stateAdminPassword, passwordInput("Admin password"))
			return m, nil, true
		case "n", "N", "esc":
			m.state = stateRooms
			return m, nil, true
		}
		return m, nil, true
	case stateResult, stateError:
		switch msg.String() {
		case "esc", "enter", "q":
			m.goBack()
			return m, nil, true
		}
		return m, nil, true
	case stateWorking:
		return m, nil, true
	}
	return m, nil, false
}

func (m appModel) handleRoomsKey(msg tea.KeyMsg) (appModel, tea.Cmd, bool) {
	switch msg.String() {
	case "q":
		return m, tea.Quit, true
	case "esc":
		if m.filtered() {
			m.filter = service.FilterOptions{}
			m.refreshRooms()
		}
		return m, nil, true
	case "a":
		room, ok := m.selectedRoom()
		if !ok {
			return m, nil, true
		}
		m.formRoom = room.Number
		m.openForm(stateSchedule,
			textInput("Title", ""),
			textInput("Genre", ""),
			textInput("Minimum age", "0"),
			textInput("Closing date", "DD/MM/YYYY"),
		)
		m.form[fieldAge].SetValue("0")
		return m, nil, true
	case "d":
		room, ok := m.selectedRoom()
		if !ok {
			return m, nil, true
		}
		return m.startWork("Removing screening", m.unscheduleCmd(room.Number))
	case "i":
		room, ok := m.selectedRoom()
		if !ok {
			return m, nil, true
		}
		return m.startWork("Signing ticket", m.issueCmd(room.Number))
	case "v":
		m.openForm(stateVerify, textInput("Ticket file", "tickets/ticket_<id>.json"))
		return m, nil, true
	case "/":
		m.openForm(stateFilter,
			textInput("Title contains", ""),
			textInput("Closing from", "DD/MM/YYYY"),
			textInput("Closing to", "DD/MM/YYYY"),
		)
		m.form[0].SetValue(m.filter.Title)
		m.form[1].SetValue(m.filter.From)
		m.form[2].SetValue(m.filter.To)
		return m, nil, true
	case "R":
		m.state = stateConfirmReset
		return m, nil, true
	}
	return m, nil, false
}

func (m appModel) handleFormKey(msg tea.KeyMsg) (appModel, tea.Cmd, bool) {
	switch msg.String() {
	case "esc":
		m.state = stateRooms
		m.form = nil
		return m, nil, true
	case "tab", "down":
		m.focusField(m.formFocus + 1)
		return m, nil, true
	case "shift+tab", "up":
		m.focusField(m.formFocus - 1)
		return m, nil, true
	case "enter":
		if m.formFocus < len(m.form)-1 {
			m.focusField(m.formFocus + 1)
			return m, nil, true
		}
		return m.submitForm()
	}
	return m, nil, false
}

func (m appModel) submitForm() (appModel, tea.Cmd, bool) {
	value := func(i int) string { return strings.TrimSpace(m.form[i].Value()) }

	switch m.state {
	case stateSchedule:
		age := 0
		var err error
		if v := value(fieldAge); v != "" {
			age, err = strconv.Atoi(v)
		}
		if err != nil {
			m.setStatus("", errors.New("minimum age must be a number"))
			return m, nil, true
		}
		in := service.ScreeningInput{
			Title:       value(fieldTitle),
			Genre:       value(fieldGenre),
			MinimumAge:  age,
			ClosingDate: value(fieldClosing),
		}
		return m.startWork("Saving screening", m.scheduleCmd(m.formRoom, in))
	case stateFilter:
		opts := service.FilterOptions{Title: value(0), From: value(1), To: value(2)}
		return m.startWork("Filtering", m.filterCmd(opts))
	case stateVerify:
		path := value(0)
		if path == "" {
			return m, nil, true
		}
		return m.startWork("Verifying ticket", m.verifyCmd(path))
	case stateAdminPassword:
		return m.startWork("Resetting rooms", m.resetCmd(m.form[0].Value()))
	}
	return m, nil, true
}

func (m appModel) startWork(label string, cmd tea.Cmd) (appModel, tea.Cmd, bool) {
	m.working = label
	m.form = nil
	m.state = stateWorking
	return m, tea.Batch(cmd, m.spinner.Tick), true
}

func (m *appModel) openForm(state appState, inputs ...textinput.Model) {
	m.state = state
	m.form = inputs
	m.status = ""
	m.focusField(0)
}

func (m *appModel) focusField(i int) {
	if len(m.form) == 0 {
		return
	}
	if i < 0 {
		i = len(m.form) - 1
	}
	if i >= len(m.form) {
		i = 0
	}
	for j := range m.form {
		m.form[j].Blur()
	}
	m.formFocus = i
	m.form[i].Focus()
}

func (m *appModel) goBack() {
	switch m.state {
	case stateResult:
		m.state = stateRooms
		m.refreshRooms()
	case stateError:
		m.state = m.lastState
	}
}

func (m *appModel) setStatus(status string, err error) {
	if err != nil {
		m.status = describe(err)
		m.failed = true
		return
	}
	m.status = status
	m.failed = false
}

func (m appModel) filtered() bool {
	return m.filter != (service.FilterOptions{})
}

// refreshRooms reloads the list from the box office, keeping the filter
// and the cursor.
func (m *appModel) refreshRooms() {
	rooms := m.deps.Office.Rooms()
	if m.filtered() {
		if matched, err := m.deps.Office.Filter(m.filter); err == nil {
			rooms = matched
		}
	}
	index := m.roomList.Index()
	m.roomList.SetItems(buildRoomItems(rooms))
	if index < len(rooms) {
		m.roomList.Select(index)
	}
}

func (m appModel) selectedRoom() (model.Room, bool) {
	item, ok := m.roomList.SelectedItem().(roomItem)
	if !ok {
		return model.Room{}, false
	}
	return item.room, true
}

func (m appModel) isLoadingState() bool {
	return m.state == stateWorking
}

func (m appModel) loadingView() string {
	return fmt.Sprintf("%s %s\n\n%s", m.spinner.View(), m.working, hint("Working..."))
}

func (m appModel) formView() string {
	titles := map[appState]string{
		stateSchedule:      "Schedule a film",
		stateFilter:        "Filter screenings",
		stateVerify:        "Verify a ticket",
		stateAdminPassword: "Administrator password required",
	}
	lines := []string{lipgloss.NewStyle().Bold(true).Render(titles[m.state]), ""}
	for _, input := range m.form {
		lines = append(lines, input.View())
	}
	return strings.Join(lines, "\n")
}

func (m appModel) statusView() string {
	if m.status == "" {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	if m.failed {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	}
	return "\n\n" + style.Render(m.status)
}

func (m appModel) resultPanel() string {
	color := lipgloss.Color("2")
	if !m.result.ok {
		color = lipgloss.Color("203")
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(color).Render(m.result.verdict),
	}
	if m.result.ok {
		t := m.result.verified
		issued := t.IssuedAt
		if at, err := t.Issued(); err == nil {
			issued = at.Format("02/01/2006 15:04 UTC")
		}
		lines = append(lines,
			"",
			fmt.Sprintf("Ticket  %s", t.ID),
			fmt.Sprintf("Room    %d", t.Room),
			fmt.Sprintf("Film    %s", t.Film),
			fmt.Sprintf("Issued  %s", issued),
		)
		if t.RecordWarning != nil {
			lines = append(lines, "", lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Render(
				"Warning: the redemption was not recorded; this ticket may be accepted again."))
		}
	}
	lines = append(lines, "", hint("esc back • ctrl+c quit"))

	panelStyle := lipgloss.NewStyle().
		Padding(1, 3).
		Border(lipgloss.NormalBorder()).
		BorderForeground(color).
		MarginTop(1)
	if m.width > 56 {
		panelStyle = panelStyle.Width(min(m.width-8, 84))
	}
	panel := panelStyle.Render(strings.Join(lines, "\n"))
	if m.width > 0 {
		panel = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, panel)
	}
	return panel
}

func (m *appModel) resizeLists() {
	if m.width == 0 || m.height == 0 {
		return
	}
	h := m.height - 6
	if h < 6 {
		h = 6
	}
	m.roomList.SetSize(m.width, h)
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	return l
}

func textInput(label, placeholder string) textinput.Model {
	input := textinput.New()
	input.Prompt = label + ": "
	input.Placeholder = placeholder
	return input
}

func passwordInput(label string) textinput.Model {
	input := textInput(label, "")
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '*'
	return input
}

func hint(text string) string {
	return lipgloss.NewStyle().Faint(true).Render(text)
}

func recoverStateFrom(state appState) appState {
	switch state {
	case stateWorking, stateError:
		return stateRooms
	default:
		return state
	}
}

// describe renders err for the status line.
func describe(err error) string {
	if ticket.Known(err) {
		return ticket.Message(err)
	}
	return err.Error()
}

type roomItem struct {
	room model.Room
}

func (r roomItem) Title() string {
	if r.room.Empty() {
		return fmt.Sprintf("Room %d", r.room.Number)
	}
	return fmt.Sprintf("Room %d • %s", r.room.Number, r.room.Screening.Title)
}

func (r roomItem) Description() string {
	if r.room.Empty() {
		return "No film scheduled"
	}
	s := r.room.Screening
	seats := fmt.Sprintf("%d seats", s.Seats)
	if s.Seats == 0 {
		seats = "sold out"
	}
	return strings.Join([]string{
		s.Genre,
		fmt.Sprintf("%d+", s.MinimumAge),
		seats,
		"until " + service.FormatDate(s.ClosingDate),
	}, " • ")
}

func (r roomItem) FilterValue() string {
	if r.room.Empty() {
		return ""
	}
	return r.room.Screening.Title
}

func buildRoomItems(rooms []model.Room) []list.Item {
	items := make([]list.Item, len(rooms))
	for i, room := range rooms {
		items[i] = roomItem{room: room}
	}
	return items
}

// The commands below run off the input loop: key derivation, signing and
// bcrypt all take long enough to freeze the screen.

func (m appModel) save() error {
	if m.deps.Save == nil {
		return nil
	}
	return m.deps.Save(m.deps.Office.Snapshot())
}

func (m appModel) scheduleCmd(room int, in service.ScreeningInput) tea.Cmd {
	return func() tea.Msg {
		screening, err := m.deps.Office.Schedule(room, in)
		if err != nil {
			return savedMsg{err: err}
		}
		if err := m.save(); err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{status: fmt.Sprintf("Scheduled %s in room %d until %s", screening.Title, room, service.FormatDate(screening.ClosingDate))}
	}
}

func (m appModel) unscheduleCmd(room int) tea.Cmd {
	return func() tea.Msg {
		removed, err := m.deps.Office.Unschedule(room)
		if err != nil {
			return savedMsg{err: err}
		}
		if err := m.save(); err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{status: fmt.Sprintf("Removed %s from room %d", removed.Title, room)}
	}
}

func (m appModel) issueCmd(room int) tea.Cmd {
	return func() tea.Msg {
		issued, err := m.deps.Office.Issue(room)
		if err != nil {
			return issuedMsg{err: err}
		}
		if err := m.save(); err != nil {
			m.returnSeat(room)
			return issuedMsg{err: fmt.Errorf("saving state, ticket %s discarded: %w", issued.ID, err)}
		}
		path, err := m.deps.WriteTicket(issued)
		if err != nil {
			err = fmt.Errorf("writing ticket %s: %w", issued.ID, err)
			m.returnSeat(room)
			if saveErr := m.save(); saveErr != nil {
				err = errors.Join(err, saveErr)
			}
			return issuedMsg{err: err}
		}
		return issuedMsg{ticket: issued, path: path}
	}
}

// returnSeat undoes an Issue whose ticket was not delivered. The room was
// just sold from, so it cannot be missing or empty.
func (m appModel) returnSeat(room int) {
	_ = m.deps.Office.ReturnSeat(room)
}

func (m appModel) verifyCmd(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return errMsg{err: err}
		}
		verified, err := m.deps.Verifier.VerifyBytes(data)
		return verifiedMsg{verified: verified, err: err}
	}
}

func (m appModel) filterCmd(opts service.FilterOptions) tea.Cmd {
	return func() tea.Msg {
		rooms, err := m.deps.Office.Filter(opts)
		return filteredMsg{rooms: rooms, opts: opts, err: err}
	}
}

func (m appModel) resetCmd(password string) tea.Cmd {
	return func() tea.Msg {
		if m.deps.Admin != nil {
			if err := m.deps.Admin(password); err != nil {
				return savedMsg{err: err}
			}
		}
		m.deps.Office.Reset()
		if err := m.save(); err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{status: "All rooms are empty"}
	}
}
