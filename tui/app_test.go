package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"bilheteria-cli/clock"
	"bilheteria-cli/model"
	"bilheteria-cli/service"
	"bilheteria-cli/ticket"
)

var today = time.Date(2031, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeIssuer struct{}

func (fakeIssuer) Issue(room *model.Room) (model.Ticket, error) {
	if room.Empty() {
		return model.Ticket{}, ticket.ErrEmptyRoom
	}
	if room.Screening.Seats <= 0 {
		return model.Ticket{}, ticket.ErrSoldOut
	}
	room.Screening.Seats--
	return model.Ticket{ID: "abc", Room: room.Number, Film: room.Screening.Title, Signature: []byte{1}}, nil
}

type fakeVerifier struct {
	err   error
	calls int
}

func (v *fakeVerifier) VerifyBytes([]byte) (model.VerifiedTicket, error) {
	v.calls++
	if v.err != nil {
		return model.VerifiedTicket{}, v.err
	}
	return model.VerifiedTicket{Ticket: model.Ticket{ID: "abc", Room: 1, Film: "Nightfall", IssuedAt: "2031-05-10T12:00:00.000000+00:00"}}, nil
}

type harness struct {
	office   *service.BoxOffice
	saves    int
	saveErr  error
	written  []model.Ticket
	writeErr error
	verifier *fakeVerifier
}

func newHarness(t *testing.T) (*harness, appModel) {
	t.Helper()
	h := &harness{verifier: &fakeVerifier{}}
	h.office = service.NewBoxOffice(service.DefaultState(3),
		service.WithClock(clock.Fake(today)),
		service.WithInitialSeats(1),
		service.WithIssuer(fakeIssuer{}),
	)
	if _, err := h.office.Schedule(1, service.ScreeningInput{Title: "Nightfall", Genre: "Drama", ClosingDate: "2031-12-31"}); err != nil {
		t.Fatal(err)
	}
	deps := Deps{
		Office: h.office,
		Save: func(model.State) error {
			if h.saveErr != nil {
				return h.saveErr
			}
			h.saves++
			return nil
		},
		WriteTicket: func(tk model.Ticket) (string, error) {
			if h.writeErr != nil {
				return "", h.writeErr
			}
			h.written = append(h.written, tk)
			return "tickets/ticket_" + tk.ID + ".json", nil
		},
		Verifier: h.verifier,
	}
	next, _ := New(deps).Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h, next.(appModel)
}

// press feeds keys to m and runs every command it produces until the model
// settles. Form cursors are held steady so typing schedules no blink timers.
func press(t *testing.T, m appModel, keys ...tea.KeyMsg) appModel {
	t.Helper()
	for _, key := range keys {
		steadyCursors(&m)
		next, cmd := m.Update(key)
		m = drain(t, next.(appModel), cmd, 0)
	}
	return m
}

func steadyCursors(m *appModel) {
	for i := range m.form {
		m.form[i].Cursor.SetMode(cursor.CursorStatic)
	}
}

const maxDrainDepth = 32

func drain(t *testing.T, m appModel, cmd tea.Cmd, depth int) appModel {
	t.Helper()
	if cmd == nil {
		return m
	}
	if depth > maxDrainDepth {
		t.Fatalf("model did not settle after %d commands", maxDrainDepth)
	}
	msg := cmd()
	switch msg := msg.(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			m = drain(t, m, c, depth+1)
		}
		return m
	case spinner.TickMsg, cursor.BlinkMsg, tea.QuitMsg, nil:
		// timers and quit end the chain
		return m
	}
	steadyCursors(&m)
	next, follow := m.Update(msg)
	return drain(t, next.(appModel), follow, depth+1)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(s string) []tea.KeyMsg {
	var keys []tea.KeyMsg
	for _, r := range s {
		keys = append(keys, runes(string(r)))
	}
	return keys
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	down  = tea.KeyMsg{Type: tea.KeyDown}
)

func TestNew_ListsEveryRoom(t *testing.T) {
	_, m := newHarness(t)

	if got := len(m.roomList.Items()); got != 3 {
		t.Fatalf("expected 3 rooms, got %d", got)
	}
	first := m.roomList.Items()[0].(roomItem)
	if !strings.Contains(first.Title(), "Nightfall") {
		t.Fatalf("expected room 1 to show its film, got %q", first.Title())
	}
	if !strings.Contains(first.Description(), "31/12/2031") {
		t.Fatalf("expected day-first closing date, got %q", first.Description())
	}
	second := m.roomList.Items()[1].(roomItem)
	if second.Description() != "No film scheduled" {
		t.Fatalf("expected empty room, got %q", second.Description())
	}
}

func TestIssueKey_SellsAndPersists(t *testing.T) {
	h, m := newHarness(t)

	m = press(t, m, runes("i"))
	if m.state != stateRooms || m.failed {
		t.Fatalf("expected success status, got state %d status %q", m.state, m.status)
	}
	if len(h.written) != 1 || h.saves != 1 {
		t.Fatalf("expected one ticket written and one save, got %d and %d", len(h.written), h.saves)
	}
	if !strings.Contains(m.status, "ticket_abc.json") {
		t.Fatalf("expected ticket path in status, got %q", m.status)
	}

	m = press(t, m, runes("i"))
	if !m.failed || m.status != ticket.Message(ticket.ErrSoldOut) {
		t.Fatalf("expected sold out status, got %q", m.status)
	}
	if len(h.written) != 1 {
		t.Fatal("expected no ticket for a sold out room")
	}
}

func TestIssueKey_FailedSaveReturnsSeat(t *testing.T) {
	h, m := newHarness(t)
	h.saveErr = errors.New("disk full")

	m = press(t, m, runes("i"))
	if !m.failed || !strings.Contains(m.status, "disk full") {
		t.Fatalf("expected save error status, got %q", m.status)
	}
	if room, _ := h.office.Room(1); room.Screening.Seats != 1 {
		t.Fatalf("expected the seat back, got %d", room.Screening.Seats)
	}
	if len(h.written) != 0 {
		t.Fatal("expected no ticket file")
	}

	h.saveErr = nil
	m = press(t, m, runes("i"))
	if m.failed || len(h.written) != 1 {
		t.Fatalf("expected the seat to sell after recovery, got %q", m.status)
	}
}

func TestIssueKey_FailedWriteReturnsSeat(t *testing.T) {
	h, m := newHarness(t)
	h.writeErr = errors.New("read-only file system")

	m = press(t, m, runes("i"))
	if !m.failed || !strings.Contains(m.status, "read-only") {
		t.Fatalf("expected write error status, got %q", m.status)
	}
	if room, _ := h.office.Room(1); room.Screening.Seats != 1 {
		t.Fatalf("expected the seat back, got %d", room.Screening.Seats)
	}
	if h.saves != 2 {
		t.Fatalf("expected the returned seat to be saved, got %d saves", h.saves)
	}
}

func TestIssueKey_EmptyRoom(t *testing.T) {
	_, m := newHarness(t)
	m = press(t, m, down, runes("i"))
	if m.status != ticket.Message(ticket.ErrEmptyRoom) {
		t.Fatalf("expected empty room status, got %q", m.status)
	}
}

func TestScheduleForm(t *testing.T) {
	h, m := newHarness(t)

	m = press(t, m, down, runes("a"))
	if m.state != stateSchedule || m.formRoom != 2 {
		t.Fatalf("expected schedule form for room 2, got state %d room %d", m.state, m.formRoom)
	}

	m.form[fieldAge].SetValue("")
	keys := typeText("Daybreak")
	keys = append(keys, enter)
	keys = append(keys, typeText("Comedy")...)
	keys = append(keys, enter)
	keys = append(keys, typeText("12")...)
	keys = append(keys, enter)
	keys = append(keys, typeText("01/08/2031")...)
	keys = append(keys, enter)
	m = press(t, m, keys...)

	if m.state != stateRooms || m.failed {
		t.Fatalf("expected scheduled status, got %q", m.status)
	}
	room, err := h.office.Room(2)
	if err != nil {
		t.Fatal(err)
	}
	if room.Empty() || room.Screening.Title != "Daybreak" || room.Screening.MinimumAge != 12 || room.Screening.ClosingDate != "2031-08-01" {
		t.Fatalf("unexpected screening: %+v", room.Screening)
	}
	if h.saves != 1 {
		t.Fatalf("expected one save, got %d", h.saves)
	}
}

func TestScheduleForm_RejectsPastDate(t *testing.T) {
	h, m := newHarness(t)

	m = press(t, m, down, runes("a"))
	m.form[fieldTitle].SetValue("Daybreak")
	m.form[fieldGenre].SetValue("Comedy")
	m.form[fieldClosing].SetValue("01/01/2030")
	m.focusField(fieldClosing)
	m = press(t, m, enter)

	if !m.failed || !strings.Contains(m.status, "not in the future") {
		t.Fatalf("expected date error, got %q", m.status)
	}
	if h.saves != 0 {
		t.Fatal("expected nothing saved")
	}
}

func TestFormEscapeCancels(t *testing.T) {
	_, m := newHarness(t)
	m = press(t, m, runes("a"))
	m = press(t, m, typeText("q")...)
	if m.state != stateSchedule {
		t.Fatal("expected typed q to stay in the form")
	}
	m = press(t, m, esc)
	if m.state != stateRooms || m.form != nil {
		t.Fatalf("expected form to close, got state %d", m.state)
	}
}

func TestVerifyKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		err  error
		ok   bool
	}{
		{"valid", nil, true},
		{"redeemed", ticket.ErrAlreadyRedeemed, false},
		{"forged", ticket.ErrInvalidSignature, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, m := newHarness(t)
			h.verifier.err = tc.err

			keys := append([]tea.KeyMsg{runes("v")}, typeText(path)...)
			m = press(t, m, append(keys, enter)...)

			if m.state != stateResult {
				t.Fatalf("expected result view, got state %d", m.state)
			}
			if m.result.ok != tc.ok || m.result.verdict != ticket.Message(tc.err) {
				t.Fatalf("unexpected result: %+v", m.result)
			}
			if view := m.View(); !strings.Contains(view, ticket.Message(tc.err)) {
				t.Fatalf("expected verdict in view, got %q", view)
			}

			m = press(t, m, esc)
			if m.state != stateRooms {
				t.Fatalf("expected to return to rooms, got %d", m.state)
			}
		})
	}
}

func TestVerifyKey_MissingFile(t *testing.T) {
	h, m := newHarness(t)
	keys := append([]tea.KeyMsg{runes("v")}, typeText(filepath.Join(t.TempDir(), "absent.json"))...)
	m = press(t, m, append(keys, enter)...)

	if m.state != stateError {
		t.Fatalf("expected error view, got %d", m.state)
	}
	if h.verifier.calls != 0 {
		t.Fatal("expected verifier not to run")
	}
	m = press(t, m, esc)
	if m.state != stateRooms {
		t.Fatalf("expected rooms after error, got %d", m.state)
	}
}

func TestFilterForm(t *testing.T) {
	h, m := newHarness(t)
	if _, err := h.office.Schedule(3, service.ScreeningInput{Title: "Daybreak", Genre: "Drama", ClosingDate: "2031-06-01"}); err != nil {
		t.Fatal(err)
	}

	keys := append([]tea.KeyMsg{runes("/")}, typeText("NIGHT")...)
	m = press(t, m, append(keys, enter, enter, enter)...)

	if got := len(m.roomList.Items()); got != 1 {
		t.Fatalf("expected 1 matching room, got %d", got)
	}
	if !m.filtered() || !strings.Contains(m.headerView(), "Title: NIGHT") {
		t.Fatal("expected active filter in header")
	}

	m = press(t, m, esc)
	if m.filtered() || len(m.roomList.Items()) != 3 {
		t.Fatal("expected esc to clear the filter")
	}
}

func TestResetKey(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		h, m := newHarness(t)
		m = press(t, m, runes("R"), runes("n"))
		if room, _ := h.office.Room(1); room.Empty() {
			t.Fatal("expected screening to survive a cancelled reset")
		}
		if m.state != stateRooms {
			t.Fatalf("expected rooms view, got %d", m.state)
		}
	})

	t.Run("admin password", func(t *testing.T) {
		h, m := newHarness(t)
		m.deps.Admin = func(password string) error {
			if password != "admin123" {
				return errors.New("wrong administrator password")
			}
			return nil
		}

		keys := append([]tea.KeyMsg{runes("R"), runes("y")}, typeText("admin124")...)
		m = press(t, m, append(keys, enter)...)
		if !m.failed {
			t.Fatal("expected wrong password to be refused")
		}
		if room, _ := h.office.Room(1); room.Empty() {
			t.Fatal("expected rooms untouched after refused reset")
		}

		keys = append([]tea.KeyMsg{runes("R"), runes("y")}, typeText("admin123")...)
		m = press(t, m, append(keys, enter)...)
		if m.failed {
			t.Fatalf("expected reset to succeed, got %q", m.status)
		}
		for _, room := range h.office.Rooms() {
			if !room.Empty() {
				t.Fatalf("expected empty rooms, got %+v", room)
			}
		}
		if h.saves != 1 {
			t.Fatalf("expected one save, got %d", h.saves)
		}
	})
}

func TestUnscheduleKey(t *testing.T) {
	h, m := newHarness(t)
	m = press(t, m, runes("d"))
	if room, _ := h.office.Room(1); !room.Empty() {
		t.Fatal("expected room 1 to be cleared")
	}
	m = press(t, m, runes("d"))
	if !m.failed || !strings.Contains(m.status, "no screening") {
		t.Fatalf("expected empty room error, got %q", m.status)
	}
}

func TestQuitKey(t *testing.T) {
	_, m := newHarness(t)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}
