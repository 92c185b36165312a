package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"bilheteria-cli/clock"
	"bilheteria-cli/model"
)

const (
	defaultRooms        = 5
	defaultInitialSeats = 50

	// DisplayDateLayout is the day-first form operators type and read.
	DisplayDateLayout = "02/01/2006"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomEmpty        = errors.New("room has no screening")
	ErrInvalidScreening = errors.New("invalid screening")
	ErrInvalidDate      = errors.New("invalid date")
	ErrNoIssuer         = errors.New("ticket issuer not configured")
)

// TicketIssuer signs one ticket for a room, taking one seat. Implemented by
// ticket.Issuer.
type TicketIssuer interface {
	Issue(room *model.Room) (model.Ticket, error)
}

// ScreeningInput is what an operator enters to schedule a film. The
// closing date is accepted as YYYY-MM-DD or DD/MM/YYYY.
type ScreeningInput struct {
	Title       string
	Genre       string
	MinimumAge  int
	ClosingDate string
}

// FilterOptions narrows the scheduled rooms. Empty fields match everything;
// date bounds are inclusive.
type FilterOptions struct {
	Title string
	From  string
	To    string
}

// BoxOffice owns the in-memory room collection. All methods are safe for
// concurrent use; the TUI calls them from background commands.
type BoxOffice struct {
	mu           sync.Mutex
	state        model.State
	rooms        int
	initialSeats int
	issuer       TicketIssuer
	clock        clock.Clock
	logger       *slog.Logger
}

type Option func(*BoxOffice)

func WithRooms(n int) Option {
	return func(b *BoxOffice) { b.rooms = n }
}

// WithInitialSeats sets the inventory of newly scheduled screenings.
func WithInitialSeats(n int) Option {
	return func(b *BoxOffice) { b.initialSeats = n }
}

func WithIssuer(issuer TicketIssuer) Option {
	return func(b *BoxOffice) { b.issuer = issuer }
}

func WithClock(clk clock.Clock) Option {
	return func(b *BoxOffice) { b.clock = clk }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *BoxOffice) { b.logger = logger }
}

// DefaultState returns n empty rooms numbered 1..n.
func DefaultState(n int) model.State {
	return model.NewState(n)
}

// NewBoxOffice wraps state. The box office keeps its own copy.
func NewBoxOffice(state model.State, opts ...Option) *BoxOffice {
	b := &BoxOffice{
		rooms:        defaultRooms,
		initialSeats: defaultInitialSeats,
		clock:        clock.Real(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b.state = state.Clone()
	return b
}

// Rooms returns a copy of every room in number order.
func (b *BoxOffice) Rooms() []model.Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Clone().Rooms
}

// Room returns a copy of one room.
func (b *BoxOffice) Room(number int) (model.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.state.Room(number)
	if room == nil {
		return model.Room{}, fmt.Errorf("%w: %d", ErrRoomNotFound, number)
	}
	return cloneRoom(*room), nil
}

// Schedule validates in and puts it in room number, replacing any screening
// already there.
func (b *BoxOffice) Schedule(number int, in ScreeningInput) (model.Screening, error) {
	screening, err := b.validate(in)
	if err != nil {
		return model.Screening{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.state.Room(number)
	if room == nil {
		return model.Screening{}, fmt.Errorf("%w: %d", ErrRoomNotFound, number)
	}
	if !room.Empty() {
		b.logger.Info("screening replaced", "room", number, "previous", room.Screening.Title)
	}
	room.Screening = &screening
	b.logger.Info("screening scheduled", "room", number, "title", screening.Title, "closing_date", screening.ClosingDate)
	return screening, nil
}

// Unschedule clears room number.
func (b *BoxOffice) Unschedule(number int) (model.Screening, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.state.Room(number)
	if room == nil {
		return model.Screening{}, fmt.Errorf("%w: %d", ErrRoomNotFound, number)
	}
	if room.Empty() {
		return model.Screening{}, fmt.Errorf("%w: %d", ErrRoomEmpty, number)
	}
	removed := *room.Screening
	room.Screening = nil
	b.logger.Info("screening removed", "room", number, "title", removed.Title)
	return removed, nil
}

// Filter returns the scheduled rooms matching opts.
func (b *BoxOffice) Filter(opts FilterOptions) ([]model.Room, error) {
	from, err := parseBound(opts.From)
	if err != nil {
		return nil, err
	}
	to, err := parseBound(opts.To)
	if err != nil {
		return nil, err
	}
	title := strings.ToLower(strings.TrimSpace(opts.Title))

	b.mu.Lock()
	defer b.mu.Unlock()

	var out []model.Room
	for _, room := range b.state.Rooms {
		if room.Empty() {
			continue
		}
		s := room.Screening
		if title != "" && !strings.Contains(strings.ToLower(s.Title), title) {
			continue
		}
		// ISO dates order lexically.
		if from != "" && s.ClosingDate < from {
			continue
		}
		if to != "" && s.ClosingDate > to {
			continue
		}
		out = append(out, cloneRoom(room))
	}
	return out, nil
}

// Reset discards every screening and restores the configured room count.
func (b *BoxOffice) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = DefaultState(b.rooms)
	b.logger.Info("rooms reset", "rooms", b.rooms)
}

// Issue sells one ticket for room number.
func (b *BoxOffice) Issue(number int) (model.Ticket, error) {
	if b.issuer == nil {
		return model.Ticket{}, ErrNoIssuer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.state.Room(number)
	if room == nil {
		return model.Ticket{}, fmt.Errorf("%w: %d", ErrRoomNotFound, number)
	}
	return b.issuer.Issue(room)
}

// ReturnSeat puts back one seat sold by Issue whose ticket never reached
// the operator, for example because the state could not be saved.
func (b *BoxOffice) ReturnSeat(number int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.state.Room(number)
	if room == nil {
		return fmt.Errorf("%w: %d", ErrRoomNotFound, number)
	}
	if room.Empty() {
		return fmt.Errorf("%w: %d", ErrRoomEmpty, number)
	}
	room.Screening.Seats++
	b.logger.Warn("seat returned", "room", number, "seats_left", room.Screening.Seats)
	return nil
}

// Snapshot returns a deep copy of the state for persistence.
func (b *BoxOffice) Snapshot() model.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Clone()
}

func (b *BoxOffice) validate(in ScreeningInput) (model.Screening, error) {
	title := strings.TrimSpace(in.Title)
	genre := strings.TrimSpace(in.Genre)
	switch {
	case title == "":
		return model.Screening{}, fmt.Errorf("%w: title is required", ErrInvalidScreening)
	case genre == "":
		return model.Screening{}, fmt.Errorf("%w: genre is required", ErrInvalidScreening)
	case !utf8.ValidString(title) || !utf8.ValidString(genre):
		return model.Screening{}, fmt.Errorf("%w: title and genre must be valid UTF-8", ErrInvalidScreening)
	case in.MinimumAge < 0:
		return model.Screening{}, fmt.Errorf("%w: minimum age must not be negative", ErrInvalidScreening)
	}

	now := b.clock.Now()
	closing, err := ParseDate(in.ClosingDate, now.Location())
	if err != nil {
		return model.Screening{}, err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !closing.After(today) {
		return model.Screening{}, fmt.Errorf("%w: closing date %s is not in the future", ErrInvalidScreening, closing.Format(DisplayDateLayout))
	}

	return model.Screening{
		Title:       title,
		Genre:       genre,
		MinimumAge:  in.MinimumAge,
		Seats:       b.initialSeats,
		ClosingDate: closing.Format(model.DateLayout),
	}, nil
}

// ParseDate accepts YYYY-MM-DD or DD/MM/YYYY.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{model.DateLayout, DisplayDateLayout} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q (use YYYY-MM-DD or DD/MM/YYYY)", ErrInvalidDate, s)
}

// FormatDate renders an ISO date as DD/MM/YYYY, or returns it unchanged if
// it does not parse.
func FormatDate(iso string) string {
	t, err := time.Parse(model.DateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format(DisplayDateLayout)
}

func parseBound(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	t, err := ParseDate(s, time.UTC)
	if err != nil {
		return "", err
	}
	return t.Format(model.DateLayout), nil
}

func cloneRoom(room model.Room) model.Room {
	out := model.Room{Number: room.Number}
	if room.Screening != nil {
		screening := *room.Screening
		out.Screening = &screening
	}
	return out
}
