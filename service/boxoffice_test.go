package service

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"bilheteria-cli/clock"
	"bilheteria-cli/ticket"
)

var today = time.Date(2031, 5, 10, 15, 30, 0, 0, time.UTC)

func newTestBoxOffice(opts ...Option) *BoxOffice {
	opts = append([]Option{WithClock(clock.Fake(today))}, opts...)
	return NewBoxOffice(DefaultState(5), opts...)
}

func nightfall(closing string) ScreeningInput {
	return ScreeningInput{Title: "Nightfall", Genre: "Drama", MinimumAge: 14, ClosingDate: closing}
}

type keyOnly struct{ key *rsa.PrivateKey }

func (k keyOnly) LoadPrivate(string) (*rsa.PrivateKey, error) { return k.key, nil }

func TestDefaultState(t *testing.T) {
	state := DefaultState(5)
	if len(state.Rooms) != 5 {
		t.Fatalf("expected 5 rooms, got %d", len(state.Rooms))
	}
	for i, room := range state.Rooms {
		if room.Number != i+1 || !room.Empty() {
			t.Fatalf("unexpected room %d: %+v", i, room)
		}
	}
}

func TestSchedule_AcceptsBothDateForms(t *testing.T) {
	office := newTestBoxOffice(WithInitialSeats(50))

	for room, date := range map[int]string{1: "2031-12-31", 2: "31/12/2031"} {
		screening, err := office.Schedule(room, nightfall(date))
		if err != nil {
			t.Fatalf("room %d: expected nil error, got %v", room, err)
		}
		if screening.ClosingDate != "2031-12-31" {
			t.Fatalf("expected ISO closing date, got %q", screening.ClosingDate)
		}
		if screening.Seats != 50 {
			t.Fatalf("expected 50 seats, got %d", screening.Seats)
		}
	}

	room, err := office.Room(2)
	if err != nil {
		t.Fatal(err)
	}
	if room.Empty() || room.Screening.Title != "Nightfall" {
		t.Fatalf("expected screening in room 2, got %+v", room)
	}
}

func TestSchedule_Validation(t *testing.T) {
	office := newTestBoxOffice()

	cases := []struct {
		name string
		in   ScreeningInput
		want error
	}{
		{"blank title", ScreeningInput{Title: "  ", Genre: "Drama", ClosingDate: "2031-12-31"}, ErrInvalidScreening},
		{"blank genre", ScreeningInput{Title: "X", ClosingDate: "2031-12-31"}, ErrInvalidScreening},
		{"negative age", ScreeningInput{Title: "X", Genre: "Y", MinimumAge: -1, ClosingDate: "2031-12-31"}, ErrInvalidScreening},
		{"invalid utf-8 title", ScreeningInput{Title: "Caf\xe9", Genre: "Drama", ClosingDate: "2031-12-31"}, ErrInvalidScreening},
		{"invalid utf-8 genre", ScreeningInput{Title: "X", Genre: "Dr\xffma", ClosingDate: "2031-12-31"}, ErrInvalidScreening},
		{"today", nightfall("2031-05-10"), ErrInvalidScreening},
		{"yesterday", nightfall("09/05/2031"), ErrInvalidScreening},
		{"bad date", nightfall("2031-13-01"), ErrInvalidDate},
		{"us date", nightfall("12/31/2031"), ErrInvalidDate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := office.Schedule(1, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := office.Schedule(9, nightfall("2031-12-31")); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := office.Schedule(1, nightfall("2031-05-11")); err != nil {
		t.Fatalf("expected tomorrow to be accepted, got %v", err)
	}
}

func TestUnschedule(t *testing.T) {
	office := newTestBoxOffice()
	if _, err := office.Unschedule(1); !errors.Is(err, ErrRoomEmpty) {
		t.Fatalf("expected ErrRoomEmpty, got %v", err)
	}
	if _, err := office.Schedule(1, nightfall("2031-12-31")); err != nil {
		t.Fatal(err)
	}
	removed, err := office.Unschedule(1)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if removed.Title != "Nightfall" {
		t.Fatalf("expected removed screening, got %+v", removed)
	}
	if room, _ := office.Room(1); !room.Empty() {
		t.Fatal("expected room 1 to be empty")
	}
	if _, err := office.Unschedule(0); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestReturnSeat(t *testing.T) {
	office := newTestBoxOffice(WithInitialSeats(3))
	if err := office.ReturnSeat(1); !errors.Is(err, ErrRoomEmpty) {
		t.Fatalf("expected ErrRoomEmpty, got %v", err)
	}
	if err := office.ReturnSeat(42); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := office.Schedule(1, nightfall("2031-12-31")); err != nil {
		t.Fatal(err)
	}
	if err := office.ReturnSeat(1); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if room, _ := office.Room(1); room.Screening.Seats != 4 {
		t.Fatalf("expected 4 seats, got %d", room.Screening.Seats)
	}
}

func TestFilter(t *testing.T) {
	office := newTestBoxOffice()
	schedule := []struct {
		room  int
		title string
		date  string
	}{
		{1, "Nightfall", "2031-06-01"},
		{2, "Night Shift", "2031-07-15"},
		{3, "Daybreak", "2031-08-30"},
	}
	for _, s := range schedule {
		if _, err := office.Schedule(s.room, ScreeningInput{Title: s.title, Genre: "Drama", ClosingDate: s.date}); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name string
		opts FilterOptions
		want []int
	}{
		{"everything", FilterOptions{}, []int{1, 2, 3}},
		{"partial title any case", FilterOptions{Title: "NIGHT"}, []int{1, 2}},
		{"inclusive from", FilterOptions{From: "2031-07-15"}, []int{2, 3}},
		{"inclusive to", FilterOptions{To: "15/07/2031"}, []int{1, 2}},
		{"window", FilterOptions{Title: "night", From: "2031-06-02", To: "2031-12-31"}, []int{2}},
		{"no match", FilterOptions{Title: "zzz"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rooms, err := office.Filter(tc.opts)
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			var got []int
			for _, r := range rooms {
				got = append(got, r.Number)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected rooms %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected rooms %v, got %v", tc.want, got)
				}
			}
		})
	}

	if _, err := office.Filter(FilterOptions{From: "june"}); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestReset(t *testing.T) {
	office := newTestBoxOffice(WithRooms(3))
	if _, err := office.Schedule(1, nightfall("2031-12-31")); err != nil {
		t.Fatal(err)
	}
	office.Reset()

	rooms := office.Rooms()
	if len(rooms) != 3 {
		t.Fatalf("expected 3 rooms after reset, got %d", len(rooms))
	}
	for _, room := range rooms {
		if !room.Empty() {
			t.Fatalf("expected empty rooms, got %+v", room)
		}
	}
}

func TestReadsReturnCopies(t *testing.T) {
	office := newTestBoxOffice()
	if _, err := office.Schedule(1, nightfall("2031-12-31")); err != nil {
		t.Fatal(err)
	}

	rooms := office.Rooms()
	rooms[0].Screening.Seats = 0
	snapshot := office.Snapshot()
	snapshot.Rooms[0].Screening.Title = "changed"

	room, _ := office.Room(1)
	if room.Screening.Seats != defaultInitialSeats || room.Screening.Title != "Nightfall" {
		t.Fatalf("expected internal state untouched, got %+v", room.Screening)
	}
}

func TestIssue(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	issuer := ticket.NewIssuer(keyOnly{key}, "pw", clock.Fake(today), nil)
	office := newTestBoxOffice(WithIssuer(issuer), WithInitialSeats(2))

	if _, err := office.Issue(1); !errors.Is(err, ticket.ErrEmptyRoom) {
		t.Fatalf("expected ErrEmptyRoom, got %v", err)
	}
	if _, err := office.Issue(42); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := office.Schedule(1, nightfall("2031-12-31")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := office.Issue(1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var sold, soldOut int
	for err := range results {
		switch {
		case err == nil:
			sold++
		case errors.Is(err, ticket.ErrSoldOut):
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if sold != 2 || soldOut != 3 {
		t.Fatalf("expected 2 sold and 3 sold out, got %d and %d", sold, soldOut)
	}
	if room, _ := office.Room(1); room.Screening.Seats != 0 {
		t.Fatalf("expected 0 seats, got %d", room.Screening.Seats)
	}
}

func TestIssue_WithoutIssuer(t *testing.T) {
	if _, err := newTestBoxOffice().Issue(1); !errors.Is(err, ErrNoIssuer) {
		t.Fatalf("expected ErrNoIssuer, got %v", err)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate("2031-12-31"); got != "31/12/2031" {
		t.Fatalf("expected 31/12/2031, got %q", got)
	}
	if got := FormatDate("soon"); got != "soon" {
		t.Fatalf("expected input back, got %q", got)
	}
}

var _ TicketIssuer = (*ticket.Issuer)(nil)
