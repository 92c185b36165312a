package model

type State struct {
	Rooms []Room `json:"rooms"`
}

// NewState returns n empty rooms numbered from 1.
func NewState(n int) State {
	rooms := make([]Room, n)
	for i := range rooms {
		rooms[i] = Room{Number: i + 1}
	}
	return State{Rooms: rooms}
}

// Clone returns a deep copy; screenings are not shared with the receiver.
func (s State) Clone() State {
	rooms := make([]Room, len(s.Rooms))
	for i, room := range s.Rooms {
		rooms[i] = Room{Number: room.Number}
		if room.Screening != nil {
			screening := *room.Screening
			rooms[i].Screening = &screening
		}
	}
	return State{Rooms: rooms}
}

// Room returns a pointer into the collection, or nil if number is unknown.
func (s *State) Room(number int) *Room {
	for i := range s.Rooms {
		if s.Rooms[i].Number == number {
			return &s.Rooms[i]
		}
	}
	return nil
}
