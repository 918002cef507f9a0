package server

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"joker-briscola/internal/game"
	"joker-briscola/internal/protocol"
)

const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 4
	maxCodeAttempts = 10
)

// Seat is one occupied place at a room's table.
type Seat struct {
	ConnectionID string
	Name         string
	Index        int
	Connected    bool
	drops        int // Incremented on every transport loss, keys the grace expiry
}

// Room is a table of up to three seats and its latest authoritative snapshot.
type Room struct {
	Code      string
	Seats     []*Seat // Ordered by Index
	State     *game.MatchState
	CreatedAt time.Time
	host      int // Seat index of the host, -1 while nobody is connected
}

// HostSeat returns the host's seat index, or -1. The host only moves when it
// leaves or drops, so a returning seat never takes it back.
func (r *Room) HostSeat() int {
	return r.host
}

// passHost moves the host to the lowest connected seat other than the
// current one.
func (r *Room) passHost() {
	old := r.host
	r.host = -1
	for _, s := range r.Seats {
		if s.Connected && s.Index != old {
			r.host = s.Index
			return
		}
	}
}

// claimHost hands an unowned host role to a seat that just connected.
func (r *Room) claimHost(index int) {
	if r.host < 0 {
		r.host = index
	}
}

// IsHost reports whether connID holds the host seat.
func (r *Room) IsHost(connID string) bool {
	s := r.SeatOf(connID)
	return s != nil && s.Index == r.HostSeat()
}

func (r *Room) SeatOf(connID string) *Seat {
	for _, s := range r.Seats {
		if s.ConnectionID == connID {
			return s
		}
	}
	return nil
}

func (r *Room) seatAt(index int) *Seat {
	for _, s := range r.Seats {
		if s.Index == index {
			return s
		}
	}
	return nil
}

// InPlay reports whether a match is being played, which closes the room to joiners.
func (r *Room) InPlay() bool {
	return r.State != nil && r.State.Phase == game.PhasePlaying
}

// Players returns the roster as sent on the wire.
func (r *Room) Players() []protocol.PlayerInfo {
	players := make([]protocol.PlayerInfo, 0, len(r.Seats))
	for _, s := range r.Seats {
		players = append(players, protocol.PlayerInfo{
			ConnectionID: s.ConnectionID,
			Name:         s.Name,
			SeatIndex:    s.Index,
			Connected:    s.Connected,
		})
	}
	return players
}

func (r *Room) removeSeat(index int) {
	for i, s := range r.Seats {
		if s.Index == index {
			r.Seats = append(r.Seats[:i], r.Seats[i+1:]...)
			return
		}
	}
}

// NormalizeCode trims and upper-cases a room code typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RoomRegistry is the process-wide table of live rooms. The Hub owns it and
// is the only writer; the lock lets HTTP handlers read counts.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	rng   *rand.Rand
}

// NewRoomRegistry creates an empty registry. A nil rng uses a random seed.
func NewRoomRegistry(rng *rand.Rand) *RoomRegistry {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RoomRegistry{
		rooms: make(map[string]*Room),
		rng:   rng,
	}
}

func (g *RoomRegistry) generateCode() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		var sb strings.Builder
		for i := 0; i < codeLength; i++ {
			sb.WriteByte(codeAlphabet[g.rng.IntN(len(codeAlphabet))])
		}
		code := sb.String()
		if _, exists := g.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Create opens a room with the caller on seat 0.
func (g *RoomRegistry) Create(connID, name string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	code, err := g.generateCode()
	if err != nil {
		return nil, err
	}
	room := &Room{
		Code:      code,
		Seats:     []*Seat{{ConnectionID: connID, Name: name, Index: 0, Connected: true}},
		CreatedAt: time.Now(),
		host:      0,
	}
	g.rooms[code] = room
	return room, nil
}

func (g *RoomRegistry) Get(code string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[NormalizeCode(code)]
	return room, ok
}

// Join seats the caller at the lowest free index.
func (g *RoomRegistry) Join(code, connID, name string) (*Room, *Seat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[NormalizeCode(code)]
	switch {
	case !ok:
		return nil, nil, ErrRoomNotFound
	case len(room.Seats) >= game.NumSeats:
		return nil, nil, ErrRoomFull
	case room.InPlay():
		return nil, nil, ErrGameStarted
	}

	index := 0
	for room.seatAt(index) != nil {
		index++
	}
	seat := &Seat{ConnectionID: connID, Name: name, Index: index, Connected: true}
	room.Seats = append(room.Seats, seat)
	sort.Slice(room.Seats, func(i, j int) bool { return room.Seats[i].Index < room.Seats[j].Index })
	room.claimHost(index)
	return room, seat, nil
}

// Rejoin hands a disconnected seat back to a new connection of the same player.
func (g *RoomRegistry) Rejoin(code, connID, name string, index int) (*Room, *Seat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[NormalizeCode(code)]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	seat := room.seatAt(index)
	if seat == nil || seat.Connected || seat.Name != name {
		return nil, nil, ErrSeatUnavailable
	}
	seat.ConnectionID = connID
	seat.Connected = true
	room.claimHost(index)
	return room, seat, nil
}

// MarkDisconnected keeps connID's seat but flags it as waiting for a rejoin.
// It returns the seat index and the drop counter to key the grace expiry.
func (g *RoomRegistry) MarkDisconnected(code, connID string) (index, drops int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[code]
	if !ok {
		return -1, 0, ErrRoomNotFound
	}
	seat := room.SeatOf(connID)
	if seat == nil {
		return -1, 0, ErrNotInRoom
	}
	seat.Connected = false
	seat.drops++
	if seat.Index == room.host {
		room.passHost()
	}
	return seat.Index, seat.drops, nil
}

// Leave removes connID's seat. The room is deleted once no seat is left.
func (g *RoomRegistry) Leave(code, connID string) (room *Room, deleted bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[code]
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	seat := room.SeatOf(connID)
	if seat == nil {
		return room, false, ErrNotInRoom
	}
	return room, g.removeLocked(room, seat.Index), nil
}

// Expire removes a seat whose grace ran out, unless it was reclaimed or
// dropped again since drops was taken.
func (g *RoomRegistry) Expire(code string, index, drops int) (room *Room, removed, deleted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[code]
	if !ok {
		return nil, false, false
	}
	seat := room.seatAt(index)
	if seat == nil || seat.Connected || seat.drops != drops {
		return room, false, false
	}
	return room, true, g.removeLocked(room, index)
}

func (g *RoomRegistry) removeLocked(room *Room, index int) bool {
	room.removeSeat(index)
	if index == room.host {
		room.passHost()
	}
	if len(room.Seats) == 0 {
		delete(g.rooms, room.Code)
		return true
	}
	return false
}

func (g *RoomRegistry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

func (r *Room) String() string {
	return fmt.Sprintf("%s (%d seats, host %d)", r.Code, len(r.Seats), r.HostSeat())
}
