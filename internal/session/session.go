package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"joker-briscola/internal/ai"
	"joker-briscola/internal/game"
	"joker-briscola/internal/protocol"
	"joker-briscola/internal/shared"
)

type Mode int

const (
	Offline Mode = iota // Local match against two AI seats
	Online              // Seat in a relay room
)

const (
	DefaultAIDelay      = 800 * time.Millisecond
	DefaultCollectDelay = 3 * time.Second
)

var ErrNoSender = errors.New("session: online mode needs a sender")

type NoticeKind string

const (
	NoticeReveal NoticeKind = "reveal"
	NoticeTrick  NoticeKind = "trick"
	NoticeMatch  NoticeKind = "match"
	NoticeError  NoticeKind = "error"
)

// Notice is a one-shot message for the player.
type Notice struct {
	Kind NoticeKind
	Text string
}

// Sender delivers messages to the relay server.
type Sender interface {
	Send(msgType string, payload any) error
}

type Options struct {
	Mode         Mode
	Name         string
	Difficulty   game.Difficulty
	AIDelay      time.Duration
	CollectDelay time.Duration
	Clock        Clock
	Sender       Sender // Required online
	Rand         *rand.Rand
	Logger       *zap.Logger
	OnState      func(*game.MatchState) // Called on the loop goroutine after every state change
	OnNotice     func(Notice)
}

// Room is the participant's view of its relay room.
type Room struct {
	Code     string
	Seat     int
	HostSeat int
	Players  []protocol.PlayerInfo
}

// Session owns one participant's copy of the match. All work runs on the
// Run goroutine: transport messages, local input and timer firings are posted
// to it and handled one at a time.
//
// Every state change bumps a generation counter. Delayed work (AI moves,
// trick collection) is scheduled against the generation current at the time
// and does nothing if the state has moved on when it fires.
type Session struct {
	opts   Options
	clock  Clock
	rng    *rand.Rand
	logger *zap.Logger

	events chan func()
	done   chan struct{}

	state  *game.MatchState
	gen    uint64
	timer  Timer
	room   Room
	inRoom bool

	current  atomic.Pointer[game.MatchState]
	roomView atomic.Pointer[Room]
}

func New(opts Options) (*Session, error) {
	if opts.Mode == Online && opts.Sender == nil {
		return nil, ErrNoSender
	}
	if opts.Name == "" {
		opts.Name = game.DefaultNames[0]
	}
	if opts.Difficulty == "" {
		opts.Difficulty = game.DifficultyBase
	}
	if opts.AIDelay <= 0 {
		opts.AIDelay = DefaultAIDelay
	}
	if opts.CollectDelay <= 0 {
		opts.CollectDelay = DefaultCollectDelay
	}
	s := &Session{
		opts:   opts,
		clock:  opts.Clock,
		rng:    opts.Rand,
		logger: opts.Logger,
		events: make(chan func(), 64),
		done:   make(chan struct{}),
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("component", "session"))
	s.roomView.Store(&Room{Seat: 0, HostSeat: -1})
	return s, nil
}

// Run processes events until ctx is done.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.stopTimer()
			return
		case fn := <-s.events:
			fn()
		}
	}
}

func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// State returns a copy of the current match, nil before the first deal.
func (s *Session) State() *game.MatchState {
	return s.current.Load().Clone()
}

// Room returns the current room view.
func (s *Session) Room() Room {
	return *s.roomView.Load()
}

// Deliver hands a message from the relay server to the session.
func (s *Session) Deliver(msg protocol.Message) {
	s.post(func() { s.handleMessage(msg) })
}

// ApplySnapshot replaces the local match with an authoritative snapshot.
func (s *Session) ApplySnapshot(state *game.MatchState) {
	s.post(func() { s.applySnapshot(state) })
}

// PredictRemotePlay applies another human's move locally before the host
// confirms it. The next snapshot replaces the result whatever it was.
func (s *Session) PredictRemotePlay(card shared.Card, seat int) {
	s.post(func() { s.predictRemotePlay(card, seat) })
}

// PlayLocal plays card from the local seat.
func (s *Session) PlayLocal(card shared.Card) {
	s.post(func() { s.playLocal(card) })
}

// Collect finalizes a pending trick. Offline only; online the host collects
// on a timer.
func (s *Session) Collect() {
	s.post(s.collectLocal)
}

// StartMatch deals the first match of a tournament.
func (s *Session) StartMatch() {
	s.post(func() { s.deal(nil, false) })
}

// NextMatch deals the next match, carrying the tournament scores.
func (s *Session) NextMatch() {
	s.post(func() { s.nextMatch(false) })
}

// NewTournament deals a new match with every score reset.
func (s *Session) NewTournament() {
	s.post(func() { s.nextMatch(true) })
}

func (s *Session) CreateRoom(name string) {
	s.post(func() {
		s.opts.Name = name
		s.send(protocol.TypeCreateRoom, protocol.CreateRoomPayload{Name: name})
	})
}

func (s *Session) JoinRoom(code, name string) {
	s.post(func() {
		s.opts.Name = name
		s.send(protocol.TypeJoinRoom, protocol.JoinRoomPayload{Code: code, Name: name})
	})
}

// Reconnected returns the rejoin_room message that reclaims the seat held
// since the transport dropped, or nil outside a room. The client writes it
// ahead of anything queued.
func (s *Session) Reconnected() []byte {
	room := s.Room()
	if s.opts.Mode != Online || room.Code == "" {
		return nil
	}
	raw, err := protocol.NewMessage(protocol.TypeRejoinRoom, protocol.RejoinRoomPayload{
		Code:      room.Code,
		Name:      s.opts.Name,
		SeatIndex: room.Seat,
	})
	if err != nil {
		s.logger.Error("failed to build rejoin_room", zap.Error(err))
		return nil
	}
	return raw
}

// Leave quits the room, or the offline match, and drops the local state.
func (s *Session) Leave() {
	s.post(func() {
		if s.opts.Mode == Online && s.inRoom {
			s.send(protocol.TypeDisconnectGame, nil)
		}
		s.inRoom = false
		s.setRoom(Room{HostSeat: -1})
		s.setState(nil)
	})
}

func (s *Session) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeRoomCreated:
		var p protocol.RoomCreatedPayload
		if s.decode(msg, &p) {
			s.inRoom = true
			s.setRoom(Room{Code: p.Code, Seat: p.SeatIndex, HostSeat: p.SeatIndex})
			s.reschedule()
		}
	case protocol.TypeRoomJoined:
		var p protocol.RoomJoinedPayload
		if !s.decode(msg, &p) {
			return
		}
		s.inRoom = true
		s.setRoom(Room{Code: p.Code, Seat: p.SeatIndex, HostSeat: p.HostSeat, Players: p.Players})
		if p.MatchState != nil {
			s.applySnapshot(p.MatchState)
			return
		}
		s.reschedule()
	case protocol.TypeUpdatePlayers:
		var p protocol.UpdatePlayersPayload
		if s.decode(msg, &p) {
			room := s.room
			returned := seatReturned(room.Players, p.Players)
			room.Players = p.Players
			room.HostSeat = p.HostSeat
			s.setRoom(room)
			if returned && s.authority() && s.state != nil && !s.state.IsTerminal() {
				// The relay's copy misses the human moves since the last snapshot.
				s.send(protocol.TypeUpdateGameState, protocol.UpdateGameStatePayload{Code: s.room.Code, MatchState: s.state})
			}
			s.reschedule()
		}
	case protocol.TypeErrorMessage:
		var p protocol.ErrorMessagePayload
		if s.decode(msg, &p) {
			s.notify(NoticeError, p.Text)
		}
	case protocol.TypeGameStarted:
		var p protocol.GameStartedPayload
		if s.decode(msg, &p) {
			s.applySnapshot(p.InitialMatchState)
		}
	case protocol.TypeRemotePlay:
		var p protocol.RemotePlayPayload
		if s.decode(msg, &p) {
			s.predictRemotePlay(p.Card, p.SeatID)
		}
	case protocol.TypeAIRemotePlay, protocol.TypeSyncGameState:
		if s.authority() {
			// The host's own snapshot coming back; its live state is newer.
			s.logger.Debug("own snapshot echo ignored", zap.String("type", msg.Type))
			return
		}
		var p protocol.SyncGameStatePayload
		if s.decode(msg, &p) {
			s.applySnapshot(p.MatchState)
		}
	case protocol.TypePong:
	default:
		s.logger.Debug("unhandled message", zap.String("type", msg.Type))
	}
}

func (s *Session) decode(msg protocol.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		s.logger.Warn("bad payload", zap.String("type", msg.Type), zap.Error(err))
		return false
	}
	return true
}

func (s *Session) applySnapshot(next *game.MatchState) {
	if next == nil {
		return
	}
	s.setState(next.Clone())
}

func (s *Session) predictRemotePlay(card shared.Card, seat int) {
	if s.state == nil || seat == s.localSeat() {
		return
	}
	next, _, err := game.PlayCard(s.state, card, seat)
	if err != nil {
		s.logger.Debug("remote play not applied", zap.Int("seat", seat), zap.String("card", card.ID), zap.Error(err))
		return
	}
	s.setState(next)
}

func (s *Session) playLocal(card shared.Card) {
	if s.state == nil {
		return
	}
	seat := s.localSeat()
	next, _, err := game.PlayCard(s.state, card, seat)
	if err != nil {
		s.logger.Debug("local play rejected", zap.Int("seat", seat), zap.String("card", card.ID), zap.Error(err))
		return
	}
	s.setState(next)
	if s.opts.Mode == Online {
		s.send(protocol.TypePlayCard, protocol.PlayCardPayload{Code: s.room.Code, Card: card, SeatID: seat})
	}
}

func (s *Session) collectLocal() {
	if s.opts.Mode != Offline {
		return
	}
	if winner, ok := game.PendingWinner(s.state); ok {
		s.collect(winner)
	}
}

func (s *Session) nextMatch(reset bool) {
	if s.state == nil || !s.state.IsTerminal() {
		return
	}
	s.deal(s.state, reset)
}

// deal starts a match. Online only the host deals and the state arrives back
// with game_started.
func (s *Session) deal(prev *game.MatchState, reset bool) {
	if s.opts.Mode == Online && !s.authority() {
		s.notify(NoticeError, "Only the host can start the match.")
		return
	}
	next, err := game.DealMatch(game.DealOptions{
		Difficulty:      s.opts.Difficulty,
		Names:           s.seatNames(),
		Previous:        prev,
		ResetTournament: reset,
		Rand:            s.rng,
	})
	if err != nil {
		s.logger.Info("deal refused", zap.Error(err))
		s.notify(NoticeError, err.Error())
		return
	}
	if s.opts.Mode == Online {
		s.send(protocol.TypeStartGame, protocol.StartGamePayload{Code: s.room.Code, InitialMatchState: next})
		return
	}
	s.setState(next)
}

// seatNames names every seat: humans by their room name, the rest as CPU seats.
func (s *Session) seatNames() [game.NumSeats]string {
	var names [game.NumSeats]string
	if s.opts.Mode == Offline {
		names = game.DefaultNames
		names[0] = s.opts.Name
		return names
	}
	for seat := range names {
		names[seat] = fmt.Sprintf("CPU %d", seat)
	}
	for _, p := range s.room.Players {
		if p.SeatIndex >= 0 && p.SeatIndex < game.NumSeats {
			names[p.SeatIndex] = p.Name
		}
	}
	return names
}

func (s *Session) localSeat() int {
	if s.opts.Mode == Offline {
		return 0
	}
	return s.room.Seat
}

// authority reports whether this participant writes the match: always
// offline, only as host online.
func (s *Session) authority() bool {
	if s.opts.Mode == Offline {
		return true
	}
	return s.inRoom && s.room.Seat == s.room.HostSeat
}

// aiSeat reports whether the AI moves for seat, recomputed on every turn.
func (s *Session) aiSeat(seat int) bool {
	if s.opts.Mode == Offline {
		return seat != 0
	}
	for _, p := range s.room.Players {
		if p.SeatIndex == seat && p.Connected {
			return false
		}
	}
	return true
}

func (s *Session) setState(next *game.MatchState) {
	prev := s.state
	s.state = next
	s.current.Store(next)
	s.reschedule()

	if s.opts.OnState != nil {
		s.opts.OnState(next)
	}
	s.announce(prev, next)
}

// reschedule starts a new generation: pending delayed work is cancelled and
// the work the current state calls for is scheduled again.
func (s *Session) reschedule() {
	s.gen++
	s.stopTimer()

	if s.state == nil || s.state.IsTerminal() || !s.authority() {
		return
	}
	if winner, ok := game.PendingWinner(s.state); ok {
		if s.opts.Mode == Online {
			s.after(s.opts.CollectDelay, func() { s.collect(winner) })
		}
		return
	}
	if s.aiSeat(s.state.TurnIndex) {
		s.after(s.opts.AIDelay, s.playAI)
	}
}

func (s *Session) after(d time.Duration, fn func()) {
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() {
		s.post(func() {
			if gen != s.gen {
				return
			}
			s.timer = nil
			fn()
		})
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) playAI() {
	seat := s.state.TurnIndex
	card, err := ai.ChooseCard(s.state, seat)
	if err != nil {
		s.logger.Error("ai could not choose", zap.Int("seat", seat), zap.Error(err))
		return
	}
	next, _, err := game.PlayCard(s.state, card, seat)
	if err != nil {
		s.logger.Error("ai move rejected", zap.Int("seat", seat), zap.String("card", card.ID), zap.Error(err))
		return
	}
	s.setState(next)
	if s.opts.Mode == Online {
		s.send(protocol.TypeAIPlayCard, protocol.AIPlayCardPayload{
			Code:       s.room.Code,
			Card:       card,
			SeatID:     seat,
			MatchState: next,
		})
	}
}

func (s *Session) collect(winner int) {
	next, _, err := game.CompleteTrick(s.state, winner)
	if err != nil {
		s.logger.Error("trick collection failed", zap.Int("winner", winner), zap.Error(err))
		return
	}
	s.setState(next)
	if s.opts.Mode == Online {
		s.send(protocol.TypeUpdateGameState, protocol.UpdateGameStatePayload{Code: s.room.Code, MatchState: next})
	}
}

// announce emits the notices for what changed between two states.
func (s *Session) announce(prev, next *game.MatchState) {
	if prev == nil || next == nil {
		return
	}
	if next.JokerPlayerID != nil && prev.JokerPlayerID == nil {
		s.notify(NoticeReveal, game.RevealMessage(next.Players[*next.JokerPlayerID].Name))
	}
	if n := len(next.History); n > len(prev.History) && !next.IsTerminal() {
		s.notify(NoticeTrick, game.TrickMessage(next.History[n-1]))
	}
	if next.IsTerminal() && !prev.IsTerminal() {
		s.notify(NoticeMatch, game.ResultMessage(next))
	}
}

func (s *Session) notify(kind NoticeKind, text string) {
	s.logger.Debug("notice", zap.String("kind", string(kind)), zap.String("text", text))
	if s.opts.OnNotice != nil {
		s.opts.OnNotice(Notice{Kind: kind, Text: text})
	}
}

func (s *Session) send(msgType string, payload any) {
	if s.opts.Sender == nil {
		return
	}
	if err := s.opts.Sender.Send(msgType, payload); err != nil {
		s.logger.Warn("send failed", zap.String("type", msgType), zap.Error(err))
	}
}

func (s *Session) setRoom(room Room) {
	s.room = room
	view := room
	view.Players = append([]protocol.PlayerInfo(nil), room.Players...)
	s.roomView.Store(&view)
}

// seatReturned reports whether a seat connected in next was absent or
// disconnected in prev.
func seatReturned(prev, next []protocol.PlayerInfo) bool {
	for _, p := range next {
		if !p.Connected {
			continue
		}
		back := true
		for _, q := range prev {
			if q.SeatIndex == p.SeatIndex && q.Connected {
				back = false
				break
			}
		}
		if back {
			return true
		}
	}
	return false
}
