package server

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"joker-briscola/internal/cache"
	"joker-briscola/internal/database"
	"joker-briscola/internal/events"
	"joker-briscola/internal/game"
	"joker-briscola/internal/protocol"
)

type fakeResults struct {
	mu      sync.Mutex
	results []database.MatchResult
}

func (f *fakeResults) Insert(r database.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

type fakePublisher struct {
	published []events.MatchFinished
}

func (f *fakePublisher) PublishMatchFinished(_ context.Context, ev events.MatchFinished) error {
	f.published = append(f.published, ev)
	return nil
}

func (f *fakePublisher) Close() {}

type testHub struct {
	*Hub
	t         *testing.T
	results   *fakeResults
	published *fakePublisher
	snapshots *cache.Memory
	timers    []func()
}

func newTestHub(t *testing.T, grace time.Duration) *testHub {
	th := &testHub{t: t, results: &fakeResults{}, published: &fakePublisher{}, snapshots: cache.NewMemory()}
	th.Hub = NewHub(HubOptions{
		Rooms:          NewRoomRegistry(rand.New(rand.NewPCG(7, 8))),
		Snapshots:      th.snapshots,
		Results:        th.results,
		Events:         th.published,
		ReconnectGrace: grace,
		Logger:         zaptest.NewLogger(t),
	})
	th.schedule = func(_ time.Duration, f func()) { th.timers = append(th.timers, f) }
	return th
}

func (th *testHub) connect() *Client {
	c := &Client{hub: th.Hub, send: make(chan []byte, 64)}
	th.registerClient(c)
	return c
}

func (th *testHub) send(c *Client, msgType string, payload any) {
	raw, err := protocol.NewMessage(msgType, payload)
	require.NoError(th.t, err)
	var msg protocol.Message
	require.NoError(th.t, json.Unmarshal(raw, &msg))
	th.handleMessage(c, msg)
}

// fireTimers runs the pending grace timers and handles their expiries.
func (th *testHub) fireTimers() {
	timers := th.timers
	th.timers = nil
	for _, f := range timers {
		f()
		th.expireSeat(<-th.expire)
	}
}

func drain(c *Client) []protocol.Message {
	var msgs []protocol.Message
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return msgs
			}
			var msg protocol.Message
			if err := json.Unmarshal(raw, &msg); err == nil {
				msgs = append(msgs, msg)
			}
		default:
			return msgs
		}
	}
}

func types(msgs []protocol.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func last[T any](t *testing.T, msgs []protocol.Message, msgType string) T {
	t.Helper()
	var v T
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == msgType {
			require.NoError(t, msgs[i].Decode(&v))
			return v
		}
	}
	t.Fatalf("no %s in %v", msgType, types(msgs))
	return v
}

// fullRoom creates a room with three players and drains their queues.
func (th *testHub) fullRoom() (string, [3]*Client) {
	var cs [3]*Client
	names := []string{"Ada", "Bo", "Cy"}
	for i := range cs {
		cs[i] = th.connect()
	}
	th.send(cs[0], protocol.TypeCreateRoom, protocol.CreateRoomPayload{Name: names[0]})
	code := last[protocol.RoomCreatedPayload](th.t, drain(cs[0]), protocol.TypeRoomCreated).Code
	for i := 1; i < 3; i++ {
		th.send(cs[i], protocol.TypeJoinRoom, protocol.JoinRoomPayload{Code: code, Name: names[i]})
	}
	for _, c := range cs {
		drain(c)
	}
	return code, cs
}

func dealt(t *testing.T) *game.MatchState {
	t.Helper()
	s, err := game.DealMatch(game.DealOptions{Names: [game.NumSeats]string{"Ada", "Bo", "Cy"}, Rand: rand.New(rand.NewPCG(5, 6))})
	require.NoError(t, err)
	return s
}

func TestCreateAndJoin(t *testing.T) {
	th := newTestHub(t, time.Minute)
	host, guest := th.connect(), th.connect()

	th.send(host, protocol.TypeCreateRoom, protocol.CreateRoomPayload{Name: "Ada"})
	msgs := drain(host)
	assert.Equal(t, []string{protocol.TypeRoomCreated, protocol.TypeUpdatePlayers}, types(msgs))
	created := last[protocol.RoomCreatedPayload](t, msgs, protocol.TypeRoomCreated)
	assert.Equal(t, 0, created.SeatIndex)
	assert.Len(t, created.Code, 4)

	th.send(guest, protocol.TypeJoinRoom, protocol.JoinRoomPayload{Code: " " + created.Code + " ", Name: "Bo"})
	msgs = drain(guest)
	joined := last[protocol.RoomJoinedPayload](t, msgs, protocol.TypeRoomJoined)
	assert.Equal(t, created.Code, joined.Code)
	assert.Equal(t, 1, joined.SeatIndex)
	assert.Len(t, joined.Players, 2)
	assert.Nil(t, joined.MatchState)

	roster := last[protocol.UpdatePlayersPayload](t, drain(host), protocol.TypeUpdatePlayers)
	assert.Equal(t, 0, roster.HostSeat)
	assert.Equal(t, "Bo", roster.Players[1].Name)
	assert.True(t, roster.Players[1].Connected)

	th.send(guest, protocol.TypeJoinRoom, protocol.JoinRoomPayload{Code: created.Code, Name: "Bo"})
	assert.Equal(t, "Already in a room.", last[protocol.ErrorMessagePayload](t, drain(guest), protocol.TypeErrorMessage).Text)
}

func TestJoinErrors(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, _ := th.fullRoom()

	late := th.connect()
	th.send(late, protocol.TypeJoinRoom, protocol.JoinRoomPayload{Code: code, Name: "Dee"})
	assert.Equal(t, "Room is full (max 3 players).", last[protocol.ErrorMessagePayload](t, drain(late), protocol.TypeErrorMessage).Text)

	th.send(late, protocol.TypeJoinRoom, protocol.JoinRoomPayload{Code: "QQQQ", Name: "Dee"})
	assert.Equal(t, "Room QQQQ not found. Check the code.", last[protocol.ErrorMessagePayload](t, drain(late), protocol.TypeErrorMessage).Text)

	th.send(late, protocol.TypeJoinRoom, protocol.JoinRoomPayload{Code: code})
	assert.Equal(t, "Name cannot be empty.", last[protocol.ErrorMessagePayload](t, drain(late), protocol.TypeErrorMessage).Text)
}

func TestJoinRejectedWhileInPlay(t *testing.T) {
	th := newTestHub(t, 0)
	host, guest := th.connect(), th.connect()
	th.send(host, protocol.TypeCreateRoom, protocol.CreateRoomPayload{Name: "Ada"})
	code := last[protocol.RoomCreatedPayload](t, drain(host), protocol.TypeRoomCreated).Code

	th.send(host, protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: dealt(t)})
	th.send(guest, protocol.TypeJoinRoom, protocol.JoinRoomPayload{Code: code, Name: "Bo"})
	assert.Equal(t, "The match has already started. You cannot join.", last[protocol.ErrorMessagePayload](t, drain(guest), protocol.TypeErrorMessage).Text)
}

func TestStartGameHostOnly(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, cs := th.fullRoom()
	s := dealt(t)

	th.send(cs[1], protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: s})
	assert.Equal(t, []string{protocol.TypeErrorMessage}, types(drain(cs[1])))
	assert.Empty(t, drain(cs[0]))

	th.send(cs[0], protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: s})
	for _, c := range cs {
		started := last[protocol.GameStartedPayload](t, drain(c), protocol.TypeGameStarted)
		assert.Equal(t, s, started.InitialMatchState)
	}

	mirrored, err := th.snapshots.Get(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, s, mirrored)
}

func TestPlayCardRelayExcludesSender(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, cs := th.fullRoom()
	th.send(cs[0], protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: dealt(t)})
	for _, c := range cs {
		drain(c)
	}

	card := th.rooms.rooms[code].State.Players[1].Hand[0]
	th.send(cs[1], protocol.TypePlayCard, protocol.PlayCardPayload{Code: code, Card: card, SeatID: 1})

	assert.Empty(t, drain(cs[1]))
	for _, c := range []*Client{cs[0], cs[2]} {
		play := last[protocol.RemotePlayPayload](t, drain(c), protocol.TypeRemotePlay)
		assert.Equal(t, card, play.Card)
		assert.Equal(t, 1, play.SeatID)
	}

	// Moves claimed for someone else's seat are dropped.
	th.send(cs[1], protocol.TypePlayCard, protocol.PlayCardPayload{Code: code, Card: card, SeatID: 2})
	assert.Empty(t, drain(cs[0]))
	assert.Empty(t, drain(cs[2]))
}

func TestAIPlayAndSyncFromHost(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, cs := th.fullRoom()
	s := dealt(t)
	th.send(cs[0], protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: s})
	for _, c := range cs {
		drain(c)
	}

	next, _, err := game.PlayCard(s, s.Players[0].Hand[0], 0)
	require.NoError(t, err)

	th.send(cs[2], protocol.TypeAIPlayCard, protocol.AIPlayCardPayload{Code: code, Card: s.Players[0].Hand[0], SeatID: 0, MatchState: next})
	for _, c := range cs {
		assert.Empty(t, drain(c), "non-host snapshot must be dropped")
	}

	th.send(cs[0], protocol.TypeAIPlayCard, protocol.AIPlayCardPayload{Code: code, Card: s.Players[0].Hand[0], SeatID: 0, MatchState: next})
	for _, c := range cs {
		p := last[protocol.AIRemotePlayPayload](t, drain(c), protocol.TypeAIRemotePlay)
		assert.Equal(t, next, p.MatchState)
	}
	assert.Equal(t, next, th.rooms.rooms[code].State)

	th.send(cs[0], protocol.TypeUpdateGameState, protocol.UpdateGameStatePayload{Code: code, MatchState: s})
	for _, c := range cs {
		p := last[protocol.SyncGameStatePayload](t, drain(c), protocol.TypeSyncGameState)
		assert.Equal(t, s, p.MatchState)
	}
	assert.Empty(t, th.results.results)
}

func TestFinishedMatchIsRecordedOnce(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, cs := th.fullRoom()
	s := dealt(t)
	th.send(cs[0], protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: s})

	done := s.Clone()
	done.Phase = game.PhaseMatchEnd
	done.MatchResult = game.ResultNull
	th.send(cs[0], protocol.TypeUpdateGameState, protocol.UpdateGameStatePayload{Code: code, MatchState: done})
	th.send(cs[0], protocol.TypeUpdateGameState, protocol.UpdateGameStatePayload{Code: code, MatchState: done})

	require.Len(t, th.results.results, 1)
	assert.Equal(t, code, th.results.results[0].RoomCode)
	assert.Equal(t, "NULL", th.results.results[0].Result)
	require.Len(t, th.published.published, 1)
	assert.Equal(t, code, th.published.published[0].RoomCode)

	// A finished match reopens the room to joiners.
	th.send(cs[1], protocol.TypeDisconnectGame, nil)
	late := th.connect()
	th.send(late, protocol.TypeJoinRoom, protocol.JoinRoomPayload{Code: code, Name: "Dee"})
	joined := last[protocol.RoomJoinedPayload](t, drain(late), protocol.TypeRoomJoined)
	assert.Equal(t, 1, joined.SeatIndex)
	assert.Equal(t, done, joined.MatchState)
}

func TestVoluntaryLeaveFailsOverAndDeletes(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, cs := th.fullRoom()
	th.send(cs[0], protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: dealt(t)})
	for _, c := range cs {
		drain(c)
	}

	th.send(cs[0], protocol.TypeDisconnectGame, nil)
	roster := last[protocol.UpdatePlayersPayload](t, drain(cs[1]), protocol.TypeUpdatePlayers)
	assert.Equal(t, 1, roster.HostSeat)
	assert.Len(t, roster.Players, 2)
	assert.Empty(t, drain(cs[0]))

	th.send(cs[1], protocol.TypeDisconnectGame, nil)
	th.send(cs[2], protocol.TypeDisconnectGame, nil)
	_, ok := th.rooms.Get(code)
	assert.False(t, ok)
	_, err := th.snapshots.Get(context.Background(), code)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestTransportLossHoldsSeatForRejoin(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, cs := th.fullRoom()
	s := dealt(t)
	th.send(cs[0], protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: s})
	for _, c := range cs {
		drain(c)
	}

	th.unregisterClient(cs[0])
	roster := last[protocol.UpdatePlayersPayload](t, drain(cs[1]), protocol.TypeUpdatePlayers)
	assert.Equal(t, 1, roster.HostSeat, "host fails over while the seat is held")
	require.Len(t, roster.Players, 3)
	assert.False(t, roster.Players[0].Connected)

	back := th.connect()
	th.send(back, protocol.TypeRejoinRoom, protocol.RejoinRoomPayload{Code: code, Name: "Ada", SeatIndex: 0})
	joined := last[protocol.RoomJoinedPayload](t, drain(back), protocol.TypeRoomJoined)
	assert.Equal(t, 0, joined.SeatIndex)
	assert.Equal(t, 1, joined.HostSeat)
	assert.Equal(t, s, joined.MatchState, "rejoin resumes the match in progress")

	roster = last[protocol.UpdatePlayersPayload](t, drain(cs[2]), protocol.TypeUpdatePlayers)
	assert.Equal(t, 1, roster.HostSeat, "a returning seat does not take the host back")

	// The stale grace timer fires after the rejoin and changes nothing.
	th.fireTimers()
	room, ok := th.rooms.Get(code)
	require.True(t, ok)
	assert.Len(t, room.Seats, 3)
}

func TestRejoinedHostStaysGuest(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, cs := th.fullRoom()
	s := dealt(t)
	th.send(cs[0], protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: s})
	th.send(cs[0], protocol.TypePlayCard, protocol.PlayCardPayload{Code: code, Card: s.Players[0].Hand[0], SeatID: 0})
	th.send(cs[1], protocol.TypePlayCard, protocol.PlayCardPayload{Code: code, Card: s.Players[1].Hand[0], SeatID: 1})
	for _, c := range cs {
		drain(c)
	}

	th.unregisterClient(cs[0])
	back := th.connect()
	th.send(back, protocol.TypeRejoinRoom, protocol.RejoinRoomPayload{Code: code, Name: "Ada", SeatIndex: 0})
	joined := last[protocol.RoomJoinedPayload](t, drain(back), protocol.TypeRoomJoined)
	assert.Equal(t, 1, joined.HostSeat)
	drain(cs[1])
	drain(cs[2])

	room, ok := th.rooms.Get(code)
	require.True(t, ok)
	assert.Equal(t, 1, room.HostSeat())
	assert.False(t, room.IsHost(back.ID))

	// The old host cannot restart the match or push its stale state.
	th.send(back, protocol.TypeStartGame, protocol.StartGamePayload{Code: code, InitialMatchState: s})
	assert.Equal(t, "Only the host can start the match.", last[protocol.ErrorMessagePayload](t, drain(back), protocol.TypeErrorMessage).Text)
	th.send(back, protocol.TypeUpdateGameState, protocol.UpdateGameStatePayload{Code: code, MatchState: s})
	assert.Empty(t, drain(cs[2]))

	// The acting host resyncs the returning seat.
	next := s.Clone()
	next.TurnIndex = 2
	th.send(cs[1], protocol.TypeUpdateGameState, protocol.UpdateGameStatePayload{Code: code, MatchState: next})
	resync := last[protocol.SyncGameStatePayload](t, drain(back), protocol.TypeSyncGameState)
	assert.Equal(t, next, resync.MatchState)
	assert.Equal(t, next, room.State)
}

func TestGraceExpiryReleasesSeat(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, cs := th.fullRoom()

	th.unregisterClient(cs[2])
	drain(cs[0])
	th.fireTimers()

	roster := last[protocol.UpdatePlayersPayload](t, drain(cs[0]), protocol.TypeUpdatePlayers)
	assert.Len(t, roster.Players, 2)

	late := th.connect()
	th.send(late, protocol.TypeRejoinRoom, protocol.RejoinRoomPayload{Code: code, Name: "Cy", SeatIndex: 2})
	assert.Equal(t, []string{protocol.TypeErrorMessage}, types(drain(late)))
}

func TestTransportLossWithoutGrace(t *testing.T) {
	th := newTestHub(t, 0)
	code, cs := th.fullRoom()

	th.unregisterClient(cs[1])
	roster := last[protocol.UpdatePlayersPayload](t, drain(cs[0]), protocol.TypeUpdatePlayers)
	assert.Len(t, roster.Players, 2)
	assert.Empty(t, th.timers)

	th.unregisterClient(cs[0])
	th.unregisterClient(cs[2])
	_, ok := th.rooms.Get(code)
	assert.False(t, ok)
}

func TestPingAndUnknown(t *testing.T) {
	th := newTestHub(t, 0)
	c := th.connect()

	th.send(c, protocol.TypePing, nil)
	th.send(c, "shuffle", nil)
	msgs := drain(c)
	assert.Equal(t, []string{protocol.TypePong, protocol.TypeErrorMessage}, types(msgs))
}

func TestRunStopsOnCancel(t *testing.T) {
	th := newTestHub(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		th.Run(ctx)
		close(done)
	}()

	c := &Client{hub: th.Hub, send: make(chan []byte, 4)}
	th.register <- c
	raw, _ := protocol.NewMessage(protocol.TypePing, nil)
	var msg protocol.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	th.processMessage <- clientMessage{client: c, message: msg}

	select {
	case out := <-c.send:
		assert.Contains(t, string(out), protocol.TypePong)
	case <-time.After(time.Second):
		t.Fatal("no pong")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestSendsAfterStopDoNotBlock(t *testing.T) {
	th := newTestHub(t, time.Minute)
	code, cs := th.fullRoom()
	th.unregisterClient(cs[2])
	require.Len(t, th.timers, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	th.Run(ctx)

	raw, _ := protocol.NewMessage(protocol.TypePing, nil)
	var msg protocol.Message
	require.NoError(t, json.Unmarshal(raw, &msg))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < cap(th.expire)+1; i++ {
			th.timers[0]()
		}
		th.leave(cs[1])
		assert.False(t, th.enqueue(cs[0], msg))
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("send to a stopped hub blocked")
	}
	_, ok := th.rooms.Get(code)
	assert.True(t, ok)
}
