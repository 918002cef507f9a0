package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"joker-briscola/internal/cache"
	"joker-briscola/internal/database"
	"joker-briscola/internal/events"
	"joker-briscola/internal/game"
	"joker-briscola/internal/protocol"
)

const storeTimeout = 2 * time.Second

// clientMessage is a helper struct to pass messages along with the client reference.
type clientMessage struct {
	client  *Client
	message protocol.Message
}

// seatExpiry fires when a dropped seat's reconnect grace runs out.
type seatExpiry struct {
	code  string
	seat  int
	drops int
}

// ResultStore records finished matches.
type ResultStore interface {
	Insert(result database.MatchResult) error
}

// HubOptions wires the Hub to its stores. Only Rooms is required.
type HubOptions struct {
	Rooms          *RoomRegistry
	Snapshots      cache.SnapshotCache
	Results        ResultStore
	Events         events.Publisher
	ReconnectGrace time.Duration
	Logger         *zap.Logger
}

// Hub relays room traffic between participants. Every message, registration
// and grace expiry is handled on the Run goroutine.
type Hub struct {
	clients        map[*Client]bool
	byID           map[string]*Client
	clientRoom     map[*Client]string // Client to room code
	rooms          *RoomRegistry
	snapshots      cache.SnapshotCache
	results        ResultStore
	events         events.Publisher
	grace          time.Duration
	processMessage chan clientMessage
	register       chan *Client
	unregister     chan *Client
	expire         chan seatExpiry
	done           chan struct{} // Closed when Run returns
	schedule       func(d time.Duration, f func())
	logger         *zap.Logger
}

// NewHub creates a new Hub instance.
func NewHub(opts HubOptions) *Hub {
	if opts.Rooms == nil {
		opts.Rooms = NewRoomRegistry(nil)
	}
	if opts.Snapshots == nil {
		opts.Snapshots = cache.NewMemory()
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Hub{
		clients:        make(map[*Client]bool),
		byID:           make(map[string]*Client),
		clientRoom:     make(map[*Client]string),
		rooms:          opts.Rooms,
		snapshots:      opts.Snapshots,
		results:        opts.Results,
		events:         opts.Events,
		grace:          opts.ReconnectGrace,
		processMessage: make(chan clientMessage),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		expire:         make(chan seatExpiry, 16),
		done:           make(chan struct{}),
		schedule:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		logger:         opts.Logger.With(zap.String("component", "hub")),
	}
}

// Rooms returns the registry the Hub serves.
func (h *Hub) Rooms() *RoomRegistry {
	return h.rooms
}

// Run starts the Hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub stopped", zap.Int("clients", len(h.clients)))
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev := <-h.expire:
			h.expireSeat(ev)

		case clientMsg := <-h.processMessage:
			h.handleMessage(clientMsg.client, clientMsg.message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	client.ID = uuid.NewString() // Assign a unique ID upon registration
	h.clients[client] = true
	h.byID[client.ID] = client
	h.logger.Debug("client connected", zap.String("client", client.ID), zap.String("addr", client.remoteAddr()))
}

// unregisterClient handles transport loss. The seat is held for the grace
// period so the player can rejoin_room; the host moves to the next seat now.
func (h *Hub) unregisterClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	delete(h.byID, client.ID)
	close(client.send)

	code, inRoom := h.clientRoom[client]
	delete(h.clientRoom, client)
	h.logger.Info("client disconnected", zap.String("client", client.ID), zap.String("name", client.Name), zap.String("room", code))
	if !inRoom {
		return
	}

	if h.grace <= 0 {
		h.leaveRoom(client, code)
		return
	}

	seat, drops, err := h.rooms.MarkDisconnected(code, client.ID)
	if err != nil {
		h.logger.Warn("disconnect for unknown seat", zap.String("room", code), zap.Error(err))
		return
	}
	h.logger.Info("seat held for rejoin", zap.String("room", code), zap.Int("seat", seat), zap.Duration("grace", h.grace))
	h.schedule(h.grace, func() {
		select {
		case h.expire <- seatExpiry{code: code, seat: seat, drops: drops}:
		case <-h.done:
		}
	})

	if room, ok := h.rooms.Get(code); ok {
		h.broadcastPlayers(room)
	}
}

func (h *Hub) expireSeat(ev seatExpiry) {
	room, removed, deleted := h.rooms.Expire(ev.code, ev.seat, ev.drops)
	if !removed {
		return
	}
	h.logger.Info("seat released after grace", zap.String("room", ev.code), zap.Int("seat", ev.seat))
	if deleted {
		h.dropRoom(ev.code)
		return
	}
	h.broadcastPlayers(room)
}

// handleMessage processes a message received from a client.
func (h *Hub) handleMessage(client *Client, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeCreateRoom:
		h.handleCreateRoom(client, msg)
	case protocol.TypeJoinRoom:
		h.handleJoinRoom(client, msg)
	case protocol.TypeRejoinRoom:
		h.handleRejoinRoom(client, msg)
	case protocol.TypeStartGame:
		h.handleStartGame(client, msg)
	case protocol.TypePlayCard:
		h.handlePlayCard(client, msg)
	case protocol.TypeAIPlayCard:
		h.handleAIPlayCard(client, msg)
	case protocol.TypeUpdateGameState:
		h.handleUpdateGameState(client, msg)
	case protocol.TypeDisconnectGame:
		if code, ok := h.clientRoom[client]; ok {
			h.leaveRoom(client, code)
		}
	case protocol.TypePing:
		pongMsg, _ := protocol.NewMessage(protocol.TypePong, nil)
		h.sendMessageToClient(client.ID, pongMsg)
	default:
		h.logger.Warn("unknown message type", zap.String("type", msg.Type), zap.String("client", client.ID))
		h.sendErrorToClient(client, "Unknown message type.")
	}
}

// handleCreateRoom opens a room with the sender on seat 0.
func (h *Hub) handleCreateRoom(client *Client, msg protocol.Message) {
	if _, inRoom := h.clientRoom[client]; inRoom {
		h.sendErrorToClient(client, "Already in a room.")
		return
	}

	var payload protocol.CreateRoomPayload
	if err := msg.Decode(&payload); err != nil {
		h.logger.Debug("bad create_room payload", zap.String("client", client.ID), zap.Error(err))
		h.sendErrorToClient(client, "Invalid create_room message format.")
		return
	}
	if payload.Name == "" {
		h.sendErrorToClient(client, "Name cannot be empty.")
		return
	}

	room, err := h.rooms.Create(client.ID, payload.Name)
	if err != nil {
		h.logger.Error("room creation failed", zap.Error(err))
		h.sendErrorToClient(client, userText(err, ""))
		return
	}
	client.Name = payload.Name
	h.clientRoom[client] = room.Code
	h.logger.Info("room created", zap.String("room", room.Code), zap.String("name", client.Name))

	createdMsg, _ := protocol.NewMessage(protocol.TypeRoomCreated, protocol.RoomCreatedPayload{Code: room.Code, SeatIndex: 0})
	h.sendMessageToClient(client.ID, createdMsg)
	h.broadcastPlayers(room)
}

// handleJoinRoom seats the sender in an existing room that is not in play.
func (h *Hub) handleJoinRoom(client *Client, msg protocol.Message) {
	if _, inRoom := h.clientRoom[client]; inRoom {
		h.sendErrorToClient(client, "Already in a room.")
		return
	}

	var payload protocol.JoinRoomPayload
	if err := msg.Decode(&payload); err != nil {
		h.sendErrorToClient(client, "Invalid join_room message format.")
		return
	}
	if payload.Name == "" {
		h.sendErrorToClient(client, "Name cannot be empty.")
		return
	}
	code := NormalizeCode(payload.Code)

	room, seat, err := h.rooms.Join(code, client.ID, payload.Name)
	if err != nil {
		h.logger.Info("join rejected", zap.String("room", code), zap.String("name", payload.Name), zap.Error(err))
		h.sendErrorToClient(client, userText(err, code))
		return
	}
	client.Name = payload.Name
	h.clientRoom[client] = room.Code
	h.logger.Info("player joined", zap.String("room", room.Code), zap.String("name", client.Name), zap.Int("seat", seat.Index))

	h.sendRoomJoined(client, room, seat)
	h.broadcastPlayers(room)
}

// handleRejoinRoom gives a held seat back to a reconnecting player.
func (h *Hub) handleRejoinRoom(client *Client, msg protocol.Message) {
	if _, inRoom := h.clientRoom[client]; inRoom {
		h.sendErrorToClient(client, "Already in a room.")
		return
	}

	var payload protocol.RejoinRoomPayload
	if err := msg.Decode(&payload); err != nil {
		h.sendErrorToClient(client, "Invalid rejoin_room message format.")
		return
	}
	code := NormalizeCode(payload.Code)

	room, seat, err := h.rooms.Rejoin(code, client.ID, payload.Name, payload.SeatIndex)
	if err != nil {
		h.logger.Info("rejoin rejected", zap.String("room", code), zap.Int("seat", payload.SeatIndex), zap.Error(err))
		h.sendErrorToClient(client, userText(err, code))
		return
	}
	client.Name = payload.Name
	h.clientRoom[client] = room.Code
	h.logger.Info("player rejoined", zap.String("room", room.Code), zap.String("name", client.Name), zap.Int("seat", seat.Index))

	h.sendRoomJoined(client, room, seat)
	h.broadcastPlayers(room)
}

// handleStartGame stores the host's freshly dealt match and starts it for everyone.
func (h *Hub) handleStartGame(client *Client, msg protocol.Message) {
	room, ok := h.roomOf(client)
	if !ok {
		return
	}
	if !room.IsHost(client.ID) {
		h.sendErrorToClient(client, "Only the host can start the match.")
		return
	}

	var payload protocol.StartGamePayload
	if err := msg.Decode(&payload); err != nil || payload.InitialMatchState == nil {
		h.sendErrorToClient(client, "Invalid start_game message format.")
		return
	}
	if payload.InitialMatchState.Phase != game.PhasePlaying {
		h.sendErrorToClient(client, "Invalid match state.")
		return
	}

	h.logger.Info("match started", zap.String("room", room.Code), zap.Int("seats", len(room.Seats)))
	h.storeSnapshot(room, payload.InitialMatchState)

	startedMsg, _ := protocol.NewMessage(protocol.TypeGameStarted, protocol.GameStartedPayload{InitialMatchState: payload.InitialMatchState})
	h.broadcastToRoom(room, startedMsg, "")
}

// handlePlayCard relays a human move to everybody else in the room. The
// relay carries no authority: the host's next snapshot overrides it.
func (h *Hub) handlePlayCard(client *Client, msg protocol.Message) {
	room, ok := h.roomOf(client)
	if !ok {
		return
	}
	var payload protocol.PlayCardPayload
	if err := msg.Decode(&payload); err != nil {
		h.logger.Debug("bad play_card payload", zap.String("client", client.ID), zap.Error(err))
		return
	}
	if seat := room.SeatOf(client.ID); seat == nil || seat.Index != payload.SeatID {
		h.logger.Debug("play_card for another seat dropped", zap.String("room", room.Code), zap.Int("seat", payload.SeatID))
		return
	}

	playMsg, _ := protocol.NewMessage(protocol.TypeRemotePlay, protocol.RemotePlayPayload{Card: payload.Card, SeatID: payload.SeatID})
	h.broadcastToRoom(room, playMsg, client.ID)
}

// handleAIPlayCard stores the host's AI move snapshot and sends it to every
// seat, the host included.
func (h *Hub) handleAIPlayCard(client *Client, msg protocol.Message) {
	room, ok := h.hostRoom(client, msg.Type)
	if !ok {
		return
	}
	var payload protocol.AIPlayCardPayload
	if err := msg.Decode(&payload); err != nil || payload.MatchState == nil {
		h.logger.Debug("bad ai_play_card payload", zap.String("client", client.ID), zap.Error(err))
		return
	}

	h.storeSnapshot(room, payload.MatchState)

	aiMsg, _ := protocol.NewMessage(protocol.TypeAIRemotePlay, protocol.AIRemotePlayPayload{
		Card:       payload.Card,
		SeatID:     payload.SeatID,
		MatchState: payload.MatchState,
	})
	h.broadcastToRoom(room, aiMsg, "")
}

// handleUpdateGameState stores and broadcasts the host's snapshot.
func (h *Hub) handleUpdateGameState(client *Client, msg protocol.Message) {
	room, ok := h.hostRoom(client, msg.Type)
	if !ok {
		return
	}
	var payload protocol.UpdateGameStatePayload
	if err := msg.Decode(&payload); err != nil || payload.MatchState == nil {
		h.logger.Debug("bad update_game_state payload", zap.String("client", client.ID), zap.Error(err))
		return
	}

	h.storeSnapshot(room, payload.MatchState)

	syncMsg, _ := protocol.NewMessage(protocol.TypeSyncGameState, protocol.SyncGameStatePayload{MatchState: payload.MatchState})
	h.broadcastToRoom(room, syncMsg, "")
}

func (h *Hub) roomOf(client *Client) (*Room, bool) {
	code, ok := h.clientRoom[client]
	if !ok {
		h.sendErrorToClient(client, "You are not in a room.")
		return nil, false
	}
	room, ok := h.rooms.Get(code)
	if !ok {
		h.sendErrorToClient(client, "Room not found.")
		return nil, false
	}
	return room, true
}

// hostRoom returns the sender's room when the sender is its host. Snapshots
// from anyone else are dropped.
func (h *Hub) hostRoom(client *Client, msgType string) (*Room, bool) {
	room, ok := h.roomOf(client)
	if !ok {
		return nil, false
	}
	if !room.IsHost(client.ID) {
		h.logger.Warn("snapshot from non-host dropped", zap.String("type", msgType), zap.String("room", room.Code), zap.String("client", client.ID))
		return nil, false
	}
	return room, true
}

// storeSnapshot makes s the room's canonical state, mirrors it to the cache
// and records the match the first time it is seen finished.
func (h *Hub) storeSnapshot(room *Room, s *game.MatchState) {
	prev := room.State
	room.State = s

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := h.snapshots.Put(ctx, room.Code, s); err != nil {
		h.logger.Warn("snapshot mirror failed", zap.String("room", room.Code), zap.Error(err))
	}

	if !s.IsTerminal() || (prev != nil && prev.IsTerminal()) {
		return
	}
	h.logger.Info("match finished",
		zap.String("room", room.Code),
		zap.String("result", string(s.MatchResult)),
		zap.String("phase", string(s.Phase)))

	if h.results != nil {
		if err := h.results.Insert(database.NewMatchResult(room.Code, s)); err != nil {
			h.logger.Error("failed to record match result", zap.String("room", room.Code), zap.Error(err))
		}
	}
	if err := h.events.PublishMatchFinished(ctx, events.NewMatchFinished(room.Code, s)); err != nil {
		h.logger.Warn("failed to publish match result", zap.String("room", room.Code), zap.Error(err))
	}
}

// leaveRoom removes the client's seat right away.
func (h *Hub) leaveRoom(client *Client, code string) {
	delete(h.clientRoom, client)
	room, deleted, err := h.rooms.Leave(code, client.ID)
	if err != nil {
		h.logger.Debug("leave ignored", zap.String("room", code), zap.Error(err))
		return
	}
	h.logger.Info("player left", zap.String("room", code), zap.String("name", client.Name), zap.Int("remaining", len(room.Seats)))
	if deleted {
		h.dropRoom(code)
		return
	}
	h.broadcastPlayers(room)
}

func (h *Hub) dropRoom(code string) {
	h.logger.Info("room deleted", zap.String("room", code))
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.snapshots.Delete(ctx, code); err != nil {
		h.logger.Warn("snapshot delete failed", zap.String("room", code), zap.Error(err))
	}
}

func (h *Hub) sendRoomJoined(client *Client, room *Room, seat *Seat) {
	joinedMsg, err := protocol.NewMessage(protocol.TypeRoomJoined, protocol.RoomJoinedPayload{
		Code:       room.Code,
		SeatIndex:  seat.Index,
		Players:    room.Players(),
		HostSeat:   room.HostSeat(),
		MatchState: room.State,
	})
	if err != nil {
		h.logger.Error("failed to build room_joined", zap.String("room", room.Code), zap.Error(err))
		return
	}
	h.sendMessageToClient(client.ID, joinedMsg)
}

// broadcastPlayers sends the roster and the current host to the whole room.
func (h *Hub) broadcastPlayers(room *Room) {
	msgBytes, err := protocol.NewMessage(protocol.TypeUpdatePlayers, protocol.UpdatePlayersPayload{
		Players:  room.Players(),
		HostSeat: room.HostSeat(),
	})
	if err != nil {
		h.logger.Error("failed to build update_players", zap.String("room", room.Code), zap.Error(err))
		return
	}
	h.broadcastToRoom(room, msgBytes, "")
}

// broadcastToRoom sends message to every connected seat except exceptID.
func (h *Hub) broadcastToRoom(room *Room, message []byte, exceptID string) {
	for _, seat := range room.Seats {
		if !seat.Connected || seat.ConnectionID == exceptID {
			continue
		}
		h.sendMessageToClient(seat.ConnectionID, message)
	}
}

// sendMessageToClient queues message for clientID without blocking the hub.
func (h *Hub) sendMessageToClient(clientID string, message []byte) {
	targetClient, ok := h.byID[clientID]
	if !ok {
		h.logger.Debug("send to unknown client", zap.String("client", clientID))
		return
	}

	select {
	case targetClient.send <- message:
	default:
		// Channel is full, the client is not reading. Drop it from the loop
		// goroutine's next iteration.
		h.logger.Warn("send buffer full, dropping client", zap.String("client", clientID))
		go h.leave(targetClient)
	}
}

// leave hands client to the Run loop for unregistering. It gives up once
// the loop has stopped.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// enqueue hands an inbound message to the Run loop. It reports false once
// the loop has stopped.
func (h *Hub) enqueue(client *Client, msg protocol.Message) bool {
	select {
	case h.processMessage <- clientMessage{client: client, message: msg}:
		return true
	case <-h.done:
		return false
	}
}

// sendErrorToClient sends an error_message to a specific client.
func (h *Hub) sendErrorToClient(client *Client, text string) {
	msgBytes, err := protocol.NewMessage(protocol.TypeErrorMessage, protocol.ErrorMessagePayload{Text: text})
	if err != nil {
		h.logger.Error("failed to build error_message", zap.String("client", client.ID), zap.Error(err))
		return
	}
	h.sendMessageToClient(client.ID, msgBytes)
}
