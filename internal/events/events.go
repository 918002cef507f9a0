package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"joker-briscola/internal/config"
	"joker-briscola/internal/game"
)

// MatchFinished is published once per finished match.
type MatchFinished struct {
	RoomCode           string                `json:"roomCode"`
	Result             game.MatchResult      `json:"result"`
	JokerSeat          *int                  `json:"jokerSeat"`
	Names              [game.NumSeats]string `json:"names"`
	Points             [game.NumSeats]int    `json:"points"`
	TotalScores        [game.NumSeats]int    `json:"totalScores"`
	TournamentWinnerID *int                  `json:"tournamentWinnerId,omitempty"`
	FinishedAt         time.Time             `json:"finishedAt"`
}

// NewMatchFinished builds the event for a finished match snapshot.
func NewMatchFinished(code string, s *game.MatchState) MatchFinished {
	ev := MatchFinished{
		RoomCode:           code,
		Result:             s.MatchResult,
		JokerSeat:          s.JokerPlayerID,
		TournamentWinnerID: s.TournamentWinnerID,
		FinishedAt:         time.Now().UTC(),
	}
	for i, p := range s.Players {
		ev.Names[i] = p.Name
		ev.Points[i] = p.PointsInMatch
		ev.TotalScores[i] = p.TotalScore
	}
	return ev
}

type Publisher interface {
	PublishMatchFinished(ctx context.Context, ev MatchFinished) error
	Close()
}

// Nop drops every event. It is used when no NATS url is configured.
type Nop struct{}

func (Nop) PublishMatchFinished(context.Context, MatchFinished) error {
	return nil
}

func (Nop) Close() {}

// NATS publishes events as JSON on a single subject.
type NATS struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

func NewNATS(cfg config.NATSConfig, logger *zap.Logger) (*NATS, error) {
	logger = logger.With(zap.String("component", "events"))
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.Timeout(10 * time.Second),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	return &NATS{conn: conn, subject: cfg.Subject, logger: logger}, nil
}

func (n *NATS) PublishMatchFinished(_ context.Context, ev MatchFinished) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	n.logger.Debug("match finished published", zap.String("room", ev.RoomCode), zap.String("result", string(ev.Result)))
	return nil
}

func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Drain()
	}
}
