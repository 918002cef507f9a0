// Command player is a line-oriented terminal client, offline against two AI
// seats or online through the relay server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"joker-briscola/internal/client"
	"joker-briscola/internal/config"
	"joker-briscola/internal/game"
	"joker-briscola/internal/logging"
	"joker-briscola/internal/session"
)

var (
	configPath string
	name       string
	difficulty string
	offline    bool
)

func init() {
	flag.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flag.StringVar(&name, "name", "You", "Player name")
	flag.StringVarP(&difficulty, "difficulty", "d", string(game.DifficultyBase), "AI tier: BASE or ESPERTO")
	flag.BoolVar(&offline, "offline", false, "Play locally against two AI seats")
}

const help = `commands:
  create            create a room
  join CODE         join a room
  start             deal the first match
  play N            play the Nth card of your hand
  collect           collect the finished trick (offline)
  next              deal the next match
  reset             start a new tournament
  leave             leave the room
  quit`

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(config.LogConfig{Level: "warn", Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sess *session.Session
	opts := session.Options{
		Mode:         session.Offline,
		Name:         name,
		Difficulty:   game.Difficulty(strings.ToUpper(difficulty)),
		AIDelay:      cfg.Game.AIDelay,
		CollectDelay: cfg.Game.CollectDelay,
		Logger:       logger,
		OnState: func(s *game.MatchState) {
			render(s, localSeat(sess))
		},
		OnNotice: func(n session.Notice) {
			fmt.Printf(">> %s\n", n.Text)
		},
	}

	var conn *client.Client
	if !offline {
		conn = client.New(client.Options{
			URL:               cfg.Client.URL,
			ReconnectAttempts: cfg.Client.ReconnectAttempts,
			ReconnectDelay:    cfg.Client.ReconnectDelay,
			PingInterval:      cfg.Client.PingInterval,
			Logger:            logger,
		})
		opts.Mode = session.Online
		opts.Sender = conn
	}

	sess, err = session.New(opts)
	if err != nil {
		logger.Fatal("session", zap.Error(err))
	}
	go sess.Run(ctx)

	if conn != nil {
		go func() {
			if err := conn.Run(ctx, sess); err != nil {
				logger.Error("connection closed", zap.Error(err))
				stop()
			}
		}()
	}

	fmt.Println(help)
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || !command(sess, line) {
				sess.Leave()
				return
			}
		}
	}
}

// command runs one input line and reports whether to keep reading.
func command(sess *session.Session, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "create":
		sess.CreateRoom(name)
	case "join":
		if len(fields) < 2 {
			fmt.Println("usage: join CODE")
			return true
		}
		sess.JoinRoom(fields[1], name)
	case "start":
		sess.StartMatch()
	case "play":
		n, err := strconv.Atoi(strings.Join(fields[1:], ""))
		s := sess.State()
		if err != nil || s == nil {
			fmt.Println("usage: play N")
			return true
		}
		hand := s.Players[localSeat(sess)].Hand
		if n < 1 || n > len(hand) {
			fmt.Printf("pick a card between 1 and %d\n", len(hand))
			return true
		}
		sess.PlayLocal(hand[n-1])
	case "collect":
		sess.Collect()
	case "next":
		sess.NextMatch()
	case "reset":
		sess.NewTournament()
	case "leave":
		sess.Leave()
	case "quit", "exit":
		return false
	default:
		fmt.Println(help)
	}
	return true
}

func localSeat(sess *session.Session) int {
	if offline {
		return 0
	}
	return sess.Room().Seat
}

func render(s *game.MatchState, seat int) {
	if s == nil {
		fmt.Println("-- no match --")
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "-- round %d, briscola %s, deck %d --\n", s.RoundCount, s.BriscolaSuit, s.DeckCount)
	for _, pc := range s.PlayedCards {
		fmt.Fprintf(&b, "   %s played %s\n", s.Players[pc.PlayerID].Name, pc.Card.ID)
	}
	for _, p := range s.Players {
		marker := " "
		if p.ID == s.TurnIndex && !s.WaitingForNextTrick && !s.IsTerminal() {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %-10s %-5s match %3d  total %2d\n", marker, p.Name, p.Role, p.PointsInMatch, p.TotalScore)
	}
	for i, c := range s.Players[seat].Hand {
		fmt.Fprintf(&b, "   [%d] %s\n", i+1, c.ID)
	}
	fmt.Print(b.String())
}
