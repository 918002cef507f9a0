// Command simulate plays AI-only tournaments and reports how the tiers fare.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"joker-briscola/internal/config"
	"joker-briscola/internal/game"
	"joker-briscola/internal/logging"
	"joker-briscola/internal/simulation"
)

var (
	tournaments int
	seed        uint64
	difficulty  string
	workers     int
	logLevel    string
)

func init() {
	flag.IntVarP(&tournaments, "tournaments", "n", 100, "Number of tournaments to play")
	flag.Uint64Var(&seed, "seed", 0, "Batch seed (0 = use current time)")
	flag.StringVarP(&difficulty, "difficulty", "d", string(game.DifficultyBase), "AI tier: BASE or ESPERTO")
	flag.IntVarP(&workers, "workers", "w", 0, "Worker goroutines (0 = one per CPU)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")
}

func main() {
	flag.Parse()

	logger, err := logging.New(config.LogConfig{Level: logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	tier := game.Difficulty(strings.ToUpper(difficulty))
	if tier != game.DifficultyBase && tier != game.DifficultyEsperto {
		logger.Fatal("unknown difficulty", zap.String("difficulty", difficulty))
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	logger.Info("simulating",
		zap.Int("tournaments", tournaments),
		zap.String("difficulty", string(tier)),
		zap.Uint64("seed", seed),
		zap.Int("workers", workers))

	start := time.Now()
	stats, err := simulation.RunBatch(tier, tournaments, seed, workers)
	if err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}

	logger.Info("done",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("matches", stats.Matches),
		zap.Ints("seatWins", stats.SeatWins[:]),
		zap.Int("unfinished", stats.Unfinished),
		zap.Int("jokerWins", stats.JokerWins),
		zap.Int("allyWins", stats.AllyWins),
		zap.Int("nullMatches", stats.NullMatches),
		zap.Int("unrevealed", stats.Unrevealed),
		zap.Float64("avgJokerPoints", stats.AvgJokerPoints))
}
