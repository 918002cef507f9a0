// Package simulation plays AI-only tournaments without a transport or timers.
package simulation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"

	"joker-briscola/internal/ai"
	"joker-briscola/internal/game"
)

var ErrNegativeCount = errors.New("tournament count must not be negative")

// MaxMatches caps a tournament that keeps ending in ties at the top.
const MaxMatches = 200

// TournamentResult is the outcome of one simulated tournament.
type TournamentResult struct {
	Seed        uint64
	Matches     int
	Winner      int // -1 when MaxMatches ran out first
	JokerWins   int
	AllyWins    int
	NullMatches int
	JokerPoints int // Summed over matches with a Joker
	Unrevealed  int // Matches where nobody played a briscola
}

// Stats aggregates a batch of tournaments.
type Stats struct {
	Tournaments    int
	Matches        int
	SeatWins       [game.NumSeats]int
	Unfinished     int
	JokerWins      int
	AllyWins       int
	NullMatches    int
	Unrevealed     int
	AvgJokerPoints float64
}

type job struct {
	id   int
	seed uint64
}

// PlayMatch plays s to its end with every seat on the AI.
func PlayMatch(s *game.MatchState) (*game.MatchState, error) {
	var err error
	for !s.IsTerminal() {
		if winner, ok := game.PendingWinner(s); ok {
			if s, _, err = game.CompleteTrick(s, winner); err != nil {
				return nil, err
			}
			continue
		}
		seat := s.TurnIndex
		card, err := ai.ChooseCard(s, seat)
		if err != nil {
			return nil, fmt.Errorf("seat %d: %w", seat, err)
		}
		if s, _, err = game.PlayCard(s, card, seat); err != nil {
			return nil, fmt.Errorf("seat %d plays %s: %w", seat, card.ID, err)
		}
	}
	return s, nil
}

// RunTournament deals and plays matches until a seat wins the tournament.
func RunTournament(difficulty game.Difficulty, seed uint64) (TournamentResult, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	res := TournamentResult{Seed: seed, Winner: -1}

	var prev *game.MatchState
	for res.Matches < MaxMatches {
		s, err := game.DealMatch(game.DealOptions{Difficulty: difficulty, Previous: prev, Rand: rng})
		if err != nil {
			return res, err
		}
		if s, err = PlayMatch(s); err != nil {
			return res, err
		}
		res.Matches++

		switch s.MatchResult {
		case game.ResultJokerWin:
			res.JokerWins++
		case game.ResultAllyWin:
			res.AllyWins++
		default:
			res.NullMatches++
		}
		if s.JokerPlayerID == nil {
			res.Unrevealed++
		} else {
			res.JokerPoints += s.Players[*s.JokerPlayerID].PointsInMatch
		}

		if s.TournamentWinnerID != nil {
			res.Winner = *s.TournamentWinnerID
			return res, nil
		}
		prev = s
	}
	return res, nil
}

// RunBatch plays n tournaments on a worker pool. Tournament seeds derive from
// seed, so a batch is reproducible whatever the worker count.
func RunBatch(difficulty game.Difficulty, n int, seed uint64, workers int) (Stats, error) {
	if n < 0 {
		return Stats{}, fmt.Errorf("%w: %d", ErrNegativeCount, n)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan job, n)
	results := make(chan TournamentResult, n)
	errs := make(chan error, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := RunTournament(difficulty, j.seed)
				if err != nil {
					errs <- fmt.Errorf("tournament %d (seed %d): %w", j.id, j.seed, err)
					continue
				}
				results <- res
			}
		}()
	}

	rng := rand.New(rand.NewPCG(seed, seed+1))
	for i := 0; i < n; i++ {
		jobs <- job{id: i, seed: rng.Uint64()}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
		close(errs)
	}()

	var stats Stats
	jokerMatches := 0
	jokerPoints := 0
	for res := range results {
		stats.Tournaments++
		stats.Matches += res.Matches
		if res.Winner >= 0 {
			stats.SeatWins[res.Winner]++
		} else {
			stats.Unfinished++
		}
		stats.JokerWins += res.JokerWins
		stats.AllyWins += res.AllyWins
		stats.NullMatches += res.NullMatches
		stats.Unrevealed += res.Unrevealed
		jokerMatches += res.Matches - res.Unrevealed
		jokerPoints += res.JokerPoints
	}
	if jokerMatches > 0 {
		stats.AvgJokerPoints = float64(jokerPoints) / float64(jokerMatches)
	}
	if err := <-errs; err != nil {
		return stats, err
	}
	return stats, nil
}
