package ai

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joker-briscola/internal/game"
	"joker-briscola/internal/shared"
)

func c(suit shared.Suit, rank int) shared.Card {
	return shared.NewCard(suit, rank)
}

// table builds a mid-trick state. joker < 0 leaves roles hidden.
func table(trump shared.Suit, difficulty game.Difficulty, joker int, hands [game.NumSeats][]shared.Card, played ...shared.PlayedCard) *game.MatchState {
	s := &game.MatchState{
		BriscolaSuit: trump,
		Phase:        game.PhasePlaying,
		Difficulty:   difficulty,
		PlayedCards:  played,
		RoundCount:   1,
	}
	for seat := 0; seat < game.NumSeats; seat++ {
		s.Players[seat] = shared.NewPlayer(seat, game.DefaultNames[seat])
		for _, card := range hands[seat] {
			s.Players[seat].AddCard(card)
		}
	}
	if len(played) > 0 {
		s.LeadSuit = played[0].Card.Suit
		s.TurnIndex = (played[len(played)-1].PlayerID + 1) % game.NumSeats
	}
	if joker >= 0 {
		j := joker
		s.JokerPlayerID = &j
		shared.AssignRoles(s.Players[:], joker)
	}
	return s
}

func TestChooseCardErrors(t *testing.T) {
	s := table(shared.Stella, game.DifficultyBase, -1, [game.NumSeats][]shared.Card{{c(shared.Onda, 4)}})

	_, err := ChooseCard(s, 3)
	assert.ErrorIs(t, err, ErrUnknownSeat)
	_, err = ChooseCard(nil, 0)
	assert.ErrorIs(t, err, ErrUnknownSeat)
	_, err = ChooseCard(s, 1)
	assert.ErrorIs(t, err, ErrEmptyHand)
}

func TestForDifficulty(t *testing.T) {
	assert.IsType(t, Base{}, ForDifficulty(game.DifficultyBase))
	assert.IsType(t, Expert{}, ForDifficulty(game.DifficultyEsperto))
	assert.IsType(t, Base{}, ForDifficulty(""))
}

func TestBase(t *testing.T) {
	tests := []struct {
		name   string
		hand   []shared.Card
		played []shared.PlayedCard
		want   string
	}{
		{
			name: "leads cheapest plain card",
			hand: []shared.Card{c(shared.Stella, 1), c(shared.Onda, 3), c(shared.Onda, 5), c(shared.Foglia, 4)},
			want: "foglia-4",
		},
		{
			name: "leads lowest briscola when hand is all briscola",
			hand: []shared.Card{c(shared.Stella, 3), c(shared.Stella, 8), c(shared.Stella, 6)},
			want: "stella-6",
		},
		{
			name:   "takes points with briscola when nothing else wins",
			hand:   []shared.Card{c(shared.Onda, 3), c(shared.Stella, 4), c(shared.Foglia, 7)},
			played: []shared.PlayedCard{{PlayerID: 0, Card: c(shared.Onda, 1)}},
			want:   "stella-4",
		},
		{
			name:   "prefers plain winner over briscola",
			hand:   []shared.Card{c(shared.Stella, 5), c(shared.Onda, 1), c(shared.Foglia, 2)},
			played: []shared.PlayedCard{{PlayerID: 0, Card: c(shared.Onda, 10)}},
			want:   "onda-1",
		},
		{
			name:   "dumps when table has no points",
			hand:   []shared.Card{c(shared.Onda, 7), c(shared.Foglia, 4)},
			played: []shared.PlayedCard{{PlayerID: 0, Card: c(shared.Onda, 5)}},
			want:   "foglia-4",
		},
		{
			name:   "dumps when nothing wins",
			hand:   []shared.Card{c(shared.Roccia, 10), c(shared.Foglia, 6), c(shared.Foglia, 5)},
			played: []shared.PlayedCard{{PlayerID: 0, Card: c(shared.Onda, 1)}},
			want:   "foglia-5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := table(shared.Stella, game.DifficultyBase, -1, [game.NumSeats][]shared.Card{1: tt.hand}, tt.played...)
			got, err := ChooseCard(s, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestExpertScore(t *testing.T) {
	var e Expert
	s := table(shared.Stella, game.DifficultyEsperto, -1, [game.NumSeats][]shared.Card{
		{c(shared.Stella, 1), c(shared.Onda, 4), c(shared.Foglia, 1)},
	})

	// Weak hand reveal on a lead: -50 +40 (own 11 points) +165 -10 trump -10 master.
	assert.Equal(t, 135, e.Score(s, 0, c(shared.Stella, 1)))
	assert.Equal(t, 15, e.Score(s, 0, c(shared.Onda, 4)))
	assert.Equal(t, 155, e.Score(s, 0, c(shared.Foglia, 1)))

	got, err := ChooseCard(s, 0)
	require.NoError(t, err)
	assert.Equal(t, "foglia-1", got.ID)
}

func TestExpertFeedsWinningAlly(t *testing.T) {
	s := table(shared.Stella, game.DifficultyEsperto, 0, [game.NumSeats][]shared.Card{
		2: {c(shared.Roccia, 5), c(shared.Foglia, 3), c(shared.Onda, 1)},
	},
		shared.PlayedCard{PlayerID: 0, Card: c(shared.Onda, 4)},
		shared.PlayedCard{PlayerID: 1, Card: c(shared.Stella, 1)},
	)

	got, err := ChooseCard(s, 2)
	require.NoError(t, err)
	assert.Equal(t, "onda-1", got.ID)
	assert.Equal(t, 220, Expert{}.Score(s, 2, c(shared.Onda, 1)))
}

func TestExpertStarvesJoker(t *testing.T) {
	s := table(shared.Stella, game.DifficultyEsperto, 0, [game.NumSeats][]shared.Card{
		1: {c(shared.Foglia, 1), c(shared.Roccia, 4), c(shared.Onda, 5)},
	},
		shared.PlayedCard{PlayerID: 0, Card: c(shared.Onda, 1)},
	)

	e := Expert{}
	assert.Equal(t, -440, e.Score(s, 1, c(shared.Foglia, 1)))
	assert.Equal(t, -110, e.Score(s, 1, c(shared.Roccia, 4)))
	assert.Equal(t, -110, e.Score(s, 1, c(shared.Onda, 5)))

	// Equal scores fall back to hand order.
	got, err := ChooseCard(s, 1)
	require.NoError(t, err)
	assert.Equal(t, "roccia-4", got.ID)
}

func TestExpertJokerAvoidsLeakingPoints(t *testing.T) {
	s := table(shared.Stella, game.DifficultyEsperto, 2, [game.NumSeats][]shared.Card{
		2: {c(shared.Foglia, 3), c(shared.Roccia, 6), c(shared.Onda, 9)},
	},
		shared.PlayedCard{PlayerID: 0, Card: c(shared.Onda, 1)},
		shared.PlayedCard{PlayerID: 1, Card: c(shared.Onda, 8)},
	)

	got, err := ChooseCard(s, 2)
	require.NoError(t, err)
	assert.Equal(t, "roccia-6", got.ID)
}

func TestChooseCardIsDeterministicAndPure(t *testing.T) {
	for _, difficulty := range []game.Difficulty{game.DifficultyBase, game.DifficultyEsperto} {
		t.Run(string(difficulty), func(t *testing.T) {
			s, err := game.DealMatch(game.DealOptions{
				Difficulty: difficulty,
				Rand:       rand.New(rand.NewPCG(42, 43)),
			})
			require.NoError(t, err)

			for !s.IsTerminal() {
				if winner, ok := game.PendingWinner(s); ok {
					s, _, err = game.CompleteTrick(s, winner)
					require.NoError(t, err)
					continue
				}
				seat := s.TurnIndex
				before := s.Clone()

				first, err := ChooseCard(s, seat)
				require.NoError(t, err)
				second, err := ChooseCard(s, seat)
				require.NoError(t, err)

				assert.Equal(t, first, second)
				assert.Equal(t, before, s)
				_, held := s.Players[seat].FindCard(first.ID)
				require.True(t, held)

				s, _, err = game.PlayCard(s, first, seat)
				require.NoError(t, err)
			}
			assert.Len(t, s.History, 13)
		})
	}
}
