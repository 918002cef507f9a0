package ai

import (
	"errors"

	"joker-briscola/internal/game"
	"joker-briscola/internal/shared"
)

var (
	ErrUnknownSeat = errors.New("ai: unknown seat")
	ErrEmptyHand   = errors.New("ai: empty hand")
)

// Strategy picks the card a seat plays next. Implementations never modify the
// state and always return a card from the seat's hand.
type Strategy interface {
	Choose(s *game.MatchState, seat int) shared.Card
}

// ForDifficulty returns the strategy for the AI tier.
func ForDifficulty(d game.Difficulty) Strategy {
	if d == game.DifficultyEsperto {
		return Expert{}
	}
	return Base{}
}

// ChooseCard picks the next card for seat using the tier stored in the state.
func ChooseCard(s *game.MatchState, seat int) (shared.Card, error) {
	if s == nil || seat < 0 || seat >= game.NumSeats {
		return shared.Card{}, ErrUnknownSeat
	}
	if len(s.Players[seat].Hand) == 0 {
		return shared.Card{}, ErrEmptyHand
	}
	return ForDifficulty(s.Difficulty).Choose(s, seat), nil
}

// trickWinner returns the seat that would hold the table if seat added card.
func trickWinner(s *game.MatchState, seat int, card shared.Card) int {
	plays := append(append(make([]shared.PlayedCard, 0, len(s.PlayedCards)+1), s.PlayedCards...),
		shared.PlayedCard{PlayerID: seat, Card: card})
	lead := s.LeadSuit
	if len(s.PlayedCards) == 0 {
		lead = card.Suit
	}
	return shared.EvaluateTrick(plays, s.BriscolaSuit, lead)
}

// cheaper orders by value, then rank. Equal cards keep hand order.
func cheaper(a, b shared.Card) bool {
	return a.Value < b.Value || (a.Value == b.Value && a.Rank < b.Rank)
}

func lowest(cards []shared.Card, less func(a, b shared.Card) bool) shared.Card {
	best := cards[0]
	for _, c := range cards[1:] {
		if less(c, best) {
			best = c
		}
	}
	return best
}

func filter(cards []shared.Card, keep func(shared.Card) bool) []shared.Card {
	var out []shared.Card
	for _, c := range cards {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
