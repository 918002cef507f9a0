package ai

import (
	"joker-briscola/internal/game"
	"joker-briscola/internal/shared"
)

// Base is the BASE tier: lead low, win only tricks carrying points, dump the
// cheapest card otherwise.
type Base struct{}

func (Base) Choose(s *game.MatchState, seat int) shared.Card {
	hand := s.Players[seat].Hand
	notBriscola := func(c shared.Card) bool { return c.Suit != s.BriscolaSuit }

	if len(s.PlayedCards) == 0 {
		if plain := filter(hand, notBriscola); len(plain) > 0 {
			return lowest(plain, cheaper)
		}
		return lowest(hand, cheaper)
	}

	winning := filter(hand, func(c shared.Card) bool { return trickWinner(s, seat, c) == seat })
	if len(winning) > 0 && s.TablePoints() > 0 {
		byValue := func(a, b shared.Card) bool { return a.Value < b.Value }
		if plain := filter(winning, notBriscola); len(plain) > 0 {
			return lowest(plain, byValue)
		}
		return lowest(winning, byValue)
	}

	return lowest(hand, cheaper)
}
