package ai

import (
	"joker-briscola/internal/game"
	"joker-briscola/internal/shared"
)

// Weights of the ESPERTO heuristic.
const (
	strongHandSize   = 4
	revealStrongHand = 20
	revealWeakHand   = -50
	revealBigTrick   = 40
	bigTrickPoints   = 10

	winPerPoint        = 15
	wasteMasterPenalty = 30
	wasteMasterBelow   = 4
	wasteTrumpPenalty  = 20
	wasteTrumpBelow    = 3

	jokerLosePerPoint    = 10
	jokerLosePerValue    = 5
	feedAllyPerValue     = 20
	feedAllyTrumpPenalty = 10
	feedJokerPerPoint    = 10
	feedJokerPerValue    = 20
	allyUnknownPerValue  = 5
	hiddenRolesPerValue  = 2

	leadPlainBonus    = 15
	leadTrumpPenalty  = 10
	leadMasterPenalty = 10
)

// Expert is the ESPERTO tier. Each card in hand is scored and the best one is
// played; ties go to the earlier card in hand.
type Expert struct{}

func (e Expert) Choose(s *game.MatchState, seat int) shared.Card {
	hand := s.Players[seat].Hand
	best, bestScore := hand[0], e.Score(s, seat, hand[0])
	for _, c := range hand[1:] {
		if score := e.Score(s, seat, c); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// Score rates playing card from seat's hand in the current state.
func (Expert) Score(s *game.MatchState, seat int, card shared.Card) int {
	me := s.Players[seat]
	leading := len(s.PlayedCards) == 0
	trump := card.Suit == s.BriscolaSuit
	revealed := s.JokerPlayerID != nil
	total := s.TablePoints() + card.Value

	winner := trickWinner(s, seat, card)
	iWin := winner == seat

	score := 0

	if !revealed && trump {
		strong := len(filter(me.Hand, func(c shared.Card) bool {
			return c.Value >= 4 || c.Suit == s.BriscolaSuit
		}))
		if strong >= strongHandSize {
			score += revealStrongHand
		} else {
			score += revealWeakHand
		}
		if iWin && total >= bigTrickPoints {
			score += revealBigTrick
		}
	}

	if iWin {
		score += total * winPerPoint
		if card.IsMaster() && total < wasteMasterBelow {
			score -= wasteMasterPenalty
		}
		if trump && total < wasteTrumpBelow {
			score -= wasteTrumpPenalty
		}
	} else {
		winnerIsJoker := revealed && winner == *s.JokerPlayerID
		winnerIsAlly := revealed && !winnerIsJoker

		switch me.Role {
		case shared.RoleJoker:
			score -= total * jokerLosePerPoint
			score -= card.Value * jokerLosePerValue
		case shared.RoleAlly:
			switch {
			case winnerIsAlly:
				score += card.Value * feedAllyPerValue
				if trump && card.IsMaster() {
					score -= feedAllyTrumpPenalty
				}
			case winnerIsJoker:
				score -= total * feedJokerPerPoint
				score -= card.Value * feedJokerPerValue
			default:
				score -= card.Value * allyUnknownPerValue
			}
		default:
			score -= card.Value * hiddenRolesPerValue
		}
	}

	if leading {
		if !trump && card.Value == 0 {
			score += leadPlainBonus
		}
		if trump {
			score -= leadTrumpPenalty
		}
		if card.IsMaster() {
			score -= leadMasterPenalty
		}
	}

	return score
}
