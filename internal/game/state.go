package game

import "joker-briscola/internal/shared"

// Phase represents the current phase of a match.
type Phase string

const (
	PhaseWaiting       Phase = "WAITING"        // No match dealt yet
	PhasePlaying       Phase = "PLAYING"        // Tricks are being played
	PhaseTrickEnd      Phase = "TRICK_END"      // Kept for wire compatibility, the engine uses WaitingForNextTrick
	PhaseMatchEnd      Phase = "MATCH_END"      // All 13 tricks played, tournament continues
	PhaseTournamentWin Phase = "TOURNAMENT_WIN" // A seat reached the target alone
)

// Difficulty selects the AI tier.
type Difficulty string

const (
	DifficultyBase    Difficulty = "BASE"
	DifficultyEsperto Difficulty = "ESPERTO"
)

// MatchResult is the outcome of a finished match.
type MatchResult string

const (
	ResultJokerWin MatchResult = "JOKER_WIN"
	ResultAllyWin  MatchResult = "ALLY_WIN"
	ResultNull     MatchResult = "NULL"
)

const (
	NumSeats = 3
	HandSize = 3

	JokerWinThreshold = 51
	AllyWinThreshold  = 71
	JokerWinAward     = 2
	AllyWinAward      = 1
	TournamentTarget  = 10
)

// DefaultNames are used for seats dealt without a name.
var DefaultNames = [NumSeats]string{"You", "CPU 1", "CPU 2"}

// MatchState is the whole state of a match. It is replaced on every transition,
// never modified in place, and doubles as the wire snapshot.
type MatchState struct {
	Players             [NumSeats]shared.Player `json:"players"`
	Deck                []shared.Card           `json:"deck"`
	DeckCount           int                     `json:"deckCount"`
	Briscola            *shared.Card            `json:"briscola"`     // Up-card, nil once drawn
	BriscolaSuit        shared.Suit             `json:"briscolaSuit"` // Trump suit for the whole match
	PlayedCards         []shared.PlayedCard     `json:"playedCards"`
	TurnIndex           int                     `json:"turnIndex"`
	JokerPlayerID       *int                    `json:"jokerPlayerId"`
	Phase               Phase                   `json:"phase"`
	RoundCount          int                     `json:"roundCount"`
	LeadSuit            shared.Suit             `json:"leadSuit,omitempty"`
	Difficulty          Difficulty              `json:"difficulty"`
	WaitingForNextTrick bool                    `json:"waitingForNextTrick"`
	TempWinnerID        *int                    `json:"tempWinnerId"`
	History             []shared.TrickRecord    `json:"history"`
	MatchResult         MatchResult             `json:"matchResult,omitempty"`
	TournamentWinnerID  *int                    `json:"tournamentWinnerId"`
}

// Clone returns a deep copy of the state.
func (s *MatchState) Clone() *MatchState {
	if s == nil {
		return nil
	}
	c := *s
	for i := range s.Players {
		c.Players[i] = s.Players[i].Clone()
	}
	c.Deck = shared.CloneCards(s.Deck)
	if s.Briscola != nil {
		b := *s.Briscola
		c.Briscola = &b
	}
	if s.PlayedCards != nil {
		c.PlayedCards = append(make([]shared.PlayedCard, 0, len(s.PlayedCards)), s.PlayedCards...)
	}
	c.JokerPlayerID = cloneInt(s.JokerPlayerID)
	c.TempWinnerID = cloneInt(s.TempWinnerID)
	c.TournamentWinnerID = cloneInt(s.TournamentWinnerID)
	if s.History != nil {
		c.History = make([]shared.TrickRecord, len(s.History))
		for i, rec := range s.History {
			rec.Plays = append([]shared.TrickPlay(nil), rec.Plays...)
			c.History[i] = rec
		}
	}
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func intPtr(v int) *int {
	return &v
}

// Player returns the player at seat, or nil for an unknown seat.
func (s *MatchState) Player(seat int) *shared.Player {
	if seat < 0 || seat >= NumSeats {
		return nil
	}
	return &s.Players[seat]
}

// IsTerminal reports whether no more cards can be played in this match.
func (s *MatchState) IsTerminal() bool {
	return s.Phase == PhaseMatchEnd || s.Phase == PhaseTournamentWin
}

// TablePoints returns the points currently on the table.
func (s *MatchState) TablePoints() int {
	return shared.TrickPoints(s.PlayedCards)
}

// CardsInPlay counts every card the match accounts for: hands, deck, up-card,
// table and captured piles. It is always shared.DeckSize.
func (s *MatchState) CardsInPlay() int {
	n := len(s.Deck) + len(s.PlayedCards)
	if s.Briscola != nil {
		n++
	}
	for _, p := range s.Players {
		n += len(p.Hand) + len(p.CapturedCards)
	}
	return n
}

// PointsInPlay sums captured points, table points and the value of every card
// still held or undrawn. It is always shared.TotalPoints.
func (s *MatchState) PointsInPlay() int {
	total := s.TablePoints() + shared.SumValues(s.Deck)
	if s.Briscola != nil {
		total += s.Briscola.Value
	}
	for _, p := range s.Players {
		total += p.PointsInMatch + shared.SumValues(p.Hand)
	}
	return total
}
