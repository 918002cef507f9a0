package game

import (
	"fmt"
	"math/rand/v2"

	"joker-briscola/internal/shared"
)

// DealOptions configures a new match.
type DealOptions struct {
	Difficulty      Difficulty
	Names           [NumSeats]string // Empty names fall back to the previous match, then DefaultNames
	Previous        *MatchState      // Source of the tournament scores to carry over
	ResetTournament bool             // Zero every totalScore instead of carrying it
	Rand            *rand.Rand       // Shuffle source, random when nil
}

// DealMatch shuffles a fresh deck and deals a new match.
func DealMatch(opts DealOptions) (*MatchState, error) {
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return DealFromDeck(shared.NewDeck(r).Cards, opts)
}

// DealFromDeck deals a new match from cards in the given order: three cards to
// each seat from the top in seat order, then the bottom card becomes the up-card.
func DealFromDeck(cards []shared.Card, opts DealOptions) (*MatchState, error) {
	prev := opts.Previous
	if prev != nil && prev.Phase == PhaseTournamentWin && !opts.ResetTournament {
		return nil, ErrTournamentOver
	}

	deck := &shared.Deck{Cards: shared.CloneCards(cards)}
	hands, err := deck.Deal(NumSeats, HandSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %d cards", ErrDeckTooSmall, len(cards))
	}
	up, ok := deck.PopBottom()
	if !ok {
		return nil, fmt.Errorf("%w: no up-card left", ErrDeckTooSmall)
	}

	difficulty := opts.Difficulty
	if difficulty == "" {
		difficulty = DifficultyBase
	}

	s := &MatchState{
		Deck:         deck.Cards,
		DeckCount:    deck.Len(),
		Briscola:     &up,
		BriscolaSuit: up.Suit,
		PlayedCards:  []shared.PlayedCard{},
		TurnIndex:    0,
		Phase:        PhasePlaying,
		RoundCount:   1,
		Difficulty:   difficulty,
		History:      []shared.TrickRecord{},
	}

	for seat := 0; seat < NumSeats; seat++ {
		p := shared.NewPlayer(seat, seatName(opts, seat))
		if prev != nil && !opts.ResetTournament {
			p.TotalScore = prev.Players[seat].TotalScore
		}
		for _, c := range hands[seat] {
			p.AddCard(c)
		}
		s.Players[seat] = p
	}

	return s, nil
}

func seatName(opts DealOptions, seat int) string {
	if opts.Names[seat] != "" {
		return opts.Names[seat]
	}
	if opts.Previous != nil && opts.Previous.Players[seat].Name != "" {
		return opts.Previous.Players[seat].Name
	}
	return DefaultNames[seat]
}

// PlayCard plays card from seat's hand and returns the next state. The message
// is non-empty only when this play reveals the Joker.
//
// When the third card lands the trick is resolved and parked in TempWinnerID
// with WaitingForNextTrick set; CompleteTrick finalizes it.
func PlayCard(s *MatchState, card shared.Card, seat int) (*MatchState, string, error) {
	if s == nil {
		return nil, "", ErrNilState
	}
	if seat < 0 || seat >= NumSeats {
		return nil, "", ErrUnknownSeat
	}
	if s.Phase != PhasePlaying {
		return nil, "", ErrWrongPhase
	}
	if s.WaitingForNextTrick || len(s.PlayedCards) >= NumSeats {
		return nil, "", ErrTrickPending
	}
	if seat != s.TurnIndex {
		return nil, "", ErrNotYourTurn
	}
	held, ok := s.Players[seat].FindCard(card.ID)
	if !ok {
		return nil, "", ErrCardNotInHand
	}

	next := s.Clone()
	player := &next.Players[seat]
	player.RemoveCard(held)

	var msg string
	if next.JokerPlayerID == nil && held.Suit == next.BriscolaSuit {
		next.JokerPlayerID = intPtr(seat)
		shared.AssignRoles(next.Players[:], seat)
		msg = RevealMessage(player.Name)
	}

	if len(next.PlayedCards) == 0 {
		next.LeadSuit = held.Suit
	}
	next.PlayedCards = append(next.PlayedCards, shared.PlayedCard{PlayerID: seat, Card: held})
	next.TurnIndex = (seat + 1) % NumSeats

	if len(next.PlayedCards) == NumSeats {
		winner := shared.EvaluateTrick(next.PlayedCards, next.BriscolaSuit, next.LeadSuit)
		next.TempWinnerID = intPtr(winner)
		next.WaitingForNextTrick = true
	}

	return next, msg, nil
}

// PendingWinner returns the seat parked as winner of a resolved trick.
func PendingWinner(s *MatchState) (int, bool) {
	if s == nil || !s.WaitingForNextTrick || s.TempWinnerID == nil {
		return -1, false
	}
	return *s.TempWinnerID, true
}

// CompleteTrick collects the resolved trick for winnerID: scores it, refills
// hands, and closes the match and tournament when the last trick is taken.
func CompleteTrick(s *MatchState, winnerID int) (*MatchState, string, error) {
	if s == nil {
		return nil, "", ErrNilState
	}
	pending, ok := PendingWinner(s)
	if !ok || len(s.PlayedCards) != NumSeats {
		return nil, "", ErrNoTrickPending
	}
	if winnerID != pending {
		return nil, "", ErrWrongWinner
	}

	next := s.Clone()
	winner := &next.Players[winnerID]

	trickPoints := shared.TrickPoints(next.PlayedCards)
	record := shared.TrickRecord{
		Round:      next.RoundCount,
		Plays:      make([]shared.TrickPlay, 0, len(next.PlayedCards)),
		WinnerID:   winnerID,
		WinnerName: winner.Name,
		Points:     trickPoints,
	}
	for _, pc := range next.PlayedCards {
		record.Plays = append(record.Plays, shared.TrickPlay{
			PlayerID:   pc.PlayerID,
			PlayerName: next.Players[pc.PlayerID].Name,
			Card:       pc.Card,
		})
		winner.CapturedCards = append(winner.CapturedCards, pc.Card)
	}
	winner.PointsInMatch += trickPoints

	drawForSeats(next, winnerID)

	next.PlayedCards = []shared.PlayedCard{}
	next.LeadSuit = ""
	next.TurnIndex = winnerID
	next.RoundCount++
	next.WaitingForNextTrick = false
	next.TempWinnerID = nil
	next.History = append(next.History, record)

	msg := TrickMessage(record)

	if handsEmpty(next) {
		finishMatch(next)
		msg = ResultMessage(next)
	}

	return next, msg, nil
}

// drawForSeats refills one card per seat starting from the trick winner. Once
// the deck is empty the up-card goes to the next seat in line and drawing stops.
func drawForSeats(s *MatchState, winnerID int) {
	for i := 0; i < NumSeats; i++ {
		seat := (winnerID + i) % NumSeats
		switch {
		case len(s.Deck) > 0:
			s.Players[seat].AddCard(s.Deck[0])
			s.Deck = s.Deck[1:]
		case s.Briscola != nil:
			s.Players[seat].AddCard(*s.Briscola)
			s.Briscola = nil
		}
	}
	s.DeckCount = len(s.Deck)
}

func handsEmpty(s *MatchState) bool {
	for _, p := range s.Players {
		if len(p.Hand) > 0 {
			return false
		}
	}
	return true
}

// finishMatch resolves the match result, awards tournament points and picks
// the next phase.
func finishMatch(s *MatchState) {
	s.MatchResult = ResultNull
	if s.JokerPlayerID != nil {
		s.MatchResult = ResolveMatch(s.Players[*s.JokerPlayerID].PointsInMatch)
	}

	for i := range s.Players {
		p := &s.Players[i]
		switch {
		case s.MatchResult == ResultJokerWin && p.Role == shared.RoleJoker:
			p.TotalScore += JokerWinAward
		case s.MatchResult == ResultAllyWin && p.Role == shared.RoleAlly:
			p.TotalScore += AllyWinAward
		}
	}

	if seat, ok := TournamentWinner(s.Players); ok {
		s.Phase = PhaseTournamentWin
		s.TournamentWinnerID = intPtr(seat)
		return
	}
	s.Phase = PhaseMatchEnd
}

// ResolveMatch maps the Joker's points to the match result. Exactly 50 is a
// null match: neither side reaches its threshold.
func ResolveMatch(jokerScore int) MatchResult {
	switch {
	case jokerScore >= JokerWinThreshold:
		return ResultJokerWin
	case shared.TotalPoints-jokerScore >= AllyWinThreshold:
		return ResultAllyWin
	default:
		return ResultNull
	}
}

// TournamentWinner returns the seat holding at least TournamentTarget points
// strictly ahead of every other seat.
func TournamentWinner(players [NumSeats]shared.Player) (int, bool) {
	best, bestScore, tied := -1, -1, false
	for _, p := range players {
		switch {
		case p.TotalScore > bestScore:
			best, bestScore, tied = p.ID, p.TotalScore, false
		case p.TotalScore == bestScore:
			tied = true
		}
	}
	if tied || bestScore < TournamentTarget {
		return -1, false
	}
	return best, true
}
