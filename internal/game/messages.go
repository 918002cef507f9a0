package game

import (
	"fmt"
	"strings"

	"joker-briscola/internal/shared"
)

// RevealMessage announces the seat that just became the Joker.
func RevealMessage(name string) string {
	return fmt.Sprintf("%s IS THE JOKER!", strings.ToUpper(name))
}

// TrickMessage announces who took a trick.
func TrickMessage(rec shared.TrickRecord) string {
	return fmt.Sprintf("Trick: %s (+%d)", rec.WinnerName, rec.Points)
}

// ResultMessage describes a finished match, and the tournament winner if any.
func ResultMessage(s *MatchState) string {
	var msg string
	switch {
	case s.JokerPlayerID == nil || s.MatchResult == ResultNull:
		msg = "Null match"
	case s.MatchResult == ResultJokerWin:
		msg = fmt.Sprintf("Joker wins! (%d pts)", s.Players[*s.JokerPlayerID].PointsInMatch)
	default:
		msg = fmt.Sprintf("Allies win! (%d pts)", shared.TotalPoints-s.Players[*s.JokerPlayerID].PointsInMatch)
	}
	if s.TournamentWinnerID != nil {
		msg = fmt.Sprintf("%s - %s wins the tournament!", msg, s.Players[*s.TournamentWinnerID].Name)
	}
	return msg
}
