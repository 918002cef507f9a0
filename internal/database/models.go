package database

import (
	"time"

	"github.com/google/uuid"

	"joker-briscola/internal/game"
)

// MatchResult is one finished match as stored in the results table.
type MatchResult struct {
	ID               string `json:"id"`
	CreatedAt        string `json:"created_at"`
	RoomCode         string `json:"room_code"`
	Player1          string `json:"player1"`
	Player2          string `json:"player2"`
	Player3          string `json:"player3"`
	JokerSeat        int    `json:"joker_seat"` // -1 when nobody played Briscola
	JokerPoints      int    `json:"joker_points"`
	Result           string `json:"result"`
	Player1Total     int    `json:"player1_total"`
	Player2Total     int    `json:"player2_total"`
	Player3Total     int    `json:"player3_total"`
	TournamentWinner string `json:"tournament_winner,omitempty"`
}

// NewMatchResult summarizes a finished match snapshot.
func NewMatchResult(roomCode string, s *game.MatchState) MatchResult {
	r := MatchResult{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		RoomCode:     roomCode,
		Player1:      s.Players[0].Name,
		Player2:      s.Players[1].Name,
		Player3:      s.Players[2].Name,
		JokerSeat:    -1,
		Result:       string(s.MatchResult),
		Player1Total: s.Players[0].TotalScore,
		Player2Total: s.Players[1].TotalScore,
		Player3Total: s.Players[2].TotalScore,
	}
	if s.JokerPlayerID != nil {
		r.JokerSeat = *s.JokerPlayerID
		r.JokerPoints = s.Players[*s.JokerPlayerID].PointsInMatch
	}
	if s.TournamentWinnerID != nil {
		r.TournamentWinner = s.Players[*s.TournamentWinnerID].Name
	}
	return r
}
