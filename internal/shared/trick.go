package shared

// PlayedCard stores a card along with the seat that played it.
type PlayedCard struct {
	PlayerID int  `json:"playerId"`
	Card     Card `json:"card"`
}

// TrickPlay is a PlayedCard with the player's name resolved, for history.
type TrickPlay struct {
	PlayerID   int    `json:"playerId"`
	PlayerName string `json:"playerName"`
	Card       Card   `json:"card"`
}

// TrickRecord is an immutable entry of the trick history.
type TrickRecord struct {
	Round      int         `json:"round"`
	Plays      []TrickPlay `json:"plays"`
	WinnerID   int         `json:"winnerId"`
	WinnerName string      `json:"winnerName"`
	Points     int         `json:"points"`
}

// EvaluateTrick returns the seat winning the plays, or -1 for an empty trick.
//
// Plays are walked in order with the first as provisional winner. A card takes
// the lead when it is Briscola over a non-Briscola, when it beats the winner in
// the same suit (value, then rank), or when it follows the lead suit while the
// winner is neither Briscola nor lead suit.
func EvaluateTrick(plays []PlayedCard, briscola, lead Suit) int {
	if len(plays) == 0 {
		return -1
	}

	winner := plays[0]
	for _, cur := range plays[1:] {
		win := winner.Card
		c := cur.Card
		switch {
		case c.Suit == briscola && win.Suit != briscola:
			winner = cur
		case c.Suit == win.Suit:
			if c.Value > win.Value || (c.Value == win.Value && c.Rank > win.Rank) {
				winner = cur
			}
		case c.Suit == lead && win.Suit != briscola && win.Suit != lead:
			winner = cur
		}
	}
	return winner.PlayerID
}

// TrickPoints sums the value of the cards on the table.
func TrickPoints(plays []PlayedCard) int {
	total := 0
	for _, p := range plays {
		total += p.Card.Value
	}
	return total
}
