package shared

// Player represents one of the three seats of a match.
type Player struct {
	ID            int    `json:"id"`            // Stable identity, equal to the seat
	Name          string `json:"name"`          // Player's chosen name
	Index         int    `json:"index"`         // Seat index, the turn-order key
	HandSize      int    `json:"handSize"`      // Mirrors len(Hand)
	Hand          []Card `json:"hand"`          // Cards currently held
	Role          Role   `json:"role"`          // NONE until the Joker is revealed
	PointsInMatch int    `json:"pointsInMatch"` // Points captured in this match
	TotalScore    int    `json:"totalScore"`    // Tournament score, survives re-deals
	CapturedCards []Card `json:"capturedCards"` // Cards won in tricks
}

// NewPlayer creates a player for the given seat.
func NewPlayer(seat int, name string) Player {
	return Player{
		ID:            seat,
		Name:          name,
		Index:         seat,
		Hand:          []Card{},
		Role:          RoleNone,
		CapturedCards: []Card{},
	}
}

// AddCard adds a card to the player's hand.
func (p *Player) AddCard(card Card) {
	p.Hand = append(p.Hand, card)
	p.HandSize = len(p.Hand)
}

// RemoveCard removes a card from the player's hand by identity.
func (p *Player) RemoveCard(card Card) bool {
	for i, c := range p.Hand {
		if c.ID == card.ID {
			p.Hand = append(p.Hand[:i:i], p.Hand[i+1:]...)
			p.HandSize = len(p.Hand)
			return true
		}
	}
	return false
}

// FindCard looks a card up in the hand by identity.
func (p *Player) FindCard(id string) (Card, bool) {
	for _, card := range p.Hand {
		if card.ID == id {
			return card, true
		}
	}
	return Card{}, false
}

// Clone returns a deep copy of the player.
func (p Player) Clone() Player {
	p.Hand = CloneCards(p.Hand)
	p.CapturedCards = CloneCards(p.CapturedCards)
	return p
}
