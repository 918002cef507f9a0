package shared

import "fmt"

// Suit represents the suit of a card (foglia, onda, roccia, stella).
type Suit string

const (
	Foglia Suit = "foglia"
	Onda   Suit = "onda"
	Roccia Suit = "roccia"
	Stella Suit = "stella"
)

// Suits lists the four suits in deck construction order.
var Suits = []Suit{Foglia, Onda, Roccia, Stella}

// Card represents a single card. Cards are values and never change once built.
type Card struct {
	ID    string `json:"id"`    // "<suit>-<rank>", identity of the card
	Suit  Suit   `json:"suit"`  // The suit of the card
	Rank  int    `json:"rank"`  // 1..10
	Value int    `json:"value"` // Points captured with the card
	Label string `json:"label"` // Display name of the rank
}

const (
	MinRank = 1
	MaxRank = 10

	// TotalPoints is the point mass of a full deck; removing a two never changes it.
	TotalPoints = 120
)

// Define card values for scoring
var cardValues = map[int]int{
	1:  11, // Asso
	3:  10, // Tre
	10: 4,  // Re
	9:  3,  // Cavallo
	8:  2,  // Fante
	7:  0,
	6:  0,
	5:  0,
	4:  0,
	2:  0,
}

var cardLabels = map[int]string{
	1:  "Asso",
	2:  "Due",
	3:  "Tre",
	4:  "Quattro",
	5:  "Cinque",
	6:  "Sei",
	7:  "Sette",
	8:  "Fante",
	9:  "Cavallo",
	10: "Re",
}

// NewCard builds the card of the given suit and rank.
func NewCard(suit Suit, rank int) Card {
	return Card{
		ID:    CardID(suit, rank),
		Suit:  suit,
		Rank:  rank,
		Value: cardValues[rank],
		Label: cardLabels[rank],
	}
}

// CardID returns the identity string of a suit/rank pair.
func CardID(suit Suit, rank int) string {
	return fmt.Sprintf("%s-%d", suit, rank)
}

// IsMaster reports whether the card is an Ace or a Three.
func (c Card) IsMaster() bool {
	return c.Rank == 1 || c.Rank == 3
}

func (c Card) String() string {
	return fmt.Sprintf("%s di %s", c.Label, c.Suit)
}

// SumValues adds up the point value of the cards.
func SumValues(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.Value
	}
	return total
}

// CloneCards copies a card slice, keeping nil as nil.
func CloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	return append(make([]Card, 0, len(cards)), cards...)
}
