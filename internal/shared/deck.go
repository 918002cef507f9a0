package shared

import (
	"errors"
	"math/rand/v2"
)

// DeckSize is the size of a dealt deck: 40 cards minus one two.
const DeckSize = 39

var ErrNotEnoughCards = errors.New("not enough cards in deck")

// Deck represents an ordered collection of cards. The front of Cards is the top.
type Deck struct {
	Cards []Card
}

// NewDeck creates the 39-card deck: the full 40 cards with one randomly chosen
// two removed, shuffled with r.
func NewDeck(r *rand.Rand) *Deck {
	cards := make([]Card, 0, 40)
	var twos []int
	for _, suit := range Suits {
		for rank := MinRank; rank <= MaxRank; rank++ {
			if rank == 2 {
				twos = append(twos, len(cards))
			}
			cards = append(cards, NewCard(suit, rank))
		}
	}

	drop := twos[r.IntN(len(twos))]
	cards = append(cards[:drop], cards[drop+1:]...)

	d := &Deck{Cards: cards}
	d.Shuffle(r)
	return d
}

// Shuffle randomizes the order of cards in the deck (Fisher-Yates).
func (d *Deck) Shuffle(r *rand.Rand) {
	r.Shuffle(len(d.Cards), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}

// Len returns the number of cards left.
func (d *Deck) Len() int {
	return len(d.Cards)
}

// Deal takes cardsPerPlayer cards per player from the top, player by player.
func (d *Deck) Deal(numPlayers, cardsPerPlayer int) ([][]Card, error) {
	if len(d.Cards) < numPlayers*cardsPerPlayer {
		return nil, ErrNotEnoughCards
	}

	dealt := make([][]Card, numPlayers)
	for i := 0; i < numPlayers; i++ {
		hand := make([]Card, cardsPerPlayer)
		copy(hand, d.Cards[:cardsPerPlayer])
		d.Cards = d.Cards[cardsPerPlayer:]
		dealt[i] = hand
	}
	return dealt, nil
}

// PopBottom removes and returns the bottom card (the up-card is taken from here).
func (d *Deck) PopBottom() (Card, bool) {
	if len(d.Cards) == 0 {
		return Card{}, false
	}
	last := len(d.Cards) - 1
	c := d.Cards[last]
	d.Cards = d.Cards[:last]
	return c, true
}
