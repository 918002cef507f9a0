package shared

// Role is the hidden side a seat plays on.
type Role string

const (
	RoleNone  Role = "NONE"  // Not yet revealed
	RoleJoker Role = "JOKER" // Plays alone against the other two
	RoleAlly  Role = "ALLY"  // Partners against the Joker
)

// AssignRoles makes jokerSeat the Joker and every other player an Ally.
func AssignRoles(players []Player, jokerSeat int) {
	for i := range players {
		if players[i].ID == jokerSeat {
			players[i].Role = RoleJoker
		} else {
			players[i].Role = RoleAlly
		}
	}
}
