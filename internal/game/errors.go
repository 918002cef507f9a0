package game

import "errors"

var (
	ErrDeckTooSmall   = errors.New("deck too small to deal")
	ErrTournamentOver = errors.New("tournament is over, reset required")
	ErrUnknownSeat    = errors.New("unknown seat")
	ErrWrongPhase     = errors.New("match is not in play")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrCardNotInHand  = errors.New("card not in hand")
	ErrTrickPending   = errors.New("trick waiting to be collected")
	ErrNoTrickPending = errors.New("no trick to collect")
	ErrWrongWinner    = errors.New("winner does not match resolved trick")
	ErrNilState       = errors.New("nil match state")
)
