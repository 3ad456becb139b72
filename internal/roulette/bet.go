package roulette

import (
	"errors"
	"fmt"

	"github.com/hausgames/treasury/internal/token"
)

// BetType enumerates the supported roulette wagers.
type BetType int

const (
	Single BetType = iota
	EvenOdd
	RedBlack
	HighLow
	Column
	Dozen
)

func (b BetType) String() string {
	return [...]string{"single", "evenodd", "redblack", "highlow", "column", "dozen"}[b]
}

// ErrInvalidBet indicates a bet type or value outside the table layout.
var ErrInvalidBet = errors.New("roulette: invalid bet")

// Bet is one wager on the current round.
type Bet struct {
	Player     token.Address
	Type       BetType
	Value      int
	TokenIndex int
	Amount     uint64
}

// Value encodings per bet type. Category bets are 1-based: even/red/high
// are 1, odd/black/low are 2; column and dozen run 1..3.
const (
	ValueEven  = 1
	ValueOdd   = 2
	ValueRed   = 1
	ValueBlack = 2
	ValueHigh  = 1
	ValueLow   = 2
)

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true,
	14: true, 16: true, 18: true, 19: true, 21: true, 23: true,
	25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

func (b Bet) validate() error {
	switch b.Type {
	case Single:
		if b.Value < 0 || b.Value > 36 {
			return fmt.Errorf("%w: single number %d", ErrInvalidBet, b.Value)
		}
	case EvenOdd, RedBlack, HighLow:
		if b.Value < 1 || b.Value > 2 {
			return fmt.Errorf("%w: %s value %d", ErrInvalidBet, b.Type, b.Value)
		}
	case Column, Dozen:
		if b.Value < 1 || b.Value > 3 {
			return fmt.Errorf("%w: %s value %d", ErrInvalidBet, b.Type, b.Value)
		}
	default:
		return fmt.Errorf("%w: unknown type %d", ErrInvalidBet, int(b.Type))
	}
	return nil
}

// wins reports whether the bet wins against the drawn number. Zero only
// pays single-number bets.
func (b Bet) wins(draw int) bool {
	switch b.Type {
	case Single:
		return draw == b.Value
	case EvenOdd:
		if draw == 0 {
			return false
		}
		if b.Value == ValueEven {
			return draw%2 == 0
		}
		return draw%2 == 1
	case RedBlack:
		if draw == 0 {
			return false
		}
		if b.Value == ValueRed {
			return redNumbers[draw]
		}
		return !redNumbers[draw]
	case HighLow:
		if draw == 0 {
			return false
		}
		if b.Value == ValueHigh {
			return draw >= 19
		}
		return draw <= 18
	case Column:
		if draw == 0 {
			return false
		}
		return (draw-1)%3+1 == b.Value
	case Dozen:
		if draw == 0 {
			return false
		}
		return (draw-1)/12+1 == b.Value
	}
	return false
}
