// Package slots implements the four-reel engine: one revealed seed spins
// all reels, a full symbol match pays out by tier, and the round settles
// against the treasury ledger in a single net movement.
package slots

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/hausgames/treasury/internal/chain"
	"github.com/hausgames/treasury/internal/ledger"
	"github.com/hausgames/treasury/internal/token"
)

var (
	// ErrInvalidFactors indicates a factor table that is not strictly
	// descending or contains a zero.
	ErrInvalidFactors = errors.New("slots: factors must be strictly descending and non-zero")

	// ErrPoolCannotCover indicates the game allocation could not pay the
	// maximum payout for the wager.
	ErrPoolCannotCover = errors.New("slots: pool cannot cover maximum payout")
)

// Each reel shows one of 15 symbols.
const symbolCount = 15

var defaultFactors = [4]uint64{250, 15, 8, 4}

// Result summarizes one resolved spin.
type Result struct {
	Player     token.Address
	LandID     int
	MachineID  int
	TokenIndex int
	Amount     uint64
	Symbols    [4]int
	WinAmount  uint64
}

// Engine settles slot spins for a registered game.
type Engine struct {
	mu      sync.Mutex
	gameID  int
	ledger  *ledger.Ledger
	oracle  *chain.Oracle
	logger  *log.Logger
	factors [4]uint64
}

// New creates a slots engine. A zero factor table falls back to the
// defaults.
func New(gameID int, l *ledger.Ledger, oracle *chain.Oracle, logger *log.Logger, factors [4]uint64) *Engine {
	if factors == ([4]uint64{}) {
		factors = defaultFactors
	}
	return &Engine{
		gameID:  gameID,
		ledger:  l,
		oracle:  oracle,
		logger:  logger,
		factors: factors,
	}
}

// GameID returns the ledger game id this engine settles against.
func (e *Engine) GameID() int { return e.gameID }

// Factors returns the current payout factor table, jackpot first.
func (e *Engine) Factors() [4]uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.factors
}

// PayoutFactor returns the factor for one payout tier.
func (e *Engine) PayoutFactor(tier int) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.factors[tier]
}

// MaxPayout returns the largest possible payout for a wager, used for the
// pool solvency check before settlement.
func (e *Engine) MaxPayout(amount uint64) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return amount * e.factors[0]
}

// UpdateFactors replaces the payout table. Gated on the CEO role by the
// coordinator.
func (e *Engine) UpdateFactors(factors [4]uint64) error {
	for i, f := range factors {
		if f == 0 || (i > 0 && f >= factors[i-1]) {
			return fmt.Errorf("%w: %v", ErrInvalidFactors, factors)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.factors = factors
	return nil
}

// Play settles one spin against the revealed seed. The wager, the player's
// allowance and the pool's worst-case solvency are all validated before the
// chain tail advances, so a failed play leaves everything unchanged.
func (e *Engine) Play(player token.Address, landID, machineID int, amount uint64, reveal chain.Hash, tokenIndex int) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ledger.ValidateBet(e.gameID, tokenIndex, amount); err != nil {
		return nil, err
	}
	allowed, err := e.ledger.Allowance(tokenIndex, player)
	if err != nil {
		return nil, err
	}
	if allowed < amount {
		return nil, fmt.Errorf("%w: player %s allowed %d, wagered %d",
			token.ErrSpenderNotApproved, player, allowed, amount)
	}
	if available := e.ledger.Balance(e.gameID, tokenIndex) + amount; available < amount*e.factors[0] {
		return nil, fmt.Errorf("%w: available %d, necessary %d",
			ErrPoolCannotCover, available, amount*e.factors[0])
	}

	seed, err := e.oracle.VerifyAndAdvance(reveal)
	if err != nil {
		return nil, err
	}
	win, symbols := winAmount(seed, amount, e.factors)

	// Net movement; validated above, so neither branch can fail.
	switch {
	case amount > win:
		if err := e.ledger.CollectWager(e.gameID, tokenIndex, player, amount-win); err != nil {
			return nil, fmt.Errorf("slots: collect after validation: %w", err)
		}
	case win > amount:
		if err := e.ledger.PayOut(e.gameID, tokenIndex, player, win-amount); err != nil {
			return nil, fmt.Errorf("slots: payout after validation: %w", err)
		}
	}

	e.logger.Info("spin resolved",
		"game", e.gameID, "player", player, "land", landID, "machine", machineID,
		"amount", amount, "symbols", symbols, "win", win)
	return &Result{
		Player:     player,
		LandID:     landID,
		MachineID:  machineID,
		TokenIndex: tokenIndex,
		Amount:     amount,
		Symbols:    symbols,
		WinAmount:  win,
	}, nil
}

// reelSymbols maps the four seed slices onto the symbol wheel.
func reelSymbols(seed chain.Hash) [4]int {
	pos := chain.ReelPositions(seed)
	var out [4]int
	for i, p := range pos {
		out[i] = int(p) % symbolCount
	}
	return out
}

// tier maps a winning symbol to its payout tier. Symbol 0 is the jackpot;
// the remaining symbols split into three bands of rising frequency.
func tier(symbol int) int {
	switch {
	case symbol == 0:
		return 0
	case symbol <= 4:
		return 1
	case symbol <= 9:
		return 2
	default:
		return 3
	}
}

// winAmount resolves a spin: all four reels must show the same symbol to
// pay out. Pure function of the seed, so any settlement is auditable.
func winAmount(seed chain.Hash, amount uint64, factors [4]uint64) (uint64, [4]int) {
	symbols := reelSymbols(seed)
	for _, s := range symbols[1:] {
		if s != symbols[0] {
			return 0, symbols
		}
	}
	return amount * factors[tier(symbols[0])], symbols
}
