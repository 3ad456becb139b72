// Package roulette implements the combinatorial bet-matrix engine: typed
// bets accumulate per-square exposure against a configurable cap, then one
// revealed seed resolves the whole round against the treasury ledger.
package roulette

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/hausgames/treasury/internal/chain"
	"github.com/hausgames/treasury/internal/ledger"
	"github.com/hausgames/treasury/internal/token"
)

var (
	// ErrExceedsSquareLimit indicates the aggregate wager on one square
	// would exceed the configured cap.
	ErrExceedsSquareLimit = errors.New("roulette: exceeding maximum bet square limit")

	// ErrTooManyBets indicates the round already holds the maximum number
	// of bets.
	ErrTooManyBets = errors.New("roulette: too many bets in round")

	// ErrNoBets indicates a launch attempt on an empty round.
	ErrNoBets = errors.New("roulette: must have bets")

	// ErrRoundNotReady indicates the round interval has not elapsed.
	ErrRoundNotReady = errors.New("roulette: round not ready")

	// ErrPoolCannotCover indicates the game allocation could not pay the
	// worst-case payout for the queued bets.
	ErrPoolCannotCover = errors.New("roulette: pool cannot cover worst-case payout")
)

// Payout factors by bet type; the factor includes the returned stake.
var defaultFactors = map[BetType]uint64{
	Single:   36,
	EvenOdd:  2,
	RedBlack: 2,
	HighLow:  2,
	Column:   3,
	Dozen:    3,
}

// Config tunes a roulette engine. Zero values fall back to defaults.
type Config struct {
	MaxSquareBet  uint64
	MaxBetCount   int
	RoundInterval time.Duration
	Factors       map[BetType]uint64
}

func (c *Config) withDefaults() {
	if c.MaxSquareBet == 0 {
		c.MaxSquareBet = 4000
	}
	if c.MaxBetCount == 0 {
		c.MaxBetCount = 36
	}
	if c.RoundInterval == 0 {
		c.RoundInterval = time.Minute
	}
	if c.Factors == nil {
		c.Factors = defaultFactors
	}
}

type squareKey struct {
	tokenIndex int
	betType    BetType
	value      int
}

// Result summarizes a resolved round.
type Result struct {
	Draw       int
	Bets       []Bet
	WinAmounts []uint64
	TotalWager uint64
	TotalWin   uint64
}

// Engine holds one roulette game's round state. All mutation happens
// under the engine lock; a settlement either completes fully or leaves
// bets, exposure, ledger and chain untouched.
type Engine struct {
	mu        sync.Mutex
	gameID    int
	ledger    *ledger.Ledger
	oracle    *chain.Oracle
	clock     quartz.Clock
	logger    *log.Logger
	cfg       Config
	bets      []Bet
	exposure  map[squareKey]uint64
	nextRound time.Time
}

// New creates a roulette engine for a registered game.
func New(gameID int, l *ledger.Ledger, oracle *chain.Oracle, clock quartz.Clock, logger *log.Logger, cfg Config) *Engine {
	cfg.withDefaults()
	return &Engine{
		gameID:    gameID,
		ledger:    l,
		oracle:    oracle,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
		exposure:  make(map[squareKey]uint64),
		nextRound: clock.Now(),
	}
}

// GameID returns the ledger game id this engine settles against.
func (e *Engine) GameID() int { return e.gameID }

// CreateBet queues a wager for the current round. The bet is validated
// against the table layout, the per-game max bet and the square cap; a
// rejected bet leaves no trace.
func (e *Engine) CreateBet(player token.Address, betType BetType, value, tokenIndex int, amount uint64) error {
	bet := Bet{Player: player, Type: betType, Value: value, TokenIndex: tokenIndex, Amount: amount}
	if err := bet.validate(); err != nil {
		return err
	}
	if err := e.ledger.ValidateBet(e.gameID, tokenIndex, amount); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.bets) >= e.cfg.MaxBetCount {
		return fmt.Errorf("%w: max %d", ErrTooManyBets, e.cfg.MaxBetCount)
	}
	key := squareKey{tokenIndex, betType, value}
	if e.exposure[key]+amount > e.cfg.MaxSquareBet {
		return fmt.Errorf("%w: %d + %d > %d", ErrExceedsSquareLimit, e.exposure[key], amount, e.cfg.MaxSquareBet)
	}

	e.exposure[key] += amount
	e.bets = append(e.bets, bet)
	e.logger.Debug("bet created",
		"player", player, "type", betType, "value", value,
		"token", tokenIndex, "amount", amount, "square", e.exposure[key])
	return nil
}

// Launch resolves the round against the revealed seed. Worst-case pool
// solvency and every bettor's allowance are checked before the chain tail
// advances, so a failed launch leaves the tail, the ledger, the bets and
// the exposure map all unchanged.
func (e *Engine) Launch(reveal chain.Hash) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.clock.Now().After(e.nextRound) {
		return nil, fmt.Errorf("%w: until %s", ErrRoundNotReady, e.nextRound)
	}
	if len(e.bets) == 0 {
		return nil, ErrNoBets
	}
	if err := e.validateFunds(); err != nil {
		return nil, err
	}

	seed, err := e.oracle.VerifyAndAdvance(reveal)
	if err != nil {
		return nil, err
	}
	draw := chain.Draw37(seed)

	result := &Result{Draw: draw, Bets: e.bets, WinAmounts: make([]uint64, len(e.bets))}
	type netKey struct {
		player     token.Address
		tokenIndex int
	}
	wagered := make(map[netKey]uint64)
	won := make(map[netKey]uint64)
	for i, bet := range e.bets {
		k := netKey{bet.Player, bet.TokenIndex}
		wagered[k] += bet.Amount
		result.TotalWager += bet.Amount
		if bet.wins(draw) {
			win := bet.Amount * e.cfg.Factors[bet.Type]
			result.WinAmounts[i] = win
			won[k] += win
			result.TotalWin += win
		}
	}

	// Net movement per (player, token): every transfer was validated
	// above, so the loop cannot fail partway.
	for k, wager := range wagered {
		win := won[k]
		switch {
		case wager > win:
			if err := e.ledger.CollectWager(e.gameID, k.tokenIndex, k.player, wager-win); err != nil {
				return nil, fmt.Errorf("roulette: collect after validation: %w", err)
			}
		case win > wager:
			if err := e.ledger.PayOut(e.gameID, k.tokenIndex, k.player, win-wager); err != nil {
				return nil, fmt.Errorf("roulette: payout after validation: %w", err)
			}
		}
	}

	e.bets = nil
	e.exposure = make(map[squareKey]uint64)
	e.nextRound = e.clock.Now().Add(e.cfg.RoundInterval)

	e.logger.Info("round resolved",
		"game", e.gameID, "draw", draw,
		"wagered", result.TotalWager, "paid", result.TotalWin)
	return result, nil
}

// validateFunds checks, before the chain advances, that every bettor has
// approved at least their gross wager and that the pool plus incoming
// wagers can cover the worst-case payout of the queued bets.
func (e *Engine) validateFunds() error {
	type netKey struct {
		player     token.Address
		tokenIndex int
	}
	wagered := make(map[netKey]uint64)
	worstCase := make(map[int]uint64)
	incoming := make(map[int]uint64)
	for _, bet := range e.bets {
		wagered[netKey{bet.Player, bet.TokenIndex}] += bet.Amount
		incoming[bet.TokenIndex] += bet.Amount
	}
	for key, amount := range e.exposure {
		worstCase[key.tokenIndex] += amount * e.cfg.Factors[key.betType]
	}

	for k, wager := range wagered {
		allowed, err := e.ledger.Allowance(k.tokenIndex, k.player)
		if err != nil {
			return err
		}
		if allowed < wager {
			return fmt.Errorf("%w: player %s allowed %d, wagered %d",
				token.ErrSpenderNotApproved, k.player, allowed, wager)
		}
	}
	for tokenIndex, necessary := range worstCase {
		available := e.ledger.Balance(e.gameID, tokenIndex) + incoming[tokenIndex]
		if available < necessary {
			return fmt.Errorf("%w: token %d available %d, necessary %d",
				ErrPoolCannotCover, tokenIndex, available, necessary)
		}
	}
	return nil
}

// BetCount returns the number of bets queued for the current round.
func (e *Engine) BetCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bets)
}

// BetCountAndValue returns the queued bet count and their summed amounts.
func (e *Engine) BetCountAndValue() (int, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total uint64
	for _, b := range e.bets {
		total += b.Amount
	}
	return len(e.bets), total
}

// SquareExposure returns the aggregate wager on one square.
func (e *Engine) SquareExposure(tokenIndex int, betType BetType, value int) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exposure[squareKey{tokenIndex, betType, value}]
}

// NextRoundTimestamp returns the earliest time the round may launch.
func (e *Engine) NextRoundTimestamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextRound
}

// PayoutForType returns the configured factor for a bet type.
func (e *Engine) PayoutForType(betType BetType) uint64 {
	return e.cfg.Factors[betType]
}

// MaxSquareBet returns the per-square exposure cap.
func (e *Engine) MaxSquareBet() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.MaxSquareBet
}

// ChangeMaxSquareBet reconfigures the per-square cap. Gated on the CEO
// role by the coordinator.
func (e *Engine) ChangeMaxSquareBet(limit uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.MaxSquareBet = limit
}

// MaxBetCount returns the per-round bet cap.
func (e *Engine) MaxBetCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.MaxBetCount
}

// ChangeMaxBetCount reconfigures the per-round bet cap. Gated on the CEO
// role by the coordinator.
func (e *Engine) ChangeMaxBetCount(count int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.MaxBetCount = count
}
