// Package backgammon implements the head-to-head doubling game. Both
// players escrow a stake into the game allocation; a raise triples the
// escrowed total, a call brings it to four times the original stake, and
// the pot settles to the winner (or, on a drop, to the raiser minus the
// house fee).
package backgammon

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/hausgames/treasury/internal/ledger"
	"github.com/hausgames/treasury/internal/token"
)

var (
	// ErrSamePlayer indicates a game between a player and themselves.
	ErrSamePlayer = errors.New("backgammon: players must differ")

	// ErrGameInProgress indicates the pair already has an active game.
	ErrGameInProgress = errors.New("backgammon: game already in progress for pair")

	// ErrNoSuchGame indicates an unknown game id.
	ErrNoSuchGame = errors.New("backgammon: no such game")

	// ErrInvalidState indicates an operation invalid in the game's current
	// state.
	ErrInvalidState = errors.New("backgammon: invalid game state")

	// ErrNotAPlayer indicates a caller who is not a participant.
	ErrNotAPlayer = errors.New("backgammon: not a player in this game")

	// ErrNotOpposingPlayer indicates the raiser trying to answer their own
	// double.
	ErrNotOpposingPlayer = errors.New("backgammon: not the opposing player")
)

// State is the lifecycle of one game.
type State int

const (
	Uninitialized State = iota
	Active
	DoublingRequested
	Dropped
	Resolved
)

func (s State) String() string {
	return [...]string{"uninitialized", "active", "doubling_requested", "dropped", "resolved"}[s]
}

// Game is one head-to-head match. Stake is the per-player buy-in; Total is
// the escrowed pot and only ever grows; Multiplier scales the loyalty
// award after a called double.
type Game struct {
	ID             int
	PlayerOne      token.Address
	PlayerTwo      token.Address
	TokenIndex     int
	Stake          uint64
	Total          uint64
	Multiplier     uint64
	State          State
	DoublingPlayer token.Address
	BonusOne       uint64
	BonusTwo       uint64
}

func (g *Game) isPlayer(p token.Address) bool {
	return p == g.PlayerOne || p == g.PlayerTwo
}

func (g *Game) opponent(p token.Address) token.Address {
	if p == g.PlayerOne {
		return g.PlayerTwo
	}
	return g.PlayerOne
}

// Settlement reports a terminal transition: who got paid what, the fee
// retained by the house, and the raw wager value loyalty points accrue
// against for each player.
type Settlement struct {
	Game       Game
	Paid       token.Address
	Payout     uint64
	Fee        uint64
	LoyaltyRaw uint64
}

type pairKey struct {
	a, b token.Address
}

func makePairKey(p1, p2 token.Address) pairKey {
	if p2 < p1 {
		p1, p2 = p2, p1
	}
	return pairKey{p1, p2}
}

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	FeePercent uint64
}

func (c *Config) withDefaults() {
	if c.FeePercent == 0 {
		c.FeePercent = 10
	}
}

// Engine holds the game arena: every game ever played keeps its id, and a
// pair slot points at the pair's single active game until it reaches a
// terminal state.
type Engine struct {
	mu     sync.Mutex
	gameID int
	ledger *ledger.Ledger
	logger *log.Logger
	cfg    Config
	games  []*Game
	slots  map[pairKey]int
}

// New creates a backgammon engine for a registered game.
func New(gameID int, l *ledger.Ledger, logger *log.Logger, cfg Config) *Engine {
	cfg.withDefaults()
	return &Engine{
		gameID: gameID,
		ledger: l,
		logger: logger,
		cfg:    cfg,
		slots:  make(map[pairKey]int),
	}
}

// GameID returns the ledger game id this engine settles against.
func (e *Engine) GameID() int { return e.gameID }

// FeePercent returns the house fee taken from a dropped pot.
func (e *Engine) FeePercent() uint64 { return e.cfg.FeePercent }

// Game returns a snapshot of a game by id.
func (e *Engine) Game(id int) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.gameLocked(id)
	if err != nil {
		return Game{}, err
	}
	return *g, nil
}

// ActiveGameID returns the id of the pair's active game, if any.
func (e *Engine) ActiveGameID(p1, p2 token.Address) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.slots[makePairKey(p1, p2)]
	return id, ok
}

// InitializeGame escrows one stake from each player and opens the match.
// Both allowances are checked before either pull so a failure cannot leave
// a half-funded game.
func (e *Engine) InitializeGame(stake uint64, p1, p2 token.Address, tokenIndex int, bonus1, bonus2 uint64) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p1 == p2 {
		return Game{}, fmt.Errorf("%w: %s", ErrSamePlayer, p1)
	}
	key := makePairKey(p1, p2)
	if id, ok := e.slots[key]; ok {
		return Game{}, fmt.Errorf("%w: game %d", ErrGameInProgress, id)
	}
	if err := e.ledger.ValidateBet(e.gameID, tokenIndex, stake); err != nil {
		return Game{}, err
	}
	for _, p := range []token.Address{p1, p2} {
		allowed, err := e.ledger.Allowance(tokenIndex, p)
		if err != nil {
			return Game{}, err
		}
		if allowed < stake {
			return Game{}, fmt.Errorf("%w: player %s allowed %d, stake %d",
				token.ErrSpenderNotApproved, p, allowed, stake)
		}
	}
	if err := e.ledger.CollectWager(e.gameID, tokenIndex, p1, stake); err != nil {
		return Game{}, err
	}
	if err := e.ledger.CollectWager(e.gameID, tokenIndex, p2, stake); err != nil {
		return Game{}, fmt.Errorf("backgammon: second escrow pull: %w", err)
	}

	g := &Game{
		ID:         len(e.games),
		PlayerOne:  p1,
		PlayerTwo:  p2,
		TokenIndex: tokenIndex,
		Stake:      stake,
		Total:      2 * stake,
		Multiplier: 1,
		State:      Active,
		BonusOne:   bonus1,
		BonusTwo:   bonus2,
	}
	e.games = append(e.games, g)
	e.slots[key] = g.ID

	e.logger.Info("game started",
		"id", g.ID, "p1", p1, "p2", p2, "stake", stake, "token", tokenIndex)
	return *g, nil
}

// RaiseDouble escrows one more stake from the raiser and hands the
// decision to the opponent.
func (e *Engine) RaiseDouble(id int, player token.Address) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.gameLocked(id)
	if err != nil {
		return Game{}, err
	}
	if g.State != Active {
		return Game{}, fmt.Errorf("%w: raise in %s", ErrInvalidState, g.State)
	}
	if !g.isPlayer(player) {
		return Game{}, fmt.Errorf("%w: %s", ErrNotAPlayer, player)
	}
	if err := e.pullStake(g, player); err != nil {
		return Game{}, err
	}

	g.Total += g.Stake
	g.State = DoublingRequested
	g.DoublingPlayer = player

	e.logger.Info("stake raised", "id", g.ID, "by", player, "total", g.Total)
	return *g, nil
}

// CallDouble accepts the double: the opponent matches the raise and play
// continues for four times the original stake.
func (e *Engine) CallDouble(id int, player token.Address) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.gameLocked(id)
	if err != nil {
		return Game{}, err
	}
	if g.State != DoublingRequested {
		return Game{}, fmt.Errorf("%w: call in %s", ErrInvalidState, g.State)
	}
	if !g.isPlayer(player) {
		return Game{}, fmt.Errorf("%w: %s", ErrNotAPlayer, player)
	}
	if player == g.DoublingPlayer {
		return Game{}, fmt.Errorf("%w: %s raised the double", ErrNotOpposingPlayer, player)
	}
	if err := e.pullStake(g, player); err != nil {
		return Game{}, err
	}

	g.Total += g.Stake
	g.Multiplier = 4
	g.State = Active
	g.DoublingPlayer = token.ZeroAddress

	e.logger.Info("double called", "id", g.ID, "by", player, "total", g.Total)
	return *g, nil
}

// DropGame concedes a pending double: the raiser collects the pot minus
// the house fee and the match ends. Loyalty accrues against the pre-raise
// stake.
func (e *Engine) DropGame(id int, player token.Address) (Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.gameLocked(id)
	if err != nil {
		return Settlement{}, err
	}
	if g.State != DoublingRequested {
		return Settlement{}, fmt.Errorf("%w: drop in %s", ErrInvalidState, g.State)
	}
	if !g.isPlayer(player) {
		return Settlement{}, fmt.Errorf("%w: %s", ErrNotAPlayer, player)
	}
	if player == g.DoublingPlayer {
		return Settlement{}, fmt.Errorf("%w: %s raised the double", ErrNotOpposingPlayer, player)
	}

	payout := g.Total * (100 - e.cfg.FeePercent) / 100
	fee := g.Total - payout
	if err := e.ledger.PayOut(e.gameID, g.TokenIndex, g.DoublingPlayer, payout); err != nil {
		return Settlement{}, err
	}

	g.State = Dropped
	paid := g.DoublingPlayer
	g.DoublingPlayer = token.ZeroAddress
	delete(e.slots, makePairKey(g.PlayerOne, g.PlayerTwo))

	e.logger.Info("game dropped",
		"id", g.ID, "by", player, "payout", payout, "fee", fee)
	return Settlement{Game: *g, Paid: paid, Payout: payout, Fee: fee, LoyaltyRaw: g.Stake}, nil
}

// ResolveGame pays the full pot to the winner and ends the match. Loyalty
// accrues against stake times the doubling multiplier.
func (e *Engine) ResolveGame(id int, winner token.Address) (Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.gameLocked(id)
	if err != nil {
		return Settlement{}, err
	}
	if g.State != Active {
		return Settlement{}, fmt.Errorf("%w: resolve in %s", ErrInvalidState, g.State)
	}
	if !g.isPlayer(winner) {
		return Settlement{}, fmt.Errorf("%w: %s", ErrNotAPlayer, winner)
	}
	if err := e.ledger.PayOut(e.gameID, g.TokenIndex, winner, g.Total); err != nil {
		return Settlement{}, err
	}

	g.State = Resolved
	delete(e.slots, makePairKey(g.PlayerOne, g.PlayerTwo))

	e.logger.Info("game resolved", "id", g.ID, "winner", winner, "payout", g.Total)
	return Settlement{Game: *g, Paid: winner, Payout: g.Total, LoyaltyRaw: g.Stake * g.Multiplier}, nil
}

func (e *Engine) gameLocked(id int) (*Game, error) {
	if id < 0 || id >= len(e.games) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchGame, id)
	}
	return e.games[id], nil
}

// pullStake escrows one more stake from a player, allowance checked first.
func (e *Engine) pullStake(g *Game, player token.Address) error {
	allowed, err := e.ledger.Allowance(g.TokenIndex, player)
	if err != nil {
		return err
	}
	if allowed < g.Stake {
		return fmt.Errorf("%w: player %s allowed %d, stake %d",
			token.ErrSpenderNotApproved, player, allowed, g.Stake)
	}
	return e.ledger.CollectWager(e.gameID, g.TokenIndex, player, g.Stake)
}
