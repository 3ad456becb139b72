// Package ledger implements the treasury's per-game, per-token fund
// accounting. The ledger exclusively owns balance mutation: game engines
// request collects, payouts, debits and credits, but never move funds
// themselves. Every mutator either completes fully or leaves all state
// unchanged.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/hausgames/treasury/internal/access"
	"github.com/hausgames/treasury/internal/token"
)

var (
	// ErrUnknownToken indicates a token index outside the registry.
	ErrUnknownToken = errors.New("ledger: unknown token index")

	// ErrUnknownGame indicates a game id outside the registry.
	ErrUnknownGame = errors.New("ledger: unknown game")

	// ErrInsufficientGameBalance indicates a debit or withdrawal that would
	// take a game allocation below zero.
	ErrInsufficientGameBalance = errors.New("ledger: insufficient game balance")

	// ErrExceedsMaxBet indicates a wager above the configured per-game,
	// per-token maximum.
	ErrExceedsMaxBet = errors.New("ledger: bet amount is more than maximum")
)

// RegisteredToken pairs a token implementation with its display name.
// The registry is append-only; indexes are stable for the ledger lifetime.
type RegisteredToken struct {
	Address token.Address
	Name    string
	Token   token.Token
}

// Game is a registered game entry. The game id is its registry index.
type Game struct {
	ID   int
	Name string
}

type allocKey struct {
	gameID     int
	tokenIndex int
}

// Ledger is the treasury ledger.
type Ledger struct {
	mu      sync.Mutex
	self    token.Address
	roles   *access.Roles
	logger  *log.Logger
	tokens  []RegisteredToken
	games   []Game
	alloc   map[allocKey]uint64
	maxBets map[allocKey]uint64
}

// New creates an empty ledger. self is the treasury's own token account,
// the destination for collected wagers and the source of payouts.
func New(self token.Address, roles *access.Roles, logger *log.Logger) *Ledger {
	return &Ledger{
		self:    self,
		roles:   roles,
		logger:  logger,
		alloc:   make(map[allocKey]uint64),
		maxBets: make(map[allocKey]uint64),
	}
}

// Address returns the treasury's own token account.
func (l *Ledger) Address() token.Address { return l.self }

// RegisterToken appends a token to the registry. CEO-gated; tokens are
// never removed.
func (l *Ledger) RegisterToken(caller token.Address, tok token.Token, addr token.Address, name string) (int, error) {
	if err := l.roles.RequireCEO(caller); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = append(l.tokens, RegisteredToken{Address: addr, Name: name, Token: tok})
	idx := len(l.tokens) - 1
	l.logger.Info("token registered", "index", idx, "name", name, "address", addr)
	return idx, nil
}

// AddGame registers a game and returns its id. CEO-gated.
func (l *Ledger) AddGame(caller token.Address, name string) (int, error) {
	if err := l.roles.RequireCEO(caller); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	id := len(l.games)
	l.games = append(l.games, Game{ID: id, Name: name})
	l.logger.Info("game added", "game", id, "name", name)
	return id, nil
}

// Token returns a registered token by index.
func (l *Ledger) Token(tokenIndex int) (RegisteredToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokenLocked(tokenIndex)
}

// GameName returns the display name of a registered game.
func (l *Ledger) GameName(gameID int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gameID < 0 || gameID >= len(l.games) {
		return "", fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	return l.games[gameID].Name, nil
}

// SetMaximumBet configures the per-game, per-token max wager. CEO-gated.
func (l *Ledger) SetMaximumBet(caller token.Address, gameID, tokenIndex int, amount uint64) error {
	if err := l.roles.RequireCEO(caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkPairLocked(gameID, tokenIndex); err != nil {
		return err
	}
	l.maxBets[allocKey{gameID, tokenIndex}] = amount
	return nil
}

// MaxBet returns the configured max wager for a (game, token) pair.
func (l *Ledger) MaxBet(gameID, tokenIndex int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxBets[allocKey{gameID, tokenIndex}]
}

// ValidateBet rejects wagers above the configured maximum.
func (l *Ledger) ValidateBet(gameID, tokenIndex int, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkPairLocked(gameID, tokenIndex); err != nil {
		return err
	}
	if max := l.maxBets[allocKey{gameID, tokenIndex}]; amount > max {
		return fmt.Errorf("%w: %d > %d", ErrExceedsMaxBet, amount, max)
	}
	return nil
}

// AddFunds pulls tokens from the caller into a game's allocation. The
// caller must have approved the treasury as spender first.
func (l *Ledger) AddFunds(caller token.Address, gameID, tokenIndex int, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkPairLocked(gameID, tokenIndex); err != nil {
		return err
	}
	t := l.tokens[tokenIndex]
	if err := t.Token.TransferFrom(l.self, caller, l.self, amount); err != nil {
		return err
	}
	l.alloc[allocKey{gameID, tokenIndex}] += amount
	l.logger.Debug("funds added", "game", gameID, "token", tokenIndex, "amount", amount)
	return nil
}

// WithdrawGameTokens moves funds out of a game allocation to the caller.
// CEO-gated; fails if the allocation cannot cover the amount.
func (l *Ledger) WithdrawGameTokens(caller token.Address, gameID, tokenIndex int, amount uint64) error {
	if err := l.roles.RequireCEO(caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkPairLocked(gameID, tokenIndex); err != nil {
		return err
	}
	key := allocKey{gameID, tokenIndex}
	if l.alloc[key] < amount {
		return fmt.Errorf("%w: have %d, want %d", ErrInsufficientGameBalance, l.alloc[key], amount)
	}
	t := l.tokens[tokenIndex]
	if err := t.Token.Transfer(l.self, caller, amount); err != nil {
		return err
	}
	l.alloc[key] -= amount
	return nil
}

// WithdrawTreasuryTokens drains every allocation of one token to the
// caller. CEO-gated.
func (l *Ledger) WithdrawTreasuryTokens(caller token.Address, tokenIndex int) error {
	if err := l.roles.RequireCEO(caller); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.tokenLocked(tokenIndex)
	if err != nil {
		return err
	}
	total := t.Token.BalanceOf(l.self)
	if err := t.Token.Transfer(l.self, caller, total); err != nil {
		return err
	}
	for key := range l.alloc {
		if key.tokenIndex == tokenIndex {
			delete(l.alloc, key)
		}
	}
	l.logger.Info("treasury token drained", "token", tokenIndex, "amount", total)
	return nil
}

// Balance returns the current allocation for a (game, token) pair.
func (l *Ledger) Balance(gameID, tokenIndex int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alloc[allocKey{gameID, tokenIndex}]
}

// CollectWager pulls a player's wager into the game allocation, by way of
// the player's prior allowance to the treasury.
func (l *Ledger) CollectWager(gameID, tokenIndex int, player token.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkPairLocked(gameID, tokenIndex); err != nil {
		return err
	}
	t := l.tokens[tokenIndex]
	if err := t.Token.TransferFrom(l.self, player, l.self, amount); err != nil {
		return err
	}
	l.alloc[allocKey{gameID, tokenIndex}] += amount
	return nil
}

// Allowance reports the remaining amount a player has approved the
// treasury to spend. Engines use it to validate a whole settlement before
// moving any funds.
func (l *Ledger) Allowance(tokenIndex int, player token.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.tokenLocked(tokenIndex)
	if err != nil {
		return 0, err
	}
	return t.Token.Allowance(player, l.self), nil
}

// PayOut moves a payout from the game allocation to a player. Fails,
// leaving everything unchanged, if the allocation cannot cover it.
func (l *Ledger) PayOut(gameID, tokenIndex int, player token.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkPairLocked(gameID, tokenIndex); err != nil {
		return err
	}
	key := allocKey{gameID, tokenIndex}
	if l.alloc[key] < amount {
		return fmt.Errorf("%w: have %d, payout %d", ErrInsufficientGameBalance, l.alloc[key], amount)
	}
	t := l.tokens[tokenIndex]
	if err := t.Token.Transfer(l.self, player, amount); err != nil {
		return err
	}
	l.alloc[key] -= amount
	return nil
}

// Debit reduces a game allocation without external token movement.
func (l *Ledger) Debit(gameID, tokenIndex int, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkPairLocked(gameID, tokenIndex); err != nil {
		return err
	}
	key := allocKey{gameID, tokenIndex}
	if l.alloc[key] < amount {
		return fmt.Errorf("%w: have %d, debit %d", ErrInsufficientGameBalance, l.alloc[key], amount)
	}
	l.alloc[key] -= amount
	return nil
}

// Credit increases a game allocation without external token movement.
func (l *Ledger) Credit(gameID, tokenIndex int, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkPairLocked(gameID, tokenIndex); err != nil {
		return err
	}
	l.alloc[allocKey{gameID, tokenIndex}] += amount
	return nil
}

func (l *Ledger) tokenLocked(tokenIndex int) (RegisteredToken, error) {
	if tokenIndex < 0 || tokenIndex >= len(l.tokens) {
		return RegisteredToken{}, fmt.Errorf("%w: %d", ErrUnknownToken, tokenIndex)
	}
	return l.tokens[tokenIndex], nil
}

func (l *Ledger) checkPairLocked(gameID, tokenIndex int) error {
	if gameID < 0 || gameID >= len(l.games) {
		return fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	if _, err := l.tokenLocked(tokenIndex); err != nil {
		return err
	}
	return nil
}
