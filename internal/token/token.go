// Package token defines the fungible token interface the treasury settles
// against, plus an in-memory reference implementation used by the server
// in standalone mode and by tests.
package token

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSpenderNotApproved indicates the owner has not approved a large
	// enough allowance for the spender.
	ErrSpenderNotApproved = errors.New("token: spender not approved")

	// ErrInsufficientBalance indicates the sender does not hold enough tokens.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
)

// Address identifies a wallet or contract account.
type Address string

// ZeroAddress is the empty account; never a valid participant.
const ZeroAddress Address = ""

// Token is the fungible token collaborator. Debits from a player wallet
// always go through TransferFrom and require a prior Approve.
type Token interface {
	Transfer(from, to Address, amount uint64) error
	TransferFrom(spender, from, to Address, amount uint64) error
	BalanceOf(addr Address) uint64
	Approve(owner, spender Address, amount uint64) error
	Allowance(owner, spender Address) uint64
}

// Ledger is an in-memory token with standard allowance semantics.
type Ledger struct {
	mu         sync.Mutex
	balances   map[Address]uint64
	allowances map[Address]map[Address]uint64
}

// NewLedger creates an empty in-memory token.
func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[Address]uint64),
		allowances: make(map[Address]map[Address]uint64),
	}
}

// Mint credits newly issued tokens to an account.
func (l *Ledger) Mint(to Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] += amount
}

// Transfer moves tokens directly between accounts.
func (l *Ledger) Transfer(from, to Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferFrom moves tokens on behalf of the owner, consuming allowance.
func (l *Ledger) TransferFrom(spender, from, to Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowances[from][spender]
	if allowed < amount {
		return fmt.Errorf("%w: %s allowed %d, need %d", ErrSpenderNotApproved, from, allowed, amount)
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.allowances[from][spender] = allowed - amount
	return nil
}

// BalanceOf returns the current balance of an account.
func (l *Ledger) BalanceOf(addr Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// Approve sets the spender allowance for an owner account.
func (l *Ledger) Approve(owner, spender Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[Address]uint64)
	}
	l.allowances[owner][spender] = amount
	return nil
}

// Allowance returns the remaining approved amount for a spender.
func (l *Ledger) Allowance(owner, spender Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[owner][spender]
}

func (l *Ledger) move(from, to Address, amount uint64) error {
	if l.balances[from] < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientBalance, from, l.balances[from], amount)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
