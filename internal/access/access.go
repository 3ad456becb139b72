// Package access provides the role capability that gates treasury
// configuration (CEO) and play submission (worker) entry points.
package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hausgames/treasury/internal/token"
)

var (
	// ErrNotCEO indicates the caller does not hold the CEO role.
	ErrNotCEO = errors.New("access: CEO access denied")

	// ErrNotWorker indicates the caller does not hold the worker role.
	ErrNotWorker = errors.New("access: worker access denied")
)

// Roles holds the CEO and worker addresses. The worker submits plays; the
// CEO configures limits, registers tokens and games, and seeds the hash
// chain. The worker defaults to the CEO until reassigned.
type Roles struct {
	mu     sync.RWMutex
	ceo    token.Address
	worker token.Address
}

// NewRoles creates a role set with the given CEO, who is also the
// initial worker.
func NewRoles(ceo token.Address) *Roles {
	return &Roles{ceo: ceo, worker: ceo}
}

// CEO returns the current CEO address.
func (r *Roles) CEO() token.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ceo
}

// Worker returns the current worker address.
func (r *Roles) Worker() token.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.worker
}

// RequireCEO fails unless the caller is the CEO.
func (r *Roles) RequireCEO(caller token.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caller != r.ceo {
		return fmt.Errorf("%w: %s", ErrNotCEO, caller)
	}
	return nil
}

// RequireWorker fails unless the caller is the worker.
func (r *Roles) RequireWorker(caller token.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caller != r.worker {
		return fmt.Errorf("%w: %s", ErrNotWorker, caller)
	}
	return nil
}

// SetCEO hands the CEO role to a new address. CEO-gated.
func (r *Roles) SetCEO(caller, newCEO token.Address) error {
	if err := r.RequireCEO(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ceo = newCEO
	return nil
}

// SetWorker assigns the worker role. CEO-gated.
func (r *Roles) SetWorker(caller, newWorker token.Address) error {
	if err := r.RequireCEO(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worker = newWorker
	return nil
}
