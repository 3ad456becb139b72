package loyalty

import (
	"github.com/charmbracelet/log"

	"github.com/hausgames/treasury/internal/token"
)

// Notifier wraps a Pointer with best-effort semantics: a failing points
// award is logged and swallowed so it can never abort a settlement.
type Notifier struct {
	pointer Pointer
	logger  *log.Logger
}

// NewNotifier wraps the given pointer.
func NewNotifier(pointer Pointer, logger *log.Logger) *Notifier {
	return &Notifier{pointer: pointer, logger: logger}
}

// Award forwards to the underlying pointer, logging failures.
func (n *Notifier) Award(player token.Address, raw uint64, tokenIndex, gameID, playersInRound int, wearableBonus uint64) {
	if n == nil || n.pointer == nil {
		return
	}
	points, err := n.pointer.AddPoints(player, raw, tokenIndex, gameID, playersInRound, wearableBonus)
	if err != nil {
		n.logger.Error("points award failed", "player", player, "raw", raw, "error", err)
		return
	}
	if points > 0 {
		n.logger.Debug("points awarded", "player", player, "points", points)
	}
}
