// Package settle coordinates play across the game engines: it gates every
// entry point on the worker or CEO role, drives validation before the
// hash chain advances, notifies the loyalty collaborator best-effort, and
// publishes result events for monitoring.
package settle

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/hausgames/treasury/internal/access"
	"github.com/hausgames/treasury/internal/backgammon"
	"github.com/hausgames/treasury/internal/chain"
	"github.com/hausgames/treasury/internal/ledger"
	"github.com/hausgames/treasury/internal/loyalty"
	"github.com/hausgames/treasury/internal/roulette"
	"github.com/hausgames/treasury/internal/roundid"
	"github.com/hausgames/treasury/internal/slots"
	"github.com/hausgames/treasury/internal/token"
)

var (
	// ErrLengthMismatch indicates parallel request arrays of differing
	// lengths.
	ErrLengthMismatch = errors.New("settle: parallel arrays must have equal length")

	// ErrEmptyRequest indicates a play request with no bets.
	ErrEmptyRequest = errors.New("settle: request has no bets")
)

// Coordinator wires the engines together behind role-gated entry points.
type Coordinator struct {
	roles      *access.Roles
	ledger     *ledger.Ledger
	oracle     *chain.Oracle
	roulette   *roulette.Engine
	slots      *slots.Engine
	backgammon *backgammon.Engine
	points     *loyalty.Notifier
	bus        EventBus
	ids        *roundid.Generator
	logger     *log.Logger
}

// New creates a coordinator over the given engines. The notifier and bus
// may be nil-valued collaborators in tests.
func New(
	roles *access.Roles,
	l *ledger.Ledger,
	oracle *chain.Oracle,
	rouletteEngine *roulette.Engine,
	slotsEngine *slots.Engine,
	backgammonEngine *backgammon.Engine,
	points *loyalty.Notifier,
	bus EventBus,
	logger *log.Logger,
) *Coordinator {
	return &Coordinator{
		roles:      roles,
		ledger:     l,
		oracle:     oracle,
		roulette:   rouletteEngine,
		slots:      slotsEngine,
		backgammon: backgammonEngine,
		points:     points,
		bus:        bus,
		ids:        roundid.NewGenerator(nil),
		logger:     logger,
	}
}

// RouletteRequest is one whole roulette round: parallel arrays describe
// the queued bets, one reveal resolves them.
type RouletteRequest struct {
	Players      []token.Address
	BetTypes     []roulette.BetType
	BetValues    []int
	TokenIndexes []int
	Amounts      []uint64
	Wearables    []uint64
	LandID       int
	MachineID    int
	Reveal       chain.Hash
}

func (r *RouletteRequest) validate() error {
	n := len(r.Players)
	if n == 0 {
		return ErrEmptyRequest
	}
	for _, l := range []int{len(r.BetTypes), len(r.BetValues), len(r.TokenIndexes), len(r.Amounts), len(r.Wearables)} {
		if l != n {
			return fmt.Errorf("%w: %d players", ErrLengthMismatch, n)
		}
	}
	return nil
}

// RouletteOutcome pairs the engine result with the settlement round id.
type RouletteOutcome struct {
	RoundID string
	*roulette.Result
}

// PlayRoulette queues every bet in the request and launches the round.
// Worker-gated.
func (c *Coordinator) PlayRoulette(caller token.Address, req RouletteRequest) (*RouletteOutcome, error) {
	if err := c.roles.RequireWorker(caller); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	for i := range req.Players {
		err := c.roulette.CreateBet(req.Players[i], req.BetTypes[i], req.BetValues[i], req.TokenIndexes[i], req.Amounts[i])
		if err != nil {
			return nil, fmt.Errorf("settle: bet %d: %w", i, err)
		}
	}

	result, err := c.roulette.Launch(req.Reveal)
	if err != nil {
		return nil, err
	}
	id := c.ids.Generate()

	players := distinctPlayers(req.Players)
	for i := range req.Players {
		c.points.Award(req.Players[i], req.Amounts[i], req.TokenIndexes[i],
			c.roulette.GameID(), players, req.Wearables[i])
	}

	c.publish(NewRoundResultEvent(id, "roulette", players,
		result.TotalWager, result.TotalWin, fmt.Sprintf("draw=%d", result.Draw)))
	return &RouletteOutcome{RoundID: id, Result: result}, nil
}

// SlotsRequest is a single spin.
type SlotsRequest struct {
	Player        token.Address
	LandID        int
	MachineID     int
	Amount        uint64
	Reveal        chain.Hash
	TokenIndex    int
	WearableBonus uint64
}

// SlotsOutcome pairs the engine result with the settlement round id.
type SlotsOutcome struct {
	RoundID string
	*slots.Result
}

// PlaySlots settles one spin. Worker-gated.
func (c *Coordinator) PlaySlots(caller token.Address, req SlotsRequest) (*SlotsOutcome, error) {
	if err := c.roles.RequireWorker(caller); err != nil {
		return nil, err
	}

	result, err := c.slots.Play(req.Player, req.LandID, req.MachineID, req.Amount, req.Reveal, req.TokenIndex)
	if err != nil {
		return nil, err
	}
	id := c.ids.Generate()

	c.points.Award(req.Player, req.Amount, req.TokenIndex,
		c.slots.GameID(), 1, req.WearableBonus)

	c.publish(NewRoundResultEvent(id, "slots", 1,
		result.Amount, result.WinAmount, fmt.Sprintf("symbols=%v", result.Symbols)))
	return &SlotsOutcome{RoundID: id, Result: result}, nil
}

// InitGame opens a backgammon match. Worker-gated.
func (c *Coordinator) InitGame(caller token.Address, stake uint64, p1, p2 token.Address, tokenIndex int, bonus1, bonus2 uint64) (backgammon.Game, error) {
	if err := c.roles.RequireWorker(caller); err != nil {
		return backgammon.Game{}, err
	}
	g, err := c.backgammon.InitializeGame(stake, p1, p2, tokenIndex, bonus1, bonus2)
	if err != nil {
		return backgammon.Game{}, err
	}
	c.publish(NewGameStartedEvent(g.ID, g.PlayerOne, g.PlayerTwo, g.Stake, g.Total))
	return g, nil
}

// RaiseDouble raises the doubling cube. Worker-gated.
func (c *Coordinator) RaiseDouble(caller token.Address, gameID int, player token.Address) (backgammon.Game, error) {
	if err := c.roles.RequireWorker(caller); err != nil {
		return backgammon.Game{}, err
	}
	g, err := c.backgammon.RaiseDouble(gameID, player)
	if err != nil {
		return backgammon.Game{}, err
	}
	c.publish(NewStakeRaisedEvent(g.ID, player, g.Total))
	return g, nil
}

// CallDouble accepts a pending double. Worker-gated.
func (c *Coordinator) CallDouble(caller token.Address, gameID int, player token.Address) (backgammon.Game, error) {
	if err := c.roles.RequireWorker(caller); err != nil {
		return backgammon.Game{}, err
	}
	g, err := c.backgammon.CallDouble(gameID, player)
	if err != nil {
		return backgammon.Game{}, err
	}
	c.publish(NewStakeDoubledEvent(g.ID, player, g.Total))
	return g, nil
}

// DropGame concedes a pending double. Worker-gated; loyalty accrues for
// both players against the pre-raise stake.
func (c *Coordinator) DropGame(caller token.Address, gameID int, player token.Address, bonus1, bonus2 uint64) (backgammon.Settlement, error) {
	if err := c.roles.RequireWorker(caller); err != nil {
		return backgammon.Settlement{}, err
	}
	s, err := c.backgammon.DropGame(gameID, player)
	if err != nil {
		return backgammon.Settlement{}, err
	}
	c.awardBothPlayers(s, bonus1, bonus2)
	c.publish(NewPlayerDroppedEvent(s.Game.ID, player, s.Paid, s.Payout, s.Fee))
	return s, nil
}

// ResolveGame pays out the match to the winner. Worker-gated; loyalty
// accrues for both players against stake times the doubling multiplier.
func (c *Coordinator) ResolveGame(caller token.Address, gameID int, winner token.Address, bonus1, bonus2 uint64) (backgammon.Settlement, error) {
	if err := c.roles.RequireWorker(caller); err != nil {
		return backgammon.Settlement{}, err
	}
	s, err := c.backgammon.ResolveGame(gameID, winner)
	if err != nil {
		return backgammon.Settlement{}, err
	}
	c.awardBothPlayers(s, bonus1, bonus2)
	c.publish(NewGameResolvedEvent(s.Game.ID, winner, s.Payout))
	return s, nil
}

// SetTail seeds or reseeds the hash chain. CEO-gated.
func (c *Coordinator) SetTail(caller token.Address, tail chain.Hash) error {
	if err := c.roles.RequireCEO(caller); err != nil {
		return err
	}
	c.oracle.SetTail(tail)
	c.logger.Info("chain tail set", "tail", tail)
	return nil
}

// ChangeMaxSquareBet reconfigures the roulette square cap. CEO-gated.
func (c *Coordinator) ChangeMaxSquareBet(caller token.Address, limit uint64) error {
	if err := c.roles.RequireCEO(caller); err != nil {
		return err
	}
	c.roulette.ChangeMaxSquareBet(limit)
	return nil
}

// ChangeMaxBetCount reconfigures the roulette per-round bet cap. CEO-gated.
func (c *Coordinator) ChangeMaxBetCount(caller token.Address, count int) error {
	if err := c.roles.RequireCEO(caller); err != nil {
		return err
	}
	c.roulette.ChangeMaxBetCount(count)
	return nil
}

// UpdateSlotFactors replaces the slots payout table. CEO-gated.
func (c *Coordinator) UpdateSlotFactors(caller token.Address, factors [4]uint64) error {
	if err := c.roles.RequireCEO(caller); err != nil {
		return err
	}
	return c.slots.UpdateFactors(factors)
}

func (c *Coordinator) awardBothPlayers(s backgammon.Settlement, bonus1, bonus2 uint64) {
	c.points.Award(s.Game.PlayerOne, s.LoyaltyRaw, s.Game.TokenIndex,
		c.backgammon.GameID(), 2, bonus1)
	c.points.Award(s.Game.PlayerTwo, s.LoyaltyRaw, s.Game.TokenIndex,
		c.backgammon.GameID(), 2, bonus2)
}

func (c *Coordinator) publish(event Event) {
	if c.bus != nil {
		c.bus.Publish(event)
	}
}

func distinctPlayers(players []token.Address) int {
	seen := make(map[token.Address]struct{}, len(players))
	for _, p := range players {
		seen[p] = struct{}{}
	}
	return len(seen)
}
