package settle

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausgames/treasury/internal/access"
	"github.com/hausgames/treasury/internal/backgammon"
	"github.com/hausgames/treasury/internal/chain"
	"github.com/hausgames/treasury/internal/ledger"
	"github.com/hausgames/treasury/internal/loyalty"
	"github.com/hausgames/treasury/internal/roulette"
	"github.com/hausgames/treasury/internal/slots"
	"github.com/hausgames/treasury/internal/token"
)

const (
	ceo      = token.Address("ceo")
	worker   = token.Address("worker")
	treasury = token.Address("treasury")
	alice    = token.Address("alice")
	bob      = token.Address("bob")
	random   = token.Address("random")
)

var master = chain.Digest(chain.Hash{0xbe, 0xef})

func seedWithReels(a, b, c, d uint16) chain.Hash {
	var h chain.Hash
	binary.BigEndian.PutUint16(h[30:], a)
	binary.BigEndian.PutUint16(h[28:], b)
	binary.BigEndian.PutUint16(h[26:], c)
	binary.BigEndian.PutUint16(h[24:], d)
	return h
}

type fixture struct {
	t       *testing.T
	co      *Coordinator
	tok     *token.Ledger
	led     *ledger.Ledger
	oracle  *chain.Oracle
	tracker *loyalty.Tracker
	clock   *quartz.Mock
	stats   *Stats
	reveals []chain.Hash

	rouletteID, slotsID, bgID int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(io.Discard)
	roles := access.NewRoles(ceo)
	require.NoError(t, roles.SetWorker(ceo, worker))

	led := ledger.New(treasury, roles, logger)
	tok := token.NewLedger()
	_, err := led.RegisterToken(ceo, tok, "0xdai", "DAI")
	require.NoError(t, err)

	rouletteID, err := led.AddGame(ceo, "roulette")
	require.NoError(t, err)
	slotsID, err := led.AddGame(ceo, "slots")
	require.NoError(t, err)
	bgID, err := led.AddGame(ceo, "backgammon")
	require.NoError(t, err)
	for _, id := range []int{rouletteID, slotsID, bgID} {
		require.NoError(t, led.SetMaximumBet(ceo, id, 0, 5000))
	}

	// Seed the house pools.
	tok.Mint(ceo, 2_000_000)
	require.NoError(t, tok.Approve(ceo, treasury, 2_000_000))
	require.NoError(t, led.AddFunds(ceo, rouletteID, 0, 200_000))
	require.NoError(t, led.AddFunds(ceo, slotsID, 0, 1_500_000))

	hashes := chain.Generate(master, 8)
	oracle := chain.NewOracle()
	oracle.SetTail(hashes[0])

	clock := quartz.NewMock(t)
	rouletteEngine := roulette.New(rouletteID, led, oracle, clock, logger, roulette.Config{})
	slotsEngine := slots.New(slotsID, led, oracle, logger, [4]uint64{})
	bgEngine := backgammon.New(bgID, led, logger, backgammon.Config{})

	tracker := loyalty.NewTracker(roles)
	require.NoError(t, tracker.Enable(ceo, true, true))
	require.NoError(t, tracker.SetRatio(ceo, 0, rouletteID, 10))
	require.NoError(t, tracker.SetRatio(ceo, 0, slotsID, 100))
	require.NoError(t, tracker.SetRatio(ceo, 0, bgID, 10))

	bus := NewEventBus()
	stats := NewStats()
	bus.Subscribe(stats)

	co := New(roles, led, oracle, rouletteEngine, slotsEngine, bgEngine,
		loyalty.NewNotifier(tracker, logger), bus, logger)

	return &fixture{
		t:          t,
		co:         co,
		tok:        tok,
		led:        led,
		oracle:     oracle,
		tracker:    tracker,
		clock:      clock,
		stats:      stats,
		reveals:    hashes[1:],
		rouletteID: rouletteID,
		slotsID:    slotsID,
		bgID:       bgID,
	}
}

func (f *fixture) fundPlayer(player token.Address, amount uint64) {
	f.t.Helper()
	f.tok.Mint(player, amount)
	require.NoError(f.t, f.tok.Approve(player, treasury, amount))
}

func TestEntryPointsAreWorkerGated(t *testing.T) {
	f := newFixture(t)

	_, err := f.co.PlayRoulette(random, RouletteRequest{})
	assert.ErrorIs(t, err, access.ErrNotWorker)
	_, err = f.co.PlaySlots(random, SlotsRequest{})
	assert.ErrorIs(t, err, access.ErrNotWorker)
	_, err = f.co.InitGame(random, 100, alice, bob, 0, 0, 0)
	assert.ErrorIs(t, err, access.ErrNotWorker)
	_, err = f.co.RaiseDouble(random, 0, alice)
	assert.ErrorIs(t, err, access.ErrNotWorker)
	_, err = f.co.CallDouble(random, 0, bob)
	assert.ErrorIs(t, err, access.ErrNotWorker)
	_, err = f.co.DropGame(random, 0, bob, 0, 0)
	assert.ErrorIs(t, err, access.ErrNotWorker)
	_, err = f.co.ResolveGame(random, 0, alice, 0, 0)
	assert.ErrorIs(t, err, access.ErrNotWorker)
}

func TestConfigurationIsCEOGated(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.co.SetTail(worker, chain.Hash{1}), access.ErrNotCEO)
	assert.ErrorIs(t, f.co.ChangeMaxSquareBet(worker, 100), access.ErrNotCEO)
	assert.ErrorIs(t, f.co.ChangeMaxBetCount(worker, 10), access.ErrNotCEO)
	assert.ErrorIs(t, f.co.UpdateSlotFactors(worker, [4]uint64{500, 100, 50, 25}), access.ErrNotCEO)

	require.NoError(t, f.co.SetTail(ceo, chain.Hash{1}))
	assert.Equal(t, chain.Hash{1}, f.oracle.Tail())
	require.NoError(t, f.co.ChangeMaxSquareBet(ceo, 100))
	require.NoError(t, f.co.ChangeMaxBetCount(ceo, 10))
	require.NoError(t, f.co.UpdateSlotFactors(ceo, [4]uint64{500, 100, 50, 25}))
}

func TestRouletteRequestValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.co.PlayRoulette(worker, RouletteRequest{})
	assert.ErrorIs(t, err, ErrEmptyRequest)

	req := RouletteRequest{
		Players:      []token.Address{alice, bob},
		BetTypes:     []roulette.BetType{roulette.Single},
		BetValues:    []int{17, 18},
		TokenIndexes: []int{0, 0},
		Amounts:      []uint64{100, 100},
		Wearables:    []uint64{0, 0},
	}
	_, err = f.co.PlayRoulette(worker, req)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestPlayRouletteSettlesAndAwardsPoints(t *testing.T) {
	f := newFixture(t)
	f.fundPlayer(alice, 1000)
	f.fundPlayer(bob, 1000)
	f.clock.Advance(2 * time.Minute)

	req := RouletteRequest{
		Players:      []token.Address{alice, bob},
		BetTypes:     []roulette.BetType{roulette.EvenOdd, roulette.EvenOdd},
		BetValues:    []int{roulette.ValueEven, roulette.ValueOdd},
		TokenIndexes: []int{0, 0},
		Amounts:      []uint64{100, 100},
		Wearables:    []uint64{0, 0},
		Reveal:       f.reveals[0],
	}
	outcome, err := f.co.PlayRoulette(worker, req)
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.RoundID)
	assert.Equal(t, uint64(200), outcome.TotalWager)

	// Two players in the round: 100/10 base, x 2 x 10%.
	assert.Equal(t, uint64(2), f.tracker.Balance(alice))
	assert.Equal(t, uint64(2), f.tracker.Balance(bob))

	snap := f.stats.Snapshot()
	assert.Equal(t, 1, snap.Games["roulette"].Rounds)
	assert.Equal(t, uint64(200), snap.Games["roulette"].Wagered)
}

func TestPlaySlotsSettlesAndAwardsPoints(t *testing.T) {
	f := newFixture(t)
	f.fundPlayer(alice, 1000)

	seed := seedWithReels(0, 0, 0, 0)
	require.NoError(t, f.co.SetTail(ceo, chain.Digest(seed)))

	outcome, err := f.co.PlaySlots(worker, SlotsRequest{
		Player:     alice,
		LandID:     1,
		MachineID:  2,
		Amount:     1000,
		Reveal:     seed,
		TokenIndex: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000), outcome.WinAmount)

	// Solo play at ratio 100.
	assert.Equal(t, uint64(10), f.tracker.Balance(alice))

	snap := f.stats.Snapshot()
	assert.Equal(t, 1, snap.Games["slots"].Rounds)
	assert.Equal(t, uint64(250_000), snap.Games["slots"].Paid)
	assert.Equal(t, uint64(250_000), snap.LargestPaid)
}

func TestBackgammonFlowPublishesEventsAndPoints(t *testing.T) {
	f := newFixture(t)
	f.fundPlayer(alice, 1000)
	f.fundPlayer(bob, 1000)

	g, err := f.co.InitGame(worker, 100, alice, bob, 0, 0, 0)
	require.NoError(t, err)

	g, err = f.co.RaiseDouble(worker, g.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), g.Total)

	g, err = f.co.CallDouble(worker, g.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), g.Total)

	s, err := f.co.ResolveGame(worker, g.ID, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), s.Payout)

	// Raw 400 at ratio 10, two players: 40 x 2 x 10% = 8 each.
	assert.Equal(t, uint64(8), f.tracker.Balance(alice))
	assert.Equal(t, uint64(8), f.tracker.Balance(bob))

	snap := f.stats.Snapshot()
	assert.Equal(t, 0, snap.MatchesOpen)
	assert.Equal(t, 1, snap.MatchesEnded)
	assert.Equal(t, uint64(400), snap.Games["backgammon"].Wagered)
	assert.Equal(t, uint64(400), snap.Games["backgammon"].Paid)
}

func TestDropAwardsPreRaiseStake(t *testing.T) {
	f := newFixture(t)
	f.fundPlayer(alice, 1000)
	f.fundPlayer(bob, 1000)

	g, err := f.co.InitGame(worker, 100, alice, bob, 0, 0, 0)
	require.NoError(t, err)
	_, err = f.co.RaiseDouble(worker, g.ID, alice)
	require.NoError(t, err)

	s, err := f.co.DropGame(worker, g.ID, bob, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(270), s.Payout)
	assert.Equal(t, uint64(30), s.Fee)

	// Loyalty accrues against the pre-raise stake: 100/10 x 2 x 10% = 2.
	assert.Equal(t, uint64(2), f.tracker.Balance(alice))
	assert.Equal(t, uint64(2), f.tracker.Balance(bob))

	snap := f.stats.Snapshot()
	assert.Equal(t, uint64(30), snap.FeesRetained)
}

type failingPointer struct{}

func (failingPointer) AddPoints(token.Address, uint64, int, int, int, uint64) (uint64, error) {
	return 0, errors.New("pointer down")
}

func TestLoyaltyFailureNeverAbortsSettlement(t *testing.T) {
	f := newFixture(t)
	f.fundPlayer(alice, 1000)

	// Swap in a pointer that always fails.
	f.co.points = loyalty.NewNotifier(failingPointer{}, log.New(io.Discard))

	seed := seedWithReels(1, 2, 3, 4)
	require.NoError(t, f.co.SetTail(ceo, chain.Digest(seed)))

	outcome, err := f.co.PlaySlots(worker, SlotsRequest{
		Player: alice, Amount: 100, Reveal: seed, TokenIndex: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), outcome.WinAmount)
	assert.Equal(t, uint64(900), f.tok.BalanceOf(alice))
}

func TestCEOStillHasWorkerPowersByDefault(t *testing.T) {
	logger := log.New(io.Discard)
	roles := access.NewRoles(ceo)
	led := ledger.New(treasury, roles, logger)
	bgEngine := backgammon.New(0, led, logger, backgammon.Config{})
	co := New(roles, led, chain.NewOracle(), nil, nil, bgEngine, nil, nil, logger)

	// Worker defaults to the CEO; an unrelated caller is still rejected.
	_, err := co.RaiseDouble(ceo, 0, alice)
	assert.ErrorIs(t, err, backgammon.ErrNoSuchGame)
	_, err = co.RaiseDouble(random, 0, alice)
	assert.ErrorIs(t, err, access.ErrNotWorker)
}
