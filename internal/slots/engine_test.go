package slots

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausgames/treasury/internal/access"
	"github.com/hausgames/treasury/internal/chain"
	"github.com/hausgames/treasury/internal/ledger"
	"github.com/hausgames/treasury/internal/token"
)

const (
	ceo      = token.Address("ceo")
	treasury = token.Address("treasury")
	alice    = token.Address("alice")
)

// seedWithReels crafts a seed whose four 16-bit reel slices hold the given
// values.
func seedWithReels(a, b, c, d uint16) chain.Hash {
	var h chain.Hash
	binary.BigEndian.PutUint16(h[30:], a)
	binary.BigEndian.PutUint16(h[28:], b)
	binary.BigEndian.PutUint16(h[26:], c)
	binary.BigEndian.PutUint16(h[24:], d)
	return h
}

type fixture struct {
	t      *testing.T
	engine *Engine
	tok    *token.Ledger
	led    *ledger.Ledger
	oracle *chain.Oracle
}

func newFixture(t *testing.T, pool uint64) *fixture {
	t.Helper()
	logger := log.New(io.Discard)
	roles := access.NewRoles(ceo)
	led := ledger.New(treasury, roles, logger)
	tok := token.NewLedger()

	_, err := led.RegisterToken(ceo, tok, "0xmana", "MANA")
	require.NoError(t, err)
	gameID, err := led.AddGame(ceo, "slots")
	require.NoError(t, err)
	require.NoError(t, led.SetMaximumBet(ceo, gameID, 0, 1000))

	tok.Mint(ceo, pool)
	require.NoError(t, tok.Approve(ceo, treasury, pool))
	require.NoError(t, led.AddFunds(ceo, gameID, 0, pool))

	oracle := chain.NewOracle()
	engine := New(gameID, led, oracle, logger, [4]uint64{})

	return &fixture{t: t, engine: engine, tok: tok, led: led, oracle: oracle}
}

// arm commits the oracle to one crafted seed.
func (f *fixture) arm(seed chain.Hash) {
	f.oracle.SetTail(chain.Digest(seed))
}

func (f *fixture) fundPlayer(player token.Address, amount uint64) {
	f.t.Helper()
	f.tok.Mint(player, amount)
	require.NoError(f.t, f.tok.Approve(player, treasury, amount))
}

func TestReelSymbolsFromSeedSlices(t *testing.T) {
	assert.Equal(t, [4]int{1, 2, 3, 4}, reelSymbols(seedWithReels(1, 2, 3, 4)))

	// Positions wrap around the 15-symbol wheel.
	assert.Equal(t, [4]int{0, 1, 0, 2}, reelSymbols(seedWithReels(15, 16, 30, 17)))
}

func TestWinAmountTiers(t *testing.T) {
	tests := []struct {
		name   string
		seed   chain.Hash
		want   uint64
		amount uint64
	}{
		{"jackpot", seedWithReels(0, 0, 0, 0), 250 * 100, 100},
		{"jackpot via wrap", seedWithReels(15, 30, 45, 60), 250 * 100, 100},
		{"second tier low", seedWithReels(1, 1, 1, 1), 15 * 100, 100},
		{"second tier high", seedWithReels(4, 4, 4, 4), 15 * 100, 100},
		{"third tier", seedWithReels(5, 5, 5, 5), 8 * 100, 100},
		{"fourth tier", seedWithReels(14, 14, 14, 14), 4 * 100, 100},
		{"three of a kind pays nothing", seedWithReels(7, 7, 7, 8), 0, 100},
		{"no match", seedWithReels(1, 2, 3, 4), 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win, _ := winAmount(tt.seed, tt.amount, defaultFactors)
			assert.Equal(t, tt.want, win)
		})
	}
}

func TestMaxPayout(t *testing.T) {
	f := newFixture(t, 1_000_000)
	assert.Equal(t, uint64(25_000), f.engine.MaxPayout(100))
}

func TestUpdateFactorsValidation(t *testing.T) {
	f := newFixture(t, 1_000_000)

	assert.ErrorIs(t, f.engine.UpdateFactors([4]uint64{4, 8, 15, 250}), ErrInvalidFactors)
	assert.ErrorIs(t, f.engine.UpdateFactors([4]uint64{250, 250, 8, 4}), ErrInvalidFactors)
	assert.ErrorIs(t, f.engine.UpdateFactors([4]uint64{250, 15, 8, 0}), ErrInvalidFactors)
	assert.Equal(t, defaultFactors, f.engine.Factors())

	require.NoError(t, f.engine.UpdateFactors([4]uint64{500, 100, 50, 25}))
	assert.Equal(t, uint64(500), f.engine.PayoutFactor(0))
	assert.Equal(t, uint64(25), f.engine.PayoutFactor(3))
}

func TestPlayJackpotSettlesNet(t *testing.T) {
	f := newFixture(t, 300_000)
	f.fundPlayer(alice, 1000)

	seed := seedWithReels(0, 0, 0, 0)
	f.arm(seed)

	result, err := f.engine.Play(alice, 1, 2, 1000, seed, 0)
	require.NoError(t, err)

	assert.Equal(t, uint64(250_000), result.WinAmount)
	assert.Equal(t, [4]int{0, 0, 0, 0}, result.Symbols)

	// One net movement: wager 1000 against payout 250000.
	assert.Equal(t, uint64(1000+249_000), f.tok.BalanceOf(alice))
	assert.Equal(t, uint64(300_000-249_000), f.led.Balance(f.engine.GameID(), 0))
	assert.Equal(t, seed, f.oracle.Tail())
}

func TestPlayLosingSpinCollectsWager(t *testing.T) {
	f := newFixture(t, 300_000)
	f.fundPlayer(alice, 1000)

	seed := seedWithReels(1, 2, 3, 4)
	f.arm(seed)

	result, err := f.engine.Play(alice, 1, 2, 100, seed, 0)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), result.WinAmount)
	assert.Equal(t, uint64(900), f.tok.BalanceOf(alice))
	assert.Equal(t, uint64(300_100), f.led.Balance(f.engine.GameID(), 0))
}

func TestStaleRevealLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, 300_000)
	f.fundPlayer(alice, 1000)

	seed := seedWithReels(1, 2, 3, 4)
	f.arm(seed)
	tailBefore := f.oracle.Tail()

	_, err := f.engine.Play(alice, 1, 2, 100, seedWithReels(9, 9, 9, 9), 0)
	assert.ErrorIs(t, err, chain.ErrWrongChainParent)

	assert.Equal(t, tailBefore, f.oracle.Tail())
	assert.Equal(t, uint64(1000), f.tok.BalanceOf(alice))
	assert.Equal(t, uint64(300_000), f.led.Balance(f.engine.GameID(), 0))

	// The right reveal still plays.
	_, err = f.engine.Play(alice, 1, 2, 100, seed, 0)
	require.NoError(t, err)
}

func TestPlayRejectsBeforeChainAdvance(t *testing.T) {
	f := newFixture(t, 300_000)

	seed := seedWithReels(1, 2, 3, 4)
	f.arm(seed)
	tailBefore := f.oracle.Tail()

	// Over the max bet.
	f.fundPlayer(alice, 5000)
	_, err := f.engine.Play(alice, 1, 2, 1001, seed, 0)
	assert.ErrorIs(t, err, ledger.ErrExceedsMaxBet)

	// Unapproved player.
	f.tok.Mint("mallory", 1000)
	_, err = f.engine.Play("mallory", 1, 2, 100, seed, 0)
	assert.ErrorIs(t, err, token.ErrSpenderNotApproved)

	assert.Equal(t, tailBefore, f.oracle.Tail())
}

func TestPoolMustCoverMaxPayout(t *testing.T) {
	// 1000 x 250 = 250000 needed, pool holds only 100000.
	f := newFixture(t, 100_000)
	f.fundPlayer(alice, 1000)

	seed := seedWithReels(1, 2, 3, 4)
	f.arm(seed)
	tailBefore := f.oracle.Tail()

	_, err := f.engine.Play(alice, 1, 2, 1000, seed, 0)
	assert.ErrorIs(t, err, ErrPoolCannotCover)
	assert.Equal(t, tailBefore, f.oracle.Tail())
	assert.Equal(t, uint64(1000), f.tok.BalanceOf(alice))
}
