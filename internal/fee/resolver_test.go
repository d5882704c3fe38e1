package fee

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-core/pkg/config"
	"marketplace-core/pkg/errno"
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil))
}

func defaultTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable([]Tier{
		{MinimumStake: big.NewInt(0), MarketplaceFeeBps: 250, MintFeeBps: 100},
		{MinimumStake: tokens(1000), MarketplaceFeeBps: 200, MintFeeBps: 75},
		{MinimumStake: tokens(10000), MarketplaceFeeBps: 150, MintFeeBps: 50},
	})
	require.NoError(t, err)
	return table
}

func TestResolveFees(t *testing.T) {
	r := NewResolver(defaultTable(t))

	tests := []struct {
		name        string
		staked      *big.Int
		marketplace uint32
		mint        uint32
	}{
		{"nil stake", nil, 250, 100},
		{"zero stake", big.NewInt(0), 250, 100},
		{"negative stake", big.NewInt(-5), 250, 100},
		{"just below tier 1", new(big.Int).Sub(tokens(1000), big.NewInt(1)), 250, 100},
		{"exactly tier 1", tokens(1000), 200, 75},
		{"between tiers", tokens(5000), 200, 75},
		{"exactly top tier", tokens(10000), 150, 50},
		{"above top tier", tokens(1_000_000), 150, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, mint := r.ResolveFees(tt.staked)
			assert.Equal(t, tt.marketplace, m, "市场费率不匹配")
			assert.Equal(t, tt.mint, mint, "铸造费率不匹配")
		})
	}
}

func TestResolveFeesMonotonic(t *testing.T) {
	r := NewResolver(defaultTable(t))

	prevM, prevMint := r.ResolveFees(big.NewInt(0))
	for _, n := range []int64{1, 10, 999, 1000, 1001, 9999, 10000, 50000} {
		m, mint := r.ResolveFees(tokens(n))
		assert.LessOrEqual(t, m, prevM, "质押 %d 时市场费率不应升高", n)
		assert.LessOrEqual(t, mint, prevMint, "质押 %d 时铸造费率不应升高", n)
		prevM, prevMint = m, mint
	}
}

func TestNewTableRejects(t *testing.T) {
	tests := []struct {
		name  string
		tiers []Tier
	}{
		{"empty", nil},
		{"no base tier", []Tier{{MinimumStake: big.NewInt(1), MarketplaceFeeBps: 100}}},
		{"nil threshold", []Tier{{MinimumStake: nil}}},
		{"bps above 100%", []Tier{{MinimumStake: big.NewInt(0), MarketplaceFeeBps: 10001}}},
		{"unsorted", []Tier{
			{MinimumStake: big.NewInt(0), MarketplaceFeeBps: 250},
			{MinimumStake: big.NewInt(100), MarketplaceFeeBps: 200},
			{MinimumStake: big.NewInt(50), MarketplaceFeeBps: 150},
		}},
		{"duplicate threshold", []Tier{
			{MinimumStake: big.NewInt(0), MarketplaceFeeBps: 250},
			{MinimumStake: big.NewInt(0), MarketplaceFeeBps: 200},
		}},
		{"fee increases", []Tier{
			{MinimumStake: big.NewInt(0), MarketplaceFeeBps: 200, MintFeeBps: 50},
			{MinimumStake: big.NewInt(100), MarketplaceFeeBps: 250, MintFeeBps: 50},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.tiers)
			assert.ErrorIs(t, err, errno.ErrInvalidFeeTable)
		})
	}
}

func TestTableIsImmutable(t *testing.T) {
	stake := big.NewInt(0)
	table, err := NewTable([]Tier{{MinimumStake: stake, MarketplaceFeeBps: 250, MintFeeBps: 100}})
	require.NoError(t, err)

	stake.SetInt64(99)
	assert.Equal(t, int64(0), table.Tiers()[0].MinimumStake.Int64(), "构造后修改输入不应影响费率表")

	table.Tiers()[0].MinimumStake.SetInt64(7)
	assert.Equal(t, int64(0), table.Tiers()[0].MinimumStake.Int64(), "Tiers 应该返回副本")
}

func TestReplace(t *testing.T) {
	r := NewResolver(defaultTable(t))

	next, err := NewTable([]Tier{{MinimumStake: big.NewInt(0), MarketplaceFeeBps: 100, MintFeeBps: 10}})
	require.NoError(t, err)
	r.Replace(next)

	m, mint := r.ResolveFees(tokens(50000))
	assert.Equal(t, uint32(100), m)
	assert.Equal(t, uint32(10), mint)
}

func TestApplyBps(t *testing.T) {
	tests := []struct {
		name   string
		amount *big.Int
		bps    uint32
		fee    int64
		net    int64
	}{
		{"2.5%", big.NewInt(10000), 250, 250, 9750},
		{"rounds down", big.NewInt(399), 250, 9, 390},
		{"zero bps", big.NewInt(100), 0, 0, 100},
		{"full", big.NewInt(100), MaxBps, 100, 0},
		{"zero amount", big.NewInt(0), 250, 0, 0},
		{"nil amount", nil, 250, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net := ApplyBps(tt.amount, tt.bps)
			assert.Equal(t, tt.fee, fee.Int64())
			assert.Equal(t, tt.net, net.Int64())
		})
	}
}

func TestBaseUnits(t *testing.T) {
	v, err := ToBaseUnits("1000")
	require.NoError(t, err)
	assert.Equal(t, 0, tokens(1000).Cmp(v))

	half, err := ToBaseUnits("0.5")
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", half.String())
	assert.Equal(t, "0.5", FromBaseUnits(half))

	_, err = ToBaseUnits("abc")
	assert.Error(t, err)
	_, err = ToBaseUnits("0.0000000000000000001")
	assert.Error(t, err, "超过 18 位小数应该报错")
}

func TestTableFromConfig(t *testing.T) {
	table, err := TableFromConfig(config.FeesConfig{Tiers: []config.FeeTierConfig{
		{MinimumStake: "0", MarketplaceFeeBps: 250, MintFeeBps: 100},
		{MinimumStake: "1000", MarketplaceFeeBps: 200, MintFeeBps: 75},
	}})
	require.NoError(t, err)

	tier := table.Lookup(tokens(1000))
	assert.Equal(t, uint32(200), tier.MarketplaceFeeBps)

	_, err = TableFromConfig(config.FeesConfig{Tiers: []config.FeeTierConfig{{MinimumStake: "x"}}})
	assert.ErrorIs(t, err, errno.ErrInvalidFeeTable)
}
