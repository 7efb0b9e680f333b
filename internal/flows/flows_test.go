package flows_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/batch-wallet/internal/account"
	"github.com/ligun0805/batch-wallet/internal/chain"
	"github.com/ligun0805/batch-wallet/internal/chain/chaintest"
	"github.com/ligun0805/batch-wallet/internal/flows"
	"github.com/ligun0805/batch-wallet/internal/wallet"
)

const mainKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	token   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	staking = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	faucet  = common.HexToAddress("0x3cC6FC1035465d5b238F04097dF272Fe9b60EB94")
	chainID = big.NewInt(97)
)

func entries(t *testing.T, n int) []wallet.Entry {
	t.Helper()
	out := make([]wallet.Entry, 0, n)
	for i := 0; i < n; i++ {
		acc, err := account.Generate()
		require.NoError(t, err)
		out = append(out, wallet.Entry{Name: string(rune('1' + i)), Address: acc.Address, KeyHex: acc.KeyHex()})
	}
	return out
}

// fakeToken answers ERC-20 view calls for token with 6 decimals.
func fakeToken(t *testing.T, c *chaintest.Client, allowance, balance *big.Int) {
	t.Helper()
	pack := func(method string, v ...any) []byte {
		out, err := chain.ERC20ABI.Methods[method].Outputs.Pack(v...)
		require.NoError(t, err)
		return out
	}
	c.OnCall = func(_ common.Address, data []byte) ([]byte, error) {
		for _, m := range []string{"decimals", "allowance", "balanceOf", "symbol"} {
			if bytes.HasPrefix(data, chain.ERC20ABI.Methods[m].ID) {
				switch m {
				case "decimals":
					return pack(m, uint8(6)), nil
				case "allowance":
					return pack(m, allowance), nil
				case "balanceOf":
					return pack(m, balance), nil
				case "symbol":
					return pack(m, "TKN"), nil
				}
			}
		}
		return nil, chain.NewNodeError("eth_call", "execution reverted")
	}
}

func TestFaucetCalldataMatchesTemplate(t *testing.T) {
	claimer := common.HexToAddress("0x8C7c7D038Cf33ED8808Cc1aa124bBE9B77714FA6")
	want := "ee42b5c7" +
		"0000000000000000000000008c7c7d038cf33ed8808cc1aa124bbe9b77714fa6" +
		"0000000000000000000000000000000000000000000000000000000000000060" +
		"00000000000000000000000000000000000000000000000000000000000000a0" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"3000000000000000000000000000000000000000000000000000000000000000" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"3000000000000000000000000000000000000000000000000000000000000000"

	data, err := flows.FaucetCalldata(claimer)
	require.NoError(t, err)
	assert.Equal(t, want, hex.EncodeToString(data))

	in, err := flows.FaucetClaim(chainID, faucet, claimer)
	require.NoError(t, err)
	assert.True(t, in.AutoFees())
	assert.Equal(t, &faucet, in.To)
}

func TestFundPlansOneJobPerWallet(t *testing.T) {
	ws := entries(t, 3)
	p := &flows.Planner{Client: chaintest.New(), ChainID: chainID}

	jobs, err := p.Fund(flows.FundRequest{MainKey: mainKey, Amount: "0.01"}, ws)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	from, err := account.Derive(mainKey)
	require.NoError(t, err)
	for i, j := range jobs {
		assert.Equal(t, i+1, j.Index)
		assert.Equal(t, from, j.Address)
		assert.Equal(t, mainKey, j.KeyHex)
		assert.Equal(t, ws[i].Address, *j.Intent.To)
		assert.Equal(t, "10000000000000000", j.Intent.Value.String())
		assert.True(t, j.Intent.AutoFees())
	}
}

func TestFundRejectsBadInput(t *testing.T) {
	p := &flows.Planner{Client: chaintest.New(), ChainID: chainID}
	ws := entries(t, 1)

	_, err := p.Fund(flows.FundRequest{MainKey: mainKey, Amount: "abc"}, ws)
	assert.Error(t, err)
	_, err = p.Fund(flows.FundRequest{MainKey: mainKey, Amount: "0"}, ws)
	assert.Error(t, err)
	_, err = p.Fund(flows.FundRequest{MainKey: "0x01", Amount: "1"}, ws)
	assert.ErrorIs(t, err, account.ErrInvalidKey)
}

func TestFeesOverrideApplies(t *testing.T) {
	p := &flows.Planner{Client: chaintest.New(), ChainID: chainID, Fees: flows.Fees{GasLimit: 60000, GasPrice: big.NewInt(3)}}

	jobs, err := p.Fund(flows.FundRequest{MainKey: mainKey, Amount: "1"}, entries(t, 1))
	require.NoError(t, err)
	assert.Equal(t, uint64(60000), jobs[0].Intent.GasLimit)
	assert.Equal(t, int64(3), jobs[0].Intent.GasPrice.Int64())
}

func TestTokenUsesDecimals(t *testing.T) {
	c := chaintest.New()
	fakeToken(t, c, big.NewInt(0), big.NewInt(0))
	p := &flows.Planner{Client: c, ChainID: chainID}
	to := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	jobs, err := p.Token(context.Background(), flows.TokenRequest{Token: token.Hex(), To: to.Hex(), Amount: "1.5"}, entries(t, 2))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	want, err := chain.EncodeERC20Transfer(to, big.NewInt(1_500_000))
	require.NoError(t, err)
	for _, j := range jobs {
		assert.Equal(t, token, *j.Intent.To)
		assert.Equal(t, want, j.Intent.Data)
	}

	_, err = p.Token(context.Background(), flows.TokenRequest{Token: "nope", To: to.Hex(), Amount: "1"}, nil)
	assert.Error(t, err)
}

func TestStakeApprovesWhenAllowanceShort(t *testing.T) {
	stakingABI, err := flows.LoadStakingABI("")
	require.NoError(t, err)
	req := flows.StakeRequest{Staking: staking.Hex(), Token: token.Hex(), Amount: "2"}

	c := chaintest.New()
	fakeToken(t, c, big.NewInt(0), big.NewInt(0))
	p := &flows.Planner{Client: c, ChainID: chainID}
	jobs, err := p.Stake(context.Background(), req, stakingABI, entries(t, 2))
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	assert.Equal(t, "1/approve", jobs[0].Name)
	assert.Equal(t, "1/stake", jobs[1].Name)
	assert.Equal(t, token, *jobs[0].Intent.To)
	assert.Equal(t, staking, *jobs[1].Intent.To)

	wantStake, err := stakingABI.Pack("stake", big.NewInt(2_000_000))
	require.NoError(t, err)
	assert.Equal(t, wantStake, jobs[1].Intent.Data)

	c = chaintest.New()
	fakeToken(t, c, big.NewInt(5_000_000), big.NewInt(0))
	p.Client = c
	jobs, err = p.Stake(context.Background(), req, stakingABI, entries(t, 2))
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestClaimRewards(t *testing.T) {
	stakingABI, err := flows.LoadStakingABI("")
	require.NoError(t, err)
	p := &flows.Planner{Client: chaintest.New(), ChainID: chainID}

	jobs, err := p.Claim(staking, stakingABI, entries(t, 2))
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, stakingABI.Methods["claimRewards"].ID, jobs[0].Intent.Data)
}

func TestLoadStakingABIFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staking.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"type":"function","name":"stake","inputs":[{"name":"a","type":"uint256"}],"outputs":[]}]`), 0o600))

	_, err := flows.LoadStakingABI(path)
	assert.ErrorContains(t, err, "claimRewards")

	_, err = flows.LoadStakingABI(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestBalances(t *testing.T) {
	c := chaintest.New()
	fakeToken(t, c, big.NewInt(0), big.NewInt(7_000_000))
	ws := entries(t, 2)
	c.Balances[ws[0].Address] = big.NewInt(42)

	rows, info, err := flows.Balances(context.Background(), c, ws, token)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, info)
	assert.Equal(t, "TKN", info.Symbol)
	assert.Equal(t, 6, info.Decimals)
	assert.Equal(t, int64(42), rows[0].Native.Int64())
	assert.Equal(t, int64(0), rows[1].Native.Int64())
	assert.Equal(t, int64(7_000_000), rows[0].Token.Int64())

	rows, info, err = flows.Balances(context.Background(), c, ws, common.Address{})
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.Nil(t, rows[0].Token)
}

func staleEntry(t *testing.T) (wallet.Entry, common.Address) {
	t.Helper()
	acc, err := account.Generate()
	require.NoError(t, err)
	stale := common.HexToAddress("0x1111111111111111111111111111111111111111")
	return wallet.Entry{Name: "1", Address: stale, KeyHex: acc.KeyHex()}, acc.Address
}

func TestPlannerUsesKeyAddressOverStoredOne(t *testing.T) {
	e, keyAddr := staleEntry(t)
	ws := []wallet.Entry{e}

	c := chaintest.New()
	var allowanceOwner common.Address
	fakeToken(t, c, big.NewInt(0), big.NewInt(0))
	tokenCalls := c.OnCall
	c.OnCall = func(contract common.Address, data []byte) ([]byte, error) {
		if bytes.HasPrefix(data, chain.ERC20ABI.Methods["allowance"].ID) {
			args, err := chain.ERC20ABI.Methods["allowance"].Inputs.Unpack(data[4:])
			require.NoError(t, err)
			allowanceOwner = args[0].(common.Address)
		}
		return tokenCalls(contract, data)
	}
	c.Balances[keyAddr] = big.NewInt(9)
	p := &flows.Planner{Client: c, ChainID: chainID}

	jobs, err := p.Faucet(faucet, ws)
	require.NoError(t, err)
	want, err := flows.FaucetCalldata(keyAddr)
	require.NoError(t, err)
	assert.Equal(t, want, jobs[0].Intent.Data)
	assert.Equal(t, keyAddr, jobs[0].Address)

	jobs, err = p.Fund(flows.FundRequest{MainKey: mainKey, Amount: "1"}, ws)
	require.NoError(t, err)
	assert.Equal(t, keyAddr, *jobs[0].Intent.To)

	stakingABI, err := flows.LoadStakingABI("")
	require.NoError(t, err)
	jobs, err = p.Stake(context.Background(), flows.StakeRequest{Staking: staking.Hex(), Token: token.Hex(), Amount: "1"}, stakingABI, ws)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, keyAddr, allowanceOwner)
	assert.Equal(t, keyAddr, jobs[1].Address)

	jobs, err = p.Claim(staking, stakingABI, ws)
	require.NoError(t, err)
	assert.Equal(t, keyAddr, jobs[0].Address)

	rows, _, err := flows.Balances(context.Background(), c, ws, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, keyAddr, rows[0].Entry.Address)
	assert.Equal(t, int64(9), rows[0].Native.Int64())
}

func TestPlannerRejectsUnparsableWalletKey(t *testing.T) {
	p := &flows.Planner{Client: chaintest.New(), ChainID: chainID}
	ws := []wallet.Entry{{Name: "7", Address: faucet, KeyHex: "0xnotakey"}}

	_, err := p.Faucet(faucet, ws)
	assert.ErrorIs(t, err, account.ErrInvalidKey)
	assert.ErrorContains(t, err, "wallet 7")

	_, _, err = flows.Balances(context.Background(), p.Client, ws, common.Address{})
	assert.ErrorIs(t, err, account.ErrInvalidKey)
}
