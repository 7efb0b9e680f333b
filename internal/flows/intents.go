// Package flows builds the transaction intents of the wallet operations:
// funding, faucet claims, token transfers, staking and reward claims.
package flows

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/batch-wallet/internal/chain"
	"github.com/ligun0805/batch-wallet/internal/txsign"
)

// FaucetSelector is the 4-byte selector of the faucet claim call.
var FaucetSelector = []byte{0xee, 0x42, 0xb5, 0xc7}

var faucetArgs = mustArgs("address", "string", "string")

// Fees are optional overrides; zero values leave fees to the signer.
type Fees struct {
	GasLimit uint64
	GasPrice *big.Int
}

func (f Fees) apply(in txsign.TransactionIntent) txsign.TransactionIntent {
	if f.GasLimit == 0 && (f.GasPrice == nil || f.GasPrice.Sign() == 0) {
		return in
	}
	return in.WithFees(f.GasLimit, f.GasPrice)
}

// NativeTransfer sends amount wei to to.
func NativeTransfer(chainID *big.Int, to common.Address, amount *big.Int, fees Fees) txsign.TransactionIntent {
	return fees.apply(txsign.TransactionIntent{
		To:      &to,
		Value:   new(big.Int).Set(amount),
		ChainID: chainID,
	})
}

// FaucetCalldata encodes claim(claimer, "0", "0") behind FaucetSelector.
func FaucetCalldata(claimer common.Address) ([]byte, error) {
	packed, err := faucetArgs.Pack(claimer, "0", "0")
	if err != nil {
		return nil, fmt.Errorf("pack faucet claim: %w", err)
	}
	return append(append([]byte{}, FaucetSelector...), packed...), nil
}

// FaucetClaim always leaves fees to the signer.
func FaucetClaim(chainID *big.Int, faucet, claimer common.Address) (txsign.TransactionIntent, error) {
	data, err := FaucetCalldata(claimer)
	if err != nil {
		return txsign.TransactionIntent{}, err
	}
	return txsign.TransactionIntent{To: &faucet, Value: new(big.Int), Data: data, ChainID: chainID}, nil
}

// TokenTransfer calls transfer(to, amount) on token.
func TokenTransfer(chainID *big.Int, token, to common.Address, amount *big.Int, fees Fees) (txsign.TransactionIntent, error) {
	data, err := chain.EncodeERC20Transfer(to, amount)
	if err != nil {
		return txsign.TransactionIntent{}, fmt.Errorf("pack transfer: %w", err)
	}
	return fees.apply(txsign.TransactionIntent{To: &token, Value: new(big.Int), Data: data, ChainID: chainID}), nil
}

// TokenApprove calls approve(spender, amount) on token.
func TokenApprove(chainID *big.Int, token, spender common.Address, amount *big.Int, fees Fees) (txsign.TransactionIntent, error) {
	data, err := chain.EncodeERC20Approve(spender, amount)
	if err != nil {
		return txsign.TransactionIntent{}, fmt.Errorf("pack approve: %w", err)
	}
	return fees.apply(txsign.TransactionIntent{To: &token, Value: new(big.Int), Data: data, ChainID: chainID}), nil
}

// stakingJSON is used when no ABI file is configured.
const stakingJSON = `[
 {"type":"function","name":"stake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"claimRewards","stateMutability":"nonpayable","inputs":[],"outputs":[]},
 {"type":"function","name":"earned","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// LoadStakingABI reads path, or returns the built-in ABI when path is empty.
func LoadStakingABI(path string) (abi.ABI, error) {
	src := stakingJSON
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("read staking abi: %w", err)
		}
		src = string(b)
	}
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse staking abi: %w", err)
	}
	for _, m := range []string{"stake", "claimRewards"} {
		if _, ok := parsed.Methods[m]; !ok {
			return abi.ABI{}, fmt.Errorf("staking abi has no %s method", m)
		}
	}
	return parsed, nil
}

// Stake calls stake(amount) on the staking contract.
func Stake(chainID *big.Int, stakingABI abi.ABI, contract common.Address, amount *big.Int, fees Fees) (txsign.TransactionIntent, error) {
	data, err := stakingABI.Pack("stake", amount)
	if err != nil {
		return txsign.TransactionIntent{}, fmt.Errorf("pack stake: %w", err)
	}
	return fees.apply(txsign.TransactionIntent{To: &contract, Value: new(big.Int), Data: data, ChainID: chainID}), nil
}

// ClaimRewards calls claimRewards() on the staking contract.
func ClaimRewards(chainID *big.Int, stakingABI abi.ABI, contract common.Address, fees Fees) (txsign.TransactionIntent, error) {
	data, err := stakingABI.Pack("claimRewards")
	if err != nil {
		return txsign.TransactionIntent{}, fmt.Errorf("pack claimRewards: %w", err)
	}
	return fees.apply(txsign.TransactionIntent{To: &contract, Value: new(big.Int), Data: data, ChainID: chainID}), nil
}

func mustArgs(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}
