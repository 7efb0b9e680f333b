package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// ERC20ABI is the subset of the token interface the wallet flows use.
var ERC20ABI abi.ABI

func init() {
	ab, err := abi.JSON(strings.NewReader(erc20JSON))
	if err != nil {
		panic(err)
	}
	ERC20ABI = ab
}

// EncodeERC20Transfer packs transfer(to, amount).
func EncodeERC20Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("transfer", to, amount)
}

// EncodeERC20Approve packs approve(spender, amount).
func EncodeERC20Approve(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, amount)
}

// CallMethod packs method/args against contractABI, performs an eth_call and unpacks the result.
func CallMethod(ctx context.Context, c Client, contract common.Address, contractABI abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.CallRead(ctx, contract, data)
	if err != nil {
		return nil, err
	}
	vals, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

// TokenBalance reads balanceOf(owner).
func TokenBalance(ctx context.Context, c Client, token, owner common.Address) (*big.Int, error) {
	vals, err := CallMethod(ctx, c, token, ERC20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return firstBig(vals)
}

// TokenAllowance reads allowance(owner, spender).
func TokenAllowance(ctx context.Context, c Client, token, owner, spender common.Address) (*big.Int, error) {
	vals, err := CallMethod(ctx, c, token, ERC20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return firstBig(vals)
}

// TokenDecimals reads decimals(); tokens without the getter are assumed to use 18.
func TokenDecimals(ctx context.Context, c Client, token common.Address) (int, error) {
	data, err := ERC20ABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	out, err := c.CallRead(ctx, token, data)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 18, nil
	}
	return int(out[len(out)-1]), nil
}

// TokenSymbol reads symbol().
func TokenSymbol(ctx context.Context, c Client, token common.Address) (string, error) {
	vals, err := CallMethod(ctx, c, token, ERC20ABI, "symbol")
	if err != nil {
		return "", err
	}
	if len(vals) == 0 {
		return "", nil
	}
	s, _ := vals[0].(string)
	return s, nil
}

func firstBig(vals []any) (*big.Int, error) {
	if len(vals) == 0 {
		return big.NewInt(0), nil
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", vals[0])
	}
	return v, nil
}
