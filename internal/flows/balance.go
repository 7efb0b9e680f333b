package flows

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/batch-wallet/internal/chain"
	"github.com/ligun0805/batch-wallet/internal/wallet"
)

// Balance is one row of the balance report.
type Balance struct {
	Entry  wallet.Entry
	Native *big.Int
	Token  *big.Int
}

// TokenInfo describes the token column of a balance report.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals int
}

// Balances reads native and, when token is non-zero, ERC-20 balances of the
// address each key controls.
func Balances(ctx context.Context, c chain.Client, entries []wallet.Entry, token common.Address) ([]Balance, *TokenInfo, error) {
	var info *TokenInfo
	if token != (common.Address{}) {
		dec, err := chain.TokenDecimals(ctx, c, token)
		if err != nil {
			return nil, nil, fmt.Errorf("token decimals: %w", err)
		}
		sym, err := chain.TokenSymbol(ctx, c, token)
		if err != nil {
			sym = "?"
		}
		info = &TokenInfo{Address: token, Symbol: sym, Decimals: dec}
	}

	out := make([]Balance, 0, len(entries))
	for _, e := range entries {
		addr, err := owner(e)
		if err != nil {
			return out, info, err
		}
		e.Address = addr
		native, err := c.Balance(ctx, e.Address)
		if err != nil {
			return out, info, fmt.Errorf("balance of %s: %w", e.Address.Hex(), err)
		}
		row := Balance{Entry: e, Native: native}
		if info != nil {
			bal, err := chain.TokenBalance(ctx, c, token, e.Address)
			if err != nil {
				return out, info, fmt.Errorf("token balance of %s: %w", e.Address.Hex(), err)
			}
			row.Token = bal
		}
		out = append(out, row)
	}
	return out, info, nil
}
