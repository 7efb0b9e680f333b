package flows

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"github.com/ligun0805/batch-wallet/internal/account"
	"github.com/ligun0805/batch-wallet/internal/batch"
	"github.com/ligun0805/batch-wallet/internal/chain"
	"github.com/ligun0805/batch-wallet/internal/units"
	"github.com/ligun0805/batch-wallet/internal/wallet"
)

var validate = validator.New()

// FundRequest sends the same native amount from the main key to every wallet.
type FundRequest struct {
	MainKey string `validate:"required"`
	Amount  string `validate:"required,numeric"`
}

// TokenRequest moves an ERC-20 amount from every wallet to one recipient.
type TokenRequest struct {
	Token  string `validate:"required,eth_addr"`
	To     string `validate:"required,eth_addr"`
	Amount string `validate:"required,numeric"`
}

// StakeRequest stakes an amount of token from every wallet.
type StakeRequest struct {
	Staking string `validate:"required,eth_addr"`
	Token   string `validate:"omitempty,eth_addr"`
	Amount  string `validate:"required,numeric"`
}

// Planner turns stored wallets into batch jobs.
type Planner struct {
	Client  chain.Client
	ChainID *big.Int
	Fees    Fees
}

// Fund plans one native transfer per wallet, all signed by the main key.
func (p *Planner) Fund(req FundRequest, entries []wallet.Entry) ([]batch.Job, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("fund: %w", err)
	}
	amount, err := units.ParseEther(req.Amount)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("fund: amount must be positive")
	}
	from, err := account.Derive(req.MainKey)
	if err != nil {
		return nil, fmt.Errorf("fund: %w", err)
	}

	jobs := make([]batch.Job, 0, len(entries))
	for i, e := range entries {
		to, err := owner(e)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, batch.Job{
			Index:   i + 1,
			Name:    e.Name,
			Address: from,
			KeyHex:  req.MainKey,
			Intent:  NativeTransfer(p.ChainID, to, amount, p.Fees),
		})
	}
	return jobs, nil
}

// Faucet plans one claim per wallet, each signed by the wallet itself.
func (p *Planner) Faucet(faucet common.Address, entries []wallet.Entry) ([]batch.Job, error) {
	jobs := make([]batch.Job, 0, len(entries))
	for i, e := range entries {
		addr, err := owner(e)
		if err != nil {
			return nil, err
		}
		in, err := FaucetClaim(p.ChainID, faucet, addr)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, batch.Job{Index: i + 1, Name: e.Name, Address: addr, KeyHex: e.KeyHex, Intent: in})
	}
	return jobs, nil
}

// Token plans one ERC-20 transfer per wallet.
func (p *Planner) Token(ctx context.Context, req TokenRequest, entries []wallet.Entry) ([]batch.Job, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("token transfer: %w", err)
	}
	token := common.HexToAddress(req.Token)
	amount, err := p.tokenAmount(ctx, token, req.Amount)
	if err != nil {
		return nil, err
	}
	to := common.HexToAddress(req.To)

	jobs := make([]batch.Job, 0, len(entries))
	for i, e := range entries {
		addr, err := owner(e)
		if err != nil {
			return nil, err
		}
		in, err := TokenTransfer(p.ChainID, token, to, amount, p.Fees)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, batch.Job{Index: i + 1, Name: e.Name, Address: addr, KeyHex: e.KeyHex, Intent: in})
	}
	return jobs, nil
}

// Stake plans stake(amount) per wallet, preceded by an approve when a token
// is set and the current allowance is short.
func (p *Planner) Stake(ctx context.Context, req StakeRequest, stakingABI abi.ABI, entries []wallet.Entry) ([]batch.Job, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("stake: %w", err)
	}
	staking := common.HexToAddress(req.Staking)

	var (
		token  common.Address
		amount *big.Int
		err    error
	)
	if req.Token != "" {
		token = common.HexToAddress(req.Token)
		amount, err = p.tokenAmount(ctx, token, req.Amount)
	} else {
		amount, err = units.ParseEther(req.Amount)
	}
	if err != nil {
		return nil, err
	}

	var jobs []batch.Job
	for _, e := range entries {
		addr, err := owner(e)
		if err != nil {
			return nil, err
		}
		if req.Token != "" {
			allowance, err := chain.TokenAllowance(ctx, p.Client, token, addr, staking)
			if err != nil {
				return nil, fmt.Errorf("allowance of %s: %w", addr.Hex(), err)
			}
			if allowance.Cmp(amount) < 0 {
				in, err := TokenApprove(p.ChainID, token, staking, amount, p.Fees)
				if err != nil {
					return nil, err
				}
				jobs = append(jobs, batch.Job{Index: len(jobs) + 1, Name: e.Name + "/approve", Address: addr, KeyHex: e.KeyHex, Intent: in})
			}
		}
		in, err := Stake(p.ChainID, stakingABI, staking, amount, p.Fees)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, batch.Job{Index: len(jobs) + 1, Name: e.Name + "/stake", Address: addr, KeyHex: e.KeyHex, Intent: in})
	}
	return jobs, nil
}

// Claim plans claimRewards() per wallet.
func (p *Planner) Claim(staking common.Address, stakingABI abi.ABI, entries []wallet.Entry) ([]batch.Job, error) {
	jobs := make([]batch.Job, 0, len(entries))
	for i, e := range entries {
		addr, err := owner(e)
		if err != nil {
			return nil, err
		}
		in, err := ClaimRewards(p.ChainID, stakingABI, staking, p.Fees)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, batch.Job{Index: i + 1, Name: e.Name, Address: addr, KeyHex: e.KeyHex, Intent: in})
	}
	return jobs, nil
}

func (p *Planner) tokenAmount(ctx context.Context, token common.Address, human string) (*big.Int, error) {
	decimals, err := chain.TokenDecimals(ctx, p.Client, token)
	if err != nil {
		return nil, fmt.Errorf("token decimals: %w", err)
	}
	amount, err := units.ParseUnits(human, int32(decimals))
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// owner derives the wallet address from its key. The address stored next to
// the key in the wallet file is display only.
func owner(e wallet.Entry) (common.Address, error) {
	addr, err := account.Derive(e.KeyHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("wallet %s: %w", e.Name, err)
	}
	return addr, nil
}
