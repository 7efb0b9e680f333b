package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ligun0805/batch-wallet/internal/flows"
	"github.com/ligun0805/batch-wallet/internal/wallet"
)

const menuText = `
--- MENU ---
1  Create wallets
2  Delete all wallets
3  Fund wallets from main key
4  Claim faucet
5  Transfer token
6  Stake
7  Claim rewards
8  Show balances
10 Exit`

type choice int

const (
	choiceCreate choice = iota + 1
	choiceDelete
	choiceFund
	choiceFaucet
	choiceToken
	choiceStake
	choiceClaim
	choiceBalances
	choiceExit choice = 10
)

var errUnknownChoice = errors.New("unknown choice")

func parseChoice(s string) (choice, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errUnknownChoice
	}
	c := choice(n)
	if (c >= choiceCreate && c <= choiceBalances) || c == choiceExit {
		return c, nil
	}
	return 0, errUnknownChoice
}

// menu runs the interactive loop until exit, end of input or ctx is done.
// A failed action is reported and the loop continues.
func (a *app) menu(ctx context.Context) error {
	key, _ := wallet.ReadMainKey(a.cfg.Wallet.MainKeyFile)
	printConfig(a.out, a.cfg, key)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprintln(a.out, menuText)
		line, err := readLine(a.in, a.out, "> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		c, err := parseChoice(line)
		if err != nil {
			fmt.Fprintf(a.out, "[!] %v: %q\n", err, line)
			continue
		}
		if c == choiceExit {
			return nil
		}
		if err := a.dispatch(ctx, c); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			a.log.Warnw("menu action failed", "choice", int(c), "err", err)
			fmt.Fprintln(a.out, "[!]", err)
		}
	}
}

func (a *app) dispatch(ctx context.Context, c choice) error {
	var err error
	switch c {
	case choiceCreate:
		s, err := readLine(a.in, a.out, fmt.Sprintf("How many wallets (1-%d): ", wallet.MaxCreate))
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return wallet.ErrBadCount
		}
		return a.create(n)

	case choiceDelete:
		s, err := readLine(a.in, a.out, "Delete ALL wallets? (y/N): ")
		if err != nil {
			return err
		}
		if !yes(s) {
			fmt.Fprintln(a.out, "cancelled")
			return nil
		}
		return a.remove()

	case choiceFund:
		amount, err := readLine(a.in, a.out, "Amount per wallet (native, e.g. 0.01): ")
		if err != nil {
			return err
		}
		return a.fund(ctx, amount)

	case choiceFaucet:
		return a.faucet(ctx)

	case choiceToken:
		var req flows.TokenRequest
		if req.Token, err = a.ask("Token address", a.cfg.Contracts.Token); err != nil {
			return err
		}
		if req.To, err = a.ask("Recipient address", ""); err != nil {
			return err
		}
		if req.Amount, err = a.ask("Amount per wallet", ""); err != nil {
			return err
		}
		return a.tokenTransfer(ctx, req)

	case choiceStake:
		var req flows.StakeRequest
		if req.Staking, err = a.ask("Staking contract", a.cfg.Contracts.Staking); err != nil {
			return err
		}
		if req.Token, err = a.ask("Token address (empty for native)", a.cfg.Contracts.Token); err != nil {
			return err
		}
		if req.Amount, err = a.ask("Amount per wallet", ""); err != nil {
			return err
		}
		return a.stake(ctx, req)

	case choiceClaim:
		staking, err := a.ask("Staking contract", a.cfg.Contracts.Staking)
		if err != nil {
			return err
		}
		return a.claim(ctx, staking)

	case choiceBalances:
		token, err := a.ask("Token address (empty for none)", a.cfg.Contracts.Token)
		if err != nil {
			return err
		}
		return a.balances(ctx, token)
	}
	return errUnknownChoice
}

// ask prompts with an optional default shown in brackets.
func (a *app) ask(label, def string) (string, error) {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, def)
	}
	s, err := readLine(a.in, a.out, prompt)
	if err != nil {
		return "", err
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}
