package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligun0805/batch-wallet/internal/flows"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "batchwallet",
		Short: "Batch wallet tool for an EVM testnet",
		Long: `batchwallet creates throwaway wallets and drives one transaction per wallet:
funding, faucet claims, token transfers, staking and reward claims.
Settings come from .env, .env.local and BW_* environment variables.
Run without a command for the interactive menu.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.menu(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "extra env file loaded before .env")

	root.AddCommand(
		newMenuCmd(a),
		newCreateCmd(a),
		newDeleteCmd(a),
		newFundCmd(a),
		newFaucetCmd(a),
		newTokenCmd(a),
		newStakeCmd(a),
		newClaimCmd(a),
		newBalanceCmd(a),
	)
	return root
}

func newMenuCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.menu(cmd.Context())
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate wallets and append them to the wallet file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.create(n)
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 1, "number of wallets to create")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete every stored wallet",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !force {
				s, err := readLine(a.in, a.out, "Delete ALL wallets? (y/N): ")
				if err != nil {
					return err
				}
				if !yes(s) {
					fmt.Fprintln(a.out, "cancelled")
					return nil
				}
			}
			return a.remove()
		},
	}
	cmd.Flags().BoolVarP(&force, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newFundCmd(a *app) *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Send a native amount from the main key to every wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.fund(cmd.Context(), amount)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount per wallet, e.g. 0.01")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newFaucetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "faucet",
		Short: "Claim the faucet from every wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.faucet(cmd.Context())
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var req flows.TokenRequest
	cmd := &cobra.Command{
		Use:   "token-transfer",
		Short: "Transfer an ERC-20 amount from every wallet to one recipient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.tokenTransfer(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&req.Token, "token", "", "token contract (defaults to BW_CONTRACTS_TOKEN)")
	cmd.Flags().StringVar(&req.To, "to", "", "recipient address")
	cmd.Flags().StringVar(&req.Amount, "amount", "", "amount per wallet in token units")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newStakeCmd(a *app) *cobra.Command {
	var req flows.StakeRequest
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Stake an amount from every wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.stake(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&req.Staking, "staking", "", "staking contract (defaults to BW_CONTRACTS_STAKING)")
	cmd.Flags().StringVar(&req.Token, "token", "", "staked token (defaults to BW_CONTRACTS_TOKEN)")
	cmd.Flags().StringVar(&req.Amount, "amount", "", "amount per wallet")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newClaimCmd(a *app) *cobra.Command {
	var staking string
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim staking rewards from every wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.claim(cmd.Context(), staking)
		},
	}
	cmd.Flags().StringVar(&staking, "staking", "", "staking contract (defaults to BW_CONTRACTS_STAKING)")
	return cmd
}

func newBalanceCmd(a *app) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show native and token balances of every wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.balances(cmd.Context(), token)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token contract (defaults to BW_CONTRACTS_TOKEN)")
	return cmd
}
