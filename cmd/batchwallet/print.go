package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ligun0805/batch-wallet/internal/account"
	"github.com/ligun0805/batch-wallet/internal/batch"
	"github.com/ligun0805/batch-wallet/internal/config"
	"github.com/ligun0805/batch-wallet/internal/flows"
	"github.com/ligun0805/batch-wallet/internal/units"
)

func printConfig(w io.Writer, cfg config.Config, mainKey string) {
	fmt.Fprintln(w, "=== CONFIG ===")
	fmt.Fprintln(w, "RPC URL          :", cfg.RPC.URL)
	fmt.Fprintln(w, "Chain ID         :", cfg.RPC.ChainID)
	fmt.Fprintln(w, "Wallet file      :", cfg.Wallet.File)
	fmt.Fprintln(w, "Main key         :", account.Mask(mainKey))
	fmt.Fprintln(w, "Escalation       :", cfg.Send.EscalationFactor)
	fmt.Fprintln(w, "Max attempts     :", cfg.Send.MaxAttempts)
	fmt.Fprintln(w, "Retry interval   :", cfg.Send.RetryInterval)
	fmt.Fprintf(w, "Pacing           : %s..%s\n", cfg.Batch.PaceMin, cfg.Batch.PaceMax)
	fmt.Fprintln(w, "==============")
}

func printSummary(w io.Writer, sum batch.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tSTATUS\tATTEMPTS\tTX / REASON")
	for _, r := range sum.Results {
		detail := r.Outcome.TxHash.Hex()
		if r.Outcome.Err != nil {
			detail = r.Outcome.Err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", r.Job.Index, r.Job.Name, r.Status(), r.Outcome.Attempts, detail)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "run %s: %d succeeded, %d failed, %d skipped\n", sum.RunID, sum.Succeeded, sum.Failed, sum.Skipped)
}

func printBalances(w io.Writer, rows []flows.Balance, info *flows.TokenInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if info != nil {
		fmt.Fprintf(tw, "NAME\tADDRESS\tNATIVE\t%s\n", info.Symbol)
	} else {
		fmt.Fprintln(tw, "NAME\tADDRESS\tNATIVE")
	}
	for _, r := range rows {
		if info != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Entry.Name, account.Checksum(r.Entry.Address),
				units.FormatEther(r.Native), units.FormatUnits(r.Token, int32(info.Decimals), 6))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Entry.Name, account.Checksum(r.Entry.Address), units.FormatEther(r.Native))
	}
	_ = tw.Flush()
}
