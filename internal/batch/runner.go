// Package batch runs one logical transaction per account, strictly in order,
// with randomized pacing between submissions.
package batch

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ligun0805/batch-wallet/internal/metrics"
	"github.com/ligun0805/batch-wallet/internal/sender"
	"github.com/ligun0805/batch-wallet/internal/txsign"
)

// Sender is the part of sender.Controller the runner needs.
type Sender interface {
	Send(ctx context.Context, intent txsign.TransactionIntent, keyHex string) sender.Outcome
}

// Job is one account's transaction.
type Job struct {
	Index   int
	Name    string
	Address common.Address
	KeyHex  string
	Intent  txsign.TransactionIntent
}

// Result pairs a job with what happened to it.
type Result struct {
	Job     Job
	Outcome sender.Outcome
}

// Status is the report label of the result.
func (r Result) Status() string {
	switch {
	case r.Outcome.Err != nil:
		return "failed"
	case r.Outcome.Reverted():
		return "reverted"
	}
	return "succeeded"
}

// Summary aggregates a run.
type Summary struct {
	RunID     string
	Results   []Result
	Succeeded int
	Failed    int
	Skipped   int
}

// Runner executes jobs one at a time.
type Runner struct {
	Sender  Sender
	Pace    Pacer
	Report  *Report
	Log     *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// Run processes jobs in order. Cancelling ctx stops the run between jobs;
// jobs not started are counted as skipped.
func (r *Runner) Run(ctx context.Context, jobs []Job) Summary {
	sum := Summary{RunID: uuid.NewString()}
	log := r.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.With("run", sum.RunID)
	log.Infow("batch started", "jobs", len(jobs))

	for i, job := range jobs {
		if i > 0 {
			d, err := r.Pace.Wait(ctx)
			if err != nil {
				sum.Skipped = len(jobs) - i
				log.Warnw("batch cancelled", "remaining", sum.Skipped, "err", err)
				break
			}
			log.Debugw("paced", "delay", d)
		}
		if err := ctx.Err(); err != nil {
			sum.Skipped = len(jobs) - i
			log.Warnw("batch cancelled", "remaining", sum.Skipped, "err", err)
			break
		}

		log.Infow("job started", "index", job.Index, "name", job.Name, "address", job.Address.Hex())
		res := Result{Job: job, Outcome: r.Sender.Send(ctx, job.Intent, job.KeyHex)}
		sum.Results = append(sum.Results, res)

		status := res.Status()
		r.Metrics.Job(status)
		if res.Outcome.Err != nil {
			sum.Failed++
			log.Warnw("job failed", "index", job.Index, "name", job.Name, "kind", res.Outcome.Err.Kind, "err", res.Outcome.Err)
		} else {
			sum.Succeeded++
			log.Infow("job done", "index", job.Index, "name", job.Name, "status", status, "tx", res.Outcome.TxHash.Hex())
		}
		if err := r.Report.Add(sum.RunID, res); err != nil {
			log.Errorw("report write failed", "err", err)
		}
	}

	log.Infow("batch finished", "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum
}
