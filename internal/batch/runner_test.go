package batch_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/batch-wallet/internal/batch"
	"github.com/ligun0805/batch-wallet/internal/chain"
	"github.com/ligun0805/batch-wallet/internal/sender"
	"github.com/ligun0805/batch-wallet/internal/txsign"
)

// scriptedSender answers Send from a per-key table and records call order.
type scriptedSender struct {
	outcomes map[string]sender.Outcome
	calls    []string
	onSend   func(n int)
}

func (s *scriptedSender) Send(_ context.Context, _ txsign.TransactionIntent, keyHex string) sender.Outcome {
	s.calls = append(s.calls, keyHex)
	if s.onSend != nil {
		s.onSend(len(s.calls))
	}
	return s.outcomes[keyHex]
}

func mined(hash string, status uint64) sender.Outcome {
	h := common.HexToHash(hash)
	return sender.Outcome{
		TxHash:   h,
		Attempts: 1,
		Receipt:  &types.Receipt{TxHash: h, Status: status, BlockNumber: big.NewInt(1)},
	}
}

func jobs(n int) []batch.Job {
	out := make([]batch.Job, n)
	for i := range out {
		out[i] = batch.Job{
			Index:   i + 1,
			Name:    "wallet" + string(rune('1'+i)),
			Address: common.BigToAddress(big.NewInt(int64(i + 1))),
			KeyHex:  "k" + string(rune('1'+i)),
		}
	}
	return out
}

func instantPacer(delays *[]time.Duration) batch.Pacer {
	return batch.Pacer{
		Min:  5 * time.Second,
		Max:  10 * time.Second,
		Rand: func() float64 { return 0.5 },
		After: func(d time.Duration) <-chan time.Time {
			*delays = append(*delays, d)
			ch := make(chan time.Time, 1)
			ch <- time.Time{}
			return ch
		},
	}
}

func TestRunSequentialWithPacingAndReport(t *testing.T) {
	s := &scriptedSender{outcomes: map[string]sender.Outcome{
		"k1": mined("0x01", types.ReceiptStatusSuccessful),
		"k2": {Attempts: 5, Err: &sender.Failure{Kind: chain.AttemptsExhausted, Last: chain.ConfirmationTimeout, Reason: "no receipt after all attempts"}},
		"k3": mined("0x03", types.ReceiptStatusFailed),
	}}
	var delays []time.Duration
	var buf bytes.Buffer
	report, err := batch.NewReport(&buf)
	require.NoError(t, err)

	r := &batch.Runner{Sender: s, Pace: instantPacer(&delays), Report: report}
	sum := r.Run(context.Background(), jobs(3))

	assert.Equal(t, []string{"k1", "k2", "k3"}, s.calls)
	assert.Equal(t, []time.Duration{7500 * time.Millisecond, 7500 * time.Millisecond}, delays)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	assert.Zero(t, sum.Skipped)
	_, err = uuid.Parse(sum.RunID)
	assert.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"run_id", "index", "name", "address", "status", "tx_hash", "attempts", "kind", "reason"}, rows[0])

	assert.Equal(t, sum.RunID, rows[1][0])
	assert.Equal(t, "succeeded", rows[1][4])
	assert.Equal(t, common.HexToHash("0x01").Hex(), rows[1][5])

	assert.Equal(t, "failed", rows[2][4])
	assert.Equal(t, "", rows[2][5])
	assert.Equal(t, "5", rows[2][6])
	assert.Equal(t, "attempts_exhausted", rows[2][7])
	assert.Contains(t, rows[2][8], "no receipt")

	assert.Equal(t, "reverted", rows[3][4])
}

func TestRunStopsBetweenJobsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &scriptedSender{
		outcomes: map[string]sender.Outcome{"k1": mined("0x01", types.ReceiptStatusSuccessful)},
		onSend: func(n int) {
			if n == 1 {
				cancel()
			}
		},
	}
	r := &batch.Runner{Sender: s, Pace: batch.Pacer{Min: time.Hour, Max: time.Hour}}

	sum := r.Run(ctx, jobs(4))

	assert.Equal(t, []string{"k1"}, s.calls)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 3, sum.Skipped)
}

func TestPacerBounds(t *testing.T) {
	p := batch.Pacer{Min: 5 * time.Second, Max: 10 * time.Second}
	for i := 0; i < 100; i++ {
		d := p.Next()
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 10*time.Second)
	}
	assert.Equal(t, 3*time.Second, batch.Pacer{Min: 3 * time.Second, Max: time.Second}.Next())
}

func TestOpenReportAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")

	for i := 0; i < 2; i++ {
		rep, err := batch.OpenReport(path)
		require.NoError(t, err)
		require.NoError(t, rep.Add("run", batch.Result{Job: jobs(1)[0], Outcome: mined("0x01", types.ReceiptStatusSuccessful)}))
		require.NoError(t, rep.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "run_id", rows[0][0])
}
