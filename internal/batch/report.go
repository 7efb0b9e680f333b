package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

var reportHeader = []string{"run_id", "index", "name", "address", "status", "tx_hash", "attempts", "kind", "reason"}

// Report appends one CSV row per finished job.
type Report struct {
	w      *csv.Writer
	closer io.Closer
}

// NewReport writes the header to w.
func NewReport(w io.Writer) (*Report, error) {
	r := &Report{w: csv.NewWriter(w)}
	if err := r.w.Write(reportHeader); err != nil {
		return nil, fmt.Errorf("write report header: %w", err)
	}
	r.w.Flush()
	return r, r.w.Error()
}

// OpenReport appends to path, writing the header only to a new file.
func OpenReport(path string) (*Report, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat report: %w", err)
	}
	if st.Size() > 0 {
		return &Report{w: csv.NewWriter(f), closer: f}, nil
	}
	r, err := NewReport(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Add writes and flushes one row.
func (r *Report) Add(runID string, res Result) error {
	if r == nil {
		return nil
	}
	kind, reason := "", ""
	if res.Outcome.Err != nil {
		kind = res.Outcome.Err.Kind.String()
		reason = res.Outcome.Err.Error()
	}
	var hash string
	if res.Outcome.TxHash != (common.Hash{}) {
		hash = res.Outcome.TxHash.Hex()
	}
	row := []string{
		runID,
		strconv.Itoa(res.Job.Index),
		res.Job.Name,
		res.Job.Address.Hex(),
		res.Status(),
		hash,
		strconv.Itoa(res.Outcome.Attempts),
		kind,
		reason,
	}
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}
	r.w.Flush()
	return r.w.Error()
}

// Close flushes and closes the underlying file, if any.
func (r *Report) Close() error {
	if r == nil {
		return nil
	}
	r.w.Flush()
	if r.closer != nil {
		return r.closer.Close()
	}
	return r.w.Error()
}
