// Package wallet persists generated accounts as name:address:privatekey lines.
package wallet

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/batch-wallet/internal/account"
)

// MaxCreate caps one CreateN call.
const MaxCreate = 100

var (
	ErrBadCount = fmt.Errorf("wallet count must be between 1 and %d", MaxCreate)
	ErrNoMain   = errors.New("main key file is empty")
)

// Entry is one stored wallet.
type Entry struct {
	Name    string
	Address common.Address
	KeyHex  string
}

func (e Entry) line() string {
	return e.Name + ":" + e.Address.Hex() + ":" + e.KeyHex
}

// Store is a line file of entries.
type Store struct {
	Path string
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// ReadAll parses every non-empty line. A missing file is an empty store.
func (s *Store) ReadAll() ([]Entry, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open wallets: %w", err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%s:%d: expected name:address:privatekey", s.Path, lineNo)
		}
		if !common.IsHexAddress(parts[1]) {
			return nil, fmt.Errorf("%s:%d: bad address %q", s.Path, lineNo, parts[1])
		}
		out = append(out, Entry{Name: parts[0], Address: common.HexToAddress(parts[1]), KeyHex: parts[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read wallets: %w", err)
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	all, err := s.ReadAll()
	return len(all), err
}

// Append writes entries at the end of the file.
func (s *Store) Append(entries ...Entry) error {
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open wallets: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := w.WriteString(e.line() + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("write wallets: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write wallets: %w", err)
	}
	return f.Close()
}

// Clear truncates the file.
func (s *Store) Clear() error {
	if err := os.WriteFile(s.Path, nil, 0o600); err != nil {
		return fmt.Errorf("clear wallets: %w", err)
	}
	return nil
}

// CreateN generates n fresh accounts named after their running index and
// appends them after the existing entries.
func (s *Store) CreateN(n int) ([]Entry, error) {
	if n < 1 || n > MaxCreate {
		return nil, ErrBadCount
	}
	existing, err := s.Count()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		acc, err := account.Generate()
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{
			Name:    strconv.Itoa(existing + i),
			Address: acc.Address,
			KeyHex:  acc.KeyHex(),
		})
	}
	if err := s.Append(out...); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadMainKey returns the first line of path, the funding key.
func ReadMainKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open main key: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read main key: %w", err)
		}
		return "", ErrNoMain
	}
	key := strings.TrimSpace(sc.Text())
	if key == "" {
		return "", ErrNoMain
	}
	return key, nil
}
