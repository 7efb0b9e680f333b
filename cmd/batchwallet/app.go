package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ligun0805/batch-wallet/internal/batch"
	"github.com/ligun0805/batch-wallet/internal/chain"
	"github.com/ligun0805/batch-wallet/internal/config"
	"github.com/ligun0805/batch-wallet/internal/confirm"
	"github.com/ligun0805/batch-wallet/internal/flows"
	"github.com/ligun0805/batch-wallet/internal/logger"
	"github.com/ligun0805/batch-wallet/internal/metrics"
	"github.com/ligun0805/batch-wallet/internal/sender"
	"github.com/ligun0805/batch-wallet/internal/txsign"
	"github.com/ligun0805/batch-wallet/internal/wallet"
)

// app holds everything a command needs. Commands share one instance.
type app struct {
	envFile string
	cfg     config.Config
	log     *zap.SugaredLogger
	client  chain.Client
	metrics *metrics.Metrics
	store   *wallet.Store

	in     *bufio.Reader
	out    io.Writer
	secret func(prompt string) (string, error)

	closers []func()
}

// setup loads config and prepares logging and the wallet store. The endpoint
// is dialed by the first command that needs it.
func (a *app) setup(context.Context) error {
	cfg, err := config.LoadFile(a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logger.New("batchwallet", cfg.Log.Output, cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.closers = append(a.closers, func() { _ = log.Sync() })

	reg := prometheus.NewRegistry()
	a.metrics = metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		a.serveMetrics(reg)
	}

	a.store = wallet.NewStore(cfg.Wallet.File)
	if a.in == nil {
		a.in = bufio.NewReader(os.Stdin)
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.secret == nil {
		a.secret = readPassword
	}
	log.Debugw("config loaded", "config", cfg.String())
	return nil
}

// dial connects to the endpoint once.
func (a *app) dial(ctx context.Context) error {
	if a.client != nil {
		return nil
	}
	opts := a.cfg.ClientOptions()
	opts.Log = a.log
	opts.OnThrottle = a.metrics.Throttled
	c, err := chain.Dial(ctx, a.cfg.RPC.URL, opts)
	if err != nil {
		return err
	}
	a.client = c
	a.closers = append(a.closers, c.Close)
	return nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.log.Infow("metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Errorw("metrics server", "err", err)
		}
	}()
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) controller() *sender.Controller {
	signer := txsign.New(a.client, a.cfg.Jitter())
	poller := confirm.New(a.client, a.cfg.Send.PollInterval, a.log)
	return sender.New(a.client, signer, poller, a.cfg.Policy(), a.log, a.metrics)
}

func (a *app) planner() (*flows.Planner, error) {
	price, err := a.cfg.GasPrice()
	if err != nil {
		return nil, err
	}
	return &flows.Planner{
		Client:  a.client,
		ChainID: a.cfg.ChainID(),
		Fees:    flows.Fees{GasLimit: a.cfg.Send.GasLimit, GasPrice: price},
	}, nil
}

// run executes jobs and prints the summary.
func (a *app) run(ctx context.Context, jobs []batch.Job) (batch.Summary, error) {
	if len(jobs) == 0 {
		fmt.Fprintln(a.out, "nothing to do: no wallets")
		return batch.Summary{}, nil
	}
	r := &batch.Runner{
		Sender:  a.controller(),
		Pace:    a.cfg.Pacer(),
		Log:     a.log,
		Metrics: a.metrics,
	}
	if a.cfg.Batch.Report != "" {
		rep, err := batch.OpenReport(a.cfg.Batch.Report)
		if err != nil {
			return batch.Summary{}, err
		}
		defer rep.Close()
		r.Report = rep
	}
	sum := r.Run(ctx, jobs)
	printSummary(a.out, sum)
	return sum, nil
}

// mainKey reads the funding key file, prompting when it is missing or empty.
func (a *app) mainKey() (string, error) {
	key, err := wallet.ReadMainKey(a.cfg.Wallet.MainKeyFile)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, wallet.ErrNoMain) {
		return "", err
	}
	a.log.Infow("main key file unavailable, asking", "file", a.cfg.Wallet.MainKeyFile)
	key, err = a.secret("Main private key: ")
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", wallet.ErrNoMain
	}
	return key, nil
}

func (a *app) wallets() ([]wallet.Entry, error) {
	return a.store.ReadAll()
}

func (a *app) create(n int) error {
	entries, err := a.store.CreateN(n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%s  %s\n", e.Name, e.Address.Hex())
	}
	total, err := a.store.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %d wallets, %d stored in %s\n", len(entries), total, a.store.Path)
	a.log.Infow("wallets created", "count", len(entries), "total", total)
	return nil
}

func (a *app) remove() error {
	if err := a.store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "all wallets deleted")
	a.log.Infow("wallets deleted", "file", a.store.Path)
	return nil
}

func (a *app) fund(ctx context.Context, amount string) error {
	if err := a.dial(ctx); err != nil {
		return err
	}
	key, err := a.mainKey()
	if err != nil {
		return err
	}
	ws, err := a.wallets()
	if err != nil {
		return err
	}
	p, err := a.planner()
	if err != nil {
		return err
	}
	jobs, err := p.Fund(flows.FundRequest{MainKey: key, Amount: amount}, ws)
	if err != nil {
		return err
	}
	_, err = a.run(ctx, jobs)
	return err
}

func (a *app) faucet(ctx context.Context) error {
	if err := a.dial(ctx); err != nil {
		return err
	}
	addr, ok := config.Address(a.cfg.Contracts.Faucet)
	if !ok {
		return errors.New("faucet contract is not configured")
	}
	ws, err := a.wallets()
	if err != nil {
		return err
	}
	p, err := a.planner()
	if err != nil {
		return err
	}
	jobs, err := p.Faucet(addr, ws)
	if err != nil {
		return err
	}
	_, err = a.run(ctx, jobs)
	return err
}

func (a *app) tokenTransfer(ctx context.Context, req flows.TokenRequest) error {
	if err := a.dial(ctx); err != nil {
		return err
	}
	if req.Token == "" {
		req.Token = a.cfg.Contracts.Token
	}
	ws, err := a.wallets()
	if err != nil {
		return err
	}
	p, err := a.planner()
	if err != nil {
		return err
	}
	jobs, err := p.Token(ctx, req, ws)
	if err != nil {
		return err
	}
	_, err = a.run(ctx, jobs)
	return err
}

func (a *app) stake(ctx context.Context, req flows.StakeRequest) error {
	if err := a.dial(ctx); err != nil {
		return err
	}
	if req.Staking == "" {
		req.Staking = a.cfg.Contracts.Staking
	}
	if req.Token == "" {
		req.Token = a.cfg.Contracts.Token
	}
	stakingABI, err := flows.LoadStakingABI(a.cfg.Contracts.StakingABI)
	if err != nil {
		return err
	}
	ws, err := a.wallets()
	if err != nil {
		return err
	}
	p, err := a.planner()
	if err != nil {
		return err
	}
	jobs, err := p.Stake(ctx, req, stakingABI, ws)
	if err != nil {
		return err
	}
	_, err = a.run(ctx, jobs)
	return err
}

func (a *app) claim(ctx context.Context, staking string) error {
	if err := a.dial(ctx); err != nil {
		return err
	}
	if staking == "" {
		staking = a.cfg.Contracts.Staking
	}
	addr, ok := config.Address(staking)
	if !ok {
		return fmt.Errorf("staking contract %q is not a valid address", staking)
	}
	stakingABI, err := flows.LoadStakingABI(a.cfg.Contracts.StakingABI)
	if err != nil {
		return err
	}
	ws, err := a.wallets()
	if err != nil {
		return err
	}
	p, err := a.planner()
	if err != nil {
		return err
	}
	jobs, err := p.Claim(addr, stakingABI, ws)
	if err != nil {
		return err
	}
	_, err = a.run(ctx, jobs)
	return err
}

func (a *app) balances(ctx context.Context, token string) error {
	if err := a.dial(ctx); err != nil {
		return err
	}
	if token == "" {
		token = a.cfg.Contracts.Token
	}
	var tokenAddr common.Address
	if token != "" {
		addr, ok := config.Address(token)
		if !ok {
			return fmt.Errorf("token %q is not a valid address", token)
		}
		tokenAddr = addr
	}
	ws, err := a.wallets()
	if err != nil {
		return err
	}
	rows, info, err := flows.Balances(ctx, a.client, ws, tokenAddr)
	printBalances(a.out, rows, info)
	return err
}
