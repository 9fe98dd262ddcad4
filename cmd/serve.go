package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/tradesim/quote"
	"github.com/etnz/tradesim/server"
	"github.com/google/subcommands"
)

// serveCmd holds the flags for the 'serve' subcommand.
type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the web interface and the JSON API" }
func (*serveCmd) Usage() string {
	return `tradesim serve [-addr <host:port>]

  Serves the simulator over HTTP until interrupted. Snapshots are taken on the
  configured schedule.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address (overrides the configuration)")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	addr := a.cfg.Addr
	if c.addr != "" {
		addr = c.addr
	}
	srv, err := server.New(server.Config{
		Addr:             addr,
		Log:              a.log,
		Trader:           a.trader,
		Transactions:     a.txs,
		Snapshots:        a.snaps,
		Method:           a.cfg.Method(),
		Markets:          quote.DefaultMarkets(),
		CORSOrigins:      a.cfg.CORSOrigins,
		SnapshotSchedule: a.cfg.SnapshotSchedule,
	})
	if err != nil {
		return a.fail(err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if err != nil {
			return a.fail(err)
		}
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return a.fail(err)
		}
	}
	return subcommands.ExitSuccess
}
