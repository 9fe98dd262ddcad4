package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/tradesim"
	"github.com/google/subcommands"
)

// historyCmd holds the flags for the 'history' subcommand.
type historyCmd struct {
	tail int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list the executed trades" }
func (*historyCmd) Usage() string {
	return `tradesim history [-n <count>]

  Lists the executed trades in chronological order.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.tail, "n", 0, "Only list the last n trades, all of them when 0")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	md, err := a.history(c.tail)
	if err != nil {
		return a.fail(err)
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

// plCmd holds the flags for the 'pl' subcommand.
type plCmd struct {
	method string
}

func (*plCmd) Name() string     { return "pl" }
func (*plCmd) Synopsis() string { return "display realized and unrealized profit and loss" }
func (*plCmd) Usage() string {
	return `tradesim pl [-method average|fifo]

  Replays the trades to compute the realized profit and loss of each ticker,
  and values the holdings at their latest price for the unrealized one.
`
}

func (c *plCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.method, "method", "", "Cost basis method: average or fifo (overrides the configuration)")
}

func (c *plCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	method := a.cfg.Method()
	if c.method != "" {
		if method, err = tradesim.ParseCostBasisMethod(c.method); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing method: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	md, err := a.pl(ctx, method)
	if err != nil {
		return a.fail(err)
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

// snapshotsCmd holds the flags for the 'snapshots' subcommand.
type snapshotsCmd struct {
	take bool
	tail int
}

func (*snapshotsCmd) Name() string     { return "snapshots" }
func (*snapshotsCmd) Synopsis() string { return "list the portfolio valuations over time" }
func (*snapshotsCmd) Usage() string {
	return `tradesim snapshots [-take] [-n <count>]

  Lists the recorded valuations of the portfolio with their statistics.
`
}

func (c *snapshotsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.take, "take", false, "Record a valuation at the latest prices first")
	f.IntVar(&c.tail, "n", 0, "Only list the last n snapshots, all of them when 0")
}

func (c *snapshotsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	if c.take {
		if _, err := a.trader.TakeSnapshot(ctx); err != nil {
			return a.fail(err)
		}
	}
	md, err := a.snapshots(c.tail)
	if err != nil {
		return a.fail(err)
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

// reportCmd holds the flags for the 'report' subcommand.
type reportCmd struct {
	since  time.Duration
	output string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "generate a trading report" }
func (*reportCmd) Usage() string {
	return `tradesim report [-since <duration>] [-o <file>]

  Summarizes the trades, the holdings, the profit and loss and the valuations,
  as markdown.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.since, "since", 0, "Only report the trades of this last period, e.g. 168h, all of them when 0")
	f.StringVar(&c.output, "o", "", "Write the markdown report to this file instead of the terminal")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	md, err := a.report(ctx, c.since)
	if err != nil {
		return a.fail(err)
	}
	if c.output == "" {
		printMarkdown(md)
		return subcommands.ExitSuccess
	}
	if err := tradesim.WriteFile(c.output, []byte(md)); err != nil {
		return a.fail(err)
	}
	fmt.Printf("Report written to %s\n", c.output)
	return subcommands.ExitSuccess
}
