package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/renderer"
	"github.com/google/subcommands"
)

// tradeCmd is the 'buy' or the 'sell' subcommand, depending on side.
type tradeCmd struct {
	side  tradesim.Side
	limit string
}

func (c *tradeCmd) Name() string { return strings.ToLower(string(c.side)) }
func (c *tradeCmd) Synopsis() string {
	if c.side == tradesim.Sell {
		return "sell shares at the market price or at a limit"
	}
	return "buy shares at the market price or at a limit"
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`tradesim %[1]s [-limit <price>] <ticker> <quantity>

  Places a %[1]s order. A market order executes at the latest quote, a limit
  order executes at its limit when the latest quote reaches it.
`, c.Name())
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.limit, "limit", "", "Limit price in the portfolio currency, a market order when empty")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Error: %s requires a ticker and a quantity\n", c.Name())
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	res, err := a.trade(ctx, c.side, f.Arg(0), f.Arg(1), c.limit)
	if res.Executed() {
		fmt.Println(renderer.Transaction(res.Transaction))
	}
	if err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}
