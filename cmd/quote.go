package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "display the latest quote of a ticker" }
func (*quoteCmd) Usage() string {
	return `tradesim quote <ticker>

  Fetches the latest price of the ticker from the configured provider, with the
  state of its market.
`
}

func (*quoteCmd) SetFlags(f *flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: quote requires exactly one ticker")
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	md, err := a.quote(ctx, f.Arg(0))
	if err != nil {
		return a.fail(err)
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}
