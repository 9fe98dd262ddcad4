package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type portfolioCmd struct{}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "display cash, holdings and total value" }
func (*portfolioCmd) Usage() string {
	return `tradesim portfolio

  Values the holdings at their latest price. A holding whose price cannot be
  fetched is valued at its average cost and flagged.
`
}

func (*portfolioCmd) SetFlags(f *flag.FlagSet) {}

func (*portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	printMarkdown(a.portfolio(ctx))
	return subcommands.ExitSuccess
}

// saveCmd holds the flags for the 'save' subcommand.
type saveCmd struct {
	output string
}

func (*saveCmd) Name() string     { return "save" }
func (*saveCmd) Synopsis() string { return "save the portfolio to a file" }
func (*saveCmd) Usage() string {
	return `tradesim save [-o <file>]

  Writes the portfolio to the file, or to the data directory by default.
`
}

func (c *saveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file, the data directory portfolio when empty")
}

func (c *saveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	path, err := a.save(c.output)
	if err != nil {
		return a.fail(err)
	}
	fmt.Printf("Portfolio saved to %s\n", path)
	return subcommands.ExitSuccess
}

type loadCmd struct{}

func (*loadCmd) Name() string     { return "load" }
func (*loadCmd) Synopsis() string { return "replace the portfolio with a saved one" }
func (*loadCmd) Usage() string {
	return `tradesim load <file>

  Replaces the current portfolio with the one saved in the file. The
  transaction and snapshot histories of the replaced portfolio are archived
  next to them, and a snapshot of the loaded portfolio starts new ones.
`
}

func (*loadCmd) SetFlags(f *flag.FlagSet) {}

func (*loadCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: load requires exactly one file")
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	archived, err := a.load(ctx, f.Arg(0))
	printArchived(os.Stdout, archived)
	if err != nil {
		return a.fail(err)
	}
	fmt.Printf("Portfolio loaded from %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}
