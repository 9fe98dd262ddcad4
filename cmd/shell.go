package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/renderer"
	"github.com/google/subcommands"
)

type shellCmd struct{}

func (*shellCmd) Name() string     { return "shell" }
func (*shellCmd) Synopsis() string { return "start an interactive trading session" }
func (*shellCmd) Usage() string {
	return `tradesim shell

  Reads commands until exit. Type help in the shell for the list.
`
}

func (*shellCmd) SetFlags(f *flag.FlagSet) {}

const shellHelp = `Commands:
  quote <ticker>                  latest quote
  buy <ticker> <qty> [@<limit>]   buy at the market price or at a limit
  sell <ticker> <qty> [@<limit>]  sell at the market price or at a limit
  portfolio                       cash, holdings and total value
  pl                              profit and loss
  history [n]                     executed trades, the last n only when set
  snapshot                        record a valuation
  snapshots [n]                   recorded valuations
  save [file]                     save the portfolio
  load <file>                     replace the portfolio with a saved one
  help                            this list
  exit                            leave the shell
`

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("quote"),
	readline.PcItem("buy"),
	readline.PcItem("sell"),
	readline.PcItem("portfolio"),
	readline.PcItem("pl"),
	readline.PcItem("history"),
	readline.PcItem("snapshot"),
	readline.PcItem("snapshots"),
	readline.PcItem("save"),
	readline.PcItem("load"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

func (*shellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return failOpen(err)
	}
	defer a.close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tradesim> ",
		HistoryFile:     a.cfg.Path(".shell_history"),
		AutoComplete:    shellCompleter,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return a.fail(err)
	}
	defer rl.Close()

	a.stderr = rl.Stderr()
	s := &session{a: a, out: rl.Stdout(), markdown: printMarkdown}
	fmt.Fprintln(s.out, "Type help for the list of commands, exit to quit.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if err != nil { // io.EOF
			break
		}
		quit, err := s.exec(ctx, line)
		if err != nil {
			a.explain(err)
		}
		if quit {
			break
		}
	}
	return subcommands.ExitSuccess
}

// session runs the shell commands. Errors are returned to the loop, which
// reports them and reads the next line.
type session struct {
	a        *app
	out      io.Writer
	markdown func(string)
}

func usageError(format string, args ...any) error {
	return &tradesim.Error{Kind: tradesim.Validation, Msg: fmt.Sprintf(format, args...)}
}

// exec runs a single line, and reports whether the session should end. A
// panicking command is logged and returned as an Unexpected error.
func (s *session) exec(ctx context.Context, line string) (quit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.a.log.Error().Str("line", line).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("shell command panicked")
			quit, err = false, &tradesim.Error{Kind: tradesim.Unexpected, Op: "shell", Msg: fmt.Sprint(r)}
		}
	}()
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "exit", "quit":
		return true, nil

	case "help", "?":
		fmt.Fprint(s.out, shellHelp)

	case "quote":
		if len(args) != 1 {
			return false, usageError("usage: quote <ticker>")
		}
		md, err := s.a.quote(ctx, args[0])
		if err != nil {
			return false, err
		}
		s.markdown(md)

	case "buy", "sell":
		ticker, qty, limit, err := parseTradeArgs(args)
		if err != nil {
			return false, usageError("usage: %s <ticker> <quantity> [@<limit>]: %v", name, err)
		}
		side, _ := tradesim.ParseSide(name)
		res, err := s.a.trade(ctx, side, ticker, qty, limit)
		if res.Executed() {
			fmt.Fprintln(s.out, renderer.Transaction(res.Transaction))
		}
		return false, err

	case "portfolio":
		s.markdown(s.a.portfolio(ctx))

	case "pl":
		md, err := s.a.pl(ctx, s.a.cfg.Method())
		if err != nil {
			return false, err
		}
		s.markdown(md)

	case "history", "snapshots":
		n, err := parseTail(args)
		if err != nil {
			return false, usageError("usage: %s [n]: %v", name, err)
		}
		read := s.a.history
		if name == "snapshots" {
			read = s.a.snapshots
		}
		md, err := read(n)
		if err != nil {
			return false, err
		}
		s.markdown(md)

	case "snapshot":
		snap, err := s.a.trader.TakeSnapshot(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Snapshot recorded, total value is %s\n", snap.TotalValue)

	case "save":
		if len(args) > 1 {
			return false, usageError("usage: save [file]")
		}
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		path, err := s.a.save(path)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Portfolio saved to %s\n", path)

	case "load":
		if len(args) != 1 {
			return false, usageError("usage: load <file>")
		}
		archived, err := s.a.load(ctx, args[0])
		printArchived(s.out, archived)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Portfolio loaded from %s\n", args[0])

	default:
		return false, usageError("unknown command %q, type help for the list", name)
	}
	return false, nil
}

// parseTradeArgs splits "<ticker> <qty> [@<limit>]". The limit may also be
// written as a separate "@" followed by the price.
func parseTradeArgs(args []string) (ticker, qty, limit string, err error) {
	switch {
	case len(args) == 2:
		return args[0], args[1], "", nil
	case len(args) == 3 && strings.HasPrefix(args[2], "@") && len(args[2]) > 1:
		return args[0], args[1], args[2][1:], nil
	case len(args) == 4 && args[2] == "@":
		return args[0], args[1], args[3], nil
	default:
		return "", "", "", errors.New("expected a ticker, a quantity and an optional @limit")
	}
}

func parseTail(args []string) (int, error) {
	switch len(args) {
	case 0:
		return 0, nil
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid count %q", args[0])
		}
		return n, nil
	default:
		return 0, errors.New("too many arguments")
	}
}
