package cmd

import (
	"fmt"
	"os"

	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/config"
	"github.com/google/subcommands"
)

// friendly returns the message shown to the user for err. Unexpected errors
// only point to the log file, where the details are.
func friendly(err error, logFile string) string {
	switch tradesim.KindOf(err) {
	case tradesim.Validation:
		return "Invalid input: " + err.Error()
	case tradesim.InsufficientFunds:
		return "Insufficient funds: " + err.Error()
	case tradesim.InsufficientHoldings:
		return "Insufficient holdings: " + err.Error()
	case tradesim.DataFetch:
		return "Market data unavailable: " + err.Error()
	case tradesim.MarketClosed:
		return "Market closed: " + err.Error()
	case tradesim.LimitNotReachable:
		return "Limit not reached: " + err.Error()
	case tradesim.File:
		return "File error: " + err.Error()
	default:
		return "Unexpected error, see " + logFile + " for details"
	}
}

// fail reports err to the user and returns the failure status.
func (a *app) fail(err error) subcommands.ExitStatus {
	a.explain(err)
	return subcommands.ExitFailure
}

// explain prints the friendly message of err, logging unexpected errors.
func (a *app) explain(err error) {
	if tradesim.KindOf(err) == tradesim.Unexpected {
		a.log.Error().Err(err).Msg("unexpected error")
	}
	fmt.Fprintln(a.stderr, friendly(err, a.cfg.Path(config.LogFile)))
}

// failOpen reports an error that happened before the app was opened, when
// there is no log file yet.
func failOpen(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error opening the simulator: %v\n", err)
	return subcommands.ExitFailure
}
