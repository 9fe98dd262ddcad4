// Package tradesim is a single-user paper-trading engine. A simulated account
// holds a cash balance and positions in stocks, crypto or forex pairs, and
// trades them at the latest price reported by a market-data provider.
//
// The package is organized around a few pieces:
//   - Validators: ValidateTicker, ValidateQuantity and ValidatePrice check and
//     normalize user input.
//   - Portfolio: the in-memory cash and holdings, mutated only by ApplyBuy and
//     ApplySell with average-cost accounting. It performs no I/O;
//     SavePortfolio and LoadPortfolio persist it as JSON.
//   - History: TransactionLog (a JSON array) and SnapshotStore (a CSV file)
//     are append-only and always replaced atomically.
//   - Analytics: Summarize replays the transaction log to compute realized,
//     unrealized and total profit.
//   - Trader: the orchestrator executing one Order end to end, from
//     validation to persistence.
//
// Every failure is reported as an *Error whose Kind tells the caller how to
// present it.
package tradesim
