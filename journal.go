package tradesim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"
)

// TransactionLog is the append-only record of executed trades, persisted as a
// JSON array. Records are never rewritten: Append reads the whole array back,
// adds one record and atomically replaces the file, so a failed append leaves
// the prior records intact.
type TransactionLog struct {
	path     string
	currency string

	mu sync.Mutex
}

// NewTransactionLog returns the log stored at path. The file is created on the
// first Append. Amounts read back are set in currency.
func NewTransactionLog(path, currency string) *TransactionLog {
	return &TransactionLog{path: path, currency: currency}
}

// Path returns the file backing the log.
func (l *TransactionLog) Path() string { return l.path }

// Append adds tx at the end of the log.
func (l *TransactionLog) Append(tx Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	txs, err := l.read()
	if err != nil {
		// never overwrite a file we cannot read back.
		return fileError("append transaction", err)
	}
	txs = append(txs, tx)
	err = writeFileAtomic(l.path, func(w io.Writer) error { return EncodeTransactions(w, txs) })
	if err != nil {
		return fileError("append transaction", err)
	}
	return nil
}

// Read returns all transactions in execution order. An absent log is empty.
func (l *TransactionLog) Read() ([]Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	txs, err := l.read()
	if err != nil {
		return nil, fileError("read transactions", err)
	}
	return txs, nil
}

func (l *TransactionLog) read() ([]Transaction, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	txs, err := DecodeTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("%q is corrupt: %w", l.path, err)
	}
	for i, tx := range txs {
		txs[i] = tx.in(l.currency)
	}
	return txs, nil
}

// Archive moves the log aside, to a file named after at, so that the next
// Append starts a new log. It returns the archive path, "" when the log was
// never written.
func (l *TransactionLog) Archive(at time.Time) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	archived, err := archiveFile(l.path, at)
	if err != nil {
		return "", fileError("archive transactions", err)
	}
	return archived, nil
}

// EncodeTransactions writes txs as an indented JSON array.
func EncodeTransactions(w io.Writer, txs []Transaction) error {
	if txs == nil {
		txs = []Transaction{}
	}
	data, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// DecodeTransactions reads a JSON array of transactions. An empty input is an
// empty log.
func DecodeTransactions(r io.Reader) ([]Transaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var txs []Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, err
	}
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("record #%d: %w", i, err)
		}
	}
	return txs, nil
}
