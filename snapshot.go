package tradesim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time valuation of the whole portfolio.
type Snapshot struct {
	Timestamp     time.Time
	Cash          Money
	HoldingsValue Money
	TotalValue    Money
}

// TakeSnapshot values p at prices. Holdings without a price are valued at
// their average cost.
func TakeSnapshot(at time.Time, p *Portfolio, prices map[string]Money) Snapshot {
	holdings := p.HoldingsValue(prices)
	return Snapshot{
		Timestamp:     at.UTC(),
		Cash:          p.Cash(),
		HoldingsValue: holdings,
		TotalValue:    p.Cash().Add(holdings),
	}
}

// snapshotHeader is the first row of the snapshot file.
var snapshotHeader = []string{"timestamp", "cash", "holdings_value", "total_value"}

// SnapshotStore is the append-only CSV file of snapshots. Like TransactionLog
// it is rewritten atomically on every Append.
type SnapshotStore struct {
	path     string
	currency string

	mu sync.Mutex
}

// NewSnapshotStore returns the store at path, amounts read back in currency.
func NewSnapshotStore(path, currency string) *SnapshotStore {
	return &SnapshotStore{path: path, currency: currency}
}

// Path returns the file backing the store.
func (s *SnapshotStore) Path() string { return s.path }

// Append adds snap at the end of the store.
func (s *SnapshotStore) Append(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps, err := s.read()
	if err != nil {
		return fileError("append snapshot", err)
	}
	snaps = append(snaps, snap)
	err = writeFileAtomic(s.path, func(w io.Writer) error { return EncodeSnapshots(w, snaps) })
	if err != nil {
		return fileError("append snapshot", err)
	}
	return nil
}

// Read returns all snapshots in order. An absent store is empty.
func (s *SnapshotStore) Read() ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps, err := s.read()
	if err != nil {
		return nil, fileError("read snapshots", err)
	}
	return snaps, nil
}

// Archive moves the store aside like TransactionLog.Archive.
func (s *SnapshotStore) Archive(at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	archived, err := archiveFile(s.path, at)
	if err != nil {
		return "", fileError("archive snapshots", err)
	}
	return archived, nil
}

func (s *SnapshotStore) read() ([]Snapshot, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	snaps, err := DecodeSnapshots(f, s.currency)
	if err != nil {
		return nil, fmt.Errorf("%q is corrupt: %w", s.path, err)
	}
	return snaps, nil
}

// EncodeSnapshots writes snaps as CSV with a header row.
func EncodeSnapshots(w io.Writer, snaps []Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotHeader); err != nil {
		return err
	}
	for _, s := range snaps {
		row := []string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			s.Cash.value.String(),
			s.HoldingsValue.value.String(),
			s.TotalValue.value.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeSnapshots reads the CSV written by EncodeSnapshots.
func DecodeSnapshots(r io.Reader, currency string) ([]Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(snapshotHeader)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	for i, col := range snapshotHeader {
		if records[0][i] != col {
			return nil, fmt.Errorf("unexpected header %q, want %q", records[0], snapshotHeader)
		}
	}
	snaps := make([]Snapshot, 0, len(records)-1)
	for i, rec := range records[1:] {
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid timestamp: %w", i+1, err)
		}
		var values [3]decimal.Decimal
		for j := range values {
			values[j], err = decimal.NewFromString(rec[j+1])
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid %s %q", i+1, snapshotHeader[j+1], rec[j+1])
			}
		}
		snaps = append(snaps, Snapshot{
			Timestamp:     ts.UTC(),
			Cash:          M(values[0], currency),
			HoldingsValue: M(values[1], currency),
			TotalValue:    M(values[2], currency),
		})
	}
	return snaps, nil
}
