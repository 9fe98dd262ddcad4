package tradesim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// This file contains the persistence of the portfolio: a single, human-readable
// JSON document, always replaced atomically.

// jsonPortfolio is the persisted form of a Portfolio.
type jsonPortfolio struct {
	Cash     Money              `json:"cash"`
	Currency string             `json:"currency,omitempty"`
	Holdings map[string]Holding `json:"holdings"`
}

// MarshalJSON implements the json.Marshaler interface for Portfolio.
func (p *Portfolio) MarshalJSON() ([]byte, error) {
	holdings := p.holdings
	if holdings == nil {
		holdings = map[string]Holding{}
	}
	return json.Marshal(jsonPortfolio{Cash: p.cash, Currency: p.currency, Holdings: holdings})
}

// UnmarshalJSON implements the json.Unmarshaler interface for Portfolio.
// It rejects documents that break the portfolio invariants.
func (p *Portfolio) UnmarshalJSON(data []byte) error {
	var jp jsonPortfolio
	if err := json.Unmarshal(data, &jp); err != nil {
		return err
	}
	if jp.Cash.IsNegative() {
		return fmt.Errorf("cash balance is negative: %s", jp.Cash.value)
	}
	q := &Portfolio{
		currency: jp.Currency,
		cash:     jp.Cash.In(jp.Currency),
		holdings: make(map[string]Holding, len(jp.Holdings)),
	}
	for ticker, h := range jp.Holdings {
		t, err := ValidateTicker(ticker)
		if err != nil {
			return err
		}
		if h.Quantity.IsNegative() {
			return fmt.Errorf("holding %s has a negative quantity %s", t, h.Quantity)
		}
		if h.AverageCost.IsNegative() {
			return fmt.Errorf("holding %s has a negative average cost %s", t, h.AverageCost.value)
		}
		if h.Quantity.IsZero() {
			continue
		}
		h.AverageCost = h.AverageCost.In(jp.Currency)
		q.holdings[t] = h
	}
	*p = *q
	return nil
}

// EncodePortfolio writes p to w as indented JSON.
func EncodePortfolio(w io.Writer, p *Portfolio) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// DecodePortfolio reads a portfolio from r.
func DecodePortfolio(r io.Reader) (*Portfolio, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p := new(Portfolio)
	if err := json.Unmarshal(bytes.TrimSpace(data), p); err != nil {
		return nil, err
	}
	return p, nil
}

// SavePortfolio persists p to path. The previous file is replaced atomically:
// a failed save leaves it intact.
func SavePortfolio(path string, p *Portfolio) error {
	err := writeFileAtomic(path, func(w io.Writer) error { return EncodePortfolio(w, p) })
	if err != nil {
		return fileError("save portfolio", err)
	}
	return nil
}

// LoadPortfolio reads the portfolio persisted at path. A missing file is not
// an error: a fresh portfolio holding startingCash is returned instead.
func LoadPortfolio(path string, startingCash Money) (*Portfolio, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewPortfolio(startingCash), nil
	}
	if err != nil {
		return nil, fileError("load portfolio", err)
	}
	defer f.Close()

	p, err := DecodePortfolio(f)
	if err != nil {
		return nil, fileError("load portfolio", fmt.Errorf("%q is corrupt: %w", path, err))
	}
	if p.currency == "" {
		// files written by hand may omit it.
		p.currency = startingCash.Currency()
		p.cash = p.cash.In(p.currency)
		for t, h := range p.holdings {
			h.AverageCost = h.AverageCost.In(p.currency)
			p.holdings[t] = h
		}
	}
	return p, nil
}

// WriteFile writes data to path atomically, like SavePortfolio.
func WriteFile(path string, data []byte) error {
	err := writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fileError("write "+filepath.Base(path), err)
	}
	return nil
}

// writeFileAtomic writes a file through a temporary sibling that is renamed
// over path once fully written and synced.
func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("could not create temporary file for %q: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("could not write %q: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("could not sync %q: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("could not close %q: %w", path, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("could not replace %q: %w", path, err)
	}
	return nil
}

// archiveFile moves path aside to a sibling stamped with at, and returns the
// new name. A missing file is not archived and yields "".
func archiveFile(path string, at time.Time) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext) + "-" + at.UTC().Format("20060102T150405Z")
	archived := base + ext
	for i := 2; ; i++ {
		if _, err := os.Stat(archived); errors.Is(err, fs.ErrNotExist) {
			break
		}
		archived = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
	err := os.Rename(path, archived)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("could not archive %q: %w", path, err)
	}
	return archived, nil
}
