package quote

import (
	"context"
	"errors"

	"github.com/etnz/tradesim"
	"github.com/rs/zerolog"
)

// Fallback asks Secondary when Primary cannot be reached. Other failures of
// Primary, such as an unknown ticker, are returned as is.
type Fallback struct {
	Primary   tradesim.QuoteFetcher
	Secondary tradesim.QuoteFetcher
	log       zerolog.Logger
}

// NewFallback returns a Fallback from primary to secondary.
func NewFallback(primary, secondary tradesim.QuoteFetcher, log zerolog.Logger) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary, log: log.With().Str("provider", "fallback").Logger()}
}

// LatestQuote implements tradesim.QuoteFetcher.
func (f *Fallback) LatestQuote(ctx context.Context, ticker string) (tradesim.Quote, error) {
	q, err := f.Primary.LatestQuote(ctx, ticker)
	if err == nil || !errors.Is(err, ErrNetwork) {
		return q, err
	}
	// the primary context may be the one that expired.
	alt, altErr := f.Secondary.LatestQuote(context.WithoutCancel(ctx), ticker)
	if altErr != nil {
		f.log.Debug().Err(altErr).Str("ticker", ticker).Msg("fallback failed")
		return q, err
	}
	f.log.Warn().Err(err).Str("ticker", ticker).Msg("live quote unavailable, using offline price")
	return alt, nil
}
