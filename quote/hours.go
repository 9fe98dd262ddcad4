package quote

import (
	"strings"
	"time"
	_ "time/tzdata" // exchange calendars must not depend on the host zoneinfo
)

// session is the regular trading session of an exchange, in its local time.
type session struct {
	zone       string
	open, shut time.Duration // since local midnight
}

func hm(h, m int) time.Duration { return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute }

// sessions maps a Yahoo ticker suffix to its exchange session. Tickers
// without a suffix trade in New York.
var sessions = map[string]session{
	"":    {"America/New_York", hm(9, 30), hm(16, 0)},
	".TO": {"America/Toronto", hm(9, 30), hm(16, 0)},
	".L":  {"Europe/London", hm(8, 0), hm(16, 30)},
	".DE": {"Europe/Berlin", hm(9, 0), hm(17, 30)},
	".F":  {"Europe/Berlin", hm(8, 0), hm(20, 0)},
	".PA": {"Europe/Paris", hm(9, 0), hm(17, 30)},
	".AS": {"Europe/Amsterdam", hm(9, 0), hm(17, 30)},
	".ST": {"Europe/Stockholm", hm(9, 0), hm(17, 30)},
	".OL": {"Europe/Oslo", hm(9, 0), hm(16, 20)},
	".CO": {"Europe/Copenhagen", hm(9, 0), hm(17, 0)},
	".HE": {"Europe/Helsinki", hm(10, 0), hm(18, 30)},
	".T":  {"Asia/Tokyo", hm(9, 0), hm(15, 0)},
	".HK": {"Asia/Hong_Kong", hm(9, 30), hm(16, 0)},
}

// Always reports whether ticker trades around the clock: crypto pairs
// ("BTC-USD") and forex pairs ("EURUSD=X").
func Always(ticker string) bool {
	t := strings.ToUpper(ticker)
	return strings.HasSuffix(t, "=X") || strings.HasSuffix(t, "-USD") || strings.HasSuffix(t, "-EUR") || strings.HasSuffix(t, "-USDT")
}

// ExchangeHours reports whether the exchange of ticker is in its regular
// weekday session at the given instant. Holidays are not known. It is a
// tradesim.MarketHours.
func ExchangeHours(ticker string, at time.Time) bool {
	if Always(ticker) {
		return true
	}
	s, ok := sessions[suffix(ticker)]
	if !ok {
		s = sessions[""]
	}
	return s.contains(at)
}

// contains reports whether at falls in the weekday session.
func (s session) contains(at time.Time) bool {
	loc, err := time.LoadLocation(s.zone)
	if err != nil {
		return false
	}
	local := at.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	since := local.Sub(midnight)
	return s.open <= since && since < s.shut
}

// suffix returns the exchange suffix of ticker, "" for US tickers.
func suffix(ticker string) string {
	t := strings.ToUpper(ticker)
	i := strings.LastIndexByte(t, '.')
	if i < 0 {
		return ""
	}
	if _, ok := sessions[t[i:]]; ok {
		return t[i:]
	}
	// class shares such as BRK.B
	return ""
}
