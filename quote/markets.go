package quote

// Markets lists well-known tickers offered to the web page, by asset class.
type Markets struct {
	Stocks []string `json:"stocks"`
	Crypto []string `json:"crypto"`
	Forex  []string `json:"forex"`
}

// DefaultMarkets returns the built-in list.
func DefaultMarkets() Markets {
	return Markets{
		Stocks: []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "NVDA", "META", "NFLX"},
		Crypto: []string{"BTC-USD", "ETH-USD", "SOL-USD", "ADA-USD", "DOGE-USD"},
		Forex:  []string{"EURUSD=X", "GBPUSD=X", "USDSEK=X", "USDJPY=X", "AUDUSD=X"},
	}
}
