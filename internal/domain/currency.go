package domain

// Currency denomination of a card transaction request.
type Currency string

const (
	// CurrencyUSD fiat side of the pair, the card is denominated in it.
	CurrencyUSD Currency = "USD"
	// CurrencyETH crypto side of the pair, the wallet is denominated in it.
	CurrencyETH Currency = "ETH"
)

// String returns the string representation.
func (c Currency) String() string {
	return string(c)
}

// IsValid checks if the Currency value is one of the supported tokens.
func (c Currency) IsValid() bool {
	return c == CurrencyUSD || c == CurrencyETH
}
