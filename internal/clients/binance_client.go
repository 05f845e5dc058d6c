package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient returns an unauthenticated client; public market endpoints need no keys.
func NewBinanceClient() *binance.Client {
	return binance.NewClient("", "")
}
