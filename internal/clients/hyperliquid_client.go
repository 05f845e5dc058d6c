package clients

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// DefaultHyperliquidURL public mainnet API.
const DefaultHyperliquidURL = "https://api.hyperliquid.xyz"

// NewHyperliquidInfo returns the public Info API. The SDK builds Info through an
// Exchange, which needs a signer; a throwaway key is used since nothing is signed.
func NewHyperliquidInfo(baseURL string) (*hyperliquid.Info, error) {
	if baseURL == "" {
		baseURL = DefaultHyperliquidURL
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate hyperliquid session key")
	}
	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}

	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		crypto.PubkeyToAddress(*pub).Hex(),
		nil,
	)

	return ex.Info(), nil
}
