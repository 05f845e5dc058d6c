package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// ChainClient is the subset of an Ethereum JSON-RPC client the oracles use.
type ChainClient interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// NewEthClient dials an Ethereum node. Dialing is lazy for http endpoints, so an
// unreachable node surfaces on the first call rather than here.
func NewEthClient(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, errors.New("ethereum RPC url is empty")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial ethereum node")
	}

	return client, nil
}

// UnavailableChain fails every call. Used when no RPC url is configured so the
// oracles fall back on their defaults.
type UnavailableChain struct {
	Reason string
}

func (u UnavailableChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return nil, errors.Errorf("chain unavailable: %s", u.Reason)
}

func (u UnavailableChain) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.Errorf("chain unavailable: %s", u.Reason)
}
