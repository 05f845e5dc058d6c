package pricer

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/cardfuel/internal/clients"
	"github.com/vadiminshakov/cardfuel/internal/domain"
)

// DefaultFeedDecimals decimals of the Chainlink ETH/USD aggregator answer.
const DefaultFeedDecimals = 8

const aggregatorABI = `[{
	"inputs": [],
	"name": "latestRoundData",
	"outputs": [
		{"internalType": "uint80", "name": "roundId", "type": "uint80"},
		{"internalType": "int256", "name": "answer", "type": "int256"},
		{"internalType": "uint256", "name": "startedAt", "type": "uint256"},
		{"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
		{"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
	],
	"stateMutability": "view",
	"type": "function"
}]`

// ChainlinkPricer reads the latest answer of a Chainlink aggregator. The feed address
// fixes the pair, so the pair argument only labels errors.
type ChainlinkPricer struct {
	chain    clients.ChainClient
	feed     common.Address
	decimals int32
	abi      abi.ABI
}

func NewChainlinkPricer(chain clients.ChainClient, feedAddress string) (*ChainlinkPricer, error) {
	if !common.IsHexAddress(feedAddress) {
		return nil, errors.Errorf("invalid price feed address %q", feedAddress)
	}

	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse aggregator ABI")
	}

	return &ChainlinkPricer{
		chain:    chain,
		feed:     common.HexToAddress(feedAddress),
		decimals: DefaultFeedDecimals,
		abi:      parsed,
	}, nil
}

func (p *ChainlinkPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	input, err := p.abi.Pack("latestRoundData")
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "failed to pack latestRoundData call")
	}

	feed := p.feed
	out, err := p.chain.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: input}, nil)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "latestRoundData call failed for %s", pair.String())
	}

	values, err := p.abi.Unpack("latestRoundData", out)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "failed to unpack latestRoundData")
	}
	if len(values) < 2 {
		return decimal.Decimal{}, errors.Errorf("latestRoundData returned %d values", len(values))
	}

	answer, ok := values[1].(*big.Int)
	if !ok || answer == nil {
		return decimal.Decimal{}, errors.Errorf("unexpected answer type %T", values[1])
	}
	if answer.Sign() <= 0 {
		return decimal.Decimal{}, errors.Errorf("aggregator returned non-positive answer %s for %s", answer.String(), pair.String())
	}

	return decimal.NewFromBigInt(answer, -p.decimals), nil
}
