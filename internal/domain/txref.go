package domain

import (
	"crypto/rand"

	"github.com/ethereum/go-ethereum/common"
)

// NewTxReference returns an opaque 0x-prefixed 32-byte identifier shaped like an
// on-chain transaction hash. Nothing is broadcast; the reference only correlates logs.
func NewTxReference() string {
	var b [common.HashLength]byte
	_, _ = rand.Read(b[:])
	return common.BytesToHash(b[:]).Hex()
}
