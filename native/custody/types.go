package custody

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Kind distinguishes indivisible items from quantity-bearing ones.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindUnique items have exactly one owner and no quantity.
	KindUnique
	// KindQuantified items carry a per-holder balance.
	KindQuantified
)

// String returns the human readable kind.
func (k Kind) String() string {
	switch k {
	case KindUnique:
		return "unique"
	case KindQuantified:
		return "quantified"
	default:
		return "unknown"
	}
}

// Valid reports whether k names a supported kind.
func (k Kind) Valid() bool {
	return k == KindUnique || k == KindQuantified
}

// Collection describes a registered asset collection.
type Collection struct {
	Address [20]byte
	Kind    Kind
	Name    string
	URI     string
}

// AssetKey derives the storage key shared by every component that indexes an
// item of a collection.
func AssetKey(collection [20]byte, item *big.Int) [32]byte {
	if item == nil {
		item = new(big.Int)
	}
	var key [32]byte
	copy(key[:], ethcrypto.Keccak256(collection[:], common.BigToHash(item).Bytes()))
	return key
}

// Receiver is implemented by accounts that must acknowledge inbound custody.
// Unique transfers use the single-item shape; quantified transfers always use
// the batch shape. A returned error aborts the transfer.
type Receiver interface {
	OnUniqueReceived(operator, from, collection [20]byte, item *big.Int) error
	OnBatchReceived(operator, from, collection [20]byte, items []*big.Int, amounts []uint64) error
}
