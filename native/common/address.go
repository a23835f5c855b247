package common

import (
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ModuleAddress derives the deterministic account that a native module uses to
// hold custody, fees or balances.
func ModuleAddress(name string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte("lootpool/module/" + strings.ToLower(strings.TrimSpace(name))))
	copy(addr[:], digest[12:])
	return addr
}

// IsZeroAddress reports whether addr is the zero address.
func IsZeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}
