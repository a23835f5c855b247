package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func addrHex(addr [20]byte) string {
	return common.Address(addr).Hex()
}

func hashHex(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func joinBig(values []*big.Int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = bigString(v)
	}
	return strings.Join(parts, ",")
}

func joinUint(values []uint64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = uintString(v)
	}
	return strings.Join(parts, ",")
}

func joinTiers(tiers []uint8) string {
	parts := make([]string, len(tiers))
	for i, v := range tiers {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ",")
}
