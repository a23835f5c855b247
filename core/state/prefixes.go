package state

var (
	pausePrefix = []byte("pause/")

	custodyCollectionPrefix = []byte("custody/collection/")
	custodyOwnerPrefix      = []byte("custody/owner/")
	custodyHoldingPrefix    = []byte("custody/holding/")
	custodyApprovalPrefix   = []byte("custody/approval/")

	registryRecordPrefix   = []byte("registry/record/")
	registryTierPrefix     = []byte("registry/tier/")
	registrySlotPrefix     = []byte("registry/slot/")
	registryActiveTiersKey = []byte("registry/active-tiers")

	randomnessRequestPrefix = []byte("randomness/request/")
	randomnessParamsKey     = []byte("randomness/params")

	creditsBalancePrefix  = []byte("credits/balance/")
	creditsApprovalPrefix = []byte("credits/approval/")
	creditsParamsKey      = []byte("credits/params")

	paymentsParamsKey   = []byte("payments/params")
	paymentsNoncePrefix = []byte("payments/nonce/")

	poolReservationPrefix  = []byte("pool/reservation/")
	poolRequestIndexPrefix = []byte("pool/request/")
)

// compositeKey concatenates a prefix with the supplied parts.
func compositeKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func uint64Bytes(v uint64) []byte {
	return []byte{byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32), byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
