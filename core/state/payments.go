package state

import (
	"math/big"

	"lootpool/native/payments"
)

// PaymentsParamsGet loads the token rail configuration.
func (m *Manager) PaymentsParamsGet() (*payments.Params, error) {
	p := &payments.Params{DrawFee: big.NewInt(0)}
	if _, err := m.KVGet(paymentsParamsKey, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PaymentsParamsPut stores the token rail configuration.
func (m *Manager) PaymentsParamsPut(p *payments.Params) error {
	return m.KVPut(paymentsParamsKey, p)
}

// PaymentsNonceGet loads the next expected token proof nonce of a user.
func (m *Manager) PaymentsNonceGet(user [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.KVGet(compositeKey(paymentsNoncePrefix, user[:]), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// PaymentsNoncePut stores the next expected token proof nonce of a user.
func (m *Manager) PaymentsNoncePut(user [20]byte, nonce uint64) error {
	return m.KVPut(compositeKey(paymentsNoncePrefix, user[:]), nonce)
}
