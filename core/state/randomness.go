package state

import (
	"math/big"

	"lootpool/native/randomness"
)

// RandomnessRequestGet loads an outstanding request.
func (m *Manager) RandomnessRequestGet(id [32]byte) (*randomness.Request, bool, error) {
	req := new(randomness.Request)
	ok, err := m.KVGet(compositeKey(randomnessRequestPrefix, id[:]), req)
	if err != nil || !ok {
		return nil, false, err
	}
	return req, true, nil
}

// RandomnessRequestPut stores an outstanding request.
func (m *Manager) RandomnessRequestPut(req *randomness.Request) error {
	return m.KVPut(compositeKey(randomnessRequestPrefix, req.ID[:]), req)
}

// RandomnessRequestDelete removes a request.
func (m *Manager) RandomnessRequestDelete(id [32]byte) error {
	return m.KVDelete(compositeKey(randomnessRequestPrefix, id[:]))
}

// RandomnessParamsGet loads the client configuration.
func (m *Manager) RandomnessParamsGet() (*randomness.Params, error) {
	p := &randomness.Params{Fee: big.NewInt(0)}
	if _, err := m.KVGet(randomnessParamsKey, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RandomnessParamsPut stores the client configuration.
func (m *Manager) RandomnessParamsPut(p *randomness.Params) error {
	return m.KVPut(randomnessParamsKey, p)
}
