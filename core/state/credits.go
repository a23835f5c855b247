package state

import (
	"lootpool/native/credits"
)

// CreditsBalanceGet loads a holder's balance of a token id.
func (m *Manager) CreditsBalanceGet(holder [20]byte, id uint64) (uint64, error) {
	var amount uint64
	if _, err := m.KVGet(compositeKey(creditsBalancePrefix, holder[:], uint64Bytes(id)), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// CreditsBalancePut stores a holder's balance; zero balances are deleted.
func (m *Manager) CreditsBalancePut(holder [20]byte, id uint64, amount uint64) error {
	k := compositeKey(creditsBalancePrefix, holder[:], uint64Bytes(id))
	if amount == 0 {
		return m.KVDelete(k)
	}
	return m.KVPut(k, amount)
}

// CreditsApprovalGet reports whether operator may move holder's credits.
func (m *Manager) CreditsApprovalGet(holder, operator [20]byte) (bool, error) {
	var approved bool
	if _, err := m.KVGet(compositeKey(creditsApprovalPrefix, holder[:], operator[:]), &approved); err != nil {
		return false, err
	}
	return approved, nil
}

// CreditsApprovalPut stores an operator approval.
func (m *Manager) CreditsApprovalPut(holder, operator [20]byte, approved bool) error {
	k := compositeKey(creditsApprovalPrefix, holder[:], operator[:])
	if !approved {
		return m.KVDelete(k)
	}
	return m.KVPut(k, true)
}

// CreditsParamsGet loads ledger metadata.
func (m *Manager) CreditsParamsGet() (*credits.Params, error) {
	p := new(credits.Params)
	if _, err := m.KVGet(creditsParamsKey, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreditsParamsPut stores ledger metadata.
func (m *Manager) CreditsParamsPut(p *credits.Params) error {
	return m.KVPut(creditsParamsKey, p)
}
