package state

import (
	"lootpool/native/custody"
)

// CustodyCollectionGet loads a registered collection.
func (m *Manager) CustodyCollectionGet(addr [20]byte) (*custody.Collection, bool, error) {
	col := new(custody.Collection)
	ok, err := m.KVGet(compositeKey(custodyCollectionPrefix, addr[:]), col)
	if err != nil || !ok {
		return nil, false, err
	}
	return col, true, nil
}

// CustodyCollectionPut stores a collection.
func (m *Manager) CustodyCollectionPut(col *custody.Collection) error {
	return m.KVPut(compositeKey(custodyCollectionPrefix, col.Address[:]), col)
}

// CustodyOwnerGet loads the owner of a unique item.
func (m *Manager) CustodyOwnerGet(key [32]byte) ([20]byte, bool, error) {
	var owner [20]byte
	ok, err := m.KVGet(compositeKey(custodyOwnerPrefix, key[:]), &owner)
	return owner, ok, err
}

// CustodyOwnerPut records the owner of a unique item.
func (m *Manager) CustodyOwnerPut(key [32]byte, owner [20]byte) error {
	return m.KVPut(compositeKey(custodyOwnerPrefix, key[:]), owner)
}

// CustodyHoldingGet loads a holder's balance of a quantified item.
func (m *Manager) CustodyHoldingGet(key [32]byte, holder [20]byte) (uint64, error) {
	var amount uint64
	if _, err := m.KVGet(compositeKey(custodyHoldingPrefix, key[:], holder[:]), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// CustodyHoldingPut stores a holder's balance; zero balances are deleted.
func (m *Manager) CustodyHoldingPut(key [32]byte, holder [20]byte, amount uint64) error {
	k := compositeKey(custodyHoldingPrefix, key[:], holder[:])
	if amount == 0 {
		return m.KVDelete(k)
	}
	return m.KVPut(k, amount)
}

// CustodyApprovalGet reports whether operator may move holder's assets.
func (m *Manager) CustodyApprovalGet(holder, operator [20]byte) (bool, error) {
	var approved bool
	if _, err := m.KVGet(compositeKey(custodyApprovalPrefix, holder[:], operator[:]), &approved); err != nil {
		return false, err
	}
	return approved, nil
}

// CustodyApprovalPut stores an operator approval.
func (m *Manager) CustodyApprovalPut(holder, operator [20]byte, approved bool) error {
	k := compositeKey(custodyApprovalPrefix, holder[:], operator[:])
	if !approved {
		return m.KVDelete(k)
	}
	return m.KVPut(k, true)
}
