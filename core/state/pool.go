package state

import (
	"lootpool/native/pool"
)

// PoolReservationGet loads a user's reservation.
func (m *Manager) PoolReservationGet(user [20]byte) (*pool.Reservation, bool, error) {
	res := new(pool.Reservation)
	ok, err := m.KVGet(compositeKey(poolReservationPrefix, user[:]), res)
	if err != nil || !ok {
		return nil, false, err
	}
	return res, true, nil
}

// PoolReservationPut stores a user's reservation.
func (m *Manager) PoolReservationPut(res *pool.Reservation) error {
	return m.KVPut(compositeKey(poolReservationPrefix, res.User[:]), res)
}

// PoolReservationDelete removes a user's reservation.
func (m *Manager) PoolReservationDelete(user [20]byte) error {
	return m.KVDelete(compositeKey(poolReservationPrefix, user[:]))
}

// PoolRequestIndexGet resolves a randomness request to its reservation owner.
func (m *Manager) PoolRequestIndexGet(id [32]byte) ([20]byte, bool, error) {
	var user [20]byte
	ok, err := m.KVGet(compositeKey(poolRequestIndexPrefix, id[:]), &user)
	return user, ok, err
}

// PoolRequestIndexPut maps a randomness request to its reservation owner.
func (m *Manager) PoolRequestIndexPut(id [32]byte, user [20]byte) error {
	return m.KVPut(compositeKey(poolRequestIndexPrefix, id[:]), user)
}

// PoolRequestIndexDelete removes a request mapping.
func (m *Manager) PoolRequestIndexDelete(id [32]byte) error {
	return m.KVDelete(compositeKey(poolRequestIndexPrefix, id[:]))
}
