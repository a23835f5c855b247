package state

import (
	"lootpool/native/custody"
	"lootpool/native/registry"
)

// RegistryRecordGet loads a tracked record by asset key.
func (m *Manager) RegistryRecordGet(key [32]byte) (*registry.Record, bool, error) {
	rec := new(registry.Record)
	ok, err := m.KVGet(compositeKey(registryRecordPrefix, key[:]), rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec, true, nil
}

// RegistryRecordPut stores a tracked record.
func (m *Manager) RegistryRecordPut(rec *registry.Record) error {
	key := custody.AssetKey(rec.Collection, rec.Item)
	return m.KVPut(compositeKey(registryRecordPrefix, key[:]), rec)
}

// RegistryRecordDelete removes a tracked record.
func (m *Manager) RegistryRecordDelete(key [32]byte) error {
	return m.KVDelete(compositeKey(registryRecordPrefix, key[:]))
}

// RegistryTierGet loads a bucket header. Unused buckets report zero values.
func (m *Manager) RegistryTierGet(tier uint8) (*registry.Tier, error) {
	t := new(registry.Tier)
	if _, err := m.KVGet(compositeKey(registryTierPrefix, []byte{tier}), t); err != nil {
		return nil, err
	}
	return t, nil
}

// RegistryTierPut stores a bucket header.
func (m *Manager) RegistryTierPut(tier uint8, t *registry.Tier) error {
	k := compositeKey(registryTierPrefix, []byte{tier})
	if t.Length == 0 && t.Cursor == 0 {
		return m.KVDelete(k)
	}
	return m.KVPut(k, t)
}

// RegistrySlotGet loads the record reference at a bucket position.
func (m *Manager) RegistrySlotGet(tier uint8, index uint64) (*registry.Slot, bool, error) {
	slot := new(registry.Slot)
	ok, err := m.KVGet(compositeKey(registrySlotPrefix, []byte{tier}, uint64Bytes(index)), slot)
	if err != nil || !ok {
		return nil, false, err
	}
	return slot, true, nil
}

// RegistrySlotPut stores the record reference at a bucket position.
func (m *Manager) RegistrySlotPut(tier uint8, index uint64, slot *registry.Slot) error {
	return m.KVPut(compositeKey(registrySlotPrefix, []byte{tier}, uint64Bytes(index)), slot)
}

// RegistrySlotDelete clears a bucket position.
func (m *Manager) RegistrySlotDelete(tier uint8, index uint64) error {
	return m.KVDelete(compositeKey(registrySlotPrefix, []byte{tier}, uint64Bytes(index)))
}

// RegistryActiveTiersGet loads the non-empty bucket bitmap.
func (m *Manager) RegistryActiveTiersGet() (uint64, error) {
	var bitmap uint64
	if _, err := m.KVGet(registryActiveTiersKey, &bitmap); err != nil {
		return 0, err
	}
	return bitmap, nil
}

// RegistryActiveTiersPut stores the non-empty bucket bitmap.
func (m *Manager) RegistryActiveTiersPut(bitmap uint64) error {
	return m.KVPut(registryActiveTiersKey, bitmap)
}
