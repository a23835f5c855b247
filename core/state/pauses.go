package state

import "strings"

func pauseKey(module string) []byte {
	return compositeKey(pausePrefix, []byte(strings.ToLower(strings.TrimSpace(module))))
}

// IsPaused reports whether the module has been paused by an operator. Read
// failures report the module as running.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.KVGet(pauseKey(module), &paused)
	return err == nil && ok && paused
}

// SetPaused toggles the pause flag of a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	if !paused {
		return m.KVDelete(pauseKey(module))
	}
	return m.KVPut(pauseKey(module), true)
}
