package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// KDF selects the scrypt cost used to encrypt a keystore.
type KDF struct {
	N int
	P int
}

var (
	// StandardKDF is used for keystores a user creates with a passphrase.
	StandardKDF = KDF{N: keystore.StandardScryptN, P: keystore.StandardScryptP}
	// LightKDF is used for the admin keystore written unattended on first
	// start, which carries an empty passphrase until an operator rotates it.
	LightKDF = KDF{N: keystore.LightScryptN, P: keystore.LightScryptP}
)

// ErrKeystoreExposed is returned when a keystore file is readable by group or
// other users.
var ErrKeystoreExposed = errors.New("crypto: keystore readable by group or others")

const (
	keystoreDirMode  os.FileMode = 0o700
	keystoreFileMode os.FileMode = 0o600
)

// SaveToKeystore encrypts key into a v3 keystore and replaces path with it.
// The file is written through a temporary sibling so readers never observe a
// partial keystore.
func SaveToKeystore(path string, key *PrivateKey, passphrase string, kdf KDF) error {
	if key == nil || key.PrivateKey == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	if kdf.N <= 0 || kdf.P <= 0 {
		kdf = StandardKDF
	}
	data, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    common.Address(key.Address()),
		PrivateKey: key.PrivateKey,
	}, passphrase, kdf.N, kdf.P)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, keystoreDirMode); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(keystoreFileMode); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// LoadFromKeystore decrypts the keystore at path. Files that group or other
// users can read are refused.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if perm := info.Mode().Perm(); runtime.GOOS != "windows" && perm&0o077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %#o", ErrKeystoreExposed, path, perm)
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt %s: %w", path, err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
