package payments

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var transferDomain = []byte("lootpool.transfer")

// TransferDigest returns the hash a user signs to authorize a token-rail
// payment.
func TransferDigest(user, recipient [20]byte, amount *big.Int, nonce uint64) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return ethcrypto.Keccak256(
		transferDomain,
		user[:],
		recipient[:],
		common.BigToHash(cloneBig(amount)).Bytes(),
		n[:],
	)
}

// SignTransfer produces a token proof signed by key.
func SignTransfer(key *ecdsa.PrivateKey, recipient [20]byte, amount *big.Int, nonce uint64) (*TokenProof, error) {
	if key == nil {
		return nil, fmt.Errorf("payments: signing key required")
	}
	user := ethcrypto.PubkeyToAddress(key.PublicKey)
	sig, err := ethcrypto.Sign(TransferDigest(user, recipient, amount, nonce), key)
	if err != nil {
		return nil, err
	}
	return &TokenProof{Amount: cloneBig(amount), Recipient: recipient, Nonce: nonce, Signature: sig}, nil
}

// recoverSigner returns the address that produced sig over digest. Both the
// 0/1 and 27/28 recovery id conventions are accepted.
func recoverSigner(digest, sig []byte) ([20]byte, error) {
	if len(sig) != ethcrypto.SignatureLength {
		return [20]byte{}, fmt.Errorf("%w: signature must be %d bytes", ErrBadSignature, ethcrypto.SignatureLength)
	}
	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
