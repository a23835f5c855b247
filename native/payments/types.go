package payments

import (
	"math/big"
)

const (
	// RailCredits pays for draws by burning credits.
	RailCredits = "credits"
	// RailToken pays for draws with a signed draw-token transfer.
	RailToken = "token"
)

// CreditsProof names the credit basket burned for the draws.
type CreditsProof struct {
	IDs     []uint64
	Amounts []uint64
}

// TokenProof is a user-signed authorization to move Amount of the draw token
// to Recipient.
type TokenProof struct {
	Amount    *big.Int
	Recipient [20]byte
	Nonce     uint64
	Signature []byte
}

// Proof carries exactly one rail's payment authorization.
type Proof struct {
	Credits *CreditsProof
	Token   *TokenProof
}

// Receipt records how a reservation was paid so that settlement and refunds
// use the same rail.
type Receipt struct {
	Rail     string
	Quantity uint8
	PerDraw  *big.Int
	Symbol   string
}

// Params configures the token rail.
type Params struct {
	DrawFee      *big.Int
	DrawToken    string
	FeeRecipient [20]byte
}

// Clone returns a deep copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return &Params{DrawFee: big.NewInt(0)}
	}
	clone := *p
	clone.DrawFee = cloneBig(p.DrawFee)
	return &clone
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
