package core

import (
	"context"
	"math/big"

	"github.com/holiman/uint256"

	"lootpool/core/state"
	"lootpool/native/custody"
	"lootpool/native/payments"
	"lootpool/native/pool"
	"lootpool/native/registry"
)

// Pool lifecycle.

// InitiateDraw captures payment for quantity draws and opens a reservation.
func (n *Node) InitiateDraw(ctx context.Context, user [20]byte, quantity uint8, proof *payments.Proof) (*pool.Reservation, error) {
	var res *pool.Reservation
	err := n.execute(ctx, "initiate", func(*state.Manager) error {
		var err error
		res, err = n.pool.Initiate(user, quantity, proof)
		return err
	})
	return res, err
}

// SubmitRandomness delivers an oracle value for a pending request.
func (n *Node) SubmitRandomness(ctx context.Context, caller [20]byte, id [32]byte, value *uint256.Int) error {
	return n.execute(ctx, "fulfill_randomness", func(*state.Manager) error {
		return n.randomness.Fulfill(caller, id, value)
	})
}

// FulfillDraw dispenses up to maxToDraw of the user's remaining draws. A
// stockout reverts the whole call.
func (n *Node) FulfillDraw(ctx context.Context, user [20]byte, maxToDraw uint8) ([]pool.Draw, error) {
	var draws []pool.Draw
	err := n.execute(ctx, "fulfill", func(*state.Manager) error {
		var err error
		draws, err = n.pool.Fulfill(user, maxToDraw)
		return err
	})
	return draws, err
}

// Refund returns the undrawn share of a reservation and deletes it.
func (n *Node) Refund(ctx context.Context, caller, user [20]byte) (uint8, error) {
	var undrawn uint8
	err := n.execute(ctx, "refund", func(*state.Manager) error {
		var err error
		undrawn, err = n.pool.Refund(caller, user)
		return err
	})
	return undrawn, err
}

// Custody.

// RegisterCollection registers an asset collection.
func (n *Node) RegisterCollection(ctx context.Context, caller [20]byte, col *custody.Collection) error {
	return n.execute(ctx, "register_collection", func(*state.Manager) error {
		return n.custody.RegisterCollection(caller, col)
	})
}

// MintAsset mints a unique item, or amount units of a quantified item, to to.
func (n *Node) MintAsset(ctx context.Context, caller, to, collection [20]byte, item *big.Int, amount uint64) error {
	return n.execute(ctx, "mint_asset", func(*state.Manager) error {
		kind, err := n.custody.Kind(collection)
		if err != nil {
			return err
		}
		if kind == custody.KindUnique {
			return n.custody.MintUnique(caller, to, collection, item)
		}
		return n.custody.MintQuantified(caller, to, collection, item, amount)
	})
}

// TransferAsset moves custody of an item. Transfers into the vault are
// acknowledged by the registry.
func (n *Node) TransferAsset(ctx context.Context, operator, from, to, collection [20]byte, item *big.Int, amount uint64) error {
	return n.execute(ctx, "transfer_asset", func(*state.Manager) error {
		return n.custody.Transfer(operator, from, to, collection, item, amount)
	})
}

// TransferAssetBatch moves several items of one collection.
func (n *Node) TransferAssetBatch(ctx context.Context, operator, from, to, collection [20]byte, items []*big.Int, amounts []uint64) error {
	return n.execute(ctx, "transfer_asset_batch", func(*state.Manager) error {
		return n.custody.TransferBatch(operator, from, to, collection, items, amounts)
	})
}

// SetAssetApproval sets operator approval over all of holder's assets.
func (n *Node) SetAssetApproval(ctx context.Context, holder, operator [20]byte, approved bool) error {
	return n.execute(ctx, "asset_approval", func(*state.Manager) error {
		return n.custody.SetApprovalForAll(holder, operator, approved)
	})
}

// Registry.

// Track assigns a vault-held asset to a tier.
func (n *Node) Track(ctx context.Context, caller, collection [20]byte, item *big.Int, quantity uint64, tier uint8) (*registry.Record, error) {
	var rec *registry.Record
	err := n.execute(ctx, "track", func(*state.Manager) error {
		var err error
		rec, err = n.registry.Track(caller, collection, item, quantity, tier)
		return err
	})
	return rec, err
}

// DepositAndTrack mints an asset straight into the vault and tracks it in
// one operation.
func (n *Node) DepositAndTrack(ctx context.Context, caller, collection [20]byte, item *big.Int, quantity uint64, tier uint8) (*registry.Record, error) {
	var rec *registry.Record
	err := n.execute(ctx, "deposit_track", func(*state.Manager) error {
		kind, err := n.custody.Kind(collection)
		if err != nil {
			return err
		}
		vault := n.registry.Vault()
		if kind == custody.KindUnique {
			err = n.custody.MintUnique(caller, vault, collection, item)
		} else {
			err = n.custody.MintQuantified(caller, vault, collection, item, quantity)
		}
		if err != nil {
			return err
		}
		rec, err = n.registry.Track(caller, collection, item, quantity, tier)
		return err
	})
	return rec, err
}

// MoveAsset changes the tier of a tracked asset.
func (n *Node) MoveAsset(ctx context.Context, caller, collection [20]byte, item *big.Int, tier uint8) error {
	return n.execute(ctx, "move", func(*state.Manager) error {
		return n.registry.Move(caller, collection, item, tier)
	})
}

// RemoveAsset stops tracking an asset. Custody is unchanged.
func (n *Node) RemoveAsset(ctx context.Context, caller, collection [20]byte, item *big.Int) error {
	return n.execute(ctx, "remove", func(*state.Manager) error {
		return n.registry.Remove(caller, collection, item)
	})
}

// ForceRemove clears a tracking record as a recovery action.
func (n *Node) ForceRemove(ctx context.Context, caller, collection [20]byte, item *big.Int) error {
	return n.execute(ctx, "force_remove", func(*state.Manager) error {
		return n.registry.ForceRemove(caller, collection, item)
	})
}

// ClearReference swap-removes the record at a tier slot.
func (n *Node) ClearReference(ctx context.Context, caller [20]byte, tier uint8, index uint64) error {
	return n.execute(ctx, "clear_reference", func(*state.Manager) error {
		return n.registry.ClearReference(caller, tier, index)
	})
}

// ForceTransfer moves every vault-held unit of an item to to and clears its
// tracking.
func (n *Node) ForceTransfer(ctx context.Context, caller, collection [20]byte, item *big.Int, to [20]byte) (uint64, error) {
	var moved uint64
	err := n.execute(ctx, "force_transfer", func(*state.Manager) error {
		var err error
		moved, err = n.registry.ForceTransfer(caller, collection, item, to)
		return err
	})
	return moved, err
}

// Randomness administration.

// DeleteReference purges a pending randomness request.
func (n *Node) DeleteReference(ctx context.Context, caller [20]byte, id [32]byte) error {
	return n.execute(ctx, "delete_reference", func(*state.Manager) error {
		return n.randomness.DeleteReference(caller, id)
	})
}

// SetRandomnessFee sets the oracle fee for later requests.
func (n *Node) SetRandomnessFee(ctx context.Context, caller [20]byte, fee *big.Int) error {
	return n.execute(ctx, "set_randomness_fee", func(*state.Manager) error {
		return n.randomness.SetFee(caller, fee)
	})
}

// SetKeyHash sets the oracle key hash for later requests.
func (n *Node) SetKeyHash(ctx context.Context, caller [20]byte, keyHash [32]byte) error {
	return n.execute(ctx, "set_key_hash", func(*state.Manager) error {
		return n.randomness.SetKeyHash(caller, keyHash)
	})
}

// SetOracle changes the account allowed to deliver randomness.
func (n *Node) SetOracle(ctx context.Context, caller, oracle [20]byte) error {
	return n.execute(ctx, "set_oracle", func(*state.Manager) error {
		return n.randomness.SetOracle(caller, oracle)
	})
}

// Payments administration.

// SetDrawFee sets the per-draw token-rail fee.
func (n *Node) SetDrawFee(ctx context.Context, caller [20]byte, fee *big.Int) error {
	return n.execute(ctx, "set_draw_fee", func(*state.Manager) error {
		return n.payments.SetDrawFee(caller, fee)
	})
}

// SetFeeRecipient sets the account that receives settled draw fees.
func (n *Node) SetFeeRecipient(ctx context.Context, caller, recipient [20]byte) error {
	return n.execute(ctx, "set_fee_recipient", func(*state.Manager) error {
		return n.payments.SetFeeRecipient(caller, recipient)
	})
}

// Credits.

// MintCredits issues credits of token id to to.
func (n *Node) MintCredits(ctx context.Context, caller, to [20]byte, id, amount uint64) error {
	return n.execute(ctx, "mint_credits", func(*state.Manager) error {
		return n.credits.Mint(caller, to, id, amount)
	})
}

// TransferCredits moves credits between holders.
func (n *Node) TransferCredits(ctx context.Context, operator, from, to [20]byte, ids, amounts []uint64) error {
	return n.execute(ctx, "transfer_credits", func(*state.Manager) error {
		return n.credits.TransferBatch(operator, from, to, ids, amounts)
	})
}

// SetCreditsApproval sets operator approval over holder's credits.
func (n *Node) SetCreditsApproval(ctx context.Context, holder, operator [20]byte, approved bool) error {
	return n.execute(ctx, "credits_approval", func(*state.Manager) error {
		return n.credits.SetApprovalForAll(holder, operator, approved)
	})
}

// SetCreditsURI sets the token metadata URI template.
func (n *Node) SetCreditsURI(ctx context.Context, caller [20]byte, uri string) error {
	return n.execute(ctx, "set_credits_uri", func(*state.Manager) error {
		return n.credits.SetURI(caller, uri)
	})
}

// SetContractURI sets the collection-level metadata URI.
func (n *Node) SetContractURI(ctx context.Context, caller [20]byte, uri string) error {
	return n.execute(ctx, "set_contract_uri", func(*state.Manager) error {
		return n.credits.SetContractURI(caller, uri)
	})
}

// Fungible tokens.

// MintTokens mints a fungible token balance.
func (n *Node) MintTokens(ctx context.Context, caller, to [20]byte, symbol string, amount *big.Int) error {
	return n.execute(ctx, "mint_tokens", func(*state.Manager) error {
		return n.bank.Mint(caller, to, symbol, amount)
	})
}

// TransferTokens moves a fungible token balance.
func (n *Node) TransferTokens(ctx context.Context, from, to [20]byte, symbol string, amount *big.Int) error {
	return n.execute(ctx, "transfer_tokens", func(*state.Manager) error {
		return n.bank.Transfer(from, to, symbol, amount)
	})
}

// Governance.

// SetPaused pauses or resumes a module.
func (n *Node) SetPaused(ctx context.Context, caller [20]byte, module string, paused bool) error {
	return n.execute(ctx, "set_paused", func(st *state.Manager) error {
		if !st.HasRole(RoleGovernor, caller[:]) {
			return ErrUnauthorized
		}
		return st.SetPaused(module, paused)
	})
}

// GrantRole assigns role to addr.
func (n *Node) GrantRole(ctx context.Context, caller [20]byte, role string, addr [20]byte) error {
	return n.execute(ctx, "grant_role", func(st *state.Manager) error {
		if !st.HasRole(RoleGovernor, caller[:]) {
			return ErrUnauthorized
		}
		return st.SetRole(role, addr[:])
	})
}

// RevokeRole removes role from addr.
func (n *Node) RevokeRole(ctx context.Context, caller [20]byte, role string, addr [20]byte) error {
	return n.execute(ctx, "revoke_role", func(st *state.Manager) error {
		if !st.HasRole(RoleGovernor, caller[:]) {
			return ErrUnauthorized
		}
		return st.RevokeRole(role, addr[:])
	})
}
