// Package indexer mirrors committed pool events into a relational store so
// that history and deck queries do not touch node state.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"lootpool/core/events"
)

// Keys of the GlobalState rows maintained by the mirror.
const (
	KeyDrawFee       = "payments.drawFee"
	KeyFeeRecipient  = "payments.feeRecipient"
	KeyRandomnessFee = "randomness.fee"
	KeyOracle        = "randomness.oracle"
)

// Open opens the mirror database and migrates its schema. postgres:// URLs
// select Postgres; anything else is a sqlite path or DSN.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", dsn, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

func dialector(dsn string) gorm.Dialector {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Mirror implements events.Emitter over a gorm database.
type Mirror struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewMirror wraps db. The schema must already be migrated.
func NewMirror(db *gorm.DB, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{db: db, logger: logger, now: time.Now}
}

// SetNowFunc overrides the clock used for row timestamps.
func (m *Mirror) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	m.now = now
}

func hexAddr(addr [20]byte) string { return common.Address(addr).Hex() }

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Emit implements events.Emitter. Write failures are logged since the node
// has already committed the change being mirrored.
func (m *Mirror) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	if err := m.apply(evt); err != nil {
		m.logger.Error("indexer: mirror write failed", "event", evt.EventType(), "error", err)
	}
}

func (m *Mirror) apply(evt events.Event) error {
	now := m.now().UTC()
	switch e := evt.(type) {
	case events.ReservationCreated:
		return m.db.Create(&Interaction{
			ID:        uuid.New(),
			User:      hexAddr(e.User),
			Kind:      KindInitiate,
			Quantity:  int(e.Quantity),
			Rail:      e.Rail,
			Amount:    new(big.Int).Mul(nonNil(e.PerDraw), big.NewInt(int64(e.Quantity))).String(),
			RequestID: common.Hash(e.RequestID).Hex(),
			CreatedAt: now,
		}).Error
	case events.ReservationRefunded:
		return m.db.Create(&Interaction{
			ID:        uuid.New(),
			User:      hexAddr(e.User),
			Kind:      KindRefund,
			Quantity:  int(e.Undrawn),
			Rail:      e.Rail,
			CreatedAt: now,
		}).Error
	case events.DrawDispensed:
		return m.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&Fulfillment{
				ID:         uuid.New(),
				User:       hexAddr(e.User),
				Collection: hexAddr(e.Collection),
				Item:       bigString(e.Item),
				Tier:       int(e.Tier),
				TargetTier: int(e.TargetTier),
				DrawIndex:  int(e.DrawIndex),
				CreatedAt:  now,
			}).Error; err != nil {
				return err
			}
			return tx.Model(&Asset{}).
				Where("collection = ? AND item = ? AND quantity > 0", hexAddr(e.Collection), bigString(e.Item)).
				Updates(map[string]any{"quantity": gorm.Expr("quantity - 1"), "updated_at": now}).Error
		})
	case events.AssetTracked:
		asset := Asset{
			ID:         uuid.New(),
			Collection: hexAddr(e.Collection),
			Item:       bigString(e.Item),
			Kind:       int(e.Kind),
			Quantity:   e.Quantity,
			Tier:       int(e.Tier),
			InDeck:     true,
			UpdatedAt:  now,
		}
		return m.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "item"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "quantity", "tier", "in_deck", "updated_at"}),
		}).Create(&asset).Error
	case events.AssetMoved:
		return m.updateAsset(e.Collection, e.Item, map[string]any{"tier": int(e.To), "updated_at": now})
	case events.AssetRemoved:
		return m.updateAsset(e.Collection, e.Item, map[string]any{"in_deck": false, "quantity": 0, "updated_at": now})
	case events.ParamsUpdated:
		return m.SetGlobal(context.Background(), e.Module+"."+e.Field, e.Value)
	case events.RandomnessParamsUpdated:
		if err := m.SetGlobal(context.Background(), KeyRandomnessFee, bigString(e.Fee)); err != nil {
			return err
		}
		return m.SetGlobal(context.Background(), KeyOracle, hexAddr(e.Oracle))
	}
	return nil
}

func (m *Mirror) updateAsset(collection [20]byte, item *big.Int, values map[string]any) error {
	return m.db.Model(&Asset{}).
		Where("collection = ? AND item = ?", hexAddr(collection), bigString(item)).
		Updates(values).Error
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// SetGlobal upserts a GlobalState row.
func (m *Mirror) SetGlobal(ctx context.Context, key, value string) error {
	row := GlobalState{Key: key, Value: value, UpdatedAt: m.now().UTC()}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// SeedParams writes the parameter rows genesis sets without emitting events.
func (m *Mirror) SeedParams(ctx context.Context, drawFee *big.Int, feeRecipient [20]byte, randomnessFee *big.Int, oracle [20]byte) error {
	rows := [][2]string{
		{KeyDrawFee, bigString(drawFee)},
		{KeyFeeRecipient, hexAddr(feeRecipient)},
		{KeyRandomnessFee, bigString(randomnessFee)},
		{KeyOracle, hexAddr(oracle)},
	}
	for _, row := range rows {
		if err := m.SetGlobal(ctx, row[0], row[1]); err != nil {
			return fmt.Errorf("indexer: seed %s: %w", row[0], err)
		}
	}
	return nil
}

// Global returns a GlobalState value.
func (m *Mirror) Global(ctx context.Context, key string) (string, bool, error) {
	var row GlobalState
	err := m.db.WithContext(ctx).Where(&GlobalState{Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// History is a user's mirrored activity, newest first.
type History struct {
	Interactions []Interaction
	Fulfillments []Fulfillment
}

// History returns up to limit interactions and fulfillments of user. A
// non-positive limit defaults to 100.
func (m *Mirror) History(ctx context.Context, user [20]byte, limit int) (*History, error) {
	if limit <= 0 {
		limit = 100
	}
	addr := hexAddr(user)
	out := &History{}
	if err := m.db.WithContext(ctx).Where(&Interaction{User: addr}).
		Order("created_at DESC").Limit(limit).Find(&out.Interactions).Error; err != nil {
		return nil, err
	}
	if err := m.db.WithContext(ctx).Where(&Fulfillment{User: addr}).
		Order("created_at DESC").Order("draw_index DESC").Limit(limit).Find(&out.Fulfillments).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Deck lists assets currently tracked, highest tier first.
func (m *Mirror) Deck(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	err := m.db.WithContext(ctx).Where("in_deck = ?", true).
		Order("tier DESC").Order("collection").Order("item").Find(&assets).Error
	return assets, err
}
