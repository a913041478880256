// Package ledger keeps product quantities and their append-only history in
// lockstep. Every quantity change is written together with exactly one
// history row inside a single transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bakery-inventory/internal/audit"
	"bakery-inventory/internal/cache"
	"bakery-inventory/internal/metrics"
	"bakery-inventory/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Store struct {
	db      *gorm.DB
	now     func() time.Time
	cache   cache.Cache
	metrics *metrics.Ledger
}

type Option func(*Store)

// WithClock overrides the time source used for lastUpdated and history
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCache enables read-through caching of barcode lookups.
func WithCache(c cache.Cache) Option {
	return func(s *Store) { s.cache = c }
}

func WithMetrics(m *metrics.Ledger) Option {
	return func(s *Store) { s.metrics = m }
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		cache: cache.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BatchItem is one entry of a batch update.
type BatchItem struct {
	ID       uint
	Quantity int
	Reason   string
}

// UpdateQuantity sets the stock level of a product and appends the matching
// history row atomically. actor may be empty.
func (s *Store) UpdateQuantity(ctx context.Context, id uint, quantity int, reason, actor string) (models.Product, error) {
	if err := validateChange(quantity, reason); err != nil {
		s.metrics.Failed(failureKind(err))
		return models.Product{}, err
	}

	var updated models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findProduct(tx, id)
		if err != nil {
			return err
		}
		updated, err = s.apply(tx, current, quantity, strings.TrimSpace(reason), actor, "", s.now())
		return err
	})
	if err != nil {
		s.metrics.Failed(failureKind(err))
		return models.Product{}, wrapTx("update quantity", err)
	}

	s.metrics.Updated(metrics.ModeSingle, 1)
	s.invalidate(ctx, updated)
	zap.S().Debugw("quantity updated", "productId", id, "quantity", quantity, "actor", actor)
	return updated, nil
}

// BatchUpdateQuantity applies items in input order as one transaction. A
// repeated id is applied again on top of its earlier result. The first
// missing product aborts the whole batch.
func (s *Store) BatchUpdateQuantity(ctx context.Context, items []BatchItem, actor string) ([]models.Product, error) {
	if len(items) == 0 {
		err := &ValidationError{Field: "updates", Message: "at least one update is required"}
		s.metrics.Failed(failureKind(err))
		return nil, err
	}
	for i, it := range items {
		if err := validateChange(it.Quantity, it.Reason); err != nil {
			var v *ValidationError
			errors.As(err, &v)
			v.Field = fmt.Sprintf("[%d].%s", i, v.Field)
			s.metrics.Failed(failureKind(err))
			return nil, v
		}
	}

	batchID := uuid.NewString()
	results := make([]models.Product, 0, len(items))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		seen := make(map[uint]models.Product, len(items))
		for _, it := range items {
			current, ok := seen[it.ID]
			if !ok {
				var err error
				if current, err = findProduct(tx, it.ID); err != nil {
					return err
				}
			}
			updated, err := s.apply(tx, current, it.Quantity, strings.TrimSpace(it.Reason), actor, batchID, now)
			if err != nil {
				return err
			}
			seen[it.ID] = updated
			results = append(results, updated)
		}
		return nil
	})
	if err != nil {
		s.metrics.Failed(failureKind(err))
		return nil, wrapTx("batch update quantity", err)
	}

	s.metrics.Updated(metrics.ModeBatch, len(items))
	for _, p := range results {
		s.invalidate(ctx, p)
	}
	zap.S().Debugw("batch quantity update committed", "batchId", batchID, "items", len(items), "actor", actor)
	return results, nil
}

// apply writes the new quantity guarded by the version read earlier, then
// appends the history row. Both statements run on tx.
func (s *Store) apply(tx *gorm.DB, p models.Product, quantity int, reason, actor, batchID string, now time.Time) (models.Product, error) {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"quantity":     quantity,
			"last_updated": now,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return p, fmt.Errorf("update product %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return p, ErrConflict
	}

	entry := models.QuantityHistory{
		ProductID:    p.ID,
		Quantity:     quantity,
		ChangeAmount: quantity - p.Quantity,
		Timestamp:    now,
		Reason:       reason,
		BatchID:      batchID,
		ChangedBy:    actor,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return p, fmt.Errorf("append history for product %d: %w", p.ID, err)
	}

	p.Quantity = quantity
	p.LastUpdated = now
	p.Version++
	return p, nil
}

// QuantityHistory returns a product's ledger newest first. Rows sharing a
// timestamp keep insertion order. An unknown product has no history.
func (s *Store) QuantityHistory(ctx context.Context, productID uint) ([]models.QuantityHistory, error) {
	var entries []models.QuantityHistory
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("timestamp DESC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list history for product %d: %w", productID, err)
	}
	return entries, nil
}

func validateChange(quantity int, reason string) error {
	if quantity < 0 {
		return &ValidationError{Field: "quantity", Message: "must be greater than or equal to 0"}
	}
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Field: "reason", Message: "is required"}
	}
	return nil
}

func findProduct(tx *gorm.DB, id uint) (models.Product, error) {
	var p models.Product
	err := tx.First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, productNotFound(id)
	}
	if err != nil {
		return p, fmt.Errorf("load product %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) invalidate(ctx context.Context, p models.Product) {
	if err := s.cache.Delete(ctx, barcodeKey(p.Barcode)); err != nil {
		zap.S().Warnw("barcode cache invalidation failed", "barcode", p.Barcode, "error", err)
	}
}

func barcodeKey(barcode string) string {
	return "barcode:" + barcode
}

// writeAudit is shared by the catalog create operations.
func writeAudit(tx *gorm.DB, entity string, id uint, actor, description string, after any) error {
	return audit.WriteLog(tx, audit.LogOptions{
		UserName:    actor,
		EntityType:  entity,
		EntityID:    id,
		Action:      models.AuditActionCreate,
		Description: description,
		After:       after,
	})
}
