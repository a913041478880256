package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"bakery-inventory/internal/cache"
	"bakery-inventory/internal/database/dbtest"
	"bakery-inventory/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *gorm.DB, *fakeClock) {
	t.Helper()
	db := dbtest.Open(t)
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(db, opts...), db, clock
}

func sampleProduct(barcode string, quantity int) models.Product {
	return models.Product{
		Barcode:     barcode,
		Name:        "Sourdough Bread",
		Description: "Artisanal sourdough bread made fresh daily",
		Category:    "Bread",
		Quantity:    quantity,
		MinQuantity: 10,
		ExpiryDate:  models.NewDate(2026, 3, 12),
		ImageURL:    "https://example.com/bread.jpg",
	}
}

func mustCreate(t *testing.T, s *Store, barcode string, quantity int) models.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), sampleProduct(barcode, quantity), "")
	require.NoError(t, err)
	return p
}

func historyCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.QuantityHistory{}).Count(&n).Error)
	return n
}

// assertLedgerConsistent replays the history in insertion order from the
// initial quantity and checks every row and the final product quantity.
func assertLedgerConsistent(t *testing.T, s *Store, productID uint, initial int) {
	t.Helper()
	ctx := context.Background()

	entries, err := s.QuantityHistory(ctx, productID)
	require.NoError(t, err)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	running := initial
	for _, e := range entries {
		running += e.ChangeAmount
		require.Equal(t, e.Quantity, running, "history row %d", e.ID)
	}

	p, err := s.Product(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, running, p.Quantity)
}

func TestCreateProduct(t *testing.T) {
	s, db, clock := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProduct(ctx, sampleProduct(" 123456789 ", 15), "ann")
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, "123456789", p.Barcode)
	assert.Equal(t, 1, p.Version)
	assert.True(t, p.LastUpdated.Equal(clock.Now()))
	assert.Zero(t, historyCount(t, db), "creation does not start the ledger")

	var logs []models.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "product", logs[0].EntityType)
	assert.Equal(t, p.ID, logs[0].EntityID)
	assert.Equal(t, "ann", logs[0].UserName)

	stored, err := s.Product(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-12", stored.ExpiryDate.String())
	assert.Equal(t, 15, stored.Quantity)
}

func TestCreateProductRejectsDuplicateBarcode(t *testing.T) {
	s, _, _ := newTestStore(t)
	mustCreate(t, s, "dup", 1)

	_, err := s.CreateProduct(context.Background(), sampleProduct("dup", 2), "")
	assert.ErrorIs(t, err, ErrDuplicateBarcode)
}

func TestCreateProductValidation(t *testing.T) {
	s, db, _ := newTestStore(t)

	tests := []struct {
		name  string
		field string
		edit  func(*models.Product)
	}{
		{"blank barcode", "barcode", func(p *models.Product) { p.Barcode = " " }},
		{"blank name", "name", func(p *models.Product) { p.Name = "" }},
		{"negative quantity", "quantity", func(p *models.Product) { p.Quantity = -1 }},
		{"zero min quantity", "minQuantity", func(p *models.Product) { p.MinQuantity = 0 }},
		{"missing expiry", "expiryDate", func(p *models.Product) { p.ExpiryDate = models.Date{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sampleProduct("v-"+tt.field, 1)
			tt.edit(&p)
			_, err := s.CreateProduct(context.Background(), p, "")
			var v *ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tt.field, v.Field)
		})
	}

	var n int64
	require.NoError(t, db.Model(&models.Product{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdateQuantityAppendsHistory(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "111", 15)

	clock.Advance(time.Hour)
	updated, err := s.UpdateQuantity(ctx, p.ID, 9, "sold six loaves", "ben")
	require.NoError(t, err)

	assert.Equal(t, 9, updated.Quantity)
	assert.Equal(t, 2, updated.Version)
	assert.True(t, updated.LastUpdated.Equal(clock.Now()))

	history, err := s.QuantityHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 9, history[0].Quantity)
	assert.Equal(t, -6, history[0].ChangeAmount)
	assert.Equal(t, "sold six loaves", history[0].Reason)
	assert.Equal(t, "ben", history[0].ChangedBy)
	assert.Empty(t, history[0].BatchID)
	assert.True(t, history[0].Timestamp.Equal(clock.Now()))
}

func TestUpdateQuantityLedgerStaysConsistent(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "222", 10)

	for i, q := range []int{10, 4, 0, 25, 25, 7, 100, 3} {
		clock.Advance(time.Minute)
		_, err := s.UpdateQuantity(ctx, p.ID, q, fmt.Sprintf("step %d", i), "")
		require.NoError(t, err)
		assertLedgerConsistent(t, s, p.ID, 10)
	}
}

func TestUpdateQuantityErrors(t *testing.T) {
	s, db, _ := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "333", 5)

	_, err := s.UpdateQuantity(ctx, 999, 1, "restock", "")
	assert.ErrorIs(t, err, ErrNotFound)

	var v *ValidationError
	_, err = s.UpdateQuantity(ctx, p.ID, -1, "oops", "")
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "quantity", v.Field)

	_, err = s.UpdateQuantity(ctx, p.ID, 3, "   ", "")
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "reason", v.Field)

	assert.Zero(t, historyCount(t, db))
	stored, err := s.Product(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Quantity)
	assert.Equal(t, 1, stored.Version)
}

func TestUpdateQuantityNoPartialWriteWhenHistoryFails(t *testing.T) {
	s, db, _ := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "444", 12)

	injected := errors.New("injected history failure")
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_history", func(tx *gorm.DB) {
		if tx.Statement.Table == "quantity_history" {
			_ = tx.AddError(injected)
		}
	}))

	_, err := s.UpdateQuantity(ctx, p.ID, 2, "spoiled", "")
	require.Error(t, err)
	var txErr *TransactionError
	assert.ErrorAs(t, err, &txErr)
	assert.ErrorIs(t, err, injected)

	_, err = s.BatchUpdateQuantity(ctx, []BatchItem{{ID: p.ID, Quantity: 1, Reason: "batch"}}, "")
	assert.ErrorIs(t, err, injected)

	stored, err := s.Product(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, stored.Quantity, "product write rolled back with the history write")
	assert.Equal(t, 1, stored.Version)
	assert.Zero(t, historyCount(t, db))
}

func TestApplyDetectsConcurrentModification(t *testing.T) {
	s, db, _ := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "555", 20)

	stale := p
	_, err := s.UpdateQuantity(ctx, p.ID, 15, "sold", "")
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := s.apply(tx, stale, 18, "late writer", "", "", s.now())
		return err
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "conflict", failureKind(wrapTx("update quantity", err)))

	assert.Equal(t, int64(1), historyCount(t, db))
	assertLedgerConsistent(t, s, p.ID, 20)
}

func TestConcurrentUpdatesKeepLedgerConsistent(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "666", 50)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			_, err := s.UpdateQuantity(ctx, p.ID, q, "count", "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assertLedgerConsistent(t, s, p.ID, 50)
}

func TestBatchUpdateIsAllOrNothing(t *testing.T) {
	s, db, _ := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "777", 10)

	_, err := s.BatchUpdateQuantity(ctx, []BatchItem{
		{ID: p.ID, Quantity: 3, Reason: "sold"},
		{ID: 999, Quantity: 1, Reason: "ghost"},
	}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "Product 999 not found")

	stored, err := s.Product(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Quantity)
	assert.Zero(t, historyCount(t, db))
}

func TestBatchUpdateRepeatedID(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "888", 10)

	results, err := s.BatchUpdateQuantity(ctx, []BatchItem{
		{ID: p.ID, Quantity: 5, Reason: "a"},
		{ID: p.ID, Quantity: 8, Reason: "b"},
	}, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 5, results[0].Quantity)
	assert.Equal(t, 8, results[1].Quantity)
	assert.Equal(t, 3, results[1].Version)

	history, err := s.QuantityHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, -5, history[0].ChangeAmount)
	assert.Equal(t, "a", history[0].Reason)
	assert.Equal(t, 3, history[1].ChangeAmount)
	assert.Equal(t, "b", history[1].Reason)
	assert.Equal(t, history[0].BatchID, history[1].BatchID)
	assert.NotEmpty(t, history[0].BatchID)

	assertLedgerConsistent(t, s, p.ID, 10)
}

func TestBatchUpdateReturnsInputOrder(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	a := mustCreate(t, s, "a-1", 1)
	b := mustCreate(t, s, "b-1", 2)
	c := mustCreate(t, s, "c-1", 3)

	results, err := s.BatchUpdateQuantity(ctx, []BatchItem{
		{ID: c.ID, Quantity: 30, Reason: "restock"},
		{ID: a.ID, Quantity: 10, Reason: "restock"},
		{ID: b.ID, Quantity: 20, Reason: "restock"},
	}, "ann")
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, []uint{c.ID, a.ID, b.ID}, []uint{results[0].ID, results[1].ID, results[2].ID})
	assert.Equal(t, []int{30, 10, 20}, []int{results[0].Quantity, results[1].Quantity, results[2].Quantity})
}

func TestBatchUpdateValidation(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "999", 1)

	_, err := s.BatchUpdateQuantity(ctx, nil, "")
	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "updates", v.Field)

	_, err = s.BatchUpdateQuantity(ctx, []BatchItem{
		{ID: p.ID, Quantity: 2, Reason: "ok"},
		{ID: p.ID, Quantity: -2, Reason: "bad"},
	}, "")
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "[1].quantity", v.Field)
}

func TestQuantityHistoryOrdering(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()
	p := mustCreate(t, s, "hist", 0)

	_, err := s.UpdateQuantity(ctx, p.ID, 5, "first", "")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = s.BatchUpdateQuantity(ctx, []BatchItem{
		{ID: p.ID, Quantity: 6, Reason: "tie-1"},
		{ID: p.ID, Quantity: 7, Reason: "tie-2"},
	}, "")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = s.UpdateQuantity(ctx, p.ID, 8, "last", "")
	require.NoError(t, err)

	history, err := s.QuantityHistory(ctx, p.ID)
	require.NoError(t, err)
	reasons := make([]string, len(history))
	for i, h := range history {
		reasons[i] = h.Reason
	}
	assert.Equal(t, []string{"last", "tie-1", "tie-2", "first"}, reasons)

	empty, err := s.QuantityHistory(ctx, 12345)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProductLookups(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	a := mustCreate(t, s, "123456789", 15)
	mustCreate(t, s, "987654321", 8)

	all, err := s.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := s.ProductByBarcode(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.ProductByBarcode(ctx, "12345678")
	assert.ErrorIs(t, err, ErrNotFound, "no prefix matching")

	_, err = s.Product(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBarcodeCacheInvalidatedOnUpdate(t *testing.T) {
	mem := cache.NewMemory()
	s, _, _ := newTestStore(t, WithCache(mem))
	ctx := context.Background()
	p := mustCreate(t, s, "cached", 4)

	got, err := s.ProductByBarcode(ctx, "cached")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.Equal(t, 1, mem.Len())

	_, err = s.UpdateQuantity(ctx, p.ID, 11, "delivery", "")
	require.NoError(t, err)
	assert.Zero(t, mem.Len())

	got, err = s.ProductByBarcode(ctx, "cached")
	require.NoError(t, err)
	assert.Equal(t, 11, got.Quantity)
}

func TestRecipes(t *testing.T) {
	s, db, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.CreateRecipe(ctx, models.Recipe{
		Name:  "Pain au chocolat",
		Yield: 12,
		Ingredients: []models.RecipeIngredient{
			{ProductID: 1, Quantity: 0.5, Unit: "kg"},
			{ProductID: 404, Quantity: 2, Unit: "bars"},
		},
		Instructions: "Laminate, fill, bake.",
	}, "ann")
	require.NoError(t, err)
	assert.NotZero(t, r.ID)

	got, err := s.Recipe(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Ingredients, 2)
	assert.Equal(t, uint(404), got.Ingredients[1].ProductID)
	assert.Equal(t, 0.5, got.Ingredients[0].Quantity)

	all, err := s.Recipes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.Recipe(ctx, 77)
	assert.ErrorIs(t, err, ErrNotFound)

	empty, err := s.CreateRecipe(ctx, models.Recipe{Name: "Water", Yield: 1}, "")
	require.NoError(t, err)
	assert.NotNil(t, empty.Ingredients)

	var logs int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("entity_type = ?", "recipe").Count(&logs).Error)
	assert.Equal(t, int64(2), logs)
}

func TestCreateRecipeValidation(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		recipe models.Recipe
		field  string
	}{
		{"blank name", models.Recipe{Name: " ", Yield: 1}, "name"},
		{"zero yield", models.Recipe{Name: "Bun", Yield: 0}, "yield"},
		{"missing product", models.Recipe{Name: "Bun", Yield: 1, Ingredients: []models.RecipeIngredient{{Quantity: 1}}}, "ingredients[0].productId"},
		{"zero amount", models.Recipe{Name: "Bun", Yield: 1, Ingredients: []models.RecipeIngredient{{ProductID: 1}}}, "ingredients[0].quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateRecipe(ctx, tt.recipe, "")
			var v *ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tt.field, v.Field)
		})
	}
}

// interleavingCache runs beforeSet once, between the database read and the
// cache write of a barcode lookup.
type interleavingCache struct {
	*cache.Memory
	beforeSet func()
}

func (c *interleavingCache) Set(ctx context.Context, key string, value any) error {
	if fn := c.beforeSet; fn != nil {
		c.beforeSet = nil
		fn()
	}
	return c.Memory.Set(ctx, key, value)
}

func TestBarcodeCacheIgnoresEntryWrittenAfterUpdate(t *testing.T) {
	c := &interleavingCache{Memory: cache.NewMemory()}
	s, _, _ := newTestStore(t, WithCache(c))
	ctx := context.Background()
	p := mustCreate(t, s, "racy", 10)

	c.beforeSet = func() {
		_, err := s.UpdateQuantity(ctx, p.ID, 3, "sold", "")
		require.NoError(t, err)
	}

	stale, err := s.ProductByBarcode(ctx, "racy")
	require.NoError(t, err)
	assert.Equal(t, 10, stale.Quantity, "loaded before the update committed")
	assert.Equal(t, 1, c.Len(), "stale entry landed in the cache")

	got, err := s.ProductByBarcode(ctx, "racy")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, 2, got.Version)

	got, err = s.ProductByBarcode(ctx, "racy")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity, "refreshed entry is served")
}
