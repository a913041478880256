package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bakery-inventory/internal/audit"
	"bakery-inventory/internal/cache"
	"bakery-inventory/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Store) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Store) Product(ctx context.Context, id uint) (models.Product, error) {
	return findProduct(s.db.WithContext(ctx), id)
}

// ProductByBarcode matches the barcode exactly. A cached entry is only
// returned while its version still matches the database row, so an entry
// written after a concurrent update is detected and replaced.
func (s *Store) ProductByBarcode(ctx context.Context, barcode string) (models.Product, error) {
	var p models.Product
	key := barcodeKey(barcode)

	err := s.cache.Get(ctx, key, &p)
	switch {
	case err == nil:
		fresh, err := s.cachedIsCurrent(ctx, p)
		if err != nil {
			return models.Product{}, err
		}
		if fresh {
			return p, nil
		}
		p = models.Product{}
	case !errors.Is(err, cache.ErrMiss):
		zap.S().Warnw("barcode cache read failed", "barcode", barcode, "error", err)
	}

	err = s.db.WithContext(ctx).Where("barcode = ?", barcode).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("find product by barcode: %w", err)
	}

	if err := s.cache.Set(ctx, key, p); err != nil {
		zap.S().Warnw("barcode cache write failed", "barcode", barcode, "error", err)
	}
	return p, nil
}

// cachedIsCurrent compares a cached product's version with the stored one.
func (s *Store) cachedIsCurrent(ctx context.Context, p models.Product) (bool, error) {
	var versions []int
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND barcode = ?", p.ID, p.Barcode).
		Pluck("version", &versions).Error
	if err != nil {
		return false, fmt.Errorf("check cached product %d: %w", p.ID, err)
	}
	return len(versions) == 1 && versions[0] == p.Version, nil
}

// CreateProduct stores a new product. The initial quantity is not recorded in
// the history; the ledger starts with the first update.
func (s *Store) CreateProduct(ctx context.Context, p models.Product, actor string) (models.Product, error) {
	p.Barcode = strings.TrimSpace(p.Barcode)
	p.Name = strings.TrimSpace(p.Name)
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}

	p.ID = 0
	p.Version = 1
	p.LastUpdated = s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Product{}).Where("barcode = ?", p.Barcode).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateBarcode
		}
		if err := tx.Create(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateBarcode
			}
			return err
		}
		return writeAudit(tx, audit.EntityProduct, p.ID, actor, fmt.Sprintf("Product created: %s (%s)", p.Name, p.Barcode), p)
	})
	if err != nil {
		return models.Product{}, wrapTx("create product", err)
	}
	return p, nil
}

func validateProduct(p models.Product) error {
	switch {
	case p.Barcode == "":
		return &ValidationError{Field: "barcode", Message: "is required"}
	case p.Name == "":
		return &ValidationError{Field: "name", Message: "is required"}
	case p.Quantity < 0:
		return &ValidationError{Field: "quantity", Message: "must be greater than or equal to 0"}
	case p.MinQuantity < 1:
		return &ValidationError{Field: "minQuantity", Message: "must be greater than or equal to 1"}
	case p.ExpiryDate.IsZero():
		return &ValidationError{Field: "expiryDate", Message: "is required"}
	}
	return nil
}

func (s *Store) Recipes(ctx context.Context) ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

func (s *Store) Recipe(ctx context.Context, id uint) (models.Recipe, error) {
	var r models.Recipe
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r, &NotFoundError{Entity: "Recipe", ID: id}
	}
	if err != nil {
		return r, fmt.Errorf("load recipe %d: %w", id, err)
	}
	return r, nil
}

// CreateRecipe stores a recipe. Ingredients may reference products that do
// not exist.
func (s *Store) CreateRecipe(ctx context.Context, r models.Recipe, actor string) (models.Recipe, error) {
	r.Name = strings.TrimSpace(r.Name)
	if err := validateRecipe(r); err != nil {
		return models.Recipe{}, err
	}
	r.ID = 0
	if r.Ingredients == nil {
		r.Ingredients = []models.RecipeIngredient{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		return writeAudit(tx, audit.EntityRecipe, r.ID, actor, fmt.Sprintf("Recipe created: %s", r.Name), r)
	})
	if err != nil {
		return models.Recipe{}, wrapTx("create recipe", err)
	}
	return r, nil
}

func validateRecipe(r models.Recipe) error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if r.Yield < 1 {
		return &ValidationError{Field: "yield", Message: "must be greater than or equal to 1"}
	}
	for i, ing := range r.Ingredients {
		if ing.ProductID == 0 {
			return &ValidationError{Field: fmt.Sprintf("ingredients[%d].productId", i), Message: "is required"}
		}
		if ing.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("ingredients[%d].quantity", i), Message: "must be greater than 0"}
		}
	}
	return nil
}
