// Package catalog is the read/write boundary around the product table. Bill
// sessions only ever consume its read side as a snapshot; the mutation side
// serves the administrator UI and reports outcomes as values instead of
// propagating errors, so callers can render inline feedback.
package catalog

import (
	"context"
	"errors"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/hmaji/billfold/internal/models"
	"github.com/hmaji/billfold/internal/validation"
)

type Provider struct {
	DB *gorm.DB
}

func NewProvider(db *gorm.DB) *Provider { return &Provider{DB: db} }

// ListProducts returns the current catalog ordered by id. Read failures
// degrade to an empty list so bill creation is never blocked by a flaky
// read; the error is logged and swallowed.
func (p *Provider) ListProducts(ctx context.Context) []models.Product {
	var products []models.Product
	if err := p.DB.WithContext(ctx).Order("id asc").Find(&products).Error; err != nil {
		log.Printf("catalog: list products failed: %v", err)
		return []models.Product{}
	}
	return products
}

// ListCategories returns the distinct category names in use, ascending and
// case-sensitive, with empty entries filtered out. Failures degrade to an
// empty list, same as ListProducts.
func (p *Provider) ListCategories(ctx context.Context) []string {
	var categories []string
	err := p.DB.WithContext(ctx).
		Model(&models.Product{}).
		Distinct("category").
		Order("category asc").
		Pluck("category", &categories).Error
	if err != nil {
		log.Printf("catalog: list categories failed: %v", err)
		return []string{}
	}
	out := categories[:0]
	for _, c := range categories {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// ProductInput is the validated command payload for create/update. Category
// resolution (existing value vs. newly typed name) happens in the handler
// before this struct is built.
type ProductInput struct {
	Name        string
	Category    string
	Price       float64
	Description string
}

func (in ProductInput) validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.Required("category", in.Category, v)
	validation.PositiveFloat("price", in.Price, v)
	validation.MaxLen("name", in.Name, 200, v)
	validation.MaxLen("description", in.Description, 2000, v)
	return v
}

// Result is the outcome of a catalog mutation: a success flag plus an error
// code and optional per-field details rather than a raised error.
type Result struct {
	OK      bool
	Err     string
	Details validation.Violations
	Product *models.Product
}

func failure(code string, details validation.Violations) Result {
	return Result{Err: code, Details: details}
}

func (p *Provider) Create(ctx context.Context, in ProductInput) Result {
	if v := in.validate(); !v.Empty() {
		return failure("validation_failed", v)
	}
	product := models.Product{
		Name:        strings.TrimSpace(in.Name),
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Description: strings.TrimSpace(in.Description),
	}
	if err := p.DB.WithContext(ctx).Create(&product).Error; err != nil {
		log.Printf("catalog: create product failed: %v", err)
		return failure("product_create_failed", nil)
	}
	return Result{OK: true, Product: &product}
}

func (p *Provider) Update(ctx context.Context, id uint, in ProductInput) Result {
	if v := in.validate(); !v.Empty() {
		return failure("validation_failed", v)
	}
	var product models.Product
	if err := p.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failure("not_found", nil)
		}
		log.Printf("catalog: load product %d failed: %v", id, err)
		return failure("product_update_failed", nil)
	}
	product.Name = strings.TrimSpace(in.Name)
	product.Category = strings.TrimSpace(in.Category)
	product.Price = in.Price
	product.Description = strings.TrimSpace(in.Description)
	if err := p.DB.WithContext(ctx).Save(&product).Error; err != nil {
		log.Printf("catalog: update product %d failed: %v", id, err)
		return failure("product_update_failed", nil)
	}
	return Result{OK: true, Product: &product}
}

// Delete soft-deletes the product. Bills that already copied the product
// keep their lines; only the picker stops offering it.
func (p *Provider) Delete(ctx context.Context, id uint) Result {
	res := p.DB.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		log.Printf("catalog: delete product %d failed: %v", id, res.Error)
		return failure("delete_failed", nil)
	}
	if res.RowsAffected == 0 {
		return failure("not_found", nil)
	}
	return Result{OK: true}
}
