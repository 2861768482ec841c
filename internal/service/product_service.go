package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/repository"
)

// ProductInput is the payload for creating or updating a product.
type ProductInput struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	Subcategory string             `json:"subcategory"`
	Brand       string             `json:"brand"`
	Images      []string           `json:"images"`
	Variations  []entity.Variation `json:"variations"`
}

// ProductService is CRUD over the catalog. Stock mutation never happens
// here; it is owned by the reservation primitive.
type ProductService struct {
	products repository.ProductRepository
}

func NewProductService(products repository.ProductRepository) *ProductService {
	return &ProductService{products: products}
}

func validateInput(in ProductInput) error {
	if in.Name == "" || in.Category == "" || in.Description == "" || in.Subcategory == "" || in.Brand == "" {
		return apperr.Validationf("all fields are required")
	}
	if len(in.Variations) == 0 {
		return apperr.Validationf("at least one variation is required")
	}
	for _, v := range in.Variations {
		if v.Color == "" || v.Size == "" {
			return apperr.Validationf("variation color and size are required")
		}
		if v.Price.LessThan(decimal.Zero) {
			return apperr.Validationf("variation price must not be negative")
		}
		if v.Stock < 0 {
			return apperr.Validationf("variation stock must not be negative")
		}
	}
	return nil
}

// Create adds a product to the catalog on behalf of a seller.
func (s *ProductService) Create(ctx context.Context, sellerID string, in ProductInput) (*entity.Product, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	product := &entity.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Subcategory: in.Subcategory,
		Brand:       in.Brand,
		Images:      in.Images,
		SellerID:    sellerID,
		Variations:  in.Variations,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create product", err)
	}

	slog.Info("Product created", "product_id", product.ID, "seller_id", sellerID)
	return product, nil
}

// GetAll returns the whole catalog.
func (s *ProductService) GetAll(ctx context.Context) ([]entity.Product, error) {
	return s.products.FindAll(ctx)
}

// GetByID returns one product with its variations.
func (s *ProductService) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	return s.products.FindByID(ctx, id)
}

// Update replaces a product's catalog data. Only the owning seller may
// update it. Orders keep their value snapshots, so price edits here never
// reach past purchases.
func (s *ProductService) Update(ctx context.Context, sellerID, id string, in ProductInput) (*entity.Product, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	existing, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.SellerID != sellerID {
		return nil, apperr.New(apperr.KindForbidden, "product belongs to another seller")
	}

	existing.Name = in.Name
	existing.Description = in.Description
	existing.Category = in.Category
	existing.Subcategory = in.Subcategory
	existing.Brand = in.Brand
	existing.Images = in.Images
	existing.Variations = in.Variations

	if err := s.products.Update(ctx, existing); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update product", err)
	}
	return existing, nil
}

// Delete removes a product owned by the seller.
func (s *ProductService) Delete(ctx context.Context, sellerID, id string) error {
	existing, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.SellerID != sellerID {
		return apperr.New(apperr.KindForbidden, "product belongs to another seller")
	}
	return s.products.Delete(ctx, id)
}
