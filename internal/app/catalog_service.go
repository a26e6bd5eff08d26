package app

import (
	"context"
	"math"
	"strings"

	"github.com/carlosjeferson/e-commerce/internal/clock"
	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxPrice is the first value that no longer fits the products.price column.
var maxPrice = decimal.New(1, 10)

// validPrice accepts non-negative prices in whole cents.
func validPrice(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThan(maxPrice) && p.Equal(p.Round(2))
}

func validStock(n int) bool {
	return n >= 0 && n <= math.MaxInt32
}

type CatalogRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (domain.Product, error)
	Create(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, id string) error
}

// CatalogService backs the product endpoints. Mutations are admin-only at the
// transport layer.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
	}
}

type CreateProductInput struct {
	Name        string
	Description string
	ImageURL    string
	Category    string
	Price       decimal.Decimal
	Stock       int
}

func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Product{}, domain.ErrNameRequired
	}
	if !validPrice(in.Price) {
		return domain.Product{}, domain.ErrInvalidPrice
	}
	if !validStock(in.Stock) {
		return domain.Product{}, domain.ErrInvalidStock
	}

	now := s.clock.Now()
	product := domain.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProductInput holds a partial update; nil fields are left untouched.
type UpdateProductInput struct {
	ID          string
	Name        *string
	Description *string
	ImageURL    *string
	Category    *string
	Price       *decimal.Decimal
	Stock       *int
}

func (s *CatalogService) UpdateProduct(ctx context.Context, in UpdateProductInput) (domain.Product, error) {
	product, err := s.repo.GetByID(ctx, in.ID)
	if err != nil {
		return domain.Product{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.Product{}, domain.ErrNameRequired
		}
		product.Name = name
	}
	if in.Description != nil {
		product.Description = *in.Description
	}
	if in.ImageURL != nil {
		product.ImageURL = *in.ImageURL
	}
	if in.Category != nil {
		product.Category = *in.Category
	}
	if in.Price != nil {
		if !validPrice(*in.Price) {
			return domain.Product{}, domain.ErrInvalidPrice
		}
		product.Price = *in.Price
	}
	if in.Stock != nil {
		if !validStock(*in.Stock) {
			return domain.Product{}, domain.ErrInvalidStock
		}
		product.Stock = *in.Stock
	}
	product.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
