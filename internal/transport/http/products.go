package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/app"
	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// CatalogService is the minimal interface needed for product endpoints.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	CreateProduct(ctx context.Context, in app.CreateProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, in app.UpdateProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

func HandleListProducts(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.ListProducts(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]productResponse, 0, len(products))
		for _, p := range products {
			resp = append(resp, toProductResponse(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleGetProduct(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.GetProduct(r.Context(), r.PathValue("id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProductResponse(product))
	}
}

func HandleCreateProduct(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProductRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Price == nil {
			writeError(w, http.StatusBadRequest, codeInvalidPrice, "price is required")
			return
		}
		if req.Stock == nil {
			writeError(w, http.StatusBadRequest, codeInvalidStock, "stock is required")
			return
		}

		product, err := svc.CreateProduct(r.Context(), app.CreateProductInput{
			Name:        req.Name,
			Description: req.Description,
			ImageURL:    req.ImageURL,
			Category:    req.Category,
			Price:       *req.Price,
			Stock:       *req.Stock,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toProductResponse(product))
	}
}

func HandleUpdateProduct(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateProductRequest
		if !decodeBody(w, r, &req) {
			return
		}

		product, err := svc.UpdateProduct(r.Context(), app.UpdateProductInput{
			ID:          r.PathValue("id"),
			Name:        req.Name,
			Description: req.Description,
			ImageURL:    req.ImageURL,
			Category:    req.Category,
			Price:       req.Price,
			Stock:       req.Stock,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProductResponse(product))
	}
}

func HandleDeleteProduct(svc CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeBody strictly decodes a JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

type createProductRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	ImageURL    string           `json:"imageUrl"`
	Category    string           `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

type updateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	ImageURL    *string          `json:"imageUrl"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Category    string    `json:"category"`
	Price       string    `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
