package api

import (
	"net/http"
	"strings"

	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), s.db)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1, 0)
	pageSize := queryInt(r, "page_size", 20, 100)

	var categoryID *int64
	if r.URL.Query().Has("category_id") {
		id, ok := queryID(r, "category_id")
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		categoryID = &id
	}

	result, err := store.ListProducts(r.Context(), s.db, categoryID, page, pageSize)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := store.GetProduct(r.Context(), s.db, id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	CategoryID  *int64          `json:"category_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (req createProductRequest) validate() string {
	switch {
	case strings.TrimSpace(req.SKU) == "":
		return "sku is required"
	case strings.TrimSpace(req.Name) == "":
		return "name is required"
	case req.Price.IsNegative():
		return "price must not be negative"
	case req.Stock < 0:
		return "stock must not be negative"
	}
	return ""
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	product, err := store.CreateProduct(r.Context(), s.db, store.NewProduct{
		CategoryID:  req.CategoryID,
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := store.CreateCategory(r.Context(), s.db, name)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) restockProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req restockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	product, err := store.Restock(r.Context(), s.db, id, req.Quantity)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}
