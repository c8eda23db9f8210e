package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/store"
)

const (
	cacheKeyCategories = "catalog:categories"
	cacheKeyProduct    = "catalog:product:%d"
)

type queryProvider interface {
	ListProducts(ctx context.Context, arg store.ListProductsParams) ([]store.Product, error)
	CountProducts(ctx context.Context, arg store.ListProductsParams) (int64, error)
	GetProduct(ctx context.Context, id int64) (store.Product, error)
	CreateProduct(ctx context.Context, arg store.CreateProductParams) (store.Product, error)
	UpdateProduct(ctx context.Context, arg store.UpdateProductParams) (store.Product, error)
	SoftDeleteProduct(ctx context.Context, id int64) (int64, error)
	ListLowStockProducts(ctx context.Context) ([]store.Product, error)
	ListCategories(ctx context.Context) ([]store.Category, error)
	GetCategory(ctx context.Context, id int64) (store.Category, error)
	CreateCategory(ctx context.Context, name string, description pgtype.Text) (store.Category, error)
	UpdateCategory(ctx context.Context, id int64, name string, description pgtype.Text) (store.Category, error)
	SoftDeleteCategory(ctx context.Context, id int64) (int64, error)
	CountActiveProductsInCategory(ctx context.Context, id int64) (int64, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// Product is the public product payload. Prices are in major currency units.
type Product struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	SKU               string    `json:"sku"`
	Description       *string   `json:"description,omitempty"`
	CategoryID        int64     `json:"category_id"`
	Price             float64   `json:"price"`
	CostPrice         float64   `json:"cost_price"`
	StockQuantity     int32     `json:"stock_quantity"`
	LowStockThreshold int32     `json:"low_stock_threshold"`
	ImageURL          *string   `json:"image_url,omitempty"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Category is the public category payload.
type Category struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query           string
	CategoryID      *int64
	IncludeInactive bool
	Page            int
	Limit           int
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product
	Total int64
	Page  int
	Limit int
}

// ProductInput is the write payload for create and update.
type ProductInput struct {
	Name              string  `json:"name"`
	SKU               string  `json:"sku"`
	Description       *string `json:"description"`
	CategoryID        int64   `json:"category_id"`
	Price             float64 `json:"price"`
	CostPrice         float64 `json:"cost_price"`
	StockQuantity     int32   `json:"stock_quantity"`
	LowStockThreshold int32   `json:"low_stock_threshold"`
	ImageURL          *string `json:"image_url"`
	IsActive          *bool   `json:"is_active"`
}

// CategoryInput is the write payload for categories.
type CategoryInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))

	if v := strings.TrimSpace(values.Get("category_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			return params, badRequest("category_id", "category_id must be a positive integer", err)
		}
		params.CategoryID = &id
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit

	if v := strings.TrimSpace(values.Get("include_inactive")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, badRequest("include_inactive", "include_inactive must be true or false", err)
		}
		params.IncludeInactive = b
	}
	return params, nil
}

// ListProducts returns a page of products matching the filters.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	arg := store.ListProductsParams{
		Search:          params.Query,
		CategoryID:      params.CategoryID,
		IncludeInactive: params.IncludeInactive,
		Limit:           int32(params.Limit),
		Offset:          int32((params.Page - 1) * params.Limit),
	}
	rows, err := s.queries.ListProducts(ctx, arg)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	total, err := s.queries.CountProducts(ctx, arg)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("count products: %w", err)
	}
	items := make([]Product, 0, len(rows))
	for _, row := range rows {
		items = append(items, convertProduct(row))
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProduct returns one product, preferring the cache.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	key := fmt.Sprintf(cacheKeyProduct, id)
	var cached Product
	if ok, _ := s.cache.GetJSON(ctx, key, &cached); ok {
		return cached, nil
	}
	row, err := s.queries.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, notFound("product")
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	p := convertProduct(row)
	_ = s.cache.SetJSON(ctx, key, p)
	return p, nil
}

// CreateProduct validates and inserts a product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := validateProductInput(in); err != nil {
		return Product{}, err
	}
	if _, err := s.queries.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, notFound("category")
		}
		return Product{}, fmt.Errorf("get category: %w", err)
	}
	row, err := s.queries.CreateProduct(ctx, store.CreateProductParams{
		Name:              strings.TrimSpace(in.Name),
		SKU:               strings.TrimSpace(in.SKU),
		Description:       store.TextPtr(in.Description),
		CategoryID:        in.CategoryID,
		Price:             common.ToCents(in.Price),
		CostPrice:         common.ToCents(in.CostPrice),
		StockQuantity:     in.StockQuantity,
		LowStockThreshold: in.LowStockThreshold,
		ImageURL:          store.TextPtr(in.ImageURL),
	})
	if err != nil {
		if store.UniqueViolation(err) {
			return Product{}, common.NewAppError("SKU_ALREADY_USED", "sku is already in use", http.StatusConflict, err)
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return convertProduct(row), nil
}

// UpdateProduct validates and replaces a product's mutable fields.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	if err := validateProductInput(in); err != nil {
		return Product{}, err
	}
	if _, err := s.queries.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, notFound("category")
		}
		return Product{}, fmt.Errorf("get category: %w", err)
	}
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	row, err := s.queries.UpdateProduct(ctx, store.UpdateProductParams{
		ID:                id,
		Name:              strings.TrimSpace(in.Name),
		SKU:               strings.TrimSpace(in.SKU),
		Description:       store.TextPtr(in.Description),
		CategoryID:        in.CategoryID,
		Price:             common.ToCents(in.Price),
		CostPrice:         common.ToCents(in.CostPrice),
		StockQuantity:     in.StockQuantity,
		LowStockThreshold: in.LowStockThreshold,
		ImageURL:          store.TextPtr(in.ImageURL),
		IsActive:          isActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, notFound("product")
		}
		if store.UniqueViolation(err) {
			return Product{}, common.NewAppError("SKU_ALREADY_USED", "sku is already in use", http.StatusConflict, err)
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	_ = s.cache.Delete(ctx, fmt.Sprintf(cacheKeyProduct, id))
	return convertProduct(row), nil
}

// DeleteProduct soft-deletes a product, keeping its sale history intact.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	affected, err := s.queries.SoftDeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if affected == 0 {
		return notFound("product")
	}
	_ = s.cache.Delete(ctx, fmt.Sprintf(cacheKeyProduct, id))
	return nil
}

// InvalidateProducts drops cached product payloads after their stock changed
// outside the catalog, such as a checkout or a refund.
func (s *Service) InvalidateProducts(ctx context.Context, ids ...int64) {
	for _, id := range ids {
		_ = s.cache.Delete(ctx, fmt.Sprintf(cacheKeyProduct, id))
	}
}

// ListLowStock returns active products at or below their threshold.
func (s *Service) ListLowStock(ctx context.Context) ([]Product, error) {
	rows, err := s.queries.ListLowStockProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	items := make([]Product, 0, len(rows))
	for _, row := range rows {
		items = append(items, convertProduct(row))
	}
	return items, nil
}

// ListCategories returns all live categories, preferring the cache.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	var cached []Category
	if ok, _ := s.cache.GetJSON(ctx, cacheKeyCategories, &cached); ok {
		return cached, nil
	}
	rows, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	items := make([]Category, 0, len(rows))
	for _, row := range rows {
		items = append(items, convertCategory(row))
	}
	_ = s.cache.SetJSON(ctx, cacheKeyCategories, items)
	return items, nil
}

// CreateCategory inserts a category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Category{}, badRequest("name", "name is required", nil)
	}
	row, err := s.queries.CreateCategory(ctx, strings.TrimSpace(in.Name), store.TextPtr(in.Description))
	if err != nil {
		if store.UniqueViolation(err) {
			return Category{}, common.NewAppError("CATEGORY_ALREADY_EXISTS", "category name is already in use", http.StatusConflict, err)
		}
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	_ = s.cache.Delete(ctx, cacheKeyCategories)
	return convertCategory(row), nil
}

// UpdateCategory renames a category.
func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (Category, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Category{}, badRequest("name", "name is required", nil)
	}
	row, err := s.queries.UpdateCategory(ctx, id, strings.TrimSpace(in.Name), store.TextPtr(in.Description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, notFound("category")
		}
		if store.UniqueViolation(err) {
			return Category{}, common.NewAppError("CATEGORY_ALREADY_EXISTS", "category name is already in use", http.StatusConflict, err)
		}
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	_ = s.cache.Delete(ctx, cacheKeyCategories)
	return convertCategory(row), nil
}

// DeleteCategory soft-deletes a category once no live products reference it.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	inUse, err := s.queries.CountActiveProductsInCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("count products in category: %w", err)
	}
	if inUse > 0 {
		return common.NewAppError("CATEGORY_IN_USE", "category still has products", http.StatusConflict, nil).
			WithDetails(map[string]any{"product_count": inUse})
	}
	affected, err := s.queries.SoftDeleteCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if affected == 0 {
		return notFound("category")
	}
	_ = s.cache.Delete(ctx, cacheKeyCategories)
	return nil
}

func validateProductInput(in ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return badRequest("name", "name is required", nil)
	}
	if strings.TrimSpace(in.SKU) == "" {
		return badRequest("sku", "sku is required", nil)
	}
	if in.CategoryID < 1 {
		return badRequest("category_id", "category_id is required", nil)
	}
	if in.Price < 0 || in.CostPrice < 0 {
		return badRequest("price", "prices cannot be negative", nil)
	}
	if in.StockQuantity < 0 {
		return badRequest("stock_quantity", "stock cannot be negative", nil)
	}
	if in.LowStockThreshold < 0 {
		return badRequest("low_stock_threshold", "threshold cannot be negative", nil)
	}
	return nil
}

func convertProduct(p store.Product) Product {
	out := Product{
		ID:                p.ID,
		Name:              p.Name,
		SKU:               p.SKU,
		CategoryID:        p.CategoryID,
		Price:             common.FromCents(p.Price),
		CostPrice:         common.FromCents(p.CostPrice),
		StockQuantity:     p.StockQuantity,
		LowStockThreshold: p.LowStockThreshold,
		IsActive:          p.IsActive,
		CreatedAt:         p.CreatedAt.Time,
		UpdatedAt:         p.UpdatedAt.Time,
	}
	if p.Description.Valid {
		v := p.Description.String
		out.Description = &v
	}
	if p.ImageURL.Valid {
		v := p.ImageURL.String
		out.ImageURL = &v
	}
	return out
}

func convertCategory(c store.Category) Category {
	out := Category{ID: c.ID, Name: c.Name}
	if c.Description.Valid {
		v := c.Description.String
		out.Description = &v
	}
	return out
}

func badRequest(field, message string, err error) error {
	return common.NewAppError("VALIDATION_ERROR", message, http.StatusBadRequest, err).
		WithDetails(map[string]any{"field": field})
}

func notFound(entity string) error {
	return common.NewAppError("NOT_FOUND", entity+" not found", http.StatusNotFound, nil)
}
