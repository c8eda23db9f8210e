package catalog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/store"
)

type stubProvider struct {
	products   map[int64]store.Product
	categories map[int64]store.Category
	nextID     int64

	listCalls int
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		products:   make(map[int64]store.Product),
		categories: make(map[int64]store.Category),
		nextID:     1,
	}
}

func (s *stubProvider) addCategory(name string) store.Category {
	c := store.Category{ID: s.nextID, Name: name}
	s.categories[c.ID] = c
	s.nextID++
	return c
}

func (s *stubProvider) addProduct(name, sku string, categoryID, price int64, stock int32) store.Product {
	p := store.Product{
		ID:            s.nextID,
		Name:          name,
		SKU:           sku,
		CategoryID:    categoryID,
		Price:         price,
		StockQuantity: stock,
		IsActive:      true,
		CreatedAt:     pgtype.Timestamptz{Time: time.Now(), Valid: true},
		UpdatedAt:     pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	s.products[p.ID] = p
	s.nextID++
	return p
}

func (s *stubProvider) ListProducts(_ context.Context, arg store.ListProductsParams) ([]store.Product, error) {
	s.listCalls++
	var out []store.Product
	for _, p := range s.products {
		if arg.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(arg.Search)) {
			continue
		}
		if arg.CategoryID != nil && p.CategoryID != *arg.CategoryID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *stubProvider) CountProducts(_ context.Context, arg store.ListProductsParams) (int64, error) {
	items, _ := s.ListProducts(context.Background(), arg)
	s.listCalls--
	return int64(len(items)), nil
}

func (s *stubProvider) GetProduct(_ context.Context, id int64) (store.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *stubProvider) CreateProduct(_ context.Context, arg store.CreateProductParams) (store.Product, error) {
	p := store.Product{
		ID:                s.nextID,
		Name:              arg.Name,
		SKU:               arg.SKU,
		Description:       arg.Description,
		CategoryID:        arg.CategoryID,
		Price:             arg.Price,
		CostPrice:         arg.CostPrice,
		StockQuantity:     arg.StockQuantity,
		LowStockThreshold: arg.LowStockThreshold,
		ImageURL:          arg.ImageURL,
		IsActive:          true,
	}
	s.products[p.ID] = p
	s.nextID++
	return p, nil
}

func (s *stubProvider) UpdateProduct(_ context.Context, arg store.UpdateProductParams) (store.Product, error) {
	p, ok := s.products[arg.ID]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	p.Name = arg.Name
	p.SKU = arg.SKU
	p.Price = arg.Price
	p.StockQuantity = arg.StockQuantity
	p.IsActive = arg.IsActive
	s.products[arg.ID] = p
	return p, nil
}

func (s *stubProvider) SoftDeleteProduct(_ context.Context, id int64) (int64, error) {
	if _, ok := s.products[id]; !ok {
		return 0, nil
	}
	delete(s.products, id)
	return 1, nil
}

func (s *stubProvider) ListLowStockProducts(_ context.Context) ([]store.Product, error) {
	var out []store.Product
	for _, p := range s.products {
		if p.StockQuantity <= p.LowStockThreshold {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubProvider) ListCategories(_ context.Context) ([]store.Category, error) {
	var out []store.Category
	for _, c := range s.categories {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubProvider) GetCategory(_ context.Context, id int64) (store.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return store.Category{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *stubProvider) CreateCategory(_ context.Context, name string, description pgtype.Text) (store.Category, error) {
	c := store.Category{ID: s.nextID, Name: name, Description: description}
	s.categories[c.ID] = c
	s.nextID++
	return c, nil
}

func (s *stubProvider) UpdateCategory(_ context.Context, id int64, name string, description pgtype.Text) (store.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return store.Category{}, pgx.ErrNoRows
	}
	c.Name = name
	c.Description = description
	s.categories[id] = c
	return c, nil
}

func (s *stubProvider) SoftDeleteCategory(_ context.Context, id int64) (int64, error) {
	if _, ok := s.categories[id]; !ok {
		return 0, nil
	}
	delete(s.categories, id)
	return 1, nil
}

func (s *stubProvider) CountActiveProductsInCategory(_ context.Context, id int64) (int64, error) {
	var n int64
	for _, p := range s.products {
		if p.CategoryID == id {
			n++
		}
	}
	return n, nil
}

func newTestRouter(t *testing.T, provider *stubProvider, cache *catalog.Cache) *chi.Mux {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{Queries: provider, Cache: cache})
	require.NoError(t, err)
	h := catalog.NewHandler(svc)

	r := chi.NewRouter()
	r.Get("/products", h.Products)
	r.Get("/products/low-stock", h.LowStock)
	r.Get("/products/{id}", h.ProductDetail)
	r.Post("/products", h.CreateProduct)
	r.Put("/products/{id}", h.UpdateProduct)
	r.Delete("/products/{id}", h.DeleteProduct)
	r.Get("/categories", h.Categories)
	r.Post("/categories", h.CreateCategory)
	r.Delete("/categories/{id}", h.DeleteCategory)
	return r
}

func newTestCache(t *testing.T) *catalog.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return catalog.NewCache(client, time.Minute)
}

func TestProductsListAndFilter(t *testing.T) {
	provider := newStubProvider()
	cat := provider.addCategory("Minuman")
	provider.addProduct("Kopi Susu", "KS-01", cat.ID, 150000, 10)
	provider.addProduct("Teh Manis", "TM-01", cat.ID, 80000, 5)
	router := newTestRouter(t, provider, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products?q=kopi", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-Total-Count"))

	var resp struct {
		Data []catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Kopi Susu", resp.Data[0].Name)
	assert.InDelta(t, 1500.0, resp.Data[0].Price, 0.0001)
}

func TestProductsRejectsBadQuery(t *testing.T) {
	router := newTestRouter(t, newStubProvider(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products?page=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
}

func TestProductDetailUsesCache(t *testing.T) {
	provider := newStubProvider()
	cat := provider.addCategory("Minuman")
	p := provider.addProduct("Kopi Susu", "KS-01", cat.ID, 150000, 10)
	router := newTestRouter(t, provider, newTestCache(t))

	productPath := fmt.Sprintf("/products/%d", p.ID)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, productPath, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	// Remove the backing row; the cached copy must still serve.
	delete(provider.products, p.ID)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, productPath, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Kopi Susu")
}

func TestProductDetailNotFound(t *testing.T) {
	router := newTestRouter(t, newStubProvider(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/99", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateProductValidation(t *testing.T) {
	provider := newStubProvider()
	provider.addCategory("Minuman")
	router := newTestRouter(t, provider, nil)

	rr := httptest.NewRecorder()
	body := strings.NewReader(`{"name":"","sku":"X","category_id":1,"price":10}`)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products", body))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	body = strings.NewReader(`{"name":"Es Jeruk","sku":"EJ-01","category_id":99,"price":10}`)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products", body))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	body = strings.NewReader(`{"name":"Es Jeruk","sku":"EJ-01","category_id":1,"price":12.5,"stock_quantity":20}`)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products", body))
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		Data catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.InDelta(t, 12.5, resp.Data.Price, 0.0001)
}

func TestDeleteCategoryGuardedWhileInUse(t *testing.T) {
	provider := newStubProvider()
	cat := provider.addCategory("Minuman")
	provider.addProduct("Kopi Susu", "KS-01", cat.ID, 150000, 10)
	router := newTestRouter(t, provider, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/categories/1", nil))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "CATEGORY_IN_USE")
}

func TestCategoriesCachedAndInvalidated(t *testing.T) {
	provider := newStubProvider()
	provider.addCategory("Minuman")
	router := newTestRouter(t, provider, newTestCache(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/categories", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	// Creating a category must bust the cached list.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(`{"name":"Makanan"}`)))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/categories", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Makanan")
}

func TestLowStock(t *testing.T) {
	provider := newStubProvider()
	cat := provider.addCategory("Minuman")
	p := provider.addProduct("Kopi Susu", "KS-01", cat.ID, 150000, 2)
	p.LowStockThreshold = 5
	provider.products[p.ID] = p
	provider.addProduct("Teh Manis", "TM-01", cat.ID, 80000, 50)
	router := newTestRouter(t, provider, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/low-stock", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "KS-01")
	assert.NotContains(t, rr.Body.String(), "TM-01")
}
