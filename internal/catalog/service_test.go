package catalog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/catalog"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

type memoryRepo struct {
	products map[int64]*catalog.Product
	batches  map[string]bool
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[int64]*catalog.Product),
		batches:  make(map[string]bool),
		nextID:   1,
	}
}

func (m *memoryRepo) Create(ctx context.Context, p *catalog.Product) error {
	if m.batches[p.BatchNumber] {
		// Wrapped like a driver error so callers must match with errors.Is.
		return fmt.Errorf("products_batch_number_key: %w", httpx.ErrDuplicate)
	}
	p.ID = m.nextID
	m.nextID++
	p.IsActive = true
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.products[p.ID] = p
	m.batches[p.BatchNumber] = true
	return nil
}

func (m *memoryRepo) GetByID(ctx context.Context, id int64) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		if filter.CompanyID != 0 && p.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	p, ok := m.products[id]
	if !ok {
		return httpx.ErrNotFound
	}
	for field, value := range updates {
		switch field {
		case "name":
			p.Name = value.(string)
		case "quantity":
			p.Quantity = value.(int64)
		case "selling_price":
			p.SellingPrice = value.(decimal.Decimal)
		case "is_active":
			p.IsActive = value.(bool)
		}
	}
	return nil
}

func (m *memoryRepo) Deactivate(ctx context.Context, id int64) error {
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return httpx.ErrNotFound
	}
	p.IsActive = false
	return nil
}

var (
	pharmaOne = shared.Principal{UserID: 1, Role: rbac.RolePharma}
	pharmaTwo = shared.Principal{UserID: 2, Role: rbac.RolePharma}
	store     = shared.Principal{UserID: 3, Role: rbac.RoleMedicalStore}
	admin     = shared.Principal{UserID: 9, Role: rbac.RoleAdmin}
)

func validCreate() catalog.CreateProductRequest {
	return catalog.CreateProductRequest{
		Name:         "Paracetamol 500mg",
		BatchNumber:  "BATCH-001",
		ExpiryDate:   time.Now().AddDate(1, 0, 0),
		Manufacturer: "Acme Pharma",
		Category:     "analgesic",
		SellingPrice: decimal.NewFromInt(25),
		Quantity:     100,
	}
}

func TestCreateProduct(t *testing.T) {
	svc := catalog.NewService(newMemoryRepo(), nil)

	p, err := svc.Create(context.Background(), pharmaOne, validCreate())
	require.NoError(t, err)
	require.Equal(t, int64(1), p.CompanyID)
	require.Equal(t, int64(10), p.LowStockThreshold)
	require.True(t, p.IsActive)
}

func TestCreateProductForbiddenForStore(t *testing.T) {
	svc := catalog.NewService(newMemoryRepo(), nil)

	_, err := svc.Create(context.Background(), store, validCreate())
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestCreateProductPastExpiry(t *testing.T) {
	svc := catalog.NewService(newMemoryRepo(), nil)

	req := validCreate()
	req.ExpiryDate = time.Now().AddDate(0, -1, 0)
	_, err := svc.Create(context.Background(), pharmaOne, req)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateProductDuplicateBatch(t *testing.T) {
	svc := catalog.NewService(newMemoryRepo(), nil)

	_, err := svc.Create(context.Background(), pharmaOne, validCreate())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), pharmaOne, validCreate())
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestUpdateProductOwnership(t *testing.T) {
	repo := newMemoryRepo()
	svc := catalog.NewService(repo, nil)

	p, err := svc.Create(context.Background(), pharmaOne, validCreate())
	require.NoError(t, err)

	name := "Renamed"
	_, err = svc.Update(context.Background(), pharmaTwo, p.ID, catalog.UpdateProductRequest{Name: &name})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	updated, err := svc.Update(context.Background(), pharmaOne, p.ID, catalog.UpdateProductRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)

	// Admin bypasses ownership.
	name = "Admin Renamed"
	updated, err = svc.Update(context.Background(), admin, p.ID, catalog.UpdateProductRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Admin Renamed", updated.Name)
}

func TestUpdateProductNegativeQuantity(t *testing.T) {
	svc := catalog.NewService(newMemoryRepo(), nil)

	p, err := svc.Create(context.Background(), pharmaOne, validCreate())
	require.NoError(t, err)

	qty := int64(-5)
	_, err = svc.Update(context.Background(), pharmaOne, p.ID, catalog.UpdateProductRequest{Quantity: &qty})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteProductSoftDeletes(t *testing.T) {
	repo := newMemoryRepo()
	svc := catalog.NewService(repo, nil)

	p, err := svc.Create(context.Background(), pharmaOne, validCreate())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), pharmaOne, p.ID))

	listed, err := svc.List(context.Background(), store, catalog.ListFilter{}, false)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestListOwnOnlyRequiresPharma(t *testing.T) {
	svc := catalog.NewService(newMemoryRepo(), nil)

	_, err := svc.List(context.Background(), store, catalog.ListFilter{}, true)
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestStockState(t *testing.T) {
	p := catalog.Product{Quantity: 0, LowStockThreshold: 10, OutOfStockThreshold: 0}
	require.Equal(t, catalog.StockStateOut, p.StockState())

	p.Quantity = 5
	require.Equal(t, catalog.StockStateLow, p.StockState())

	p.Quantity = 50
	require.Equal(t, catalog.StockStateIn, p.StockState())
}
