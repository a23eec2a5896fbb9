package orders_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/orders"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
)

// memoryRepo implements orders.Repository and orders.TxRepository against
// in-memory maps. The fake ignores transactionality; the service logic under
// test is the same either way.
type memoryRepo struct {
	products  map[int64]*orders.ProductRow
	orders    map[int64]*orders.Order
	items     map[int64][]orders.Item
	payments  map[int64][]orders.Payment
	counters  map[string]int64
	companies map[int64]string
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[int64]*orders.ProductRow),
		orders:   make(map[int64]*orders.Order),
		items:    make(map[int64][]orders.Item),
		payments: make(map[int64][]orders.Payment),
		counters: make(map[string]int64),
		companies: map[int64]string{
			pharma.UserID: "Acme Pharma",
			store.UserID:  "City Meds",
		},
		nextID: 1,
	}
}

// withParties mirrors the repository's join of both company names.
func (m *memoryRepo) withParties(order orders.Order) orders.Order {
	order.PharmaName = m.companies[order.PharmaID]
	order.StoreName = m.companies[order.StoreID]
	return order
}

func (m *memoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, orders.TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetByID(ctx context.Context, id int64) (*orders.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	clone := m.withParties(*order)
	clone.Items = append([]orders.Item(nil), m.items[id]...)
	clone.Payments = append([]orders.Payment(nil), m.payments[id]...)
	return &clone, nil
}

func (m *memoryRepo) List(ctx context.Context, filter orders.ListFilter) ([]orders.Order, error) {
	var out []orders.Order
	for _, order := range m.orders {
		if filter.PharmaID != 0 && order.PharmaID != filter.PharmaID {
			continue
		}
		if filter.StoreID != 0 && order.StoreID != filter.StoreID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, m.withParties(*order))
	}
	return out, nil
}

func (m *memoryRepo) NextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	period := now.Format("0601")
	m.counters[period]++
	return "ORD" + period + padSeq(m.counters[period]), nil
}

func padSeq(n int64) string {
	s := ""
	for v := n; v > 0; v /= 10 {
		s = string(rune('0'+v%10)) + s
	}
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

func (m *memoryRepo) CreateOrder(ctx context.Context, order orders.Order) (int64, error) {
	order.ID = m.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = &order
	return order.ID, nil
}

func (m *memoryRepo) InsertItem(ctx context.Context, item orders.Item) (int64, error) {
	item.ID = m.id()
	m.items[item.OrderID] = append(m.items[item.OrderID], item)
	return item.ID, nil
}

func (m *memoryRepo) InsertPayment(ctx context.Context, payment orders.Payment) (int64, error) {
	payment.ID = m.id()
	payment.PaidAt = time.Now()
	m.payments[payment.OrderID] = append(m.payments[payment.OrderID], payment)
	return payment.ID, nil
}

func (m *memoryRepo) UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error {
	order, ok := m.orders[id]
	if !ok {
		return httpx.ErrNotFound
	}
	for field, value := range updates {
		switch field {
		case "status":
			order.Status = value.(orders.Status)
		case "payment_status":
			order.PaymentStatus = value.(orders.PaymentStatus)
		case "due_amount":
			order.DueAmount = value.(decimal.Decimal)
		case "stock_committed":
			order.StockCommitted = value.(bool)
		case "staff_name":
			v := value.(string)
			order.StaffName = &v
		case "staff_contact":
			v := value.(string)
			order.StaffContact = &v
		case "tracking_number":
			v := value.(string)
			order.TrackingNumber = &v
		case "estimated_delivery":
			v := value.(time.Time)
			order.EstimatedDelivery = &v
		case "actual_delivery":
			v := value.(time.Time)
			order.ActualDelivery = &v
		case "notes":
			order.Notes = value.(string)
		}
	}
	return nil
}

func (m *memoryRepo) SetItemPaid(ctx context.Context, orderID, itemID int64, isPaid bool) error {
	items := m.items[orderID]
	for i := range items {
		if items[i].ID == itemID {
			items[i].IsPaid = isPaid
			return nil
		}
	}
	return orders.ErrItemNotFound
}

func (m *memoryRepo) PaidTotal(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range m.payments[orderID] {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (m *memoryRepo) LockProducts(ctx context.Context, ids []int64) ([]orders.ProductRow, error) {
	var out []orders.ProductRow
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) AdjustStock(ctx context.Context, productID, delta int64) error {
	p, ok := m.products[productID]
	if !ok {
		return httpx.ErrNotFound
	}
	p.Quantity += delta
	return nil
}

func (m *memoryRepo) GetByIDForUpdate(ctx context.Context, id int64) (*orders.Order, error) {
	return m.GetByID(ctx, id)
}

var (
	pharma = shared.Principal{UserID: 1, Role: rbac.RolePharma}
	store  = shared.Principal{UserID: 2, Role: rbac.RoleMedicalStore}
	admin  = shared.Principal{UserID: 9, Role: rbac.RoleAdmin}
)

func seedProduct(repo *memoryRepo, id int64, price int64, qty int64) {
	repo.products[id] = &orders.ProductRow{
		ID:           id,
		Name:         "Product " + padSeq(id),
		SellingPrice: decimal.NewFromInt(price),
		Quantity:     qty,
		IsActive:     true,
		ExpiryDate:   time.Now().AddDate(1, 0, 0),
		CompanyID:    pharma.UserID,
	}
}

func createOrder(t *testing.T, svc *orders.Service, items ...orders.CreateOrderItem) *orders.Order {
	t.Helper()
	order, err := svc.Create(context.Background(), store, orders.CreateOrderRequest{
		PharmaID: pharma.UserID,
		Items:    items,
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrderSnapshotsPrices(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 25, 100)
	seedProduct(repo, 11, 40, 50)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc,
		orders.CreateOrderItem{ProductID: 10, Quantity: 4},
		orders.CreateOrderItem{ProductID: 11, Quantity: 2},
	)

	require.Equal(t, orders.StatusPending, order.Status)
	require.Equal(t, orders.PaymentPending, order.PaymentStatus)
	require.True(t, order.TotalAmount.Equal(decimal.NewFromInt(180)))
	require.True(t, order.DueAmount.Equal(decimal.NewFromInt(180)))
	require.Len(t, order.Items, 2)

	// Stock stays untouched until the order is confirmed.
	require.Equal(t, int64(100), repo.products[10].Quantity)
	require.Equal(t, int64(50), repo.products[11].Quantity)

	// A later price change does not affect the snapshot.
	repo.products[10].SellingPrice = decimal.NewFromInt(99)
	fetched, err := svc.Get(context.Background(), store, order.ID)
	require.NoError(t, err)
	require.True(t, fetched.Items[0].UnitPrice.Equal(decimal.NewFromInt(25)))
}

func TestCreateOrderNumberFormat(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 25, 100)
	svc := orders.NewService(repo, nil)

	first := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 1})
	second := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 1})

	prefix := "ORD" + time.Now().Format("0601")
	require.Equal(t, prefix+"0001", first.OrderNumber)
	require.Equal(t, prefix+"0002", second.OrderNumber)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 25, 3)
	svc := orders.NewService(repo, nil)

	_, err := svc.Create(context.Background(), store, orders.CreateOrderRequest{
		PharmaID: pharma.UserID,
		Items:    []orders.CreateOrderItem{{ProductID: 10, Quantity: 5}},
	})
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	require.Contains(t, err.Error(), "available: 3")
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := orders.NewService(repo, nil)

	_, err := svc.Create(context.Background(), store, orders.CreateOrderRequest{
		PharmaID: pharma.UserID,
		Items:    []orders.CreateOrderItem{{ProductID: 404, Quantity: 1}},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateOrderForbiddenForPharma(t *testing.T) {
	svc := orders.NewService(newMemoryRepo(), nil)

	_, err := svc.Create(context.Background(), pharma, orders.CreateOrderRequest{
		PharmaID: pharma.UserID,
		Items:    []orders.CreateOrderItem{{ProductID: 10, Quantity: 1}},
	})
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestConfirmDecrementsStockOnce(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 25, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 40})

	confirmed, err := svc.Transition(context.Background(), pharma, order.ID, orders.StatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, orders.StatusConfirmed, confirmed.Status)
	require.Equal(t, int64(60), repo.products[10].Quantity)

	// Confirming twice is not a legal transition, so stock cannot be
	// decremented twice.
	_, err = svc.Transition(context.Background(), pharma, order.ID, orders.StatusConfirmed)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	require.Equal(t, int64(60), repo.products[10].Quantity)
}

func TestConfirmFailsWhenStockDropped(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 25, 10)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 8})

	// Stock shrank between creation and confirmation.
	repo.products[10].Quantity = 5

	_, err := svc.Transition(context.Background(), pharma, order.ID, orders.StatusConfirmed)
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	require.Equal(t, int64(5), repo.products[10].Quantity)
}

func TestCancelRestocksOnlyCommittedStock(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 25, 100)
	svc := orders.NewService(repo, nil)

	// Cancelling a pending order never touches stock.
	pending := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 30})
	_, err := svc.Transition(context.Background(), pharma, pending.ID, orders.StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, int64(100), repo.products[10].Quantity)

	// Cancelling after confirmation returns the committed quantity.
	confirmed := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 30})
	_, err = svc.Transition(context.Background(), pharma, confirmed.ID, orders.StatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, int64(70), repo.products[10].Quantity)

	_, err = svc.Transition(context.Background(), pharma, confirmed.ID, orders.StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, int64(100), repo.products[10].Quantity)

	// Cancellation stays available until delivery and still restocks.
	shipped := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 30})
	for _, next := range []orders.Status{orders.StatusConfirmed, orders.StatusProcessing, orders.StatusShipped} {
		_, err = svc.Transition(context.Background(), pharma, shipped.ID, next)
		require.NoError(t, err)
	}
	require.Equal(t, int64(70), repo.products[10].Quantity)
	_, err = svc.Transition(context.Background(), pharma, shipped.ID, orders.StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, int64(100), repo.products[10].Quantity)
}

func TestTransitionLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 25, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 1})

	// Skipping states is rejected.
	_, err := svc.Transition(context.Background(), pharma, order.ID, orders.StatusShipped)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)

	for _, next := range []orders.Status{orders.StatusConfirmed, orders.StatusProcessing, orders.StatusShipped, orders.StatusDelivered} {
		_, err = svc.Transition(context.Background(), pharma, order.ID, next)
		require.NoError(t, err)
	}

	final, err := svc.Get(context.Background(), pharma, order.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusDelivered, final.Status)
	require.NotNil(t, final.ActualDelivery)

	// Delivered is terminal.
	_, err = svc.Transition(context.Background(), pharma, order.ID, orders.StatusCancelled)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
}

func TestTransitionOwnership(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 25, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 1})

	other := shared.Principal{UserID: 77, Role: rbac.RolePharma}
	_, err := svc.Transition(context.Background(), other, order.ID, orders.StatusConfirmed)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	// Admin may transition any order.
	_, err = svc.Transition(context.Background(), admin, order.ID, orders.StatusConfirmed)
	require.NoError(t, err)
}

func TestRecordPaymentDerivesStatus(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 50, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 2}) // total 100

	partial, err := svc.RecordPayment(context.Background(), store, order.ID, orders.PaymentRequest{Amount: decimal.NewFromInt(40)})
	require.NoError(t, err)
	require.Equal(t, orders.PaymentPartial, partial.PaymentStatus)
	require.True(t, partial.DueAmount.Equal(decimal.NewFromInt(60)))

	done, err := svc.RecordPayment(context.Background(), store, order.ID, orders.PaymentRequest{Amount: decimal.NewFromInt(60)})
	require.NoError(t, err)
	require.Equal(t, orders.PaymentCompleted, done.PaymentStatus)
	require.True(t, done.DueAmount.IsZero())
	require.Len(t, done.Payments, 2)
}

func TestRecordPaymentValidation(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 50, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 2})

	_, err := svc.RecordPayment(context.Background(), store, order.ID, orders.PaymentRequest{Amount: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.RecordPayment(context.Background(), store, order.ID, orders.PaymentRequest{Amount: decimal.NewFromInt(0)})
	require.ErrorIs(t, err, httpx.ErrValidation)

	// Only the buying side may record payments.
	_, err = svc.RecordPayment(context.Background(), pharma, order.ID, orders.PaymentRequest{Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestRecordPaymentOverpaymentReadsAsPending(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 50, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 2}) // total 100

	// Cumulative payments above the total drive the due amount negative,
	// which the derivation reads as pending rather than completed.
	over, err := svc.RecordPayment(context.Background(), store, order.ID, orders.PaymentRequest{Amount: decimal.NewFromInt(150)})
	require.NoError(t, err)
	require.True(t, over.DueAmount.Equal(decimal.NewFromInt(-50)))
	require.Equal(t, orders.PaymentPending, over.PaymentStatus)
}

func TestSetItemPaidIndependentOfOrderStatus(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 50, 100)
	seedProduct(repo, 11, 30, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc,
		orders.CreateOrderItem{ProductID: 10, Quantity: 1},
		orders.CreateOrderItem{ProductID: 11, Quantity: 1},
	)

	updated, err := svc.SetItemPaid(context.Background(), pharma, order.ID, order.Items[0].ID, true)
	require.NoError(t, err)
	require.True(t, updated.Items[0].IsPaid)
	require.False(t, updated.Items[1].IsPaid)
	require.Equal(t, orders.PaymentPending, updated.PaymentStatus)

	_, err = svc.SetItemPaid(context.Background(), pharma, order.ID, 9999, true)
	require.ErrorIs(t, err, orders.ErrItemNotFound)
}

func TestUpdateDelivery(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 50, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 1})

	staff := "Ravi"
	tracking := "TRK-123"
	eta := time.Now().AddDate(0, 0, 3)
	updated, err := svc.UpdateDelivery(context.Background(), pharma, order.ID, orders.DeliveryRequest{
		StaffName:         &staff,
		TrackingNumber:    &tracking,
		EstimatedDelivery: &eta,
	})
	require.NoError(t, err)
	require.Equal(t, "Ravi", *updated.StaffName)
	require.Equal(t, "TRK-123", *updated.TrackingNumber)
	require.NotNil(t, updated.EstimatedDelivery)
}

func TestListScopedByRole(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 50, 100)
	svc := orders.NewService(repo, nil)

	createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 1})

	mine, err := svc.List(context.Background(), store, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	otherStore := shared.Principal{UserID: 55, Role: rbac.RoleMedicalStore}
	theirs, err := svc.List(context.Background(), otherStore, "")
	require.NoError(t, err)
	require.Empty(t, theirs)

	all, err := svc.List(context.Background(), admin, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestOrdersCarryPartyCompanyNames(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 50, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 1})
	require.Equal(t, "Acme Pharma", order.PharmaName)
	require.Equal(t, "City Meds", order.StoreName)

	listed, err := svc.List(context.Background(), store, "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "Acme Pharma", listed[0].PharmaName)
	require.Equal(t, "City Meds", listed[0].StoreName)
}

func TestGetVisibility(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, 10, 50, 100)
	svc := orders.NewService(repo, nil)

	order := createOrder(t, svc, orders.CreateOrderItem{ProductID: 10, Quantity: 1})

	otherStore := shared.Principal{UserID: 55, Role: rbac.RoleMedicalStore}
	_, err := svc.Get(context.Background(), otherStore, order.ID)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.Get(context.Background(), pharma, order.ID)
	require.NoError(t, err)
}
