package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/config"
	"github.com/velmart/storefront/internal/models"
	"github.com/velmart/storefront/internal/razorpay"
)

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, stock int) *models.Product {
	t.Helper()
	product := models.Product{
		Name:        name,
		Description: "test product",
		Price:       price,
		Stock:       stock,
		IsActive:    true,
		Images:      []models.ProductImage{{URL: "/uploads/" + name + ".jpg"}},
	}
	require.NoError(t, db.Create(&product).Error)
	return &product
}

func testAddress() models.ShippingAddress {
	return models.ShippingAddress{
		FullName:     "Asha Rao",
		Phone:        "9876543210",
		AddressLine1: "12 MG Road",
		City:         "Udaipur",
		State:        "Rajasthan",
		PostalCode:   "313001",
		Country:      "India",
	}
}

func TestCreateOrder(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:           []CreateOrderItem{{ProductID: product.ID, Quantity: 2}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "razorpay",
		TotalAmount:     1040,
		Tax:             40,
		Shipping:        10,
	})
	require.NoError(t, err)

	require.Equal(t, float64(1000), order.Subtotal)
	require.Equal(t, float64(1040), order.Total)
	require.Equal(t, models.OrderStatusCreated, order.Status)
	require.Equal(t, models.ShippingStatusPending, order.ShippingStatus)
	require.Equal(t, models.PaymentStatusPending, order.Payment.Status)
	require.NotEmpty(t, order.OrderNumber)
	require.Len(t, order.Items, 1)
	require.Equal(t, "X1", order.Items[0].Name)
	require.Equal(t, float64(500), order.Items[0].Price)
	require.Equal(t, float64(1000), order.Items[0].LineTotal)

	// Stock is decremented by the ordered quantity.
	var fresh models.Product
	require.NoError(t, db.First(&fresh, product.ID).Error)
	require.Equal(t, 3, fresh.Stock)
}

func TestCreateOrderTotalMismatch(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	_, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 2}},
		TotalAmount: 900,
		Tax:         40,
		Shipping:    10,
	})

	var mismatch *TotalMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, float64(1050), mismatch.Calculated)
	require.Equal(t, float64(900), mismatch.Provided)

	// Nothing persisted, nothing decremented.
	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)

	var fresh models.Product
	require.NoError(t, db.First(&fresh, product.ID).Error)
	require.Equal(t, 5, fresh.Stock)
}

func TestCreateOrderTotalWithinTolerance(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	_, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
		TotalAmount: 500.75,
	})
	require.NoError(t, err)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 1)

	_, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 3}},
		TotalAmount: 1500,
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, product.ID, stockErr.ProductID)
	require.Equal(t, 1, stockErr.Available)

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.Zero(t, orderCount)

	var fresh models.Product
	require.NoError(t, db.First(&fresh, product.ID).Error)
	require.Equal(t, 1, fresh.Stock)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}

	_, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: 42, Quantity: 1}},
		TotalAmount: 100,
	})

	var missing *ProductNotFoundError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, uint(42), missing.ProductID)
}

func TestCreateOrderValidation(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	_, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items: []CreateOrderItem{{ProductID: product.ID, Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetOrderOwnership(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
		TotalAmount: 500,
	})
	require.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), order.ID, 2, false)
	require.ErrorIs(t, err, ErrForbidden)

	got, err := svc.GetOrder(context.Background(), order.ID, 2, true)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)

	got, err = svc.GetOrder(context.Background(), order.ID, 1, false)
	require.NoError(t, err)
	require.Equal(t, order.OrderNumber, got.OrderNumber)
}

func TestMarkPaid(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
		TotalAmount: 500,
	})
	require.NoError(t, err)

	conf := PaymentConfirmation{
		RazorpayOrderID:   "order_abc",
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: "sig_abc",
	}

	// Strangers may not confirm payment on someone else's order.
	_, err = svc.MarkPaid(context.Background(), order.ID, 2, false, conf)
	require.ErrorIs(t, err, ErrForbidden)

	paid, err := svc.MarkPaid(context.Background(), order.ID, 1, false, conf)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPaid, paid.Status)
	require.Equal(t, models.PaymentStatusCompleted, paid.Payment.Status)
	require.Equal(t, models.ShippingStatusProcessing, paid.ShippingStatus)
	require.NotNil(t, paid.Payment.PaidAt)

	var notes []models.OrderNote
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	require.Equal(t, "Payment received", notes[0].Text)
	require.Equal(t, uint(1), notes[0].CreatedBy)
}

func TestMarkPaidIdempotent(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
		TotalAmount: 500,
	})
	require.NoError(t, err)

	conf := PaymentConfirmation{
		RazorpayOrderID:   "order_abc",
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: "sig_abc",
	}

	first, err := svc.MarkPaid(context.Background(), order.ID, 1, false, conf)
	require.NoError(t, err)
	firstPaidAt := *first.Payment.PaidAt

	again, err := svc.MarkPaid(context.Background(), order.ID, 1, false, conf)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, again.Payment.Status)
	require.Equal(t, "pay_abc", again.Payment.RazorpayPaymentID)
	require.Equal(t, firstPaidAt.Unix(), again.Payment.PaidAt.Unix())
}

func TestVerifyAndConfirm(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:           []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
		TotalAmount:     500,
		RazorpayOrderID: "order_abc",
	})
	require.NoError(t, err)

	secret := "test_secret"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("order_abc|pay_abc"))
	signature := hex.EncodeToString(mac.Sum(nil))

	// Tampered signature is rejected and leaves the order untouched.
	_, err = svc.VerifyAndConfirm(context.Background(), 1, secret, PaymentConfirmation{
		RazorpayOrderID:   "order_abc",
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: "bogus",
	})
	require.ErrorIs(t, err, ErrInvalidSignature)

	var fresh models.Order
	require.NoError(t, db.First(&fresh, order.ID).Error)
	require.Equal(t, models.PaymentStatusPending, fresh.Payment.Status)
	require.Equal(t, models.OrderStatusCreated, fresh.Status)

	confirmed, err := svc.VerifyAndConfirm(context.Background(), 1, secret, PaymentConfirmation{
		RazorpayOrderID:   "order_abc",
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: signature,
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPaid, confirmed.Status)
	require.Equal(t, "pay_abc", confirmed.Payment.RazorpayPaymentID)

	// Unknown gateway order id, even with a valid signature for it.
	mac = hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("order_missing|pay_abc"))
	_, err = svc.VerifyAndConfirm(context.Background(), 1, secret, PaymentConfirmation{
		RazorpayOrderID:   "order_missing",
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: hex.EncodeToString(mac.Sum(nil)),
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestShippingStatusTransitions(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
		TotalAmount: 500,
	})
	require.NoError(t, err)

	// Unknown target status is rejected.
	_, err = svc.UpdateShippingStatus(context.Background(), order.ID, 1, "teleported", "")
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	// Forward walk through the happy path.
	for _, status := range []string{
		models.ShippingStatusProcessing,
		models.ShippingStatusShipped,
		models.ShippingStatusDelivered,
	} {
		updated, err := svc.UpdateShippingStatus(context.Background(), order.ID, 1, status, "")
		require.NoError(t, err)
		require.Equal(t, status, updated.ShippingStatus)
	}

	// Delivered is terminal.
	_, err = svc.UpdateShippingStatus(context.Background(), order.ID, 1, models.ShippingStatusProcessing, "")
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	var final models.Order
	require.NoError(t, db.First(&final, order.ID).Error)
	require.NotNil(t, final.DeliveredAt)
}

func TestCancelRecordsActorAndReason(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
		TotalAmount: 500,
	})
	require.NoError(t, err)

	cancelled, err := svc.UpdateShippingStatus(context.Background(), order.ID, 7, models.ShippingStatusCancelled, "customer request")
	require.NoError(t, err)
	require.Equal(t, models.ShippingStatusCancelled, cancelled.ShippingStatus)
	require.NotNil(t, cancelled.CancelledAt)
	require.Equal(t, uint(7), cancelled.CancelledBy)
	require.Equal(t, "customer request", cancelled.CancelReason)
}

func TestOrderNumberImmutable(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 5)

	order, err := svc.CreateOrder(context.Background(), 1, CreateOrderRequest{
		Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
		TotalAmount: 500,
	})
	require.NoError(t, err)
	number := order.OrderNumber

	_, err = svc.MarkPaid(context.Background(), order.ID, 1, false, PaymentConfirmation{
		RazorpayOrderID:   "order_abc",
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: "sig",
	})
	require.NoError(t, err)

	var fresh models.Order
	require.NoError(t, db.First(&fresh, order.ID).Error)
	require.Equal(t, number, fresh.OrderNumber)
}

func TestListOrders(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}
	product := seedProduct(t, db, "X1", 500, 50)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(context.Background(), uint(i+1), CreateOrderRequest{
			Items:       []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
			TotalAmount: 500,
		})
		require.NoError(t, err)
	}

	orders, total, err := svc.ListOrders(context.Background(), "", 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, orders, 2)

	orders, total, err = svc.ListOrders(context.Background(), models.OrderStatusPaid, 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, orders)

	mine, total, err := svc.ListUserOrders(context.Background(), 2, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	require.Equal(t, uint(2), mine[0].UserID)
}

func TestGetByGatewayOrderID(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}

	_, err := svc.GetByGatewayOrderID(context.Background(), "order_missing")
	require.ErrorIs(t, err, ErrNotFound)

	order := models.Order{
		OrderNumber: GenerateOrderNumber(),
		UserID:      1,
		Total:       500,
		Payment:     models.PaymentDetails{RazorpayOrderID: "order_abc", Status: models.PaymentStatusPending},
		Status:      models.OrderStatusCreated,
	}
	require.NoError(t, db.Create(&order).Error)

	got, err := svc.GetByGatewayOrderID(context.Background(), "order_abc")
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
}

func TestCreatePaymentOrderSnapshotsDefaultAddress(t *testing.T) {
	db := initTestDB(t)
	svc := &OrderService{DB: db}

	user := models.User{
		Name: "Asha", Email: "asha@example.com", PasswordHash: "x",
		Addresses: []models.Address{
			{FullName: "Asha Rao", Phone: "1", AddressLine1: "Old Lane", City: "A", State: "S", PostalCode: "1", Country: "India"},
			{FullName: "Asha Rao", Phone: "2", AddressLine1: "New Lane", City: "B", State: "S", PostalCode: "2", Country: "India", IsDefault: true},
		},
	}
	require.NoError(t, db.Create(&user).Error)

	gw := &razorpay.GatewayOrder{ID: "order_rzp_1", Amount: 750, Currency: "INR", Receipt: "receipt_1"}

	order, err := svc.CreatePaymentOrder(context.Background(), user.ID, gw)
	require.NoError(t, err)
	require.Equal(t, "order_rzp_1", order.Payment.RazorpayOrderID)
	require.Equal(t, models.PaymentStatusPending, order.Payment.Status)
	require.Equal(t, float64(750), order.Total)
	require.Equal(t, "New Lane", order.ShippingAddress.AddressLine1)

	_, err = svc.CreatePaymentOrder(context.Background(), 99, gw)
	require.ErrorIs(t, err, ErrNotFound)
}
