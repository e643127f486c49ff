package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/velmart/storefront/internal/models"
	"github.com/velmart/storefront/internal/razorpay"
	"github.com/velmart/storefront/internal/service"
)

type fakeGateway struct {
	lastAmount   float64
	lastCurrency string
	fail         bool
}

func (f *fakeGateway) CreateOrder(amount float64, currency, receipt string) (*razorpay.GatewayOrder, error) {
	if f.fail {
		return nil, errors.New("gateway down")
	}
	f.lastAmount = amount
	f.lastCurrency = currency
	return &razorpay.GatewayOrder{ID: "order_rzp_1", Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func signConfirmation(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaymentCreateOrder(t *testing.T) {
	db := initTestDB(t)
	gw := &fakeGateway{}
	h := &PaymentHandler{Svc: &service.OrderService{DB: db}, Gateway: gw, KeySecret: "secret"}
	e := newEcho()

	user := seedUser(t, db, "asha@example.com", "secret123")

	rec, c := jsonContext(t, e, http.MethodPost, "/api/payment/orders", map[string]any{"amount": 750.0})
	asUser(c, user.ID, false)
	require.NoError(t, h.CreateOrder(c))
	requireStatus(t, rec, http.StatusOK)

	require.Equal(t, float64(750), gw.lastAmount)
	require.Equal(t, "INR", gw.lastCurrency)

	var body razorpay.GatewayOrder
	decodeBody(t, rec, &body)
	require.Equal(t, "order_rzp_1", body.ID)

	// A stub order referencing the gateway order was persisted.
	var order models.Order
	require.NoError(t, db.Where("payment_razorpay_order_id = ?", "order_rzp_1").First(&order).Error)
	require.Equal(t, user.ID, order.UserID)
	require.Equal(t, models.PaymentStatusPending, order.Payment.Status)
}

func TestPaymentCreateOrderValidation(t *testing.T) {
	db := initTestDB(t)
	h := &PaymentHandler{Svc: &service.OrderService{DB: db}, Gateway: &fakeGateway{}, KeySecret: "secret"}
	e := newEcho()

	rec, c := jsonContext(t, e, http.MethodPost, "/api/payment/orders", map[string]any{"amount": 0.0})
	asUser(c, 1, false)
	require.NoError(t, h.CreateOrder(c))
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestPaymentCreateOrderGatewayFailure(t *testing.T) {
	db := initTestDB(t)
	h := &PaymentHandler{Svc: &service.OrderService{DB: db}, Gateway: &fakeGateway{fail: true}, KeySecret: "secret"}
	e := newEcho()

	user := seedUser(t, db, "asha@example.com", "secret123")

	rec, c := jsonContext(t, e, http.MethodPost, "/api/payment/orders", map[string]any{"amount": 750.0})
	asUser(c, user.ID, false)
	require.NoError(t, h.CreateOrder(c))
	requireStatus(t, rec, http.StatusInternalServerError)

	// Nothing persisted on gateway failure.
	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestVerifyPayment(t *testing.T) {
	db := initTestDB(t)
	svc := &service.OrderService{DB: db}
	h := &PaymentHandler{Svc: svc, Gateway: &fakeGateway{}, KeySecret: "secret"}
	e := newEcho()

	order := models.Order{
		OrderNumber: service.GenerateOrderNumber(),
		UserID:      1,
		Total:       750,
		Payment:     models.PaymentDetails{RazorpayOrderID: "order_rzp_1", Status: models.PaymentStatusPending},
		Status:      models.OrderStatusCreated,
	}
	require.NoError(t, db.Create(&order).Error)

	// Bad signature: rejected, order untouched.
	rec, c := jsonContext(t, e, http.MethodPost, "/api/payment/verify", map[string]any{
		"razorpay_order_id":   "order_rzp_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "bogus",
	})
	asUser(c, 1, false)
	require.NoError(t, h.VerifyPayment(c))
	requireStatus(t, rec, http.StatusBadRequest)
	require.Contains(t, rec.Body.String(), "Invalid signature")

	var fresh models.Order
	require.NoError(t, db.First(&fresh, order.ID).Error)
	require.Equal(t, models.PaymentStatusPending, fresh.Payment.Status)

	// Valid signature confirms the payment.
	rec, c = jsonContext(t, e, http.MethodPost, "/api/payment/verify", map[string]any{
		"razorpay_order_id":   "order_rzp_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  signConfirmation("order_rzp_1", "pay_1", "secret"),
	})
	asUser(c, 1, false)
	require.NoError(t, h.VerifyPayment(c))
	requireStatus(t, rec, http.StatusOK)

	require.NoError(t, db.First(&fresh, order.ID).Error)
	require.Equal(t, models.PaymentStatusCompleted, fresh.Payment.Status)
	require.Equal(t, models.OrderStatusPaid, fresh.Status)
}

func TestPaymentGetOrder(t *testing.T) {
	db := initTestDB(t)
	h := &PaymentHandler{Svc: &service.OrderService{DB: db}, Gateway: &fakeGateway{}, KeySecret: "secret"}
	e := newEcho()

	rec, c := jsonContext(t, e, http.MethodGet, "/api/payment/orders/order_missing", nil)
	c.SetParamNames("id")
	c.SetParamValues("order_missing")
	require.NoError(t, h.GetOrder(c))
	requireStatus(t, rec, http.StatusNotFound)
}
