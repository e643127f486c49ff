package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/velmart/storefront/internal/eventbus"
	"github.com/velmart/storefront/internal/logging"
	"github.com/velmart/storefront/internal/middleware"
	"github.com/velmart/storefront/internal/razorpay"
	"github.com/velmart/storefront/internal/service"
)

// GatewayClient is the remote half of the payment adapter; signature
// verification is local and lives in the service.
type GatewayClient interface {
	CreateOrder(amount float64, currency, receipt string) (*razorpay.GatewayOrder, error)
}

type PaymentHandler struct {
	Svc        *service.OrderService
	Gateway    GatewayClient
	KeySecret  string
	Producer   *eventbus.Producer
	Production bool
}

// CreateOrder creates a gateway-side order and records a local order stub
// referencing it.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.create_order")

	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.Amount <= 0 {
		return message(c, http.StatusBadRequest, "Amount must be a positive number")
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}

	receipt := fmt.Sprintf("receipt_%d", time.Now().UnixMilli())

	// Single attempt, no retry: a gateway failure is surfaced to the
	// client as-is.
	gwOrder, err := h.Gateway.CreateOrder(req.Amount, req.Currency, receipt)
	if err != nil {
		l.Error("gateway_order_error", "error", err)
		return message(c, http.StatusInternalServerError, "Payment gateway error")
	}

	order, err := h.Svc.CreatePaymentOrder(ctx, userID, gwOrder)
	if err != nil {
		l.Error("payment_order_error", "error", err)
		return serviceError(c, err, h.Production)
	}

	publish(c, h.Producer, eventbus.TopicOrderEvents, fmt.Sprint(order.ID), map[string]any{
		"type":           "gateway_order_created",
		"orderID":        order.ID,
		"gatewayOrderID": gwOrder.ID,
		"userID":         userID,
		"amount":         gwOrder.Amount,
	})

	l.Info("gateway_order_created", "gateway_order_id", gwOrder.ID, "order_id", order.ID)
	return c.JSON(http.StatusOK, gwOrder)
}

// VerifyPayment checks the callback signature and, on match, marks the
// referenced order paid. A mismatch changes nothing.
func (h *PaymentHandler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.verify")

	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		RazorpayOrderID   string `json:"razorpay_order_id"`
		RazorpayPaymentID string `json:"razorpay_payment_id"`
		RazorpaySignature string `json:"razorpay_signature"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return message(c, http.StatusBadRequest, "Razorpay order ID, payment ID and signature are required")
	}

	order, err := h.Svc.VerifyAndConfirm(ctx, userID, h.KeySecret, service.PaymentConfirmation{
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		RazorpaySignature: req.RazorpaySignature,
	})
	if err != nil {
		l.Warn("verify_payment_error", "gateway_order_id", req.RazorpayOrderID, "error", err)
		return serviceError(c, err, h.Production)
	}

	publish(c, h.Producer, eventbus.TopicOrderEvents, fmt.Sprint(order.ID), map[string]any{
		"type":    "payment_verified",
		"orderID": order.ID,
		"userID":  userID,
	})

	l.Info("payment_verified", "order_id", order.ID)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Payment verified successfully"})
}

func (h *PaymentHandler) GetOrder(c echo.Context) error {
	gatewayOrderID := c.Param("id")
	if gatewayOrderID == "" {
		return message(c, http.StatusBadRequest, "Invalid order ID")
	}

	order, err := h.Svc.GetByGatewayOrderID(c.Request().Context(), gatewayOrderID)
	if err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "order": order})
}
