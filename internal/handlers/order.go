package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/velmart/storefront/internal/eventbus"
	"github.com/velmart/storefront/internal/logging"
	"github.com/velmart/storefront/internal/middleware"
	"github.com/velmart/storefront/internal/service"
	"github.com/velmart/storefront/internal/util"
)

type OrderHandler struct {
	Svc        *service.OrderService
	Producer   *eventbus.Producer
	Production bool
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req service.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return message(c, http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.CreateOrder(ctx, userID, req)
	if err != nil {
		l.Warn("create_order_error", "error", err)
		return serviceError(c, err, h.Production)
	}

	publish(c, h.Producer, eventbus.TopicOrderEvents, fmt.Sprint(order.ID), map[string]any{
		"type":        "order_created",
		"orderID":     order.ID,
		"orderNumber": order.OrderNumber,
		"userID":      userID,
		"total":       order.Total,
	})

	l.Info("create_order_success", "order_id", order.ID, "order_number", order.OrderNumber)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "order": order})
}

func (h *OrderHandler) GetMyOrders(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)

	orders, total, err := h.Svc.ListUserOrders(c.Request().Context(), userID, page, limit)
	if err != nil {
		return serviceError(c, err, h.Production)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"count":        len(orders),
		"total":        total,
		"pages":        util.Pages(total, limit),
		"current_page": page,
		"orders":       orders,
	})
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	orderID := parseIntDefault(c.Param("id"), 0)
	if orderID <= 0 {
		return message(c, http.StatusBadRequest, "Invalid order ID")
	}

	order, err := h.Svc.GetOrder(c.Request().Context(), uint(orderID), userID, middleware.IsAdmin(c))
	if err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "order": order})
}

func (h *OrderHandler) MarkPaid(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.mark_paid")

	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	orderID := parseIntDefault(c.Param("id"), 0)
	if orderID <= 0 {
		return message(c, http.StatusBadRequest, "Invalid order ID")
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

	order, err := h.Svc.MarkPaid(ctx, uint(orderID), userID, middleware.IsAdmin(c), service.PaymentConfirmation{
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		RazorpaySignature: req.RazorpaySignature,
	})
	if err != nil {
		l.Warn("mark_paid_error", "order_id", orderID, "error", err)
		return serviceError(c, err, h.Production)
	}

	publish(c, h.Producer, eventbus.TopicOrderEvents, fmt.Sprint(order.ID), map[string]any{
		"type":    "order_paid",
		"orderID": order.ID,
		"userID":  userID,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "order": order})
}

func (h *OrderHandler) MarkDelivered(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	orderID := parseIntDefault(c.Param("id"), 0)
	if orderID <= 0 {
		return message(c, http.StatusBadRequest, "Invalid order ID")
	}

	order, err := h.Svc.MarkDelivered(c.Request().Context(), uint(orderID), userID)
	if err != nil {
		return serviceError(c, err, h.Production)
	}

	publish(c, h.Producer, eventbus.TopicOrderEvents, fmt.Sprint(order.ID), map[string]any{
		"type":    "order_delivered",
		"orderID": order.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "order": order})
}

// UpdateShippingStatus is the admin entry into the shipping state machine.
func (h *OrderHandler) UpdateShippingStatus(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	orderID := parseIntDefault(c.Param("id"), 0)
	if orderID <= 0 {
		return message(c, http.StatusBadRequest, "Invalid order ID")
	}

	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.Status == "" {
		return message(c, http.StatusBadRequest, "Status is required")
	}

	order, err := h.Svc.UpdateShippingStatus(c.Request().Context(), uint(orderID), userID, req.Status, req.Reason)
	if err != nil {
		return serviceError(c, err, h.Production)
	}

	publish(c, h.Producer, eventbus.TopicOrderEvents, fmt.Sprint(order.ID), map[string]any{
		"type":    "order_status_changed",
		"orderID": order.ID,
		"status":  order.ShippingStatus,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "order": order})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), 20)

	orders, total, err := h.Svc.ListOrders(c.Request().Context(), c.QueryParam("status"), page, limit)
	if err != nil {
		return serviceError(c, err, h.Production)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"count":        len(orders),
		"total":        total,
		"pages":        util.Pages(total, limit),
		"current_page": page,
		"orders":       orders,
	})
}
