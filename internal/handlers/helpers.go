package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/eventbus"
	"github.com/velmart/storefront/internal/service"
)

func message(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"message": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// serviceError maps service-layer failures onto the HTTP error taxonomy.
// Unexpected errors surface detail only outside production.
func serviceError(c echo.Context, err error, production bool) error {
	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message":         "Insufficient stock for product: " + stockErr.Name,
			"product_id":      stockErr.ProductID,
			"available_stock": stockErr.Available,
		})
	}
	var totalErr *service.TotalMismatchError
	if errors.As(err, &totalErr) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message":          "Order total does not match calculated total",
			"calculated_total": totalErr.Calculated,
			"provided_total":   totalErr.Provided,
		})
	}
	var missingErr *service.ProductNotFoundError
	if errors.As(err, &missingErr) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message":    "One or more products not found",
			"product_id": missingErr.ProductID,
		})
	}

	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Invalid signature"})
	case errors.Is(err, service.ErrInvalidStatusTransition):
		return message(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrValidation):
		return message(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return message(c, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrForbidden):
		return message(c, http.StatusForbidden, "Not authorized")
	case errors.Is(err, service.ErrConflict):
		return message(c, http.StatusConflict, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return message(c, http.StatusNotFound, "Resource not found")
	}

	if production {
		return message(c, http.StatusInternalServerError, "Server Error")
	}
	return message(c, http.StatusInternalServerError, err.Error())
}

func publish(c echo.Context, producer *eventbus.Producer, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := producer.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("event publish error: %v", err)
	}
}
