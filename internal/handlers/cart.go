package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/eventbus"
	"github.com/velmart/storefront/internal/middleware"
	"github.com/velmart/storefront/internal/models"
)

type CartHandler struct {
	DB         *gorm.DB
	Producer   *eventbus.Producer
	Production bool
}

func (h *CartHandler) loadCart(userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := h.DB.Preload("Items").Where("user_id = ?", userID).First(&cart).Error
	if err != nil {
		return nil, err
	}
	cart.ComputeTotal()
	return &cart, nil
}

// GetCart never 404s: a user without a cart sees an empty one.
func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	cart, err := h.loadCart(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"items": []models.CartItem{}, "total": 0})
		}
		return serviceError(c, err, h.Production)
	}

	return c.JSON(http.StatusOK, cart)
}

func (h *CartHandler) AddItem(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var product models.Product
	if err := h.DB.Preload("Images").First(&product, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Product not found")
		}
		return serviceError(c, err, h.Production)
	}

	var cart models.Cart
	err = h.DB.Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cart = models.Cart{UserID: userID}
		if err := h.DB.Create(&cart).Error; err != nil {
			return serviceError(c, err, h.Production)
		}
	} else if err != nil {
		return serviceError(c, err, h.Production)
	}

	image := ""
	if len(product.Images) > 0 {
		image = product.Images[0].URL
	}

	// Lines are keyed by product: adding an already-present product
	// overwrites its quantity instead of duplicating the line.
	var item models.CartItem
	err = h.DB.Where("cart_id = ? AND product_id = ?", cart.ID, product.ID).First(&item).Error
	switch {
	case err == nil:
		item.Quantity = req.Quantity
		if err := h.DB.Save(&item).Error; err != nil {
			return serviceError(c, err, h.Production)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Image:     image,
			Quantity:  req.Quantity,
		}
		if err := h.DB.Create(&item).Error; err != nil {
			return serviceError(c, err, h.Production)
		}
	default:
		return serviceError(c, err, h.Production)
	}

	publish(c, h.Producer, eventbus.TopicUserEvents, fmt.Sprint(userID), map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": product.ID,
		"quantity":  item.Quantity,
	})

	updated, err := h.loadCart(userID)
	if err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusCreated, updated)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid item ID")
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.Quantity < 1 {
		return message(c, http.StatusBadRequest, "Quantity must be at least 1")
	}

	var cart models.Cart
	if err := h.DB.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Cart not found")
		}
		return serviceError(c, err, h.Production)
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND cart_id = ?", itemID, cart.ID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Item not found in cart")
		}
		return serviceError(c, err, h.Production)
	}

	item.Quantity = req.Quantity
	if err := h.DB.Save(&item).Error; err != nil {
		return serviceError(c, err, h.Production)
	}

	updated, err := h.loadCart(userID)
	if err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid item ID")
	}

	var cart models.Cart
	if err := h.DB.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Cart not found")
		}
		return serviceError(c, err, h.Production)
	}

	res := h.DB.Where("id = ? AND cart_id = ?", itemID, cart.ID).Delete(&models.CartItem{})
	if res.Error != nil {
		return serviceError(c, res.Error, h.Production)
	}
	if res.RowsAffected == 0 {
		return message(c, http.StatusNotFound, "Item not found in cart")
	}

	publish(c, h.Producer, eventbus.TopicUserEvents, fmt.Sprint(userID), map[string]any{
		"type":   "cart_item_removed",
		"userID": userID,
		"itemID": itemID,
	})

	updated, err := h.loadCart(userID)
	if err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, updated)
}

// ClearCart is idempotent: clearing an absent or empty cart still succeeds.
func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var cart models.Cart
	if err := h.DB.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusOK, "Cart is already empty")
		}
		return serviceError(c, err, h.Production)
	}

	if err := h.DB.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return serviceError(c, err, h.Production)
	}

	publish(c, h.Producer, eventbus.TopicUserEvents, fmt.Sprint(userID), map[string]any{
		"type":   "cart_cleared",
		"userID": userID,
	})

	return message(c, http.StatusOK, "Cart cleared successfully")
}
