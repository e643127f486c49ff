package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/models"
)

// AdminHandler covers the user-management mirror under /api/admin. Product
// mirrors reuse ProductHandler.
type AdminHandler struct {
	DB         *gorm.DB
	Production bool
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	var users []models.User
	if err := h.DB.Order("id ASC").Find(&users).Error; err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid user ID")
	}

	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		IsAdmin *bool  `json:"is_admin"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "User not found")
		}
		return serviceError(c, err, h.Production)
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" && req.Email != user.Email {
		var other models.User
		err := h.DB.Where("email = ?", req.Email).First(&other).Error
		if err == nil {
			return message(c, http.StatusBadRequest, "Email already in use")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return serviceError(c, err, h.Production)
		}
		user.Email = req.Email
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}

	if err := h.DB.Save(&user).Error; err != nil {
		return serviceError(c, err, h.Production)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":          user.ID,
		"name":        user.Name,
		"email":       user.Email,
		"is_admin":    user.IsAdmin,
		"last_active": user.LastActive,
	})
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid user ID")
	}

	res := h.DB.Delete(&models.User{}, id)
	if res.Error != nil {
		return serviceError(c, res.Error, h.Production)
	}
	if res.RowsAffected == 0 {
		return message(c, http.StatusNotFound, "User not found")
	}

	return message(c, http.StatusOK, "User removed successfully")
}
