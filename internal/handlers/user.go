package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/hash"
	"github.com/velmart/storefront/internal/middleware"
	"github.com/velmart/storefront/internal/models"
)

type UserHandler struct {
	DB         *gorm.DB
	Production bool
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.DB.Preload("Addresses").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "User not found")
		}
		return serviceError(c, err, h.Production)
	}

	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "User not found")
		}
		return serviceError(c, err, h.Production)
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
	if req.Name != "" {
		user.Name = req.Name
	}

	if err := h.DB.Save(&user).Error; err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return message(c, http.StatusBadRequest, "Please enter all fields")
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "User not found")
		}
		return serviceError(c, err, h.Production)
	}

	if !hash.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return message(c, http.StatusBadRequest, "Current password is incorrect")
	}
	if hash.CheckPassword(user.PasswordHash, req.NewPassword) {
		return message(c, http.StatusBadRequest, "New password must be different from current password")
	}

	newHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return serviceError(c, err, h.Production)
	}
	if err := h.DB.Model(&user).UpdateColumn("password_hash", newHash).Error; err != nil {
		return serviceError(c, err, h.Production)
	}

	return message(c, http.StatusOK, "Password changed successfully")
}

type addressRequest struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	IsDefault    bool   `json:"is_default"`
}

func (r *addressRequest) validate() string {
	switch {
	case r.FullName == "":
		return "Full name is required"
	case r.Phone == "":
		return "Phone number is required"
	case r.AddressLine1 == "":
		return "Address line 1 is required"
	case r.City == "":
		return "City is required"
	case r.State == "":
		return "State is required"
	case r.PostalCode == "":
		return "Postal code is required"
	case r.Country == "":
		return "Country is required"
	}
	return ""
}

func (h *UserHandler) ListAddresses(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var addresses []models.Address
	if err := h.DB.Where("user_id = ?", userID).Order("id ASC").Find(&addresses).Error; err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, addresses)
}

// AddAddress keeps at most one address flagged default per user.
func (h *UserHandler) AddAddress(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req addressRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return message(c, http.StatusBadRequest, msg)
	}

	var count int64
	if err := h.DB.Model(&models.Address{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return serviceError(c, err, h.Production)
	}

	address := models.Address{
		UserID:       userID,
		FullName:     req.FullName,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
		IsDefault:    req.IsDefault || count == 0,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if address.IsDefault {
			if err := tx.Model(&models.Address{}).Where("user_id = ?", userID).UpdateColumn("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return serviceError(c, err, h.Production)
	}

	return c.JSON(http.StatusCreated, address)
}

func (h *UserHandler) UpdateAddress(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	addressID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid address ID")
	}

	var req addressRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}

	var address models.Address
	if err := h.DB.Where("id = ? AND user_id = ?", addressID, userID).First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Address not found")
		}
		return serviceError(c, err, h.Production)
	}

	if req.FullName != "" {
		address.FullName = req.FullName
	}
	if req.Phone != "" {
		address.Phone = req.Phone
	}
	if req.AddressLine1 != "" {
		address.AddressLine1 = req.AddressLine1
	}
	if req.AddressLine2 != "" {
		address.AddressLine2 = req.AddressLine2
	}
	if req.City != "" {
		address.City = req.City
	}
	if req.State != "" {
		address.State = req.State
	}
	if req.PostalCode != "" {
		address.PostalCode = req.PostalCode
	}
	if req.Country != "" {
		address.Country = req.Country
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault && !address.IsDefault {
			if err := tx.Model(&models.Address{}).Where("user_id = ?", userID).UpdateColumn("is_default", false).Error; err != nil {
				return err
			}
			address.IsDefault = true
		}
		return tx.Save(&address).Error
	})
	if err != nil {
		return serviceError(c, err, h.Production)
	}

	return c.JSON(http.StatusOK, address)
}

func (h *UserHandler) DeleteAddress(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	addressID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid address ID")
	}

	res := h.DB.Where("id = ? AND user_id = ?", addressID, userID).Delete(&models.Address{})
	if res.Error != nil {
		return serviceError(c, res.Error, h.Production)
	}
	if res.RowsAffected == 0 {
		return message(c, http.StatusNotFound, "Address not found")
	}

	return message(c, http.StatusOK, "Address removed successfully")
}
