package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/eventbus"
	"github.com/velmart/storefront/internal/hash"
	"github.com/velmart/storefront/internal/middleware"
	"github.com/velmart/storefront/internal/models"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Producer  *eventbus.Producer
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return message(c, http.StatusBadRequest, "Please enter all fields")
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return message(c, http.StatusBadRequest, "User already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return message(c, http.StatusInternalServerError, "Server Error")
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return message(c, http.StatusInternalServerError, "Server Error")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		LastActive:   time.Now(),
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return message(c, http.StatusInternalServerError, "Server Error")
	}

	token, err := middleware.SignToken(&user, h.JWTSecret)
	if err != nil {
		return message(c, http.StatusInternalServerError, "Server Error")
	}

	publish(c, h.Producer, eventbus.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"id":       user.ID,
		"name":     user.Name,
		"email":    user.Email,
		"token":    token,
		"is_admin": user.IsAdmin,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return message(c, http.StatusBadRequest, "Please enter all fields")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return message(c, http.StatusUnauthorized, "Invalid email or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return message(c, http.StatusUnauthorized, "Invalid email or password")
	}

	user.LastActive = time.Now()
	if err := h.DB.Model(&user).UpdateColumn("last_active", user.LastActive).Error; err != nil {
		c.Logger().Errorf("last_active update error: %v", err)
	}

	token, err := middleware.SignToken(&user, h.JWTSecret)
	if err != nil {
		return message(c, http.StatusInternalServerError, "Server Error")
	}

	publish(c, h.Producer, eventbus.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":   "user_logged_in",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"id":          user.ID,
		"name":        user.Name,
		"email":       user.Email,
		"token":       token,
		"is_admin":    user.IsAdmin,
		"last_active": user.LastActive,
	})
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		return message(c, http.StatusUnauthorized, "Not authorized")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":          user.ID,
		"name":        user.Name,
		"email":       user.Email,
		"is_admin":    user.IsAdmin,
		"last_active": user.LastActive,
	})
}
