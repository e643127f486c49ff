package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/models"
)

type CategoryHandler struct {
	DB         *gorm.DB
	Production bool
}

var slugStrip = regexp.MustCompile(`[^a-z0-9-]+`)

// Slugify derives the URL-safe category slug from its name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return slugStrip.ReplaceAllString(slug, "")
}

func (h *CategoryHandler) GetCategories(c echo.Context) error {
	var categories []models.Category
	if err := h.DB.Where("is_active = ?", true).Order("name ASC").Find(&categories).Error; err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *CategoryHandler) GetCategory(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid category ID")
	}

	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Category not found")
		}
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, category)
}

func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return message(c, http.StatusBadRequest, "Name is required")
	}

	category := models.Category{
		Name:        req.Name,
		Slug:        Slugify(req.Name),
		Description: req.Description,
		IsActive:    true,
	}

	var existing models.Category
	err := h.DB.Where("name = ? OR slug = ?", category.Name, category.Slug).First(&existing).Error
	if err == nil {
		return message(c, http.StatusConflict, "Category already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return serviceError(c, err, h.Production)
	}

	if err := h.DB.Create(&category).Error; err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusCreated, category)
}

func (h *CategoryHandler) UpdateCategory(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid category ID")
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsActive    *bool  `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}

	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Category not found")
		}
		return serviceError(c, err, h.Production)
	}

	if req.Name != "" && req.Name != category.Name {
		category.Name = req.Name
		category.Slug = Slugify(req.Name)
	}
	if req.Description != "" {
		category.Description = req.Description
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := h.DB.Save(&category).Error; err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, category)
}

func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid category ID")
	}

	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Category not found")
		}
		return serviceError(c, err, h.Production)
	}

	var productCount int64
	if err := h.DB.Model(&models.Product{}).Where("category_id = ?", category.ID).Count(&productCount).Error; err != nil {
		return serviceError(c, err, h.Production)
	}
	if productCount > 0 {
		return message(c, http.StatusBadRequest, "Cannot delete category with associated products")
	}

	if err := h.DB.Delete(&category).Error; err != nil {
		return serviceError(c, err, h.Production)
	}
	return message(c, http.StatusOK, "Category removed")
}
