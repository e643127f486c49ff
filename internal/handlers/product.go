package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/eventbus"
	"github.com/velmart/storefront/internal/models"
	"github.com/velmart/storefront/internal/service/search"
	"github.com/velmart/storefront/internal/util"
)

type ProductHandler struct {
	DB         *gorm.DB
	ES         *elasticsearch.Client
	ESIndex    string
	Producer   *eventbus.Producer
	Production bool
}

type productRequest struct {
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Price          *float64              `json:"price"`
	Stock          *int                  `json:"stock"`
	CategoryID     uint                  `json:"category_id"`
	Images         []string              `json:"images"`
	Specifications models.Specifications `json:"specifications"`
	IsActive       *bool                 `json:"is_active"`
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, limit)

	q := h.DB.Model(&models.Product{})
	if kw := c.QueryParam("keyword"); kw != "" {
		q = q.Where("name LIKE ?", "%"+kw+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return serviceError(c, err, h.Production)
	}

	var products []models.Product
	err := q.Preload("Images").Order("created_at DESC").Offset(offset).Limit(limit).Find(&products).Error
	if err != nil {
		return serviceError(c, err, h.Production)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"products":     products,
		"total":        total,
		"pages":        util.Pages(total, limit),
		"current_page": page,
	})
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid product ID")
	}

	var product models.Product
	if err := h.DB.Preload("Images").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Product not found")
		}
		return serviceError(c, err, h.Production)
	}

	return c.JSON(http.StatusOK, product)
}

// GetProductCategories lists the active categories products can belong to.
func (h *ProductHandler) GetProductCategories(c echo.Context) error {
	var categories []models.Category
	if err := h.DB.Where("is_active = ?", true).Order("name ASC").Find(&categories).Error; err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || req.Description == "" {
		return message(c, http.StatusBadRequest, "Name and description are required")
	}
	if req.Price == nil || *req.Price < 0 {
		return message(c, http.StatusBadRequest, "Price must be a non-negative number")
	}
	if req.Stock != nil && *req.Stock < 0 {
		return message(c, http.StatusBadRequest, "Stock must be a non-negative number")
	}
	if len(req.Images) == 0 {
		return message(c, http.StatusBadRequest, "At least one image is required")
	}

	product := models.Product{
		Name:           req.Name,
		Description:    req.Description,
		Price:          *req.Price,
		CategoryID:     req.CategoryID,
		Specifications: req.Specifications,
		IsActive:       true,
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	for _, url := range req.Images {
		product.Images = append(product.Images, models.ProductImage{URL: url})
	}

	if err := h.DB.Create(&product).Error; err != nil {
		return serviceError(c, err, h.Production)
	}

	h.indexProduct(c, &product)
	publish(c, h.Producer, eventbus.TopicProductEvents, fmt.Sprint(product.ID), map[string]any{
		"type":      "product_created",
		"productID": product.ID,
		"name":      product.Name,
	})

	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid product ID")
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "invalid body")
	}

	var product models.Product
	if err := h.DB.Preload("Images").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message(c, http.StatusNotFound, "Product not found")
		}
		return serviceError(c, err, h.Production)
	}

	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Description != "" {
		product.Description = req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return message(c, http.StatusBadRequest, "Price must be a non-negative number")
		}
		product.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return message(c, http.StatusBadRequest, "Stock must be a non-negative number")
		}
		product.Stock = *req.Stock
	}
	if req.CategoryID != 0 {
		product.CategoryID = req.CategoryID
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.Specifications != (models.Specifications{}) {
		product.Specifications = req.Specifications
	}
	if req.Images != nil {
		if len(req.Images) == 0 {
			return message(c, http.StatusBadRequest, "At least one image is required")
		}
		if err := h.DB.Where("product_id = ?", product.ID).Delete(&models.ProductImage{}).Error; err != nil {
			return serviceError(c, err, h.Production)
		}
		product.Images = nil
		for _, url := range req.Images {
			product.Images = append(product.Images, models.ProductImage{ProductID: product.ID, URL: url})
		}
	}

	if err := h.DB.Save(&product).Error; err != nil {
		return serviceError(c, err, h.Production)
	}

	h.indexProduct(c, &product)
	publish(c, h.Producer, eventbus.TopicProductEvents, fmt.Sprint(product.ID), map[string]any{
		"type":      "product_updated",
		"productID": product.ID,
		"name":      product.Name,
	})

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return message(c, http.StatusBadRequest, "Invalid product ID")
	}

	res := h.DB.Delete(&models.Product{}, id)
	if res.Error != nil {
		return serviceError(c, res.Error, h.Production)
	}
	if res.RowsAffected == 0 {
		return message(c, http.StatusNotFound, "Product not found")
	}

	if h.ES != nil {
		if err := search.DeleteProduct(c.Request().Context(), h.ES, h.ESIndex, uint(id)); err != nil {
			c.Logger().Errorf("search deindex error: %v", err)
		}
	}
	publish(c, h.Producer, eventbus.TopicProductEvents, fmt.Sprint(id), map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return message(c, http.StatusOK, "Product removed successfully")
}

func (h *ProductHandler) SearchProducts(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return message(c, http.StatusBadRequest, "query is required")
	}
	if h.ES == nil {
		return message(c, http.StatusServiceUnavailable, "search is not configured")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	from, size := util.Calculate(page, limit)

	total, products, err := search.Search(c.Request().Context(), h.ES, h.ESIndex, q, from, size)
	if err != nil {
		return serviceError(c, err, h.Production)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": products})
}

func (h *ProductHandler) indexProduct(c echo.Context, product *models.Product) {
	if h.ES == nil {
		return
	}
	if err := search.IndexProduct(c.Request().Context(), h.ES, h.ESIndex, product); err != nil {
		c.Logger().Errorf("search index error: %v", err)
	}
}
