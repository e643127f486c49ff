package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/models"
	"github.com/velmart/storefront/internal/razorpay"
	"github.com/velmart/storefront/internal/util"
)

// Declared totals may drift from the server-side figure by at most one
// currency unit.
const totalTolerance = 1.0

type OrderService struct {
	DB *gorm.DB
}

type CreateOrderItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type CreateOrderRequest struct {
	Items           []CreateOrderItem      `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	TotalAmount     float64                `json:"total_amount"`
	Tax             float64                `json:"tax"`
	Shipping        float64                `json:"shipping"`
	RazorpayOrderID string                 `json:"razorpay_order_id"`
}

func GenerateOrderNumber() string {
	suffix := make([]byte, 3)
	rand.Read(suffix)
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), strings.ToUpper(hex.EncodeToString(suffix)))
}

// CreateOrder builds an order snapshot from the request, validating stock
// and totals against server-side product state. The conditional stock
// decrement and the order insert run in one transaction: a line that cannot
// be covered aborts the whole order.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, req CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	for _, it := range req.Items {
		if it.ProductID == 0 {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
	}

	ids := make([]uint, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}

	var products []models.Product
	if err := s.DB.WithContext(ctx).Preload("Images").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	var subtotal float64
	orderItems := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		product, ok := byID[it.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		if product.Stock < it.Quantity {
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Stock,
			}
		}

		lineTotal := product.Price * float64(it.Quantity)
		subtotal += lineTotal

		image := ""
		if len(product.Images) > 0 {
			image = product.Images[0].URL
		}
		orderItems = append(orderItems, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  it.Quantity,
			Image:     image,
			LineTotal: lineTotal,
		})
	}

	calculated := subtotal + req.Tax + req.Shipping
	if math.Abs(calculated-req.TotalAmount) > totalTolerance {
		return nil, &TotalMismatchError{Calculated: calculated, Provided: req.TotalAmount}
	}

	method := req.PaymentMethod
	if method == "" {
		method = "razorpay"
	}

	order := &models.Order{
		OrderNumber: GenerateOrderNumber(),
		UserID:      userID,
		Items:       orderItems,
		Subtotal:    subtotal,
		Tax:         req.Tax,
		Shipping:    req.Shipping,
		Total:       req.TotalAmount,
		Payment: models.PaymentDetails{
			RazorpayOrderID: req.RazorpayOrderID,
			Status:          models.PaymentStatusPending,
			Amount:          req.TotalAmount,
			Currency:        "INR",
			Method:          method,
		},
		ShippingAddress: req.ShippingAddress,
		Status:          models.OrderStatusCreated,
		ShippingStatus:  models.ShippingStatusPending,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range orderItems {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// A concurrent checkout got there first.
				var current models.Product
				if err := tx.Select("id", "name", "stock").First(&current, item.ProductID).Error; err != nil {
					return &ProductNotFoundError{ProductID: item.ProductID}
				}
				return &InsufficientStockError{
					ProductID: current.ID,
					Name:      current.Name,
					Available: current.Stock,
				}
			}
		}
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID, actorID uint, isAdmin bool) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").Preload("Notes").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	if order.UserID != actorID && !isAdmin {
		return nil, fmt.Errorf("%w: not your order", ErrForbidden)
	}
	return &order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID uint, page, limit int) ([]models.Order, int64, error) {
	offset, limit := util.Calculate(page, limit)

	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListOrders is the admin view: all orders, optionally filtered by order
// status.
func (s *OrderService) ListOrders(ctx context.Context, status string, page, limit int) ([]models.Order, int64, error) {
	offset, limit := util.Calculate(page, limit)

	q := s.DB.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := q.Preload("Items").Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

type PaymentConfirmation struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	RazorpaySignature string
}

// MarkPaid records a gateway confirmation on the order. Only the owning user
// or an admin may do it. Re-confirming a completed payment re-applies the
// same fields; the payment status never moves backwards.
func (s *OrderService) MarkPaid(ctx context.Context, orderID, actorID uint, isAdmin bool, conf PaymentConfirmation) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	if order.UserID != actorID && !isAdmin {
		return nil, fmt.Errorf("%w: not authorized to update this order", ErrForbidden)
	}

	return s.applyPayment(ctx, &order, actorID, conf)
}

// ConfirmPayment is the verified-callback path: the order is located by its
// stored gateway order id.
func (s *OrderService) ConfirmPayment(ctx context.Context, actorID uint, conf PaymentConfirmation) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("payment_razorpay_order_id = ?", conf.RazorpayOrderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no order for gateway order %s", ErrNotFound, conf.RazorpayOrderID)
		}
		return nil, err
	}

	return s.applyPayment(ctx, &order, actorID, conf)
}

func (s *OrderService) applyPayment(ctx context.Context, order *models.Order, actorID uint, conf PaymentConfirmation) (*models.Order, error) {
	if conf.RazorpayOrderID != "" {
		order.Payment.RazorpayOrderID = conf.RazorpayOrderID
	}
	if conf.RazorpayPaymentID != "" {
		order.Payment.RazorpayPaymentID = conf.RazorpayPaymentID
	}
	if conf.RazorpaySignature != "" {
		order.Payment.RazorpaySignature = conf.RazorpaySignature
	}
	order.Payment.Status = models.PaymentStatusCompleted
	if order.Payment.PaidAt == nil {
		now := time.Now()
		order.Payment.PaidAt = &now
	}
	order.Status = models.OrderStatusPaid
	order.ShippingStatus = models.ShippingStatusProcessing

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(order).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderNote{
			OrderID:   order.ID,
			Text:      "Payment received",
			CreatedBy: actorID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// VerifyAndConfirm checks the callback signature before touching the order.
// A bad signature leaves all state untouched.
func (s *OrderService) VerifyAndConfirm(ctx context.Context, actorID uint, keySecret string, conf PaymentConfirmation) (*models.Order, error) {
	if !razorpay.VerifySignature(conf.RazorpayOrderID, conf.RazorpayPaymentID, conf.RazorpaySignature, keySecret) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return s.ConfirmPayment(ctx, actorID, conf)
}

func (s *OrderService) MarkDelivered(ctx context.Context, orderID, actorID uint) (*models.Order, error) {
	return s.UpdateShippingStatus(ctx, orderID, actorID, models.ShippingStatusDelivered, "")
}

var shippingTransitions = map[string][]string{
	models.ShippingStatusPending:    {models.ShippingStatusProcessing, models.ShippingStatusCancelled, models.ShippingStatusRefunded, models.ShippingStatusFailed},
	models.ShippingStatusProcessing: {models.ShippingStatusShipped, models.ShippingStatusCancelled, models.ShippingStatusRefunded, models.ShippingStatusFailed},
	models.ShippingStatusShipped:    {models.ShippingStatusDelivered, models.ShippingStatusCancelled, models.ShippingStatusRefunded, models.ShippingStatusFailed},
}

func transitionAllowed(from, to string) bool {
	for _, t := range shippingTransitions[from] {
		if t == to {
			return true
		}
	}
	// Delivery confirmation is also accepted straight from processing.
	return from == models.ShippingStatusProcessing && to == models.ShippingStatusDelivered
}

// UpdateShippingStatus advances the shipping state machine. Terminal states
// (delivered, cancelled, refunded, failed) accept no further transitions.
func (s *OrderService) UpdateShippingStatus(ctx context.Context, orderID, actorID uint, target, reason string) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}

	if !transitionAllowed(order.ShippingStatus, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, order.ShippingStatus, target)
	}

	now := time.Now()
	order.ShippingStatus = target
	noteText := "Status changed to " + target
	switch target {
	case models.ShippingStatusDelivered:
		order.DeliveredAt = &now
		noteText = "Order delivered"
	case models.ShippingStatusCancelled:
		order.CancelledAt = &now
		order.CancelledBy = actorID
		order.CancelReason = reason
		noteText = "Order cancelled"
		if reason != "" {
			noteText += ": " + reason
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&order).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderNote{
			OrderID:   order.ID,
			Text:      noteText,
			CreatedBy: actorID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreatePaymentOrder persists the order stub recorded alongside a freshly
// created gateway order, snapshotting the caller's default address.
func (s *OrderService) CreatePaymentOrder(ctx context.Context, userID uint, gw *razorpay.GatewayOrder) (*models.Order, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Preload("Addresses").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, err
	}

	var ship models.ShippingAddress
	for _, a := range user.Addresses {
		if a.IsDefault {
			ship = models.ShippingAddress{
				FullName:     a.FullName,
				Phone:        a.Phone,
				AddressLine1: a.AddressLine1,
				AddressLine2: a.AddressLine2,
				City:         a.City,
				State:        a.State,
				PostalCode:   a.PostalCode,
				Country:      a.Country,
			}
			break
		}
	}

	order := &models.Order{
		OrderNumber: GenerateOrderNumber(),
		UserID:      userID,
		Subtotal:    gw.Amount,
		Total:       gw.Amount,
		Payment: models.PaymentDetails{
			RazorpayOrderID: gw.ID,
			Status:          models.PaymentStatusPending,
			Amount:          gw.Amount,
			Currency:        gw.Currency,
			Method:          "razorpay",
		},
		ShippingAddress: ship,
		Status:          models.OrderStatusCreated,
		ShippingStatus:  models.ShippingStatusPending,
	}

	if err := s.DB.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// GetByGatewayOrderID looks an order up by the id the gateway knows it by.
func (s *OrderService) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("payment_razorpay_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: gateway order %s", ErrNotFound, gatewayOrderID)
		}
		return nil, err
	}
	return &order, nil
}
