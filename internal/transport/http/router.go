package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmart/storefront/internal/handlers"
	"github.com/velmart/storefront/internal/middleware"
)

type Deps struct {
	DB        *gorm.DB
	JWTSecret []byte
	UploadDir string

	AuthHandler     *handlers.AuthHandler
	ProductHandler  *handlers.ProductHandler
	CategoryHandler *handlers.CategoryHandler
	CartHandler     *handlers.CartHandler
	UserHandler     *handlers.UserHandler
	AdminHandler    *handlers.AdminHandler
	OrderHandler    *handlers.OrderHandler
	PaymentHandler  *handlers.PaymentHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.Static("/uploads", d.UploadDir)

	auth := middleware.RequireAuth(d.JWTSecret)
	admin := middleware.AdminOnly(d.DB)

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", d.AuthHandler.Register)
	authGroup.POST("/login", d.AuthHandler.Login)
	authGroup.GET("/me", d.AuthHandler.Me, auth)

	products := api.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/categories", d.ProductHandler.GetProductCategories)
	products.GET("/search", d.ProductHandler.SearchProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.POST("", d.ProductHandler.CreateProduct, auth, admin)
	products.PUT("/:id", d.ProductHandler.UpdateProduct, auth, admin)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct, auth, admin)

	categories := api.Group("/categories")
	categories.GET("", d.CategoryHandler.GetCategories)
	categories.GET("/:id", d.CategoryHandler.GetCategory)
	categories.POST("", d.CategoryHandler.CreateCategory, auth, admin)
	categories.PUT("/:id", d.CategoryHandler.UpdateCategory, auth, admin)
	categories.DELETE("/:id", d.CategoryHandler.DeleteCategory, auth, admin)

	cart := api.Group("/cart", auth)
	cart.GET("", d.CartHandler.GetCart)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PUT("/items/:itemId", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:itemId", d.CartHandler.RemoveItem)

	orders := api.Group("/orders", auth)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("/my-orders", d.OrderHandler.GetMyOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.PUT("/:id/pay", d.OrderHandler.MarkPaid)
	orders.PUT("/:id/deliver", d.OrderHandler.MarkDelivered, admin)
	orders.PUT("/:id/status", d.OrderHandler.UpdateShippingStatus, admin)
	orders.GET("", d.OrderHandler.ListOrders, admin)

	payment := api.Group("/payment", auth)
	payment.POST("/order", d.PaymentHandler.CreateOrder)
	payment.POST("/verify", d.PaymentHandler.VerifyPayment)
	payment.GET("/order/:id", d.PaymentHandler.GetOrder)

	users := api.Group("/users", auth)
	users.GET("/profile", d.UserHandler.GetProfile)
	users.PUT("/profile", d.UserHandler.UpdateProfile)
	users.PUT("/change-password", d.UserHandler.ChangePassword)
	users.GET("/addresses", d.UserHandler.ListAddresses)
	users.POST("/addresses", d.UserHandler.AddAddress)
	users.PUT("/addresses/:id", d.UserHandler.UpdateAddress)
	users.DELETE("/addresses/:id", d.UserHandler.DeleteAddress)

	adminGroup := api.Group("/admin", auth, admin)
	adminGroup.GET("/users", d.AdminHandler.ListUsers)
	adminGroup.PUT("/users/:id", d.AdminHandler.UpdateUser)
	adminGroup.DELETE("/users/:id", d.AdminHandler.DeleteUser)
	adminGroup.GET("/products", d.ProductHandler.GetProducts)
	adminGroup.GET("/products/:id", d.ProductHandler.GetProduct)
	adminGroup.POST("/products", d.ProductHandler.CreateProduct)
	adminGroup.PUT("/products/:id", d.ProductHandler.UpdateProduct)
	adminGroup.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
}
