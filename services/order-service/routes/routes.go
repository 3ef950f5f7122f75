package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mahender-77/KTLServer/services/common/auth"
	commonmw "github.com/Mahender-77/KTLServer/services/common/middleware"
	"github.com/Mahender-77/KTLServer/services/order-service/controllers"
	"github.com/Mahender-77/KTLServer/services/order-service/middleware"
)

// CheckoutResource is the flow-control resource guarding order placement.
const CheckoutResource = "order-checkout"

type Dependencies struct {
	Orders              *controllers.OrderController
	Delivery            *controllers.DeliveryController
	Products            *controllers.ProductController
	JWTSecret           []byte
	TrustGatewayHeaders bool
}

func Register(r *gin.Engine, deps Dependencies) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "order-service"})
	})

	r.GET("/products", deps.Products.ListProducts)
	r.GET("/products/:id", deps.Products.GetProduct)

	authenticated := middleware.AuthMiddleware(deps.JWTSecret, deps.TrustGatewayHeaders)

	orderRoutes := r.Group("/orders", authenticated)
	orderRoutes.POST("", commonmw.FlowControl(CheckoutResource), deps.Orders.CreateOrder)
	orderRoutes.GET("", deps.Orders.GetOrders)
	orderRoutes.GET("/:id", deps.Orders.GetOrderByID)
	orderRoutes.GET("/:id/tracking", deps.Orders.TrackOrder)

	deliveryRoutes := r.Group("/delivery", authenticated)
	deliveryRoutes.GET("/suborders/:id/tracking", deps.Delivery.TrackSubOrder)

	courier := deliveryRoutes.Group("", middleware.RequireRole(auth.RoleDelivery))
	courier.GET("/suborders", deps.Delivery.ListSubOrders)
	courier.POST("/suborders/:id/accept", deps.Delivery.Accept)
	courier.POST("/suborders/:id/start", deps.Delivery.Start)
	courier.POST("/suborders/:id/complete", deps.Delivery.Complete)
	courier.PUT("/location", deps.Delivery.UpdateLocation)

	adminRoutes := r.Group("/admin", authenticated, middleware.RequireRole(auth.RoleAdmin))
	adminRoutes.GET("/products/:id", deps.Products.GetAdminProduct)
	adminRoutes.POST("/products/:id/batches", deps.Products.AddBatch)
	adminRoutes.POST("/products/:id/deduct", deps.Products.DeductStock)
	adminRoutes.GET("/products/:id/stock", deps.Products.GetStock)
	adminRoutes.GET("/inventory/expiring", deps.Products.GetExpiring)
}
