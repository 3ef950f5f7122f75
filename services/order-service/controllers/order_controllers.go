package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
	"github.com/Mahender-77/KTLServer/services/order-service/middleware"
	"github.com/Mahender-77/KTLServer/services/order-service/services"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderController struct {
	orderService    services.OrderService
	deliveryService services.DeliveryService
}

func NewOrderController(orderService services.OrderService, deliveryService services.DeliveryService) *OrderController {
	return &OrderController{
		orderService:    orderService,
		deliveryService: deliveryService,
	}
}

// CreateOrder handles checkout requests
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}

	var req services.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(ctx, apperrors.ErrValidation.WithMessage("Invalid request body"))
		return
	}
	req.IdempotencyKey = ctx.GetHeader(IdempotencyKeyHeader)

	summary, err := oc.orderService.CreateOrder(ctx.Request.Context(), userID, req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "order": summary})
}

// GetOrders returns paginated orders for the authenticated user
func (oc *OrderController) GetOrders(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}

	page, limit := parsePaginationParams(ctx)
	result, err := oc.orderService.ListOrders(ctx.Request.Context(), userID, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetOrderByID returns a specific order for the authenticated user
func (oc *OrderController) GetOrderByID(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}
	orderID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	order, err := oc.orderService.GetOrder(ctx.Request.Context(), userID, orderID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

func (oc *OrderController) TrackOrder(ctx *gin.Context) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}
	orderID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	tracking, err := oc.deliveryService.TrackOrder(ctx.Request.Context(), orderID, userID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, tracking)
}

// parsePaginationParams reads page and limit; the services clamp them.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(services.DefaultPageLimit)))
	if err != nil {
		limit = services.DefaultPageLimit
	}
	return services.NormalizePage(page, limit)
}

func parseIDParam(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		apperrors.Respond(ctx, apperrors.ErrInvalidID.WithMessage("Invalid "+name+" format"))
		return uuid.Nil, false
	}
	return id, true
}
