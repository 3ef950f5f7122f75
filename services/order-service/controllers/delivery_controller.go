package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
	"github.com/Mahender-77/KTLServer/services/order-service/middleware"
	"github.com/Mahender-77/KTLServer/services/order-service/services"
)

type DeliveryController struct {
	deliveryService services.DeliveryService
}

func NewDeliveryController(deliveryService services.DeliveryService) *DeliveryController {
	return &DeliveryController{deliveryService: deliveryService}
}

// ListSubOrders returns the sub-orders the caller holds plus every unclaimed one.
func (dc *DeliveryController) ListSubOrders(ctx *gin.Context) {
	deliveryPersonID, ok := middleware.GetUserID(ctx)
	if !ok {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}

	page, limit := parsePaginationParams(ctx)
	result, err := dc.deliveryService.ListClaimable(ctx.Request.Context(), deliveryPersonID, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (dc *DeliveryController) Accept(ctx *gin.Context) {
	deliveryPersonID, ok := middleware.GetUserID(ctx)
	if !ok {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}
	subOrderID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	sub, err := dc.deliveryService.Accept(ctx.Request.Context(), subOrderID, deliveryPersonID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Sub-order accepted", "sub_order": sub})
}

func (dc *DeliveryController) Start(ctx *gin.Context) {
	deliveryPersonID, ok := middleware.GetUserID(ctx)
	if !ok {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}
	subOrderID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	sub, err := dc.deliveryService.Start(ctx.Request.Context(), subOrderID, deliveryPersonID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Delivery started", "sub_order": sub})
}

func (dc *DeliveryController) Complete(ctx *gin.Context) {
	deliveryPersonID, ok := middleware.GetUserID(ctx)
	if !ok {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}
	subOrderID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	result, err := dc.deliveryService.Complete(ctx.Request.Context(), subOrderID, deliveryPersonID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (dc *DeliveryController) UpdateLocation(ctx *gin.Context) {
	deliveryPersonID, ok := middleware.GetUserID(ctx)
	if !ok {
		apperrors.Respond(ctx, apperrors.ErrUnauthorized)
		return
	}

	var input services.LocationInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		apperrors.Respond(ctx, apperrors.ErrLocationRequired)
		return
	}

	updated, err := dc.deliveryService.UpdateLocation(ctx.Request.Context(), deliveryPersonID, input)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (dc *DeliveryController) TrackSubOrder(ctx *gin.Context) {
	subOrderID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	tracking, err := dc.deliveryService.TrackSubOrder(ctx.Request.Context(), subOrderID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tracking)
}
