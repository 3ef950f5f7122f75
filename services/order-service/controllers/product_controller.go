package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
	"github.com/Mahender-77/KTLServer/services/order-service/services"
)

type ProductController struct {
	productService   services.ProductService
	inventoryService services.InventoryService
}

func NewProductController(productService services.ProductService, inventoryService services.InventoryService) *ProductController {
	return &ProductController{
		productService:   productService,
		inventoryService: inventoryService,
	}
}

// ListProducts returns the public catalog, optionally filtered by ?category=<uuid>.
func (pc *ProductController) ListProducts(ctx *gin.Context) {
	var categoryID *uuid.UUID
	if raw := ctx.Query("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			apperrors.Respond(ctx, apperrors.ErrInvalidID.WithMessage("Invalid category format"))
			return
		}
		categoryID = &id
	}

	page, limit := parsePaginationParams(ctx)
	result, err := pc.productService.ListPublic(ctx.Request.Context(), categoryID, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (pc *ProductController) GetProduct(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	product, err := pc.productService.GetPublic(ctx.Request.Context(), id)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func (pc *ProductController) GetAdminProduct(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	product, err := pc.productService.GetForAdmin(ctx.Request.Context(), id)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func (pc *ProductController) AddBatch(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var input services.AddBatchInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		apperrors.Respond(ctx, apperrors.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	product, err := pc.inventoryService.AddBatch(ctx.Request.Context(), id, input)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, product)
}

func (pc *ProductController) DeductStock(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var input services.DeductStockInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		apperrors.Respond(ctx, apperrors.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	plan, err := pc.inventoryService.DeductStock(ctx.Request.Context(), id, input.StoreID, input.Quantity)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"deducted": plan.Total(), "batches": plan})
}

// GetStock returns the sellable stock of ?store=<uuid> and optional ?variant=<uuid>.
func (pc *ProductController) GetStock(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	storeID, err := uuid.Parse(ctx.Query("store"))
	if err != nil {
		apperrors.Respond(ctx, apperrors.ErrInvalidID.WithMessage("Invalid store format"))
		return
	}
	var variantID *uuid.UUID
	if raw := ctx.Query("variant"); raw != "" {
		v, err := uuid.Parse(raw)
		if err != nil {
			apperrors.Respond(ctx, apperrors.ErrInvalidID.WithMessage("Invalid variant format"))
			return
		}
		variantID = &v
	}

	available, err := pc.inventoryService.GetAvailableStock(ctx.Request.Context(), id, variantID, storeID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product_id": id, "store_id": storeID, "variant_id": variantID, "available_stock": available})
}

// GetExpiring lists batches expiring within ?days= (default 7).
func (pc *ProductController) GetExpiring(ctx *gin.Context) {
	days, err := strconv.Atoi(ctx.DefaultQuery("days", strconv.Itoa(services.DefaultExpiringDays)))
	if err != nil {
		days = services.DefaultExpiringDays
	}

	page, limit := parsePaginationParams(ctx)
	result, err := pc.inventoryService.GetExpiringBatches(ctx.Request.Context(), days, page, limit)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}
