package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
	"github.com/Mahender-77/KTLServer/services/order-service/middleware"
	"github.com/Mahender-77/KTLServer/services/order-service/models"
	"github.com/Mahender-77/KTLServer/services/order-service/services"
)

// --- Mock Services ---

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req services.CreateOrderRequest) (*services.OrderSummary, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.OrderSummary), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*services.Paginated[models.Order], error) {
	args := m.Called(ctx, userID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Paginated[models.Order]), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

type MockDeliveryService struct {
	mock.Mock
}

func (m *MockDeliveryService) ListClaimable(ctx context.Context, deliveryPersonID uuid.UUID, page, limit int) (*services.Paginated[models.SubOrder], error) {
	args := m.Called(ctx, deliveryPersonID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Paginated[models.SubOrder]), args.Error(1)
}

func (m *MockDeliveryService) Accept(ctx context.Context, subOrderID, deliveryPersonID uuid.UUID) (*models.SubOrder, error) {
	args := m.Called(ctx, subOrderID, deliveryPersonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubOrder), args.Error(1)
}

func (m *MockDeliveryService) Start(ctx context.Context, subOrderID, deliveryPersonID uuid.UUID) (*models.SubOrder, error) {
	args := m.Called(ctx, subOrderID, deliveryPersonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubOrder), args.Error(1)
}

func (m *MockDeliveryService) Complete(ctx context.Context, subOrderID, deliveryPersonID uuid.UUID) (*services.CompleteResult, error) {
	args := m.Called(ctx, subOrderID, deliveryPersonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CompleteResult), args.Error(1)
}

func (m *MockDeliveryService) UpdateLocation(ctx context.Context, deliveryPersonID uuid.UUID, input services.LocationInput) (int64, error) {
	args := m.Called(ctx, deliveryPersonID, input)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeliveryService) TrackSubOrder(ctx context.Context, subOrderID uuid.UUID) (*services.SubOrderTracking, error) {
	args := m.Called(ctx, subOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubOrderTracking), args.Error(1)
}

func (m *MockDeliveryService) TrackOrder(ctx context.Context, orderID, requestingUserID uuid.UUID) (*services.OrderTracking, error) {
	args := m.Called(ctx, orderID, requestingUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.OrderTracking), args.Error(1)
}

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) ListPublic(ctx context.Context, categoryID *uuid.UUID, page, limit int) (*services.Paginated[services.ProductListing], error) {
	args := m.Called(ctx, categoryID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Paginated[services.ProductListing]), args.Error(1)
}

func (m *MockProductService) GetPublic(ctx context.Context, id uuid.UUID) (*services.ProductListing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProductListing), args.Error(1)
}

func (m *MockProductService) GetForAdmin(ctx context.Context, id uuid.UUID) (*services.AdminProductView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AdminProductView), args.Error(1)
}

type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) DeductStock(ctx context.Context, productID, storeID uuid.UUID, quantity decimal.Decimal) (services.AllocationPlan, error) {
	args := m.Called(ctx, productID, storeID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.AllocationPlan), args.Error(1)
}

func (m *MockInventoryService) GetAvailableStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, storeID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, productID, variantID, storeID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockInventoryService) AddBatch(ctx context.Context, productID uuid.UUID, input services.AddBatchInput) (*services.AdminProductView, error) {
	args := m.Called(ctx, productID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AdminProductView), args.Error(1)
}

func (m *MockInventoryService) GetExpiringBatches(ctx context.Context, days, page, limit int) (*services.Paginated[services.ExpiringBatchRow], error) {
	args := m.Called(ctx, days, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Paginated[services.ExpiringBatchRow]), args.Error(1)
}

// --- Helpers ---

func withUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, userID)
		c.Next()
	}
}

func perform(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body.Code
}

// --- Tests ---

func TestCreateOrderController(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()
	payload := `{"items":[{"product_id":"` + uuid.NewString() + `","quantity":2,"price":"10"}],"total_amount":20,"address":{"address":"1 Main St","city":"Pune","pincode":"411001"}}`

	t.Run("Success - 201 Created", func(t *testing.T) {
		orders := new(MockOrderService)
		router := gin.New()
		router.POST("/orders", withUser(userID), NewOrderController(orders, nil).CreateOrder)

		summary := &services.OrderSummary{OrderID: uuid.New(), TotalAmount: decimal.NewFromInt(20), OrderStatus: "placed"}
		orders.On("CreateOrder", mock.Anything, userID, mock.MatchedBy(func(req services.CreateOrderRequest) bool {
			return req.IdempotencyKey == "abc-123" && len(req.Items) == 1 && req.Items[0].Quantity.Equal(decimal.NewFromInt(2))
		})).Return(summary, nil).Once()

		recorder := perform(router, http.MethodPost, "/orders", payload, map[string]string{IdempotencyKeyHeader: "abc-123"})

		assert.Equal(t, http.StatusCreated, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "Order placed successfully")
		assert.Contains(t, recorder.Body.String(), summary.OrderID.String())
		orders.AssertExpectations(t)
	})

	t.Run("Failure - Insufficient Stock - 400 Bad Request", func(t *testing.T) {
		orders := new(MockOrderService)
		router := gin.New()
		router.POST("/orders", withUser(userID), NewOrderController(orders, nil).CreateOrder)

		orders.On("CreateOrder", mock.Anything, userID, mock.Anything).
			Return(nil, apperrors.ErrInsufficientStock.WithMessage("Milk does not have enough stock (requested: 5, available: 2).")).Once()

		recorder := perform(router, http.MethodPost, "/orders", payload, nil)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, recorder))
		assert.Contains(t, recorder.Body.String(), "requested: 5, available: 2")
	})

	t.Run("Failure - Internal Error Hides Cause - 500", func(t *testing.T) {
		orders := new(MockOrderService)
		router := gin.New()
		router.POST("/orders", withUser(userID), NewOrderController(orders, nil).CreateOrder)

		orders.On("CreateOrder", mock.Anything, userID, mock.Anything).Return(nil, errors.New("pq: connection refused")).Once()

		recorder := perform(router, http.MethodPost, "/orders", payload, nil)

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		assert.Equal(t, "INTERNAL_ERROR", errorCode(t, recorder))
		assert.NotContains(t, recorder.Body.String(), "connection refused")
	})

	t.Run("Failure - Malformed Body - 400 Bad Request", func(t *testing.T) {
		orders := new(MockOrderService)
		router := gin.New()
		router.POST("/orders", withUser(userID), NewOrderController(orders, nil).CreateOrder)

		recorder := perform(router, http.MethodPost, "/orders", `{"items":`, nil)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, recorder))
		orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - No User - 401 Unauthorized", func(t *testing.T) {
		router := gin.New()
		router.POST("/orders", NewOrderController(new(MockOrderService), nil).CreateOrder)

		recorder := perform(router, http.MethodPost, "/orders", payload, nil)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestGetOrdersController(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	orders := new(MockOrderService)
	router := gin.New()
	router.GET("/orders", withUser(userID), NewOrderController(orders, nil).GetOrders)

	orders.On("ListOrders", mock.Anything, userID, 2, services.MaxPageLimit).
		Return(&services.Paginated[models.Order]{Data: []models.Order{}, Page: 2, Limit: services.MaxPageLimit}, nil).Once()

	recorder := perform(router, http.MethodGet, "/orders?page=2&limit=500", "", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"page":2`)
	orders.AssertExpectations(t)
}

func TestGetOrderByIDController(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	t.Run("Failure - Invalid ID - 400 Bad Request", func(t *testing.T) {
		router := gin.New()
		router.GET("/orders/:id", withUser(userID), NewOrderController(new(MockOrderService), nil).GetOrderByID)

		recorder := perform(router, http.MethodGet, "/orders/not-a-uuid", "", nil)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "INVALID_ID", errorCode(t, recorder))
	})

	t.Run("Failure - Not Found - 404", func(t *testing.T) {
		orders := new(MockOrderService)
		router := gin.New()
		router.GET("/orders/:id", withUser(userID), NewOrderController(orders, nil).GetOrderByID)
		orderID := uuid.New()
		orders.On("GetOrder", mock.Anything, userID, orderID).Return(nil, apperrors.ErrOrderNotFound).Once()

		recorder := perform(router, http.MethodGet, "/orders/"+orderID.String(), "", nil)

		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Equal(t, "ORDER_NOT_FOUND", errorCode(t, recorder))
	})
}

func TestTrackOrderController(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID, orderID := uuid.New(), uuid.New()

	delivery := new(MockDeliveryService)
	router := gin.New()
	router.GET("/orders/:id/tracking", withUser(userID), NewOrderController(nil, delivery).TrackOrder)
	delivery.On("TrackOrder", mock.Anything, orderID, userID).Return(nil, apperrors.ErrOrderAccessDenied).Once()

	recorder := perform(router, http.MethodGet, "/orders/"+orderID.String()+"/tracking", "", nil)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "ORDER_ACCESS_DENIED", errorCode(t, recorder))
	delivery.AssertExpectations(t)
}

func TestDeliveryController(t *testing.T) {
	gin.SetMode(gin.TestMode)
	riderID, subOrderID := uuid.New(), uuid.New()

	newRouter := func(delivery *MockDeliveryService) *gin.Engine {
		dc := NewDeliveryController(delivery)
		router := gin.New()
		router.Use(withUser(riderID))
		router.GET("/suborders", dc.ListSubOrders)
		router.POST("/suborders/:id/accept", dc.Accept)
		router.POST("/suborders/:id/start", dc.Start)
		router.POST("/suborders/:id/complete", dc.Complete)
		router.PUT("/location", dc.UpdateLocation)
		router.GET("/suborders/:id/tracking", dc.TrackSubOrder)
		return router
	}

	t.Run("Accept - 200 OK", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		sub := &models.SubOrder{ID: subOrderID, DeliveryStatus: models.DeliveryAccepted, DeliveryBoyID: &riderID}
		delivery.On("Accept", mock.Anything, subOrderID, riderID).Return(sub, nil).Once()

		recorder := perform(newRouter(delivery), http.MethodPost, "/suborders/"+subOrderID.String()+"/accept", "", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "Sub-order accepted")
		delivery.AssertExpectations(t)
	})

	t.Run("Accept - Already Taken - 400", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		delivery.On("Accept", mock.Anything, subOrderID, riderID).Return(nil, apperrors.ErrSubOrderUnavailable).Once()

		recorder := perform(newRouter(delivery), http.MethodPost, "/suborders/"+subOrderID.String()+"/accept", "", nil)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "SUBORDER_UNAVAILABLE", errorCode(t, recorder))
	})

	t.Run("Start - Wrong Rider - 403", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		delivery.On("Start", mock.Anything, subOrderID, riderID).Return(nil, apperrors.ErrSubOrderUnauthorized).Once()

		recorder := perform(newRouter(delivery), http.MethodPost, "/suborders/"+subOrderID.String()+"/start", "", nil)

		assert.Equal(t, http.StatusForbidden, recorder.Code)
		assert.Equal(t, "SUBORDER_UNAUTHORIZED", errorCode(t, recorder))
	})

	t.Run("Complete - Last Sub-order - 200 OK", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		result := &services.CompleteResult{SubOrder: &models.SubOrder{ID: subOrderID, DeliveryStatus: models.DeliveryDelivered}, AllDelivered: true}
		delivery.On("Complete", mock.Anything, subOrderID, riderID).Return(result, nil).Once()

		recorder := perform(newRouter(delivery), http.MethodPost, "/suborders/"+subOrderID.String()+"/complete", "", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"all_delivered":true`)
	})

	t.Run("UpdateLocation - 200 OK", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		delivery.On("UpdateLocation", mock.Anything, riderID, mock.MatchedBy(func(in services.LocationInput) bool {
			return in.Latitude != nil && *in.Latitude == 18.52 && in.Longitude != nil && *in.Longitude == 73.85
		})).Return(int64(2), nil).Once()

		recorder := perform(newRouter(delivery), http.MethodPut, "/location", `{"latitude":18.52,"longitude":73.85}`, nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"updated":2}`, recorder.Body.String())
		delivery.AssertExpectations(t)
	})

	t.Run("UpdateLocation - Malformed Body - 400", func(t *testing.T) {
		delivery := new(MockDeliveryService)

		recorder := perform(newRouter(delivery), http.MethodPut, "/location", `{"latitude":"north"}`, nil)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "LOCATION_REQUIRED", errorCode(t, recorder))
		delivery.AssertNotCalled(t, "UpdateLocation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("TrackSubOrder - Not Found - 404", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		delivery.On("TrackSubOrder", mock.Anything, subOrderID).Return(nil, apperrors.ErrSubOrderNotFound).Once()

		recorder := perform(newRouter(delivery), http.MethodGet, "/suborders/"+subOrderID.String()+"/tracking", "", nil)

		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Equal(t, "SUBORDER_NOT_FOUND", errorCode(t, recorder))
	})
}

func TestProductController(t *testing.T) {
	gin.SetMode(gin.TestMode)
	productID, storeID := uuid.New(), uuid.New()

	newRouter := func(products *MockProductService, inventory *MockInventoryService) *gin.Engine {
		pc := NewProductController(products, inventory)
		router := gin.New()
		router.GET("/products", pc.ListProducts)
		router.GET("/products/:id", pc.GetProduct)
		router.GET("/products/:id/stock", pc.GetStock)
		router.POST("/admin/products/:id/batches", pc.AddBatch)
		router.POST("/admin/products/:id/deduct", pc.DeductStock)
		router.GET("/admin/inventory/expiring", pc.GetExpiring)
		return router
	}

	t.Run("ListProducts - Category Filter", func(t *testing.T) {
		products := new(MockProductService)
		categoryID := uuid.New()
		products.On("ListPublic", mock.Anything, &categoryID, 1, services.DefaultPageLimit).
			Return(&services.Paginated[services.ProductListing]{Data: []services.ProductListing{{Name: "Milk"}}}, nil).Once()

		recorder := perform(newRouter(products, nil), http.MethodGet, "/products?category="+categoryID.String(), "", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "Milk")
		products.AssertExpectations(t)
	})

	t.Run("ListProducts - Invalid Category - 400", func(t *testing.T) {
		recorder := perform(newRouter(new(MockProductService), nil), http.MethodGet, "/products?category=dairy", "", nil)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "INVALID_ID", errorCode(t, recorder))
	})

	t.Run("GetProduct - Not Found - 404", func(t *testing.T) {
		products := new(MockProductService)
		products.On("GetPublic", mock.Anything, productID).Return(nil, apperrors.ErrProductNotFound).Once()

		recorder := perform(newRouter(products, nil), http.MethodGet, "/products/"+productID.String(), "", nil)

		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Equal(t, "PRODUCT_NOT_FOUND", errorCode(t, recorder))
	})

	t.Run("GetStock - Requires Store", func(t *testing.T) {
		recorder := perform(newRouter(nil, new(MockInventoryService)), http.MethodGet, "/products/"+productID.String()+"/stock", "", nil)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "INVALID_ID", errorCode(t, recorder))
	})

	t.Run("GetStock - 200 OK", func(t *testing.T) {
		inventory := new(MockInventoryService)
		inventory.On("GetAvailableStock", mock.Anything, productID, (*uuid.UUID)(nil), storeID).Return(decimal.RequireFromString("7.5"), nil).Once()

		recorder := perform(newRouter(nil, inventory), http.MethodGet, "/products/"+productID.String()+"/stock?store="+storeID.String(), "", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"available_stock":"7.5"`)
		inventory.AssertExpectations(t)
	})

	t.Run("AddBatch - 201 Created", func(t *testing.T) {
		inventory := new(MockInventoryService)
		inventory.On("AddBatch", mock.Anything, productID, mock.MatchedBy(func(in services.AddBatchInput) bool {
			return in.StoreID == storeID && in.BatchNumber == "LOT-9" && in.Quantity.Equal(decimal.NewFromInt(12))
		})).Return(&services.AdminProductView{TotalQuantity: decimal.NewFromInt(12)}, nil).Once()

		body := `{"store_id":"` + storeID.String() + `","quantity":12,"batch_number":"LOT-9"}`
		recorder := perform(newRouter(nil, inventory), http.MethodPost, "/admin/products/"+productID.String()+"/batches", body, nil)

		assert.Equal(t, http.StatusCreated, recorder.Code)
		inventory.AssertExpectations(t)
	})

	t.Run("AddBatch - Duplicate - 400", func(t *testing.T) {
		inventory := new(MockInventoryService)
		inventory.On("AddBatch", mock.Anything, productID, mock.Anything).Return(nil, apperrors.ErrBatchNumberDuplicate).Once()

		body := `{"store_id":"` + storeID.String() + `","quantity":12,"batch_number":"LOT-9"}`
		recorder := perform(newRouter(nil, inventory), http.MethodPost, "/admin/products/"+productID.String()+"/batches", body, nil)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "BATCH_NUMBER_DUPLICATE", errorCode(t, recorder))
	})

	t.Run("DeductStock - 200 OK", func(t *testing.T) {
		inventory := new(MockInventoryService)
		plan := services.AllocationPlan{
			{ProductID: productID, BatchID: uuid.New(), StoreID: storeID, Quantity: decimal.NewFromInt(2)},
			{ProductID: productID, BatchID: uuid.New(), StoreID: storeID, Quantity: decimal.NewFromInt(1)},
		}
		inventory.On("DeductStock", mock.Anything, productID, storeID, mock.MatchedBy(func(q decimal.Decimal) bool {
			return q.Equal(decimal.NewFromInt(3))
		})).Return(plan, nil).Once()

		body := `{"store_id":"` + storeID.String() + `","quantity":3}`
		recorder := perform(newRouter(nil, inventory), http.MethodPost, "/admin/products/"+productID.String()+"/deduct", body, nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"deducted":"3"`)
		inventory.AssertExpectations(t)
	})

	t.Run("GetExpiring - Default Window", func(t *testing.T) {
		inventory := new(MockInventoryService)
		inventory.On("GetExpiringBatches", mock.Anything, services.DefaultExpiringDays, 1, services.DefaultPageLimit).
			Return(&services.Paginated[services.ExpiringBatchRow]{Data: []services.ExpiringBatchRow{}}, nil).Once()

		recorder := perform(newRouter(nil, inventory), http.MethodGet, "/admin/inventory/expiring?days=abc", "", nil)

		assert.Equal(t, http.StatusOK, recorder.Code)
		inventory.AssertExpectations(t)
	})
}
