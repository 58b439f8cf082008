package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pttech/commerce/internal/domain"
	"github.com/pttech/commerce/internal/payment"
	"github.com/pttech/commerce/internal/service"
)

type mockOrderService struct {
	CreateOrderFn           func(ctx context.Context, params service.CreateOrderParams) (*domain.Order, error)
	UpdateOrderFn           func(ctx context.Context, id primitive.ObjectID, params service.UpdateOrderParams) (*domain.Order, error)
	CancelOrderFn           func(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error)
	DeleteOrderFn           func(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	RequestReturnFn         func(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error)
	CompleteReturnFn        func(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	RejectReturnFn          func(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error)
	ApplyPaymentCallbackFn  func(ctx context.Context, txnRef, responseCode, txnStatus string) (*domain.Order, error)
	ReleaseStalledFn        func(ctx context.Context) (int64, error)
	GetOrderFn              func(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	GetOrderByOrderIDFn     func(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrdersFn            func(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	ListOrdersByUserFn      func(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error)
	ListOrdersByProductFn   func(ctx context.Context, productID primitive.ObjectID) ([]domain.Order, error)
	TopOrdersByTotalItemsFn func(ctx context.Context) ([]domain.Order, error)
	TopOrdersByFinalPriceFn func(ctx context.Context) ([]domain.Order, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, params service.CreateOrderParams) (*domain.Order, error) {
	return m.CreateOrderFn(ctx, params)
}

func (m *mockOrderService) UpdateOrder(ctx context.Context, id primitive.ObjectID, params service.UpdateOrderParams) (*domain.Order, error) {
	return m.UpdateOrderFn(ctx, id, params)
}

func (m *mockOrderService) CancelOrder(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error) {
	return m.CancelOrderFn(ctx, id, reason)
}

func (m *mockOrderService) DeleteOrder(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	return m.DeleteOrderFn(ctx, id)
}

func (m *mockOrderService) RequestReturn(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error) {
	return m.RequestReturnFn(ctx, id, reason)
}

func (m *mockOrderService) CompleteReturn(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	return m.CompleteReturnFn(ctx, id)
}

func (m *mockOrderService) RejectReturn(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error) {
	return m.RejectReturnFn(ctx, id, reason)
}

func (m *mockOrderService) ApplyPaymentCallback(ctx context.Context, txnRef, responseCode, txnStatus string) (*domain.Order, error) {
	return m.ApplyPaymentCallbackFn(ctx, txnRef, responseCode, txnStatus)
}

func (m *mockOrderService) ReleaseStalled(ctx context.Context) (int64, error) {
	return m.ReleaseStalledFn(ctx)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	return m.GetOrderFn(ctx, id)
}

func (m *mockOrderService) GetOrderByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	return m.GetOrderByOrderIDFn(ctx, orderID)
}

func (m *mockOrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return m.ListOrdersFn(ctx, filter)
}

func (m *mockOrderService) ListOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error) {
	return m.ListOrdersByUserFn(ctx, userID)
}

func (m *mockOrderService) ListOrdersByProduct(ctx context.Context, productID primitive.ObjectID) ([]domain.Order, error) {
	return m.ListOrdersByProductFn(ctx, productID)
}

func (m *mockOrderService) TopOrdersByTotalItems(ctx context.Context) ([]domain.Order, error) {
	return m.TopOrdersByTotalItemsFn(ctx)
}

func (m *mockOrderService) TopOrdersByFinalPrice(ctx context.Context) ([]domain.Order, error) {
	return m.TopOrdersByFinalPriceFn(ctx)
}

func newTestServer(svc service.OrderService) *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()

	gateway := payment.NewGateway(payment.Config{
		TmnCode:    "TEST01",
		HashSecret: "secret",
		PayURL:     "https://gateway.example.com/pay",
		ReturnURL:  "https://shop.example.com/api/orders/vnpay/return",
	})

	h := NewOrderHandler(svc, gateway, zerolog.Nop())
	h.Register(e.Group("/api/orders"))
	return e
}

func TestCreateOrderHandler(t *testing.T) {
	userID := primitive.NewObjectID()
	productID := primitive.NewObjectID()
	variantID := primitive.NewObjectID()

	svc := &mockOrderService{
		CreateOrderFn: func(_ context.Context, params service.CreateOrderParams) (*domain.Order, error) {
			require.Equal(t, userID, params.UserID)
			require.Len(t, params.Items, 1)
			require.Equal(t, 2, params.Items[0].Quantity)
			return &domain.Order{
				OrderID:    "ORD-abc12345",
				UserID:     params.UserID,
				FinalPrice: 210,
				CreatedAt:  time.Now(),
			}, nil
		},
	}

	body := `{
		"userId": "` + userID.Hex() + `",
		"items": [{"productId": "` + productID.Hex() + `", "variantId": "` + variantID.Hex() + `", "quantity": 2, "discountPrice": 100}],
		"phoneNumber": "0123456789",
		"paymentMethod": "vnpay",
		"shippingPrice": 10
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ORD-abc12345", got.OrderID)
	assert.Equal(t, 210.0, got.FinalPrice)
}

func TestCreateOrderHandlerValidation(t *testing.T) {
	svc := &mockOrderService{
		CreateOrderFn: func(_ context.Context, _ service.CreateOrderParams) (*domain.Order, error) {
			t.Fatal("service must not be called for invalid input")
			return nil, nil
		},
	}

	// Zero quantity fails validation before the engine sees the request.
	body := `{
		"userId": "` + primitive.NewObjectID().Hex() + `",
		"items": [{"productId": "` + primitive.NewObjectID().Hex() + `", "variantId": "` + primitive.NewObjectID().Hex() + `", "quantity": 0}],
		"phoneNumber": "0123456789",
		"paymentMethod": "cod"
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelOrderHandler(t *testing.T) {
	id := primitive.NewObjectID()

	svc := &mockOrderService{
		CancelOrderFn: func(_ context.Context, gotID primitive.ObjectID, reason string) (*domain.Order, error) {
			require.Equal(t, id, gotID)
			require.Equal(t, "changed my mind", reason)
			return &domain.Order{ID: id, OrderStatus: domain.OrderCancelled, IsDeleted: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders/cancel/"+id.Hex()+"?cancellationReason=changed+my+mind", nil)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.OrderCancelled, got.OrderStatus)
}

func TestCancelOrderHandlerConflict(t *testing.T) {
	svc := &mockOrderService{
		CancelOrderFn: func(_ context.Context, _ primitive.ObjectID, _ string) (*domain.Order, error) {
			return nil, domain.ErrOrderNotCancellable
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders/cancel/"+primitive.NewObjectID().Hex(), nil)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conflict", resp["code"])
	assert.NotEmpty(t, resp["error"])
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &mockOrderService{
		GetOrderFn: func(_ context.Context, _ primitive.ObjectID) (*domain.Order, error) {
			return nil, domain.ErrOrderNotFound
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+primitive.NewObjectID().Hex(), nil)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderInvalidID(t *testing.T) {
	svc := &mockOrderService{
		GetOrderFn: func(_ context.Context, _ primitive.ObjectID) (*domain.Order, error) {
			t.Fatal("service must not be called for a malformed id")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/not-a-hex-id", nil)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentReturnHandler(t *testing.T) {
	svc := &mockOrderService{
		ApplyPaymentCallbackFn: func(_ context.Context, txnRef, responseCode, txnStatus string) (*domain.Order, error) {
			require.Equal(t, "ORD-abc12345", txnRef)
			require.Equal(t, "00", responseCode)
			require.Equal(t, "00", txnStatus)
			return &domain.Order{OrderID: txnRef, PaymentStatus: domain.PaymentPaid}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost,
		"/api/orders/vnpay/return?vnp_TxnRef=ORD-abc12345&vnp_ResponseCode=00&vnp_TransactionStatus=00", nil)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
}

func TestPaymentReturnHandlerUnknownCode(t *testing.T) {
	svc := &mockOrderService{
		ApplyPaymentCallbackFn: func(_ context.Context, _, responseCode, _ string) (*domain.Order, error) {
			return nil, payment.ErrUnrecognizedCallback
		},
	}

	req := httptest.NewRequest(http.MethodPost,
		"/api/orders/vnpay/return?vnp_TxnRef=ORD-abc12345&vnp_ResponseCode=99", nil)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPaymentURLHandler(t *testing.T) {
	svc := &mockOrderService{
		GetOrderByOrderIDFn: func(_ context.Context, orderID string) (*domain.Order, error) {
			return &domain.Order{OrderID: orderID, FinalPrice: 235}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders/vnpay/ORD-abc12345", nil)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["paymentUrl"], "vnp_Amount=23500")
	assert.Contains(t, resp["paymentUrl"], "vnp_TxnRef=ORD-abc12345")
	assert.Contains(t, resp["paymentUrl"], "vnp_SecureHash=")
}

func TestListOrdersPassesFilter(t *testing.T) {
	svc := &mockOrderService{
		ListOrdersFn: func(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
			assert.Equal(t, "vnpay", filter.PaymentMethod)
			assert.Equal(t, domain.PaymentPaid, filter.PaymentStatus)
			assert.Equal(t, "oldest", filter.SortBy)
			return []domain.Order{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders?paymentMethod=vnpay&paymentStatus=paid&sortBy=oldest", nil)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestReturnHandler(t *testing.T) {
	id := primitive.NewObjectID()
	svc := &mockOrderService{
		RequestReturnFn: func(_ context.Context, gotID primitive.ObjectID, reason string) (*domain.Order, error) {
			require.Equal(t, id, gotID)
			require.Equal(t, "damaged on arrival", reason)
			return &domain.Order{ID: id, OrderStatus: domain.OrderReturnRequested, ReturnReason: reason}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+id.Hex()+"/request-return",
		strings.NewReader(`{"reason": "damaged on arrival"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.OrderReturnRequested, got.OrderStatus)
}
