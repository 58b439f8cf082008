package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pttech/commerce/internal/domain"
	"github.com/pttech/commerce/internal/payment"
	"github.com/pttech/commerce/internal/service"
)

// OrderHandler serves the order API.
type OrderHandler struct {
	orders  service.OrderService
	gateway *payment.Gateway
	logger  zerolog.Logger
}

// NewOrderHandler creates the order API handler.
func NewOrderHandler(orders service.OrderService, gateway *payment.Gateway, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		gateway: gateway,
		logger:  logger.With().Str("component", "order_handler").Logger(),
	}
}

// Register mounts the order routes on the group.
func (h *OrderHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/top-10-items", h.TopByItems)
	g.GET("/top-10-price", h.TopByPrice)
	g.GET("/order-id/:orderId", h.GetByOrderID)
	g.GET("/user/:userId", h.ListByUser)
	g.GET("/product/:productId", h.ListByProduct)
	g.POST("/cancel/:id", h.Cancel)
	g.POST("/vnpay/:orderId", h.PaymentURL)
	g.POST("/vnpay/return", h.PaymentReturn)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/request-return", h.RequestReturn)
	g.POST("/:id/complete-return", h.CompleteReturn)
	g.POST("/:id/reject-return", h.RejectReturn)
}

type orderItemRequest struct {
	ProductID     string  `json:"productId" validate:"required"`
	VariantID     string  `json:"variantId" validate:"required"`
	BrandID       string  `json:"brandId"`
	CategoryID    string  `json:"categoryId"`
	Quantity      int     `json:"quantity" validate:"required,gt=0"`
	OriginalPrice float64 `json:"originalPrice" validate:"gte=0"`
	DiscountPrice float64 `json:"discountPrice" validate:"gte=0"`
	ProductName   string  `json:"productName"`
	Color         string  `json:"color"`
	HexCode       string  `json:"hexCode"`
	Size          string  `json:"size"`
	RAM           string  `json:"ram"`
	Storage       string  `json:"storage"`
	Condition     string  `json:"condition"`
	ProductImage  string  `json:"productImage"`
}

func (r *orderItemRequest) toDomain() (domain.OrderItem, error) {
	productID, err := primitive.ObjectIDFromHex(r.ProductID)
	if err != nil {
		return domain.OrderItem{}, domain.Invalid("order.create", "invalid productId")
	}
	variantID, err := primitive.ObjectIDFromHex(r.VariantID)
	if err != nil {
		return domain.OrderItem{}, domain.Invalid("order.create", "invalid variantId")
	}

	item := domain.OrderItem{
		ProductID:     productID,
		VariantID:     variantID,
		Quantity:      r.Quantity,
		OriginalPrice: r.OriginalPrice,
		DiscountPrice: r.DiscountPrice,
		ProductName:   r.ProductName,
		Color:         r.Color,
		HexCode:       r.HexCode,
		Size:          r.Size,
		RAM:           r.RAM,
		Storage:       r.Storage,
		Condition:     r.Condition,
		ProductImage:  r.ProductImage,
	}
	if r.BrandID != "" {
		if item.BrandID, err = primitive.ObjectIDFromHex(r.BrandID); err != nil {
			return domain.OrderItem{}, domain.Invalid("order.create", "invalid brandId")
		}
	}
	if r.CategoryID != "" {
		if item.CategoryID, err = primitive.ObjectIDFromHex(r.CategoryID); err != nil {
			return domain.OrderItem{}, domain.Invalid("order.create", "invalid categoryId")
		}
	}
	return item, nil
}

type createOrderRequest struct {
	UserID          string                 `json:"userId" validate:"required"`
	Items           []orderItemRequest     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PhoneNumber     string                 `json:"phoneNumber" validate:"required"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"required"`
	ShippingMethod  string                 `json:"shippingMethod"`
	ShippingPrice   float64                `json:"shippingPrice" validate:"gte=0"`
	DiscountCode    string                 `json:"discountCode"`
	OrderNotes      string                 `json:"orderNotes"`
}

func (h *OrderHandler) Create(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("order.create", "malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return respondError(c, domain.Invalid("order.create", "invalid userId"))
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for i := range req.Items {
		item, err := req.Items[i].toDomain()
		if err != nil {
			return respondError(c, err)
		}
		items = append(items, item)
	}

	order, err := h.orders.CreateOrder(c.Request().Context(), service.CreateOrderParams{
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
		PaymentMethod:   req.PaymentMethod,
		ShippingMethod:  req.ShippingMethod,
		ShippingPrice:   req.ShippingPrice,
		DiscountCode:    req.DiscountCode,
		OrderNotes:      req.OrderNotes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

type updateOrderRequest struct {
	Items           []orderItemRequest      `json:"items" validate:"omitempty,min=1,dive"`
	ShippingAddress *domain.ShippingAddress `json:"shippingAddress"`
	PhoneNumber     *string                 `json:"phoneNumber"`
	OrderStatus     *string                 `json:"orderStatus"`
	PaymentMethod   *string                 `json:"paymentMethod"`
	ShippingMethod  *string                 `json:"shippingMethod"`
	ShippingPrice   *float64                `json:"shippingPrice" validate:"omitempty,gte=0"`
	DiscountCode    *string                 `json:"discountCode"`
	OrderNotes      *string                 `json:"orderNotes"`
}

func (h *OrderHandler) Update(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.update", "invalid order id"))
	}

	var req updateOrderRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("order.update", "malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	params := service.UpdateOrderParams{
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
		PaymentMethod:   req.PaymentMethod,
		ShippingMethod:  req.ShippingMethod,
		ShippingPrice:   req.ShippingPrice,
		DiscountCode:    req.DiscountCode,
		OrderNotes:      req.OrderNotes,
	}
	if req.OrderStatus != nil {
		status := domain.OrderStatus(*req.OrderStatus)
		params.OrderStatus = &status
	}
	if req.Items != nil {
		items := make([]domain.OrderItem, 0, len(req.Items))
		for i := range req.Items {
			item, err := req.Items[i].toDomain()
			if err != nil {
				return respondError(c, err)
			}
			items = append(items, item)
		}
		params.Items = items
	}

	order, err := h.orders.UpdateOrder(c.Request().Context(), id, params)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Get(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.get", "invalid order id"))
	}

	order, err := h.orders.GetOrder(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetByOrderID(c echo.Context) error {
	order, err := h.orders.GetOrderByOrderID(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) List(c echo.Context) error {
	filter := domain.OrderFilter{
		PaymentMethod:  c.QueryParam("paymentMethod"),
		PaymentStatus:  domain.PaymentStatus(c.QueryParam("paymentStatus")),
		OrderStatus:    domain.OrderStatus(c.QueryParam("orderStatus")),
		ShippingMethod: c.QueryParam("shippingMethod"),
		SortBy:         c.QueryParam("sortBy"),
	}

	orders, err := h.orders.ListOrders(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListByUser(c echo.Context) error {
	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		return respondError(c, domain.Invalid("order.list", "invalid user id"))
	}

	orders, err := h.orders.ListOrdersByUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListByProduct(c echo.Context) error {
	productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
	if err != nil {
		return respondError(c, domain.Invalid("order.list", "invalid product id"))
	}

	orders, err := h.orders.ListOrdersByProduct(c.Request().Context(), productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) TopByItems(c echo.Context) error {
	orders, err := h.orders.TopOrdersByTotalItems(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) TopByPrice(c echo.Context) error {
	orders, err := h.orders.TopOrdersByFinalPrice(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.cancel", "invalid order id"))
	}

	order, err := h.orders.CancelOrder(c.Request().Context(), id, c.QueryParam("cancellationReason"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Delete(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.delete", "invalid order id"))
	}

	order, err := h.orders.DeleteOrder(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

type returnReasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *OrderHandler) RequestReturn(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.request_return", "invalid order id"))
	}

	var req returnReasonRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("order.request_return", "malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, err := h.orders.RequestReturn(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CompleteReturn(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.complete_return", "invalid order id"))
	}

	order, err := h.orders.CompleteReturn(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) RejectReturn(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("order.reject_return", "invalid order id"))
	}

	var req returnReasonRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("order.reject_return", "malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, err := h.orders.RejectReturn(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

type paymentURLResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

// PaymentURL builds the signed gateway redirect URL for an order's final
// price.
func (h *OrderHandler) PaymentURL(c echo.Context) error {
	order, err := h.orders.GetOrderByOrderID(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return respondError(c, err)
	}

	url, err := h.gateway.PaymentURL(order.OrderID, order.FinalPrice, c.RealIP())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, paymentURLResponse{PaymentURL: url})
}

// PaymentReturn consumes the gateway's asynchronous callback.
func (h *OrderHandler) PaymentReturn(c echo.Context) error {
	txnRef := c.QueryParam("vnp_TxnRef")
	responseCode := c.QueryParam("vnp_ResponseCode")
	txnStatus := c.QueryParam("vnp_TransactionStatus")
	if txnRef == "" || responseCode == "" {
		return respondError(c, domain.Invalid("payment.callback", "missing callback parameters"))
	}

	order, err := h.orders.ApplyPaymentCallback(c.Request().Context(), txnRef, responseCode, txnStatus)
	if err != nil {
		return respondError(c, err)
	}

	h.logger.Info().
		Str("order_id", order.OrderID).
		Str("payment_status", string(order.PaymentStatus)).
		Msg("payment callback applied")

	return c.JSON(http.StatusOK, order)
}
