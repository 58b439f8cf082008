package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderAwaitingConfirmation OrderStatus = "awaiting-confirmation"
	OrderReadyForPickup       OrderStatus = "ready-for-pickup"
	OrderShipping             OrderStatus = "shipping"
	OrderDelivered            OrderStatus = "delivered"
	OrderReceived             OrderStatus = "received"
	OrderCancelled            OrderStatus = "cancelled"
	OrderReturnRequested      OrderStatus = "return-requested"
	OrderReturnCompleted      OrderStatus = "return-completed"
	OrderReturnRejected       OrderStatus = "return-rejected"
)

// PaymentStatus tracks the payment side of an order, driven by gateway callbacks.
type PaymentStatus string

const (
	PaymentUnpaid            PaymentStatus = "unpaid"
	PaymentPaid              PaymentStatus = "paid"
	PaymentSuspectedFraud    PaymentStatus = "suspected-fraud"
	PaymentCustomerCancelled PaymentStatus = "customer-cancelled"
)

// Order-related domain errors.
var (
	ErrOrderNotFound       = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrOrderNotCancellable = &Error{Code: ECONFLICT, Message: "Only orders awaiting confirmation can be cancelled"}
	ErrOrderCancelled      = &Error{Code: ECONFLICT, Message: "Order has already been cancelled"}
	ErrTerminalStatus      = &Error{Code: ECONFLICT, Message: "Order status cannot be changed once delivered or received"}
	ErrNoReturnRequested   = &Error{Code: ECONFLICT, Message: "Order has no pending return request"}
	ErrEmptyItems          = &Error{Code: EINVALID, Message: "Order must contain at least one item"}
	ErrInsufficientStock   = &Error{Code: ECONFLICT, Message: "Insufficient stock for one or more items"}
)

// OrderItem is a snapshot of a product variant at order time; descriptive
// fields are captured here and never re-joined against the live catalog.
type OrderItem struct {
	ProductID     primitive.ObjectID `bson:"productId" json:"productId"`
	VariantID     primitive.ObjectID `bson:"variantId" json:"variantId"`
	BrandID       primitive.ObjectID `bson:"brandId,omitempty" json:"brandId,omitempty"`
	CategoryID    primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Quantity      int                `bson:"quantity" json:"quantity"`
	OriginalPrice float64            `bson:"originalPrice" json:"originalPrice"`
	DiscountPrice float64            `bson:"discountPrice" json:"discountPrice"`
	TotalPrice    float64            `bson:"totalPrice" json:"totalPrice"`
	ProductName   string             `bson:"productName" json:"productName"`
	Color         string             `bson:"color,omitempty" json:"color,omitempty"`
	HexCode       string             `bson:"hexCode,omitempty" json:"hexCode,omitempty"`
	Size          string             `bson:"size,omitempty" json:"size,omitempty"`
	RAM           string             `bson:"ram,omitempty" json:"ram,omitempty"`
	Storage       string             `bson:"storage,omitempty" json:"storage,omitempty"`
	Condition     string             `bson:"condition,omitempty" json:"condition,omitempty"`
	ProductImage  string             `bson:"productImage,omitempty" json:"productImage,omitempty"`
}

// ShippingAddress is embedded in the order document.
type ShippingAddress struct {
	Street   string `bson:"street" json:"street"`
	Communes string `bson:"communes,omitempty" json:"communes,omitempty"`
	District string `bson:"district,omitempty" json:"district,omitempty"`
	City     string `bson:"city" json:"city"`
	Country  string `bson:"country" json:"country"`
}

// Order is one document in the orders collection. Orders are never hard
// deleted; cancellation and deletion set IsDeleted after reversing stock.
type Order struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID               string             `bson:"orderId" json:"orderId"`
	UserID                primitive.ObjectID `bson:"userId" json:"userId"`
	Items                 []OrderItem        `bson:"items" json:"items"`
	TotalItems            int                `bson:"totalItems" json:"totalItems"`
	TotalPrice            float64            `bson:"totalPrice" json:"totalPrice"`
	ShippingPrice         float64            `bson:"shippingPrice" json:"shippingPrice"`
	DiscountCode          string             `bson:"discountCode,omitempty" json:"discountCode,omitempty"`
	DiscountAmount        float64            `bson:"discountAmount" json:"discountAmount"`
	FinalPrice            float64            `bson:"finalPrice" json:"finalPrice"`
	PhoneNumber           string             `bson:"phoneNumber" json:"phoneNumber"`
	ShippingAddress       ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod         string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus         PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus           OrderStatus        `bson:"orderStatus" json:"orderStatus"`
	ShippingMethod        string             `bson:"shippingMethod" json:"shippingMethod"`
	OrderNotes            string             `bson:"orderNotes,omitempty" json:"orderNotes,omitempty"`
	IsDeleted             bool               `bson:"isDeleted" json:"isDeleted"`
	CancellationReason    string             `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	ReturnReason          string             `bson:"returnReason,omitempty" json:"returnReason,omitempty"`
	ReturnRejectionReason string             `bson:"returnRejectionReason,omitempty" json:"returnRejectionReason,omitempty"`
	CreatedAt             time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// OrderFilter narrows ListOrders; zero-value fields are ignored.
type OrderFilter struct {
	PaymentMethod  string
	PaymentStatus  PaymentStatus
	OrderStatus    OrderStatus
	ShippingMethod string

	// SortBy is "latest" (default) or "oldest" by creation time.
	SortBy string
}

// OrderRepository persists orders. Implementations live in internal/store.
type OrderRepository interface {
	// Insert persists a new order and fills in its document ID.
	Insert(ctx context.Context, order *Order) error

	// FindByID returns a non-deleted order by document ID.
	FindByID(ctx context.Context, id primitive.ObjectID) (*Order, error)

	// FindByOrderID returns a non-deleted order by its external order code.
	FindByOrderID(ctx context.Context, orderID string) (*Order, error)

	// Update replaces the mutable fields of an existing order document.
	Update(ctx context.Context, order *Order) error

	// SetPaymentStatus overwrites paymentStatus for the order matching the
	// external order code. Touches no other field.
	SetPaymentStatus(ctx context.Context, orderID string, status PaymentStatus) error

	// List returns non-deleted orders matching the filter.
	List(ctx context.Context, filter OrderFilter) ([]Order, error)

	// ListByUser returns a user's non-deleted orders.
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]Order, error)

	// ListByProduct returns non-deleted orders containing the product.
	ListByProduct(ctx context.Context, productID primitive.ObjectID) ([]Order, error)

	// TopByTotalItems and TopByFinalPrice back the storefront statistics pages.
	TopByTotalItems(ctx context.Context, limit int) ([]Order, error)
	TopByFinalPrice(ctx context.Context, limit int) ([]Order, error)

	// MarkStalledReadyForPickup transitions every order that has sat in
	// awaiting-confirmation since before the cutoff to ready-for-pickup,
	// in a single bounded conditional update. Returns the number moved.
	MarkStalledReadyForPickup(ctx context.Context, cutoff time.Time) (int64, error)
}
