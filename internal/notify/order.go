package notify

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pttech/commerce/internal/domain"
)

// EmailResolver maps a user id to their address. The order document only
// carries the user id; the users collection is owned elsewhere.
type EmailResolver func(ctx context.Context, userID primitive.ObjectID) (string, error)

// OrderNotifier implements domain.Notifier on top of a Sender.
type OrderNotifier struct {
	sender  Sender
	resolve EmailResolver
	from    string
}

var _ domain.Notifier = (*OrderNotifier)(nil)

// NewOrderNotifier creates the order notification dispatcher.
func NewOrderNotifier(sender Sender, resolve EmailResolver, from string) *OrderNotifier {
	return &OrderNotifier{sender: sender, resolve: resolve, from: from}
}

func (n *OrderNotifier) OrderPlaced(ctx context.Context, order *domain.Order) error {
	return n.send(ctx, order,
		fmt.Sprintf("Thank you for your order %s", order.OrderID),
		fmt.Sprintf(
			"Thank you for shopping with us!\n\nOrder %s has been received and is awaiting confirmation.\nTotal: %.2f\n",
			order.OrderID, order.FinalPrice,
		),
	)
}

func (n *OrderNotifier) ReturnCompleted(ctx context.Context, order *domain.Order) error {
	return n.send(ctx, order,
		fmt.Sprintf("Return completed for order %s", order.OrderID),
		fmt.Sprintf("Your return for order %s has been processed.\n", order.OrderID),
	)
}

func (n *OrderNotifier) ReturnRejected(ctx context.Context, order *domain.Order) error {
	return n.send(ctx, order,
		fmt.Sprintf("Return request for order %s was declined", order.OrderID),
		fmt.Sprintf(
			"Your return request for order %s was declined.\nReason: %s\n",
			order.OrderID, order.ReturnRejectionReason,
		),
	)
}

func (n *OrderNotifier) send(ctx context.Context, order *domain.Order, subject, body string) error {
	to, err := n.resolve(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	return n.sender.Send(ctx, &Message{
		To:       []string{to},
		From:     n.from,
		Subject:  subject,
		TextBody: body,
	})
}
