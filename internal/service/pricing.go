package service

import (
	"github.com/pttech/commerce/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ComputeTotals derives the order's aggregate price figures from its line
// items: totalPrice is the sum of quantity x discount price, totalItems is
// the number of distinct variant ids (not summed quantity).
func ComputeTotals(items []domain.OrderItem) (totalPrice float64, totalItems int) {
	variants := make(map[primitive.ObjectID]struct{}, len(items))
	for _, item := range items {
		totalPrice += item.DiscountPrice * float64(item.Quantity)
		variants[item.VariantID] = struct{}{}
	}
	return totalPrice, len(variants)
}

// DiscountAmount computes the amount a discount code takes off an order with
// the given totalPrice. It is pure: no usage state is consulted or mutated.
// A nil code, or a totalPrice below the code's minimum purchase amount,
// yields zero. The amount is capped at totalPrice so an order can never go
// negative.
func DiscountAmount(code *domain.DiscountCode, totalPrice float64) float64 {
	if code == nil {
		return 0
	}

	if code.MinimumPurchaseAmount != nil && totalPrice < *code.MinimumPurchaseAmount {
		return 0
	}

	var amount float64
	switch code.DiscountType {
	case domain.DiscountPercentage:
		amount = totalPrice * code.DiscountValue / 100
	case domain.DiscountFixed:
		amount = code.DiscountValue
	}

	if amount > totalPrice {
		amount = totalPrice
	}
	return amount
}

// FinalPrice recomputes the order's payable amount from its inputs. It is
// the single source of truth for the finalPrice invariant.
func FinalPrice(totalPrice, discountAmount, shippingPrice float64) float64 {
	return totalPrice - discountAmount + shippingPrice
}
