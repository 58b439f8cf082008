package payment

import "github.com/pttech/commerce/internal/domain"

// ErrUnrecognizedCallback is returned for response codes outside the mapped
// set; the order must not be mutated in that case.
var ErrUnrecognizedCallback = &domain.Error{
	Code:    domain.EEXTERNAL,
	Message: "Unrecognized payment gateway response",
}

// StatusForCallback maps a gateway callback's response code and transaction
// status pair to the payment status it implies. Success requires both fields
// to be "00"; unmapped pairs fail so the caller leaves the order untouched.
func StatusForCallback(responseCode, txnStatus string) (domain.PaymentStatus, error) {
	switch responseCode {
	case "00":
		if txnStatus == "00" {
			return domain.PaymentPaid, nil
		}
		return "", ErrUnrecognizedCallback
	case "07":
		return domain.PaymentSuspectedFraud, nil
	case "24":
		return domain.PaymentCustomerCancelled, nil
	default:
		return "", ErrUnrecognizedCallback
	}
}
