package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pttech/commerce/internal/domain"
)

// vnpay request parameter names.
const (
	paramVersion    = "vnp_Version"
	paramCommand    = "vnp_Command"
	paramTmnCode    = "vnp_TmnCode"
	paramAmount     = "vnp_Amount"
	paramCurrCode   = "vnp_CurrCode"
	paramTxnRef     = "vnp_TxnRef"
	paramOrderInfo  = "vnp_OrderInfo"
	paramOrderType  = "vnp_OrderType"
	paramLocale     = "vnp_Locale"
	paramReturnURL  = "vnp_ReturnUrl"
	paramIPAddr     = "vnp_IpAddr"
	paramCreateDate = "vnp_CreateDate"
	paramExpireDate = "vnp_ExpireDate"
	paramSecureHash = "vnp_SecureHash"
)

const (
	apiVersion    = "2.1.0"
	commandPay    = "pay"
	currencyVND   = "VND"
	orderTypeGood = "other"
	localeDefault = "vn"

	// linkExpiry is how long a generated payment URL stays valid.
	linkExpiry = 15 * time.Minute

	// dateLayout is the gateway's timestamp format, always in GMT+7.
	dateLayout = "20060102150405"
)

// gatewayZone is the fixed offset the gateway expects regardless of where
// the server runs.
var gatewayZone = time.FixedZone("GMT+7", 7*60*60)

// Config carries the merchant credentials and endpoints for the gateway.
type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// Gateway builds signed payment URLs and verifies callback signatures for
// the hosted payment page.
type Gateway struct {
	cfg Config
	now func() time.Time
}

// NewGateway creates a payment gateway codec from merchant credentials.
func NewGateway(cfg Config) *Gateway {
	return &Gateway{cfg: cfg, now: time.Now}
}

// PaymentURL builds the signed redirect URL for an order. Amount is the
// order's final price in VND; the gateway wire format carries it multiplied
// by 100 with no decimal part.
func (g *Gateway) PaymentURL(orderID string, amount float64, clientIP string) (string, error) {
	if orderID == "" {
		return "", domain.Invalid("payment.url", "order id is required")
	}
	if amount <= 0 {
		return "", domain.Invalid("payment.url", "amount must be positive")
	}

	now := g.now().In(gatewayZone)

	params := map[string]string{
		paramVersion:    apiVersion,
		paramCommand:    commandPay,
		paramTmnCode:    g.cfg.TmnCode,
		paramAmount:     fmt.Sprintf("%d", int64(amount*100)),
		paramCurrCode:   currencyVND,
		paramTxnRef:     orderID,
		paramOrderInfo:  "Thanh toan don hang: " + orderID,
		paramOrderType:  orderTypeGood,
		paramLocale:     localeDefault,
		paramReturnURL:  g.cfg.ReturnURL,
		paramIPAddr:     clientIP,
		paramCreateDate: now.Format(dateLayout),
		paramExpireDate: now.Add(linkExpiry).Format(dateLayout),
	}

	hashData, query := canonicalPairs(params)
	signed := query + "&" + paramSecureHash + "=" + g.sign(hashData)

	return g.cfg.PayURL + "?" + signed, nil
}

// VerifyCallback checks the signature on a set of callback parameters. The
// secure hash parameter itself is excluded from the signed payload.
func (g *Gateway) VerifyCallback(params map[string]string) bool {
	received, ok := params[paramSecureHash]
	if !ok || received == "" {
		return false
	}

	unsigned := make(map[string]string, len(params))
	for k, v := range params {
		if k == paramSecureHash || k == "vnp_SecureHashType" {
			continue
		}
		unsigned[k] = v
	}

	hashData, _ := canonicalPairs(unsigned)
	expected := g.sign(hashData)
	return hmac.Equal([]byte(strings.ToUpper(received)), []byte(expected))
}

// canonicalPairs renders params twice with keys sorted lexicographically:
// the hash payload carries raw keys with URL-encoded values, while the query
// string encodes both. The gateway signs the former and receives the latter.
// Empty values are skipped from both.
func canonicalPairs(params map[string]string) (hashData, query string) {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var h, q strings.Builder
	for i, k := range keys {
		if i > 0 {
			h.WriteByte('&')
			q.WriteByte('&')
		}
		v := url.QueryEscape(params[k])
		h.WriteString(k)
		h.WriteByte('=')
		h.WriteString(v)
		q.WriteString(url.QueryEscape(k))
		q.WriteByte('=')
		q.WriteString(v)
	}
	return h.String(), q.String()
}

// sign computes the HMAC-SHA512 of the payload with the merchant secret,
// rendered as uppercase hex.
func (g *Gateway) sign(payload string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(payload))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
