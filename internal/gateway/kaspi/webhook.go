package kaspi

import "encoding/json"

// WebhookPayload is the body Kaspi posts on a status change.
type WebhookPayload struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	PaymentID string `json:"paymentId,omitempty"`
	Amount    *int64 `json:"amount,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// SignedMessage is the canonical byte form signed when the signature travels
// inside the body: the payload without its signature, fields in declaration
// order.
func (p WebhookPayload) SignedMessage() []byte {
	p.Signature = ""
	b, _ := json.Marshal(p)
	return b
}
