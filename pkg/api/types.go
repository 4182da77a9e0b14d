package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// OrderSummary is the listing view of a stored debt order.
type OrderSummary struct {
	CommitmentHash  string `json:"commitmentHash"`
	Debtor          string `json:"debtor"`
	Creditor        string `json:"creditor,omitempty"`
	PrincipalAmount string `json:"principalAmount"`
	PrincipalToken  string `json:"principalToken"`
	Variant         string `json:"variant"`
	Status          string `json:"status"` // local view: "draft" | "debtor-committed"
	ExpiresAt       int64  `json:"expirationTimestampInSec"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	Status         string `json:"status"` // "accepted", "rejected"
	CommitmentHash string `json:"commitmentHash"`
	Message        string `json:"message,omitempty"` // Error message if rejected
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orders", "orders:0x..."]
}

// OrderUpdate is broadcast when an order lands at or leaves the relayer.
type OrderUpdate struct {
	Type           string `json:"type"` // "order"
	Event          string `json:"event"` // "submitted" | "deleted"
	CommitmentHash string `json:"commitmentHash"`
	Debtor         string `json:"debtor"`
	Timestamp      int64  `json:"timestamp"` // Unix milliseconds
}
