package backend

// Order is the summary of the most recent pending order.
type Order struct {
	ID           int64  `json:"id"`
	CustomerName string `json:"customerName"`
	PackageName  string `json:"packageName"`
}

// PendingOrdersSnapshot is the polled pending-orders summary. Snapshots are
// compared only by LatestOrder.ID; the backend does not expose a queue of
// intermediate orders.
type PendingOrdersSnapshot struct {
	Count       int    `json:"count"`
	LatestOrder *Order `json:"latestOrder"`
}

// pushKeyResponse is the push-public-key payload. The key may be absent.
type pushKeyResponse struct {
	PublicKey string `json:"publicKey"`
}
