package redisx

import "time"

const (
	// Cached order status: order_status:{order_id} -> orders.StatusPayload JSON
	KeyOrderStatus = "order_status:%s"

	// Daily order number sequence: order_seq:{yyyymmdd} -> counter
	KeyOrderSequence = "order_seq:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLSequence    = 48 * time.Hour
	TTLDedup       = 48 * time.Hour
)
