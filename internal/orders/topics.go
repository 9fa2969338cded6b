package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicOrderCancelled     = "order.cancelled"
)

// Topics lists every topic the projector subscribes to.
var Topics = []string{TopicOrderCreated, TopicOrderStatusChanged, TopicOrderCancelled}

// Partition key = order id so all events of one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
