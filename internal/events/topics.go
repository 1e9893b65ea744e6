package events

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status.changed"
	TopicCatalogDeactivated = "catalog.deactivated"
)

// Partition key = aggregate id, so all events of one order keep their order.
func PartitionKey(id string) []byte { return []byte(id) }
