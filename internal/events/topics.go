package events

// Topic constants for domain events emitted by the settlement core.
const (
	TopicSaleCreated = "sale.created"
	TopicStockLow    = "stock.low"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicSaleCreated,
		TopicStockLow,
	}
}
