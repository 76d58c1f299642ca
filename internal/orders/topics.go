package orders

import "strconv"

const (
	TopicOrderCreated     = "order.created"
	TopicPaymentCompleted = "order.payment.completed"
	TopicPaymentFailed    = "order.payment.failed"
	TopicReviewReceived   = "order.review.received"
)

// Partition key = order id so every event for one order keeps its ordering.
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}
