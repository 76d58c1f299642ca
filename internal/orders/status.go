package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// failed and cancelled are absorbing; refunds are only possible once money has
// moved.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
	StatusProcessing: {StatusCompleted: true, StatusDelivered: true, StatusCancelled: true, StatusRefunded: true},
	StatusCompleted:  {StatusDelivered: true, StatusCancelled: true, StatusRefunded: true},
	StatusDelivered:  {StatusRefunded: true},
	StatusCancelled:  {},
	StatusRefunded:   {},
	StatusFailed:     {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Emoji() string {
	switch s {
	case StatusPending:
		return "⏳"
	case StatusProcessing:
		return "🔄"
	case StatusCompleted:
		return "✅"
	case StatusDelivered:
		return "🚚"
	case StatusCancelled, StatusFailed:
		return "❌"
	case StatusRefunded:
		return "💰"
	}
	return "📋"
}
