package notify

import "time"

// Category separates content alerts from operational notices so the
// unreachable channel can be reasoned about independently.
type Category string

const (
	CategoryAlert       Category = "alert"
	CategoryUnreachable Category = "unreachable"
	CategoryStatus      Category = "status"
)

// Message is one notification awaiting delivery.
type Message struct {
	Category  Category
	TargetKey string
	Text      string
	CreatedAt time.Time
}
