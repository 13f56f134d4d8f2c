package domain

import "time"

// StatusCompleted is the only status this engine ever writes. Failed
// transfer attempts never produce a transaction vertex.
const StatusCompleted = "completed"

// Transaction models a completed transfer vertex in the graph. Once created
// it is immutable.
type Transaction struct {
	ID          string
	Amount      float64
	Description string
	Timestamp   time.Time
	Status      string
}
