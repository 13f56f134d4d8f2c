package domain

// User aggregates the canonical user vertex data. The balance is the only
// field this core mutates, and only inside a transfer write transaction.
// Profile metadata lives in an external record store keyed by ProfileRef.
type User struct {
	ID         string
	Handle     string
	Balance    float64
	ProfileRef string
}
