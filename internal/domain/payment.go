package domain

import "time"

// PaymentRecord is one row of a user's payment history, as seen through a
// one-hop traversal User -> Transaction -> User.
type PaymentRecord struct {
	TransactionID   string
	SenderHandle    string
	RecipientHandle string
	Amount          float64
	Description     string
	Timestamp       time.Time
	Status          string
}

// Path entry types. A projected path alternates user and transaction
// entries; relationship markers are dropped from the final shape.
const (
	EntryTypeUser        = "User"
	EntryTypeTransaction = "Transaction"
)

// PathEntry is one element of a projected payment path. User entries carry
// only the handle; transaction entries carry the payment summary.
type PathEntry struct {
	Type          string
	Handle        string
	TransactionID string
	Amount        float64
	Description   string
	Timestamp     time.Time
}

// PaymentPath is an ordered chain of payment steps connecting two users.
// Steps counts logical payments: each step is the two-edge pattern
// sender -> Transaction -> recipient.
type PaymentPath struct {
	Steps   int
	Entries []PathEntry
}
