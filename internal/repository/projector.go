package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/priyal/paygraph/internal/domain"
	"github.com/priyal/paygraph/internal/graph"
)

// errMalformedPath marks traversal results whose vertex/edge shapes do not
// match the payment-step pattern. Callers surface it as a store failure
// rather than coerce a broken path into a result.
var errMalformedPath = errors.New("malformed path record")

func userFromRecord(rec graph.Record) (domain.User, error) {
	id := toString(rec["userId"])
	if id == "" {
		return domain.User{}, fmt.Errorf("user record missing userId: %w", errMalformedPath)
	}
	return domain.User{
		ID:         id,
		Handle:     toString(rec["handle"]),
		Balance:    toFloat64(rec["balance"]),
		ProfileRef: toString(rec["profileRef"]),
	}, nil
}

func transactionFromRecord(rec graph.Record) (domain.Transaction, error) {
	id := toString(rec["transactionId"])
	if id == "" {
		return domain.Transaction{}, fmt.Errorf("transaction record missing transactionId: %w", errMalformedPath)
	}
	tx := domain.Transaction{
		ID:          id,
		Amount:      toFloat64(rec["amount"]),
		Description: toString(rec["description"]),
		Status:      toString(rec["status"]),
	}
	if ts := toTimePtr(rec["timestamp"]); ts != nil {
		tx.Timestamp = *ts
	}
	return tx, nil
}

func paymentRecordFromRecord(rec graph.Record) (domain.PaymentRecord, error) {
	id := toString(rec["transactionId"])
	if id == "" {
		return domain.PaymentRecord{}, fmt.Errorf("payment record missing transactionId: %w", errMalformedPath)
	}
	row := domain.PaymentRecord{
		TransactionID:   id,
		SenderHandle:    toString(rec["senderHandle"]),
		RecipientHandle: toString(rec["recipientHandle"]),
		Amount:          toFloat64(rec["amount"]),
		Description:     toString(rec["description"]),
		Status:          toString(rec["status"]),
	}
	if ts := toTimePtr(rec["timestamp"]); ts != nil {
		row.Timestamp = *ts
	}
	return row, nil
}

// projectPathRecord converts one raw path row into a PaymentPath. The node
// sequence must alternate User and Transaction vertices and the
// relationship types must alternate INITIATED_PAYMENT / FOR_RECIPIENT;
// the markers are validated here and then dropped from the final shape.
func projectPathRecord(rec graph.Record) (domain.PaymentPath, error) {
	nodesRaw, ok := rec["pathNodes"].([]any)
	if !ok {
		return domain.PaymentPath{}, fmt.Errorf("pathNodes is %T: %w", rec["pathNodes"], errMalformedPath)
	}
	relsRaw, ok := rec["relTypes"].([]any)
	if !ok {
		return domain.PaymentPath{}, fmt.Errorf("relTypes is %T: %w", rec["relTypes"], errMalformedPath)
	}
	steps := toInt(rec["numSteps"])

	if len(nodesRaw) != 2*steps+1 || len(relsRaw) != 2*steps {
		return domain.PaymentPath{}, fmt.Errorf("path of %d steps has %d nodes and %d relationships: %w",
			steps, len(nodesRaw), len(relsRaw), errMalformedPath)
	}

	for i, rel := range relsRaw {
		want := "INITIATED_PAYMENT"
		if i%2 == 1 {
			want = "FOR_RECIPIENT"
		}
		if toString(rel) != want {
			return domain.PaymentPath{}, fmt.Errorf("relationship %d is %v, want %s: %w", i, rel, want, errMalformedPath)
		}
	}

	entries := make([]domain.PathEntry, 0, len(nodesRaw))
	for i, raw := range nodesRaw {
		node, ok := asNode(raw)
		if !ok {
			return domain.PaymentPath{}, fmt.Errorf("path node %d is %T: %w", i, raw, errMalformedPath)
		}
		if i%2 == 0 {
			if !hasLabel(node, "User") {
				return domain.PaymentPath{}, fmt.Errorf("path node %d labels %v, want User: %w", i, node.Labels, errMalformedPath)
			}
			entries = append(entries, domain.PathEntry{
				Type:   domain.EntryTypeUser,
				Handle: toString(node.Props["handle"]),
			})
			continue
		}
		if !hasLabel(node, "Transaction") {
			return domain.PaymentPath{}, fmt.Errorf("path node %d labels %v, want Transaction: %w", i, node.Labels, errMalformedPath)
		}
		entry := domain.PathEntry{
			Type:          domain.EntryTypeTransaction,
			TransactionID: toString(node.Props["transactionId"]),
			Amount:        toFloat64(node.Props["amount"]),
			Description:   toString(node.Props["description"]),
		}
		if ts := toTimePtr(node.Props["timestamp"]); ts != nil {
			entry.Timestamp = *ts
		}
		entries = append(entries, entry)
	}

	return domain.PaymentPath{Steps: steps, Entries: entries}, nil
}

func asNode(val any) (dbtype.Node, bool) {
	switch v := val.(type) {
	case dbtype.Node:
		return v, true
	case *dbtype.Node:
		if v != nil {
			return *v, true
		}
	}
	return dbtype.Node{}, false
}

func hasLabel(node dbtype.Node, label string) bool {
	for _, l := range node.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func toInt(val any) int {
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func toTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case dbtype.LocalDateTime:
		t := v.Time()
		return &t
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return &parsed
		}
	}
	return nil
}
