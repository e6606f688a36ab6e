package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopicTransactionCompleted is the topic transaction events are published to.
const TopicTransactionCompleted = "transaction_completed"

type TransactionCompleted struct {
	TransactionID        string          `json:"transaction_id"`
	Type                 string          `json:"type"`
	SourceAccountID      string          `json:"source_account_id,omitempty"`
	DestinationAccountID string          `json:"destination_account_id,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	OccurredAt           time.Time       `json:"occurred_at"`
}
