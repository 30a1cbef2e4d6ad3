package transaction

import (
	"strings"
	"time"
)

// Statuses shared by the two hops and the overall state. Hop 1 (payer to
// custody) is recorded once at intake; hop 2 (custody to merchant or back to
// the payer) starts pending and transitions exactly once.
const (
	StatusPending  = "pending"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusRefunded = "refunded"
)

// Transaction is the durable record of one mediated payment and its two-hop
// settlement state. Customer fields are denormalized at intake time so the
// record stays useful for dispute resolution even if the source account
// changes later.
type Transaction struct {
	ID                string `json:"id"`
	IntegrationCode   string `json:"integration_code"`
	SettlementGroupID string `json:"settlement_group_id,omitempty"`

	FromAccount  string `json:"from_account"`
	ToAccount    string `json:"to_account"`
	AdminAccount string `json:"admin_account"`

	OriginalAmount   int64 `json:"original_amount"`
	Commission       int64 `json:"commission"`
	AmountToMerchant int64 `json:"amount_to_merchant"`

	PayeeToAdminStatus      string    `json:"payee_to_admin_status"`
	PayeeToAdminDescription string    `json:"payee_to_admin_description"`
	PayeeToAdminTime        time.Time `json:"payee_to_admin_time"`
	PayeeToAdminReference   string    `json:"payee_to_admin_reference,omitempty"`

	AdminToMerchantStatus      string     `json:"admin_to_merchant_status"`
	AdminToMerchantDescription string     `json:"admin_to_merchant_description"`
	AdminToMerchantTime        *time.Time `json:"admin_to_merchant_time,omitempty"`
	AdminToMerchantReference   string     `json:"admin_to_merchant_reference,omitempty"`

	OverallStatus string `json:"overall_status"`

	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerBank  string `json:"customer_bank"`

	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// ReceiptReference derives the short user-facing receipt code from a
// transaction id: the first eight hex characters, uppercased.
func ReceiptReference(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return strings.ToUpper(compact)
}
