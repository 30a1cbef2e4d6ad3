package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/notification"
	"github.com/bridge-pay/bridge_pay/internal/transaction"
)

var (
	// ErrAlreadySettled indicates the transaction was already released to the
	// merchant; the retry must not move money again.
	ErrAlreadySettled = errors.New("transaction already settled")

	// ErrAlreadyRejected indicates the transaction was already rejected and
	// refunded (or failed at intake) and cannot be settled.
	ErrAlreadyRejected = errors.New("transaction already rejected")

	// ErrInsufficientCustodyFunds indicates the custody account cannot cover
	// the movement. The transaction stays pending; an operator tops up custody
	// and retries.
	ErrInsufficientCustodyFunds = errors.New("insufficient custody balance")

	// ErrCustodyAccountMissing is a fatal configuration error: the custody
	// account recorded on the transaction is absent from the ledger.
	ErrCustodyAccountMissing = errors.New("custody account missing")

	// ErrDownstreamTransfer indicates the ledger call failed without a
	// business-rule reason. Local state is unchanged; the same transaction id
	// is reused as the idempotency key on retry, so a transfer that did land
	// is detected as a replay rather than applied twice.
	ErrDownstreamTransfer = errors.New("downstream transfer failed")
)

// Engine executes hop 2: releasing custody funds to the merchant on approval,
// or refunding the payer on rejection. Each transaction settles exactly once:
// both movements share one release key, so the ledger admits a single
// custody-out transfer per transaction regardless of which operation races
// ahead, and the record flip is a compare-and-set on the pending status.
type Engine struct {
	ledger       ledger.Ledger
	transactions transaction.Repository
	notifier     notification.Notifier
	logger       *slog.Logger
}

// NewEngine constructs a settlement engine.
func NewEngine(ledgerBackend ledger.Ledger, transactions transaction.Repository, notifier notification.Notifier, logger *slog.Logger) *Engine {
	return &Engine{ledger: ledgerBackend, transactions: transactions, notifier: notifier, logger: logger}
}

// BatchResult reports the outcome of a settle-all run.
type BatchResult struct {
	SettlementGroupID string
	Attempted         int
	Settled           int
}

// Summary aggregates transaction totals for reporting.
type Summary struct {
	TotalReceived        int64 `json:"total_received"`
	TotalCommission      int64 `json:"total_commission"`
	TotalPaidToMerchants int64 `json:"total_paid_to_merchants"`
	TotalTransactions    int   `json:"total_transactions"`
	PendingCount         int   `json:"pending_count"`
	SuccessCount         int   `json:"success_count"`
	FailedCount          int   `json:"failed_count"`
}

// Approve releases amountToMerchant from custody to the merchant account and
// marks the transaction settled. groupID tags the record when the approval is
// part of a batch; pass empty for a single approval.
func (e *Engine) Approve(ctx context.Context, id, groupID string) (transaction.Transaction, error) {
	txn, err := e.transactions.Get(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	switch txn.OverallStatus {
	case transaction.StatusSuccess:
		return txn, ErrAlreadySettled
	case transaction.StatusFailed:
		return txn, ErrAlreadyRejected
	}

	if _, err := e.ledger.Account(ctx, txn.AdminAccount); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return txn, ErrCustodyAccountMissing
		}
		return txn, err
	}
	if _, err := e.ledger.Account(ctx, txn.ToAccount); err != nil {
		return txn, fmt.Errorf("merchant account %s: %w", txn.ToAccount, err)
	}

	reference, err := e.moveFunds(ctx, txn.AdminAccount, txn.ToAccount, ledger.KindSettlement, txn.ID, txn.AmountToMerchant)
	if err != nil {
		if errors.Is(err, ledger.ErrConflictingTransfer) {
			// A refund already left custody for this transaction; the rejection
			// that issued it owns the record flip.
			return txn, ErrAlreadyRejected
		}
		return txn, err
	}

	settled, err := e.transactions.Settle(ctx, txn.ID, transaction.SettlementOutcome{
		AdminToMerchantStatus:      transaction.StatusSuccess,
		AdminToMerchantDescription: "Released to merchant",
		AdminToMerchantReference:   reference,
		OverallStatus:              transaction.StatusSuccess,
		SettlementGroupID:          groupID,
		SettledAt:                  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, transaction.ErrSettled) {
			// A concurrent approval won the compare-and-set. The ledger replay
			// guard means custody was still only debited once.
			if settled.OverallStatus == transaction.StatusFailed {
				return settled, ErrAlreadyRejected
			}
			return settled, ErrAlreadySettled
		}
		return txn, err
	}

	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindSettlementReleased,
			Destination: settled.IntegrationCode,
			Body:        fmt.Sprintf("Settlement of %d released, reference %s", settled.AmountToMerchant, settled.Reference),
		})
	}
	return settled, nil
}

// Reject refunds the payer the net amount (originalAmount minus commission;
// custody keeps the fee) and marks the transaction failed with the reason.
func (e *Engine) Reject(ctx context.Context, id, reason string) (transaction.Transaction, error) {
	txn, err := e.transactions.Get(ctx, id)
	if err != nil {
		return transaction.Transaction{}, err
	}
	switch txn.OverallStatus {
	case transaction.StatusFailed:
		return txn, ErrAlreadyRejected
	case transaction.StatusSuccess:
		return txn, ErrAlreadySettled
	}

	if _, err := e.ledger.Account(ctx, txn.AdminAccount); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return txn, ErrCustodyAccountMissing
		}
		return txn, err
	}
	if _, err := e.ledger.Account(ctx, txn.FromAccount); err != nil {
		return txn, fmt.Errorf("payer account %s: %w", txn.FromAccount, err)
	}

	refund := txn.OriginalAmount - txn.Commission
	reference, err := e.moveFunds(ctx, txn.AdminAccount, txn.FromAccount, ledger.KindRefund, txn.ID, refund)
	if err != nil {
		if errors.Is(err, ledger.ErrConflictingTransfer) {
			// A settlement release already left custody for this transaction.
			return txn, ErrAlreadySettled
		}
		return txn, err
	}

	if reason == "" {
		reason = "Rejected by admin"
	}
	settled, err := e.transactions.Settle(ctx, txn.ID, transaction.SettlementOutcome{
		PayeeToAdminStatus:         transaction.StatusRefunded,
		PayeeToAdminDescription:    "Refunded to customer",
		AdminToMerchantStatus:      transaction.StatusFailed,
		AdminToMerchantDescription: reason,
		AdminToMerchantReference:   reference,
		OverallStatus:              transaction.StatusFailed,
		SettledAt:                  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, transaction.ErrSettled) {
			if settled.OverallStatus == transaction.StatusSuccess {
				return settled, ErrAlreadySettled
			}
			return settled, ErrAlreadyRejected
		}
		return txn, err
	}

	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPaymentRefunded,
			Destination: settled.CustomerPhone,
			Body:        fmt.Sprintf("Refund of %d issued, reference %s", refund, settled.Reference),
		})
	}
	return settled, nil
}

// SettleAllPending attempts to approve every pending transaction, sharing one
// settlement group id across the batch. Failures are logged and skipped; a
// single bad transaction never aborts the run.
func (e *Engine) SettleAllPending(ctx context.Context) (BatchResult, error) {
	pending, err := e.transactions.ListPending(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{SettlementGroupID: uuid.NewString(), Attempted: len(pending)}
	for _, txn := range pending {
		if _, err := e.Approve(ctx, txn.ID, result.SettlementGroupID); err != nil {
			e.logger.Warn("batch settlement skipped transaction",
				"transaction_id", txn.ID,
				"settlement_group_id", result.SettlementGroupID,
				"error", err)
			continue
		}
		result.Settled++
	}

	e.logger.Info("batch settlement finished",
		"settlement_group_id", result.SettlementGroupID,
		"attempted", result.Attempted,
		"settled", result.Settled)
	return result, nil
}

// Summarize computes dashboard totals over all transaction records.
func (e *Engine) Summarize(ctx context.Context) (Summary, error) {
	all, err := e.transactions.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	s.TotalTransactions = len(all)
	for _, txn := range all {
		s.TotalReceived += txn.OriginalAmount
		s.TotalCommission += txn.Commission
		switch txn.OverallStatus {
		case transaction.StatusPending:
			s.PendingCount++
		case transaction.StatusSuccess:
			s.SuccessCount++
			s.TotalPaidToMerchants += txn.AmountToMerchant
		case transaction.StatusFailed:
			s.FailedCount++
		}
	}
	return s, nil
}

// moveFunds performs the custody-side transfer under the transaction's shared
// release key. A same-kind duplicate means a previous attempt already moved
// the money (for example a crash between transfer and record flip), so the
// recorded transfer reference is reused and no funds move again. A conflicting
// kind means the opposite outcome already drained custody; it is returned
// as-is for the caller to map.
func (e *Engine) moveFunds(ctx context.Context, from, to, kind, txnID string, amount int64) (string, error) {
	res, err := e.ledger.Transfer(ctx, from, to, kind, ledger.ReleaseKey(txnID), amount)
	switch {
	case err == nil:
		return res.TransferID, nil
	case errors.Is(err, ledger.ErrDuplicateTransfer):
		return res.TransferID, nil
	case errors.Is(err, ledger.ErrConflictingTransfer):
		return "", err
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "", ErrInsufficientCustodyFunds
	default:
		e.logger.Error("settlement transfer failed", "transaction_id", txnID, "kind", kind, "error", err)
		return "", fmt.Errorf("%w: %v", ErrDownstreamTransfer, err)
	}
}
