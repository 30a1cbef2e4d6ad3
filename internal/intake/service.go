package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/merchant"
	"github.com/bridge-pay/bridge_pay/internal/notification"
	"github.com/bridge-pay/bridge_pay/internal/transaction"
)

var (
	// ErrInvalidMerchantCode indicates no merchant is registered for the code.
	ErrInvalidMerchantCode = errors.New("invalid merchant code")

	// ErrMerchantInactive indicates the merchant exists but may not take payments.
	ErrMerchantInactive = errors.New("merchant not active")

	// ErrPayerNotFound indicates the submitted payer details did not exactly
	// match a registered bank account.
	ErrPayerNotFound = errors.New("payer bank details do not match any account")

	// ErrInsufficientPayerFunds indicates the payer cannot cover the amount. A
	// failed transaction record is persisted for audit; no debit occurs.
	ErrInsufficientPayerFunds = errors.New("insufficient payer balance")

	// ErrCustodyAccountMissing is a fatal configuration error: the admin
	// custody account does not exist in the ledger.
	ErrCustodyAccountMissing = errors.New("custody account missing")

	// ErrMerchantAccountMissing indicates the merchant's configured settlement
	// account is absent from the ledger.
	ErrMerchantAccountMissing = errors.New("merchant account missing")

	// ErrInvalidAmount rejects zero or negative payment amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrTransferFailed indicates the ledger transfer errored for a reason
	// other than a business rule. No transaction record is written and no
	// local state changes; the payer can safely retry.
	ErrTransferFailed = errors.New("ledger transfer failed")
)

// Service validates a payer's one-shot payment instruction and executes hop 1:
// the full amount moves from the payer into the admin custody account, where
// it is held until an admin decision releases or refunds it.
type Service struct {
	ledger        ledger.Ledger
	transactions  transaction.Repository
	merchants     merchant.Repository
	notifier      notification.Notifier
	logger        *slog.Logger
	custodyNumber string
	commissionBps int64
}

// NewService constructs the intake service. commissionBps is the custody fee
// in basis points (200 = 2%).
func NewService(ledgerBackend ledger.Ledger, transactions transaction.Repository, merchants merchant.Repository,
	notifier notification.Notifier, logger *slog.Logger, custodyNumber string, commissionBps int64) *Service {
	return &Service{
		ledger:        ledgerBackend,
		transactions:  transactions,
		merchants:     merchants,
		notifier:      notifier,
		logger:        logger,
		custodyNumber: custodyNumber,
		commissionBps: commissionBps,
	}
}

// ProcessInput carries the payment instruction and the payer's identifying
// bank details. Matching is exact on every supplied field.
type ProcessInput struct {
	MerchantCode  string
	Amount        int64
	AccountNumber string
	HolderName    string
	BankCode      string
	BankName      string
	Phone         string
}

// Result describes the outcome of an intake attempt.
type Result struct {
	Status       string
	Transaction  transaction.Transaction
	Reference    string
	MerchantName string
}

// Commission computes the custody fee for an amount at the given basis-point
// rate, rounding down. amountToMerchant is always originalAmount minus this.
func Commission(amount, rateBps int64) int64 {
	return amount * rateBps / 10_000
}

// ValidateCode resolves a merchant by integration code for the hosted payment
// page, without touching any balance.
func (s *Service) ValidateCode(ctx context.Context, code string) (merchant.Merchant, error) {
	m, err := s.merchants.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, merchant.ErrNotFound) {
			return merchant.Merchant{}, ErrInvalidMerchantCode
		}
		return merchant.Merchant{}, err
	}
	if !m.Active {
		return merchant.Merchant{}, ErrMerchantInactive
	}
	return m, nil
}

// Process executes hop 1. On insufficient payer balance a failed transaction
// record is persisted for audit and no money moves. On success the full
// amount (commission included) lands in custody and the transaction is left
// pending the admin decision.
func (s *Service) Process(ctx context.Context, input ProcessInput) (Result, error) {
	if input.Amount <= 0 {
		return Result{}, ErrInvalidAmount
	}

	m, err := s.ValidateCode(ctx, input.MerchantCode)
	if err != nil {
		return Result{}, err
	}

	if _, err := s.ledger.Account(ctx, s.custodyNumber); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return Result{}, ErrCustodyAccountMissing
		}
		return Result{}, err
	}
	if _, err := s.ledger.Account(ctx, m.AccountNumber); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return Result{}, ErrMerchantAccountMissing
		}
		return Result{}, err
	}

	payer, err := s.resolvePayer(ctx, input)
	if err != nil {
		return Result{}, err
	}

	if payer.Balance < input.Amount {
		txn, recErr := s.recordFailedIntake(ctx, input, m, "Insufficient balance")
		if recErr != nil {
			return Result{}, recErr
		}
		return Result{Status: transaction.StatusFailed, Transaction: txn, Reference: txn.Reference, MerchantName: m.Name}, ErrInsufficientPayerFunds
	}

	id := uuid.NewString()
	commission := Commission(input.Amount, s.commissionBps)
	now := time.Now().UTC()

	res, err := s.ledger.Transfer(ctx, payer.Number, s.custodyNumber, ledger.KindIntake, ledger.IntakeKey(id), input.Amount)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			// Balance moved under us between the read and the transfer.
			txn, recErr := s.recordFailedIntake(ctx, input, m, "Insufficient balance")
			if recErr != nil {
				return Result{}, recErr
			}
			return Result{Status: transaction.StatusFailed, Transaction: txn, Reference: txn.Reference, MerchantName: m.Name}, ErrInsufficientPayerFunds
		}
		s.logger.Error("intake transfer failed", "merchant_code", input.MerchantCode, "error", err)
		return Result{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	txn := transaction.Transaction{
		ID:                         id,
		IntegrationCode:            m.Code,
		FromAccount:                payer.Number,
		ToAccount:                  m.AccountNumber,
		AdminAccount:               s.custodyNumber,
		OriginalAmount:             input.Amount,
		Commission:                 commission,
		AmountToMerchant:           input.Amount - commission,
		PayeeToAdminStatus:         transaction.StatusSuccess,
		PayeeToAdminDescription:    "Payment received into custody",
		PayeeToAdminTime:           now,
		PayeeToAdminReference:      res.TransferID,
		AdminToMerchantStatus:      transaction.StatusPending,
		AdminToMerchantDescription: "Awaiting admin approval",
		OverallStatus:              transaction.StatusPending,
		CustomerName:               input.HolderName,
		CustomerPhone:              input.Phone,
		CustomerBank:               input.BankName,
		Reference:                  transaction.ReceiptReference(id),
		CreatedAt:                  now,
	}

	if err := s.transactions.Create(ctx, txn); err != nil {
		// The custody credit already happened; the record must not be lost.
		s.logger.Error("persist intake transaction", "transaction_id", id, "error", err)
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPaymentReceived,
			Destination: m.Code,
			Body:        fmt.Sprintf("Payment of %d held in custody for merchant %s, reference %s", input.Amount, m.Name, txn.Reference),
		})
	}

	return Result{Status: transaction.StatusSuccess, Transaction: txn, Reference: txn.Reference, MerchantName: m.Name}, nil
}

// resolvePayer performs the exact-match lookup. Account number, holder name
// and bank code are mandatory; bank name and phone are matched when supplied.
// Any mismatch reports the same ErrPayerNotFound to avoid account probing.
func (s *Service) resolvePayer(ctx context.Context, input ProcessInput) (ledger.Account, error) {
	if input.AccountNumber == "" || input.HolderName == "" || input.BankCode == "" {
		return ledger.Account{}, ErrPayerNotFound
	}
	payer, err := s.ledger.Account(ctx, input.AccountNumber)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ledger.Account{}, ErrPayerNotFound
		}
		return ledger.Account{}, err
	}
	if payer.HolderName != input.HolderName || payer.BankCode != input.BankCode {
		return ledger.Account{}, ErrPayerNotFound
	}
	if input.BankName != "" && payer.BankName != input.BankName {
		return ledger.Account{}, ErrPayerNotFound
	}
	if input.Phone != "" && payer.Phone != "" && payer.Phone != input.Phone {
		return ledger.Account{}, ErrPayerNotFound
	}
	return payer, nil
}

func (s *Service) recordFailedIntake(ctx context.Context, input ProcessInput, m merchant.Merchant, reason string) (transaction.Transaction, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	txn := transaction.Transaction{
		ID:                         id,
		IntegrationCode:            m.Code,
		FromAccount:                input.AccountNumber,
		ToAccount:                  m.AccountNumber,
		AdminAccount:               s.custodyNumber,
		OriginalAmount:             input.Amount,
		Commission:                 0,
		AmountToMerchant:           0,
		PayeeToAdminStatus:         transaction.StatusFailed,
		PayeeToAdminDescription:    reason,
		PayeeToAdminTime:           now,
		AdminToMerchantStatus:      transaction.StatusFailed,
		AdminToMerchantDescription: "Not applicable",
		OverallStatus:              transaction.StatusFailed,
		CustomerName:               input.HolderName,
		CustomerPhone:              input.Phone,
		CustomerBank:               input.BankName,
		Reference:                  transaction.ReceiptReference(id),
		CreatedAt:                  now,
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		return transaction.Transaction{}, err
	}
	return txn, nil
}
