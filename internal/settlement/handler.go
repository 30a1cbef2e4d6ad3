package settlement

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/transaction"
)

// Handler exposes the admin settlement endpoints.
type Handler struct {
	engine       *Engine
	transactions transaction.Repository
}

// NewHandler constructs a settlement handler.
func NewHandler(engine *Engine, transactions transaction.Repository) *Handler {
	return &Handler{engine: engine, transactions: transactions}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Approve releases custody funds to the merchant for one transaction.
func (h *Handler) Approve(c *fiber.Ctx) error {
	txn, err := h.engine.Approve(c.UserContext(), c.Params("id"), "")
	if err != nil {
		return settlementError(err)
	}
	return c.JSON(fiber.Map{"transaction": txn})
}

// Reject refunds the payer and marks the transaction failed.
func (h *Handler) Reject(c *fiber.Ctx) error {
	var req rejectRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	txn, err := h.engine.Reject(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return settlementError(err)
	}
	return c.JSON(fiber.Map{"transaction": txn})
}

// SettleAll attempts to approve every pending transaction in one batch.
func (h *Handler) SettleAll(c *fiber.Ctx) error {
	res, err := h.engine.SettleAllPending(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"settled_count":       res.Settled,
		"attempted":           res.Attempted,
		"settlement_group_id": res.SettlementGroupID,
	})
}

// List returns every transaction record.
func (h *Handler) List(c *fiber.Ctx) error {
	all, err := h.transactions.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if all == nil {
		all = []transaction.Transaction{}
	}
	return c.JSON(all)
}

// Get returns a single transaction record.
func (h *Handler) Get(c *fiber.Ctx) error {
	txn, err := h.transactions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"transaction": txn})
}

// Dashboard returns aggregate settlement totals.
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	summary, err := h.engine.Summarize(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(summary)
}

func settlementError(err error) error {
	switch {
	case errors.Is(err, transaction.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	case errors.Is(err, ErrAlreadySettled), errors.Is(err, ErrAlreadyRejected):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientCustodyFunds):
		return fiber.NewError(http.StatusBadRequest, "custody account has insufficient balance")
	case errors.Is(err, ErrCustodyAccountMissing):
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	case errors.Is(err, ErrDownstreamTransfer):
		return fiber.NewError(http.StatusBadGateway, "settlement transfer failed, safe to retry")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
