package intake

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the public payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an intake handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type paymentRequest struct {
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name"`
	Phone         string `json:"phone"`
}

// ValidateCode checks a merchant integration code for the hosted payment page.
func (h *Handler) ValidateCode(c *fiber.Ctx) error {
	m, err := h.service.ValidateCode(c.UserContext(), c.Params("code"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidMerchantCode):
			return fiber.NewError(http.StatusNotFound, "invalid merchant code")
		case errors.Is(err, ErrMerchantInactive):
			return fiber.NewError(http.StatusForbidden, "merchant is not active")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(fiber.Map{"merchant": m.Name, "code": m.Code})
}

// Pay executes hop 1: the payer's funds move into admin custody and the
// transaction is left pending the admin decision.
func (h *Handler) Pay(c *fiber.Ctx) error {
	amount, err := strconv.ParseInt(c.Params("amount"), 10, 64)
	if err != nil || amount <= 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}

	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Process(c.UserContext(), ProcessInput{
		MerchantCode:  c.Params("code"),
		Amount:        amount,
		AccountNumber: req.AccountNumber,
		HolderName:    req.HolderName,
		BankCode:      req.BankCode,
		BankName:      req.BankName,
		Phone:         req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientPayerFunds):
			// The failed attempt is recorded for audit; surface the receipt.
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"status":      res.Status,
				"error":       "insufficient balance in your account",
				"transaction": res.Transaction,
				"reference":   res.Reference,
			})
		case errors.Is(err, ErrInvalidMerchantCode), errors.Is(err, ErrMerchantInactive),
			errors.Is(err, ErrPayerNotFound), errors.Is(err, ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrCustodyAccountMissing), errors.Is(err, ErrMerchantAccountMissing):
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		case errors.Is(err, ErrTransferFailed):
			return fiber.NewError(http.StatusBadGateway, "payment could not be processed, try again")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(fiber.Map{
		"status":        res.Status,
		"transaction":   res.Transaction,
		"reference":     res.Reference,
		"merchant_name": res.MerchantName,
	})
}
