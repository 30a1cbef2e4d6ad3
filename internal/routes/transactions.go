package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/settlement"
)

// RegisterTransactionRoutes wires the settlement endpoints. settle-all is
// registered before the :id routes so the literal path wins.
func RegisterTransactionRoutes(r fiber.Router, h *settlement.Handler) {
	r.Put("/transactions/settle-all", h.SettleAll)
	r.Get("/transactions", h.List)
	r.Get("/transactions/:id", h.Get)
	r.Put("/transactions/:id/approve", h.Approve)
	r.Put("/transactions/:id/reject", h.Reject)
}
