package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/intake"
)

// RegisterPaymentRoutes wires the public payment endpoints. The cooldown
// middleware guards the intake route only.
func RegisterPaymentRoutes(r fiber.Router, h *intake.Handler, cooldown fiber.Handler) {
	r.Get("/payments/:code", h.ValidateCode)
	r.Post("/payments/:code/:amount", cooldown, h.Pay)
}
