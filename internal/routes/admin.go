package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/settlement"
)

// RegisterAdminRoutes wires the read-only reporting endpoints.
func RegisterAdminRoutes(r fiber.Router, h *settlement.Handler) {
	r.Get("/admin/dashboard", h.Dashboard)
}
