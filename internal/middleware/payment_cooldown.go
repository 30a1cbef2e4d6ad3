package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const cooldownPrefix = "cooldown:payment:"

// PaymentCooldown allows one successful payment per payer account within the
// cooldown window. The window is tracked in Redis so it holds across
// replicated API processes; without Redis the middleware is a no-op. Failed
// attempts do not start a window.
func PaymentCooldown(cache *redis.Client, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || window <= 0 {
			return c.Next()
		}

		var req struct {
			AccountNumber string `json:"account_number"`
		}
		_ = c.BodyParser(&req)
		payer := strings.TrimSpace(req.AccountNumber)
		if payer == "" {
			payer = c.IP()
		}
		key := cooldownPrefix + payer

		exists, err := cache.Exists(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if exists > 0 {
			return fiber.NewError(http.StatusTooManyRequests, "payment cooldown active, try again later")
		}

		if err := c.Next(); err != nil {
			return err
		}

		if c.Response().StatusCode() < fiber.StatusMultipleChoices {
			_ = cache.Set(c.UserContext(), key, time.Now().UTC().Format(time.RFC3339), window).Err()
		}
		return nil
	}
}
