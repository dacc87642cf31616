package middleware

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

type rateLimiter struct {
	bucket    map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
	mutex     *sync.RWMutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*rate.Limiter),
		rate:      reqRate,
		burstSize: burstSize,
		mutex:     &sync.RWMutex{},
	}
}

func (r *rateLimiter) GetLimiterFrom(key string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exist := r.bucket[key]; !exist {
		r.bucket[key] = rate.NewLimiter(r.rate, r.burstSize)
	}

	return r.bucket[key]
}

// NewRateLimiter limits authenticated devices by id and everyone else by IP.
func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	key, ok := ctx.Locals(DeviceIDKey).(string)
	if !ok || key == "" {
		key = "ip:" + ctx.IP()
	}

	if !m.rateLimitter.GetLimiterFrom(key).Allow() {
		m.log.Warnf("too many requests for %s", key)
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Too many requests",
			"code":  "rate-limited",
		})
	}

	return ctx.Next()
}
