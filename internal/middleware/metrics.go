package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisperchain_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"operation"})

	// TokenValidations counts token validation attempts by outcome
	// (ok, already_used, frozen, not_found_or_expired).
	TokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisperchain_token_validations_total",
		Help: "Total number of token validation attempts by outcome",
	}, []string{"outcome"})

	// TokensIssued counts token mapping creations, labelled by whether the
	// caller won the insert race or re-read an existing row.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisperchain_tokens_issued_total",
		Help: "Total number of get-or-create token calls by result",
	}, []string{"result"})

	// MessagesSent counts accepted message sends.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisperchain_messages_sent_total",
		Help: "Total number of accepted message sends",
	})

	// ModerationActions counts moderation operations by action type.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisperchain_moderation_actions_total",
		Help: "Total number of moderation actions by type",
	}, []string{"action"})
)

// InitMetrics creates the Prometheus HTTP middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware wraps the fiberprometheus middleware as a fiber.Handler.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}
