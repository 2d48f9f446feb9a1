package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the authentication counters the service exports.
type Metrics struct {
	loginAttempts   *prometheus.CounterVec
	lockouts        prometheus.Counter
	tokensIssued    *prometheus.CounterVec
	sessionsRevoked prometheus.Counter
	twoFactorChecks *prometheus.CounterVec
}

// NewMetrics registers the auth metrics on the supplied registerer. Passing
// nil registers on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restomate",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts partitioned by outcome",
		}, []string{"outcome"}),
		lockouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "restomate",
			Subsystem: "auth",
			Name:      "lockouts_total",
			Help:      "Accounts locked after repeated failed logins",
		}),
		tokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restomate",
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Tokens issued partitioned by kind",
		}, []string{"kind"}),
		sessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "restomate",
			Subsystem: "auth",
			Name:      "sessions_revoked_total",
			Help:      "Refresh tokens revoked",
		}),
		twoFactorChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restomate",
			Subsystem: "auth",
			Name:      "two_factor_checks_total",
			Help:      "Two-factor verifications partitioned by outcome",
		}, []string{"outcome"}),
	}
}

// LoginAttempt records a login attempt outcome: success, invalid_credentials,
// locked, two_factor_required, or inactive.
func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// Lockout records an account transitioning to locked.
func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

// TokenIssued records issuance of a token of the given kind.
func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

// SessionsRevoked records n refresh tokens being revoked.
func (m *Metrics) SessionsRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsRevoked.Add(float64(n))
}

// TwoFactorCheck records a two-factor verification outcome: totp, backup_code,
// or failed.
func (m *Metrics) TwoFactorCheck(outcome string) {
	if m == nil {
		return
	}
	m.twoFactorChecks.WithLabelValues(outcome).Inc()
}
