// Package metrics holds the Prometheus counters for account operations.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Login results and password reset stages used as label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	StageRequested = "requested"
	StageConsumed  = "consumed"
)

// Recorder is what AccountService reports to.
type Recorder interface {
	Registration()
	Login(ok bool)
	SessionEnded()
	PasswordReset(stage string)
}

type Metrics struct {
	registrations  prometheus.Counter
	logins         *prometheus.CounterVec
	sessionsEnded  prometheus.Counter
	passwordResets *prometheus.CounterVec
}

// New creates the counters and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authkeeper_registrations_total",
			Help: "Accounts registered.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeeper_logins_total",
			Help: "Password login attempts by result.",
		}, []string{"result"}),
		sessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authkeeper_sessions_ended_total",
			Help: "Sessions ended by logout.",
		}),
		passwordResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeeper_password_resets_total",
			Help: "Password reset tokens issued and consumed.",
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.registrations, m.logins, m.sessionsEnded, m.passwordResets)
	}
	return m
}

func (m *Metrics) Registration() { m.registrations.Inc() }

func (m *Metrics) Login(ok bool) {
	result := ResultFailure
	if ok {
		result = ResultSuccess
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionEnded() { m.sessionsEnded.Inc() }

func (m *Metrics) PasswordReset(stage string) { m.passwordResets.WithLabelValues(stage).Inc() }

// Nop ignores every event.
type Nop struct{}

func (Nop) Registration()        {}
func (Nop) Login(bool)           {}
func (Nop) SessionEnded()        {}
func (Nop) PasswordReset(string) {}
