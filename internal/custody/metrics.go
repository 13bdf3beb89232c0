package custody

import "github.com/prometheus/client_golang/prometheus"

type serviceMetrics struct {
	creates         prometheus.Counter
	deletes         prometheus.Counter
	migrations      prometheus.Counter
	authentications *prometheus.CounterVec
}

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	m := &serviceMetrics{
		creates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "custody_wallet_creates_total",
			Help: "Wallets created.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "custody_wallet_deletes_total",
			Help: "Wallet delete operations.",
		}),
		migrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "custody_legacy_migrations_total",
			Help: "Legacy plaintext records re-encrypted on authentication.",
		}),
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_authentications_total",
			Help: "Authentication attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.creates, m.deletes, m.migrations, m.authentications)
	return m
}

func (m *serviceMetrics) observeCreate() {
	if m != nil {
		m.creates.Inc()
	}
}

func (m *serviceMetrics) observeDelete() {
	if m != nil {
		m.deletes.Inc()
	}
}

func (m *serviceMetrics) observeMigration() {
	if m != nil {
		m.migrations.Inc()
	}
}

func (m *serviceMetrics) observeAuth(outcome string) {
	if m != nil {
		m.authentications.WithLabelValues(outcome).Inc()
	}
}
