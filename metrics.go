package goRotate

import internalmetrics "github.com/MrEthical07/goRotate/internal/metrics"

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricLoginSuccess counts issued login pairs.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure counts failed logins of any cause.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess = internalmetrics.MetricRefreshSuccess
	// MetricRefreshFailure counts failed rotations of any cause.
	MetricRefreshFailure = internalmetrics.MetricRefreshFailure
	// MetricRefreshReuseDetected counts presentations of an already used token.
	MetricRefreshReuseDetected = internalmetrics.MetricRefreshReuseDetected
	// MetricRefreshRaceLost counts rotations that lost the conditional update.
	MetricRefreshRaceLost = internalmetrics.MetricRefreshRaceLost
	// MetricRefreshRevoked counts records invalidated by reuse revocation.
	MetricRefreshRevoked = internalmetrics.MetricRefreshRevoked
	// MetricRecordCreated counts stored refresh records.
	MetricRecordCreated = internalmetrics.MetricRecordCreated
	// MetricRecordsInvalidated counts records invalidated by logout.
	MetricRecordsInvalidated = internalmetrics.MetricRecordsInvalidated
	// MetricPersistenceFailure counts store failures surfaced as ErrPersistence.
	MetricPersistenceFailure = internalmetrics.MetricPersistenceFailure
	// MetricLogout counts token-based logouts.
	MetricLogout = internalmetrics.MetricLogout
	// MetricLogoutAll counts administrative logouts.
	MetricLogoutAll = internalmetrics.MetricLogoutAll
	// MetricValidateSuccess counts accepted access tokens.
	MetricValidateSuccess = internalmetrics.MetricValidateSuccess
	// MetricValidateFailure counts rejected access tokens.
	MetricValidateFailure = internalmetrics.MetricValidateFailure
	// MetricAccountCreationSuccess counts completed signups.
	MetricAccountCreationSuccess = internalmetrics.MetricAccountCreationSuccess
	// MetricAccountCreationDuplicate counts signups rejected as duplicate.
	MetricAccountCreationDuplicate = internalmetrics.MetricAccountCreationDuplicate
	// MetricValidateLatency is the access validation latency histogram.
	MetricValidateLatency = internalmetrics.MetricValidateLatency

	metricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
