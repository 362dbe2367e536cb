package internaldefs

import (
	goRotate "github.com/MrEthical07/goRotate"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goRotate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goRotate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goRotate.MetricLoginSuccess, Name: "gorotate_login_success_total", Help: "Issued login token pairs."},
	{ID: goRotate.MetricLoginFailure, Name: "gorotate_login_failure_total", Help: "Failed login attempts."},
	{ID: goRotate.MetricRefreshSuccess, Name: "gorotate_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: goRotate.MetricRefreshFailure, Name: "gorotate_refresh_failure_total", Help: "Failed refresh token rotations."},
	{ID: goRotate.MetricRefreshReuseDetected, Name: "gorotate_refresh_reuse_detected_total", Help: "Presentations of an already used refresh token."},
	{ID: goRotate.MetricRefreshRaceLost, Name: "gorotate_refresh_race_lost_total", Help: "Rotations that lost the conditional mark-used update."},
	{ID: goRotate.MetricRefreshRevoked, Name: "gorotate_refresh_revoked_total", Help: "Refresh records invalidated by reuse revocation."},
	{ID: goRotate.MetricRecordCreated, Name: "gorotate_record_created_total", Help: "Stored refresh records."},
	{ID: goRotate.MetricRecordsInvalidated, Name: "gorotate_records_invalidated_total", Help: "Refresh records invalidated by logout."},
	{ID: goRotate.MetricPersistenceFailure, Name: "gorotate_persistence_failure_total", Help: "Store failures surfaced to callers."},
	{ID: goRotate.MetricLogout, Name: "gorotate_logout_total", Help: "Token-based logout operations."},
	{ID: goRotate.MetricLogoutAll, Name: "gorotate_logout_all_total", Help: "Administrative logout-all operations."},
	{ID: goRotate.MetricValidateSuccess, Name: "gorotate_validate_success_total", Help: "Accepted access tokens."},
	{ID: goRotate.MetricValidateFailure, Name: "gorotate_validate_failure_total", Help: "Rejected access tokens."},
	{ID: goRotate.MetricAccountCreationSuccess, Name: "gorotate_account_creation_success_total", Help: "Successful account creations."},
	{ID: goRotate.MetricAccountCreationDuplicate, Name: "gorotate_account_creation_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goRotate.MetricValidateLatency, Name: "gorotate_validate_latency_seconds", Help: "Access token validation latency."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "gorotate_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
