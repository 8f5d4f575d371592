package internaldefs

import (
	"strconv"

	"github.com/projectatlas/astaauth"
)

// CounterDef maps one engine counter onto a metric family. Counters sharing
// a Name form one family told apart by LabelKey=LabelValue.
type CounterDef struct {
	ID         astaauth.MetricID
	Name       string
	Help       string
	LabelKey   string
	LabelValue string
}

// HistogramDef maps one engine latency histogram onto a metric family.
type HistogramDef struct {
	ID   astaauth.MetricID
	Name string
	Help string
}

const (
	loginHelp        = "Login attempts by result."
	gateHelp         = "Gate checks by result."
	deniedHelp       = "Gate denials by reason."
	registrationHelp = "Registration attempts by result."
)

// CounterDefs lists every exported counter, grouped by family name.
var CounterDefs = []CounterDef{
	{ID: astaauth.MetricLoginSuccess, Name: "astaauth_login_total", Help: loginHelp, LabelKey: "result", LabelValue: "success"},
	{ID: astaauth.MetricLoginFailure, Name: "astaauth_login_total", Help: loginHelp, LabelKey: "result", LabelValue: "failure"},
	{ID: astaauth.MetricLoginInvalidInput, Name: "astaauth_login_total", Help: loginHelp, LabelKey: "result", LabelValue: "invalid_input"},
	{ID: astaauth.MetricTokenIssued, Name: "astaauth_token_issued_total", Help: "Access tokens issued."},
	{ID: astaauth.MetricGateAllowed, Name: "astaauth_gate_total", Help: gateHelp, LabelKey: "result", LabelValue: "allowed"},
	{ID: astaauth.MetricGateDenied, Name: "astaauth_gate_total", Help: gateHelp, LabelKey: "result", LabelValue: "denied"},
	{ID: astaauth.MetricTokenMalformed, Name: "astaauth_gate_denied_total", Help: deniedHelp, LabelKey: "reason", LabelValue: "malformed"},
	{ID: astaauth.MetricTokenBadSignature, Name: "astaauth_gate_denied_total", Help: deniedHelp, LabelKey: "reason", LabelValue: "bad_signature"},
	{ID: astaauth.MetricTokenExpired, Name: "astaauth_gate_denied_total", Help: deniedHelp, LabelKey: "reason", LabelValue: "expired"},
	{ID: astaauth.MetricIdentityNotFound, Name: "astaauth_gate_denied_total", Help: deniedHelp, LabelKey: "reason", LabelValue: "identity_not_found"},
	{ID: astaauth.MetricIdentityInactive, Name: "astaauth_gate_denied_total", Help: deniedHelp, LabelKey: "reason", LabelValue: "identity_inactive"},
	{ID: astaauth.MetricStoreUnavailable, Name: "astaauth_store_unavailable_total", Help: "Credential store failures seen by login, gate and registration."},
	{ID: astaauth.MetricRegistrationSuccess, Name: "astaauth_registration_total", Help: registrationHelp, LabelKey: "result", LabelValue: "success"},
	{ID: astaauth.MetricRegistrationDuplicate, Name: "astaauth_registration_total", Help: registrationHelp, LabelKey: "result", LabelValue: "duplicate"},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: astaauth.MetricValidateLatency, Name: "astaauth_validate_latency_seconds", Help: "Token validation latency inside the gate."},
	{ID: astaauth.MetricHashLatency, Name: "astaauth_hash_latency_seconds", Help: "Password hash and verify latency, including the wait for a hashing slot."},
}

// AuditDroppedName is the family for events the audit dispatcher discarded.
const AuditDroppedName = "astaauth_audit_dropped_total"

// BucketCount is the number of latency buckets, the overflow bucket included.
const BucketCount = len(astaauth.LatencyBounds) + 1

// HistogramBounds are the "le" label values of the engine's latency buckets,
// in seconds. The last bucket is unbounded.
var HistogramBounds = func() [BucketCount]string {
	var out [BucketCount]string
	for i, d := range astaauth.LatencyBounds {
		out[i] = strconv.FormatFloat(d.Seconds(), 'g', -1, 64)
	}
	out[BucketCount-1] = "+Inf"
	return out
}()

// CumulativeBuckets turns per-bucket counts into the running totals both
// exporters publish. Missing buckets count as zero.
func CumulativeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
