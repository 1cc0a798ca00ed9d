package webhooks

import "time"

// Wire contract for outbound deliveries. Receivers verify the signature
// header against the raw request body using their webhook secret.
const (
	HeaderSignature = "X-DiveDesk-Signature"
	HeaderEvent     = "X-DiveDesk-Event"
	HeaderDelivery  = "X-DiveDesk-Delivery"
	UserAgent       = "DiveDesk-Webhooks/1.0"
)

const (
	// DeliveryTimeout is the hard bound on one outbound HTTP attempt.
	DeliveryTimeout = 30 * time.Second
	// DefaultBatchSize caps how many due deliveries one scan picks up.
	DefaultBatchSize = 100
	// PacingDelay is inserted between deliveries of one scan to bound the
	// outbound request rate.
	PacingDelay = 100 * time.Millisecond
	// DefaultRetentionDays is the retention window for cleanup.
	DefaultRetentionDays = 30
	// DefaultScanInterval is how often the scheduler runs a scan.
	DefaultScanInterval = time.Minute

	// BackoffBase and BackoffMax bound the exponential retry delay.
	BackoffBase = 60 * time.Second
	BackoffMax  = 3600 * time.Second

	// SubscriptionCacheTTL bounds how long the emitter may act on a stale
	// subscription set when the cache is not explicitly invalidated.
	SubscriptionCacheTTL = 60 * time.Second
)

// ScanResult holds the aggregate outcome counters of one scanner pass.
type ScanResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
