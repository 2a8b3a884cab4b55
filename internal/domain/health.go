package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Detail      string `json:"detail,omitempty"`
}

// FormMetrics is returned by GET /v1/metrics/forms.
type FormMetrics struct {
	LookupsResolved    int64   `json:"lookupsResolved"`
	LookupsFailed      int64   `json:"lookupsFailed"`
	LookupsNotFound    int64   `json:"lookupsNotFound"`
	StaleSuppressed    int64   `json:"staleSuppressed"`
	SubmitsAccepted    int64   `json:"submitsAccepted"`
	SubmitsRejected    int64   `json:"submitsRejected"`
	SubmitsFailed      int64   `json:"submitsFailed"`
	PostalCacheHitRate float64 `json:"postalCacheHitRate"`
	Period             string  `json:"period"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
