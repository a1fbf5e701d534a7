package types

// InferRequest is the payload of POST /infer.
type InferRequest struct {
	// Required query text (3 to 2000 characters).
	// example: Welcher Befehl zeigt die Festplattenbelegung an?
	Query string `json:"query" example:"Welcher Befehl zeigt die Festplattenbelegung an?"`
	// Optional session id; a new session is created when empty, unknown or expired.
	// example: 3f0c1a4e-7d2b-4a1e-9a55-0b7f3c2d9e11
	SessionID string `json:"session_id,omitempty" example:"3f0c1a4e-7d2b-4a1e-9a55-0b7f3c2d9e11"`
	// Prepend previous turns of the session to the query. Defaults to true.
	// example: true
	ContextEnabled *bool `json:"context_enabled,omitempty" example:"true"`
	// Skip the device memory check before switching to a larger tier.
	// example: false
	SkipResourceCheck bool `json:"skip_resource_check,omitempty" example:"false"`
	// Optional upstream hint naming a tier (light, specialized, heavy).
	// example: heavy
	TierHint string `json:"tier_hint,omitempty" example:"heavy"`
}

// InferResponse is returned by POST /infer.
type InferResponse struct {
	// Generated answer.
	Answer string `json:"answer"`
	// Tier that produced the answer.
	// example: light
	TierUsed string `json:"tier_used" example:"light"`
	// Tier chosen by the classifier before any fallback.
	// example: specialized
	ClassifiedTier string `json:"classified_tier" example:"specialized"`
	// Model that produced the answer.
	// example: llama3.2:3b
	ModelUsed string `json:"model_used" example:"llama3.2:3b"`
	// Classifier complexity estimate in [0,1].
	// example: 0.25
	ComplexityScore float64 `json:"complexity_score" example:"0.25"`
	// Answer quality estimate in [0,1].
	// example: 0.74
	ConfidenceScore float64 `json:"confidence_score" example:"0.74"`
	// Advisory: the caller should retry against a stronger tier.
	// example: false
	Escalate bool `json:"escalate" example:"false"`
	// Confidence bucket: high_confidence, medium_confidence or low_confidence_escalate.
	// example: medium_confidence
	Status string `json:"status" example:"medium_confidence"`
	// True when a resource or backend fallback changed the tier.
	// example: false
	FallbackApplied bool `json:"fallback_applied" example:"false"`
	// Session the turn was appended to.
	SessionID string `json:"session_id"`
	// Human-readable routing trace.
	Reasoning string `json:"reasoning"`
	// Wall time spent handling the request, in seconds.
	// example: 1.42
	ProcessingTimeSec float64 `json:"processing_time_sec" example:"1.42"`
	// Number of previous turns injected as context.
	// example: 2
	ContextTurnsUsed int `json:"context_turns_used" example:"2"`
	// Whether the query sent to the model was enhanced with conversation context.
	// example: true
	ContextEnhanced bool `json:"context_enhanced" example:"true"`
}

// ClassifyRequest is the payload of POST /classify.
type ClassifyRequest struct {
	// example: Schreibe eine Python-Funktion zur Berechnung von Fibonacci-Zahlen
	Query string `json:"query" example:"Schreibe eine Python-Funktion zur Berechnung von Fibonacci-Zahlen"`
	// example: specialized
	TierHint string `json:"tier_hint,omitempty" example:"specialized"`
}

// ClassifyResponse is returned by POST /classify.
type ClassifyResponse struct {
	// example: specialized
	Tier string `json:"tier" example:"specialized"`
	// example: 0.4
	ComplexityScore float64 `json:"complexity_score" example:"0.4"`
	// Rule that produced the decision.
	// example: forced_tier
	Rule           string             `json:"rule" example:"forced_tier"`
	MatchedSignals []string           `json:"matched_signals"`
	Subscores      map[string]float64 `json:"subscores,omitempty"`
	Reasoning      string             `json:"reasoning"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// TierStatus summarizes one tier for /status.
type TierStatus struct {
	Tier    string      `json:"tier" example:"specialized"`
	Profile TierProfile `json:"profile"`
	// Whether this is the router's current tier.
	Current bool `json:"current"`
	// Last time the tier was selected (unix seconds, 0 if never).
	// example: 1700000000
	LastActivityUnix int64 `json:"last_activity_unix" example:"1700000000"`
	// Seconds since last activity, -1 if never used.
	// example: 42
	IdleSeconds int64 `json:"idle_seconds" example:"42"`
	// Backend health for the tier's model, when checked.
	Available *bool `json:"available,omitempty"`
}

// ResourceStatus reports the last device snapshot taken for /status.
type ResourceStatus struct {
	// example: true
	MonitoringAvailable bool `json:"monitoring_available" example:"true"`
	// example: NVIDIA GeForce RTX 4090
	DeviceLabel string `json:"device_label,omitempty" example:"NVIDIA GeForce RTX 4090"`
	// example: 24564
	TotalMB int `json:"total_mb,omitempty" example:"24564"`
	// example: 2048
	UsedMB int `json:"used_mb,omitempty" example:"2048"`
	// example: 22516
	FreeMB int `json:"free_mb,omitempty" example:"22516"`
	// example: 0.08
	UsedRatio float64 `json:"used_ratio,omitempty" example:"0.08"`
	Error     string  `json:"error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall state: operational or degraded.
	// example: operational
	State string `json:"state" example:"operational"`
	// example: light
	CurrentTier string         `json:"current_tier" example:"light"`
	Tiers       []TierStatus   `json:"tiers"`
	Resource    ResourceStatus `json:"resource"`
	// Number of sessions currently held by the context manager.
	// example: 3
	ActiveSessions int `json:"active_sessions" example:"3"`
	// Number of idle unload signals emitted since start.
	// example: 1
	IdleUnloadsTotal uint64 `json:"idle_unloads_total" example:"1"`
	// Number of requests that needed a fallback since start.
	// example: 2
	FallbacksTotal uint64 `json:"fallbacks_total" example:"2"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// SessionStatsResponse is returned by GET /sessions/{id}.
type SessionStatsResponse struct {
	SessionID string `json:"session_id"`
	// example: 4
	TotalTurns int `json:"total_turns" example:"4"`
	// example: 12.5
	DurationMinutes float64 `json:"duration_minutes" example:"12.5"`
	// Count of turns per tier name.
	TierUsage map[string]int `json:"tier_usage"`
	// example: 0.31
	AverageComplexity float64  `json:"average_complexity" example:"0.31"`
	Topics            []string `json:"topics"`
	// example: 2024-01-01T12:00:00Z
	LastActivity string `json:"last_activity" example:"2024-01-01T12:00:00Z"`
	// example: false
	Expired bool `json:"expired" example:"false"`
}

// TaskInfo describes one registered administrative task type.
type TaskInfo struct {
	// example: disk_check
	Type        string `json:"type" example:"disk_check"`
	Description string `json:"description"`
}

// TaskPlanRequest is the payload of POST /tasks/{type}/plan.
type TaskPlanRequest struct {
	Parameters map[string]any `json:"parameters,omitempty"`
}

// TaskPlanResponse is returned by POST /tasks/{type}/plan.
type TaskPlanResponse struct {
	// example: disk_check
	Type                 string         `json:"type" example:"disk_check"`
	Parameters           map[string]any `json:"parameters"`
	Commands             []string       `json:"commands"`
	Description          string         `json:"description"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	ConfirmationMessage  string         `json:"confirmation_message,omitempty"`
}
