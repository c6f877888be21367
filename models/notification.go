package models

// Notification categories, matching the notification_settings columns
const (
	CategoryPost         = "post"
	CategoryNotes        = "notes"
	CategoryAnnouncement = "announcement"
	CategoryConnection   = "connection"
	CategorySchedule     = "schedule"
)

// NotificationMessage is what a feature event hands to the push engine.
// Data values must be strings, the provider rejects anything else.
type NotificationMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// ChunkResult is the outcome of one provider request-group
type ChunkResult struct {
	Index         int      `json:"index"`
	Sent          int      `json:"sent"`
	Failed        int      `json:"failed"`
	InvalidTokens []string `json:"invalid_tokens,omitempty"`
	Err           error    `json:"-"`
}

// DispatchReport aggregates a whole fan-out. Callers treat it as
// best-effort telemetry, never as a reason to fail their own operation.
type DispatchReport struct {
	TotalSent      int           `json:"total_sent"`
	TotalFailed    int           `json:"total_failed"`
	OriginalTokens int           `json:"original_tokens"`
	ValidTokens    int           `json:"valid_tokens"`
	CleanedTokens  int           `json:"cleaned_tokens"`
	ChunkResults   []ChunkResult `json:"per_chunk_results,omitempty"`
}
