package models

// FCM HTTP v1 wire format. The v1 schema accepts exactly one token per
// message, so a multi-token chunk becomes several of these.

type V1SendRequest struct {
	Message V1Message `json:"message"`
}

type V1Message struct {
	Token        string            `json:"token"`
	Notification *V1Notification   `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *V1AndroidConfig  `json:"android,omitempty"`
}

type V1Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type V1AndroidConfig struct {
	Priority     string                 `json:"priority,omitempty"`
	Notification *V1AndroidNotification `json:"notification,omitempty"`
}

type V1AndroidNotification struct {
	Sound       string `json:"sound,omitempty"`
	ClickAction string `json:"click_action,omitempty"`
}

// V1SendResponse - success carries "name", failure carries "error"
type V1SendResponse struct {
	Name  string   `json:"name"`
	Error *V1Error `json:"error,omitempty"`
}

type V1Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Status  string          `json:"status"`
	Details []V1ErrorDetail `json:"details,omitempty"`
}

type V1ErrorDetail struct {
	Type      string `json:"@type"`
	ErrorCode string `json:"errorCode"`
}

// ErrorCode digs the FCM-specific code out of the error details,
// falling back to the RPC status
func (e *V1Error) ErrorCode() string {
	for _, d := range e.Details {
		if d.ErrorCode != "" {
			return d.ErrorCode
		}
	}
	return e.Status
}
