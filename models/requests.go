package models

// device_update request
type DeviceUpdate struct {
	Action      string `json:"action" mapstructure:"action"`
	UserID      string `json:"user_id" mapstructure:"user_id"`
	DeviceToken string `json:"device_token" mapstructure:"device_token"`
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
}

// notification_settings_update request
type NotificationSettingsUpdate struct {
	Action       string `json:"action" mapstructure:"action"`
	UserID       string `json:"user_id" mapstructure:"user_id"`
	Master       bool   `json:"master" mapstructure:"master"`
	Post         bool   `json:"post" mapstructure:"post"`
	Notes        bool   `json:"notes" mapstructure:"notes"`
	Announcement bool   `json:"announcement" mapstructure:"announcement"`
	Connection   bool   `json:"connection" mapstructure:"connection"`
	Schedule     bool   `json:"schedule" mapstructure:"schedule"`
}

// Feature events posted to /callback. The actor is the user whose action
// triggered the event; their own device is never notified.
type EventCallback struct {
	Type      string `json:"type" mapstructure:"type"`
	ActorID   string `json:"actor_id" mapstructure:"actor_id"`
	TargetID  string `json:"target_id,omitempty" mapstructure:"target_id,omitempty"`
	PostID    string `json:"post_id,omitempty" mapstructure:"post_id,omitempty"`
	NoteID    string `json:"note_id,omitempty" mapstructure:"note_id,omitempty"`
	SubjectID string `json:"subject_id,omitempty" mapstructure:"subject_id,omitempty"`
	Title     string `json:"title" mapstructure:"title"`
	Body      string `json:"body" mapstructure:"body"`
}
