package push

import (
	"strings"

	"github.com/appleboy/go-fcm"
	"github.com/classpulse/classpulse-server/models"
	"github.com/classpulse/classpulse-server/models/dbmodels"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// UserStore is the slice of the user table this engine reads and writes
type UserStore interface {
	ListUsersWithDeviceTokens(userIDs []uuid.UUID) ([]dbmodels.User, error)
	ClearDeviceTokenByValue(token string) error
}

// PreferenceStore answers who opted in to a category
type PreferenceStore interface {
	GetEligibleUserIDs(category string) ([]uuid.UUID, error)
}

// Engine is the push-notification fan-out engine. Construct once with the
// resolved transport; everything on it is safe for concurrent use.
type Engine struct {
	Users      UserStore
	Prefs      PreferenceStore
	Dispatcher *Dispatcher
}

// ResolveRecipients turns a category (plus an optional explicit recipient
// subset and an excluded actor) into a deduplicated token list.
// An empty category means every active device, used for broadcasts.
func (e *Engine) ResolveRecipients(category string, explicitUserIDs []uuid.UUID, excludeUserID *uuid.UUID) ([]string, error) {
	var targetIDs []uuid.UUID
	if category != "" {
		eligible, err := e.Prefs.GetEligibleUserIDs(category)
		if err != nil {
			return nil, err
		}
		if explicitUserIDs != nil {
			eligible = intersectIDs(eligible, explicitUserIDs)
		}
		if len(eligible) == 0 {
			// Nobody opted in, skip the token fetch entirely
			return []string{}, nil
		}
		targetIDs = eligible
	} else {
		targetIDs = explicitUserIDs
	}

	users, err := e.Users.ListUsersWithDeviceTokens(targetIDs)
	if err != nil {
		return nil, err
	}

	// The actor's token is excluded by value: even if the same install were
	// somehow attached to another eligible row, it stays out of the set
	excludedToken := ""
	if excludeUserID != nil {
		for _, u := range users {
			if u.ID == *excludeUserID && u.DeviceToken != nil {
				excludedToken = strings.TrimSpace(*u.DeviceToken)
				break
			}
		}
	}

	seen := map[string]struct{}{}
	tokens := []string{}
	for _, u := range users {
		if excludeUserID != nil && u.ID == *excludeUserID {
			continue
		}
		if !u.CanReceivePush() {
			continue
		}
		token := strings.TrimSpace(*u.DeviceToken)
		if token == "" || token == excludedToken {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func intersectIDs(a []uuid.UUID, b []uuid.UUID) []uuid.UUID {
	inB := make(map[uuid.UUID]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, id := range a {
		if _, ok := inB[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// SendToDevices validates, dispatches and reconciles. Tokens the provider
// marked permanently dead are purged from the user store; purge failures are
// logged and never fail the dispatch.
func (e *Engine) SendToDevices(tokens []string, message *models.NotificationMessage) (*models.DispatchReport, error) {
	valid := FilterTokens(tokens)
	report, err := e.Dispatcher.Dispatch(valid, message)
	report.OriginalTokens = len(tokens)
	report.ValidTokens = len(valid)
	if err != nil {
		return report, err
	}

	invalid := CollectInvalidTokens(report)
	for _, token := range invalid {
		if err := e.Users.ClearDeviceTokenByValue(token); err != nil {
			klog.Errorf("Error clearing dead device token: %v", err)
			continue
		}
		report.CleanedTokens++
	}
	if report.CleanedTokens > 0 {
		klog.Infof("Cleaned %d dead device tokens after dispatch", report.CleanedTokens)
	}
	return report, nil
}

// SendToDevice is the single-token convenience wrapper
func (e *Engine) SendToDevice(token string, message *models.NotificationMessage) (*models.DispatchReport, error) {
	return e.SendToDevices([]string{token}, message)
}

// SendToTopic broadcasts to a topic. Only the legacy transport supports
// this, and no per-token reconciliation is possible.
func (e *Engine) SendToTopic(topic string, message *models.NotificationMessage) error {
	if e.Dispatcher.Transport() == nil {
		return ErrNotConfigured
	}
	if e.Dispatcher.legacyClient == nil {
		return ErrLegacyOnly
	}
	data := make(map[string]interface{}, len(message.Data))
	for k, v := range message.Data {
		data[k] = v
	}
	msg := &fcm.Message{
		To:       "/topics/" + topic,
		Priority: "high",
		Data:     data,
		Notification: &fcm.Notification{
			Title: message.Title,
			Body:  message.Body,
			Sound: "default",
		},
	}
	resp, err := e.Dispatcher.legacyClient.Send(msg)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

// notifyCategory is the shared composition: resolve recipients for the
// category, exclude the actor, fan out. It never propagates an error, the
// feature operation that triggered it must not fail on notification trouble.
func (e *Engine) notifyCategory(category string, explicitUserIDs []uuid.UUID, actorID *uuid.UUID, message *models.NotificationMessage) *models.DispatchReport {
	tokens, err := e.ResolveRecipients(category, explicitUserIDs, actorID)
	if err != nil {
		klog.Errorf("Error resolving %s recipients: %v", category, err)
		return &models.DispatchReport{}
	}
	if len(tokens) == 0 {
		klog.V(3).Infof("No eligible recipients for %s notification", category)
		return &models.DispatchReport{}
	}
	report, err := e.SendToDevices(tokens, message)
	if err != nil {
		klog.Errorf("Error dispatching %s notification: %v", category, err)
		return report
	}
	klog.V(3).Infof("Dispatched %s notification: %d sent, %d failed, %d cleaned",
		category, report.TotalSent, report.TotalFailed, report.CleanedTokens)
	return report
}

// NotifyNewPost fans out a post notification to everyone opted in, except
// the author
func (e *Engine) NotifyNewPost(actorID uuid.UUID, postID uuid.UUID, title string, body string) *models.DispatchReport {
	message := &models.NotificationMessage{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"notification_type": models.CategoryPost,
			"post_id":           postID.String(),
		},
	}
	return e.notifyCategory(models.CategoryPost, nil, &actorID, message)
}

// NotifyNewNotes fans out a notes-upload notification, except the uploader
func (e *Engine) NotifyNewNotes(actorID uuid.UUID, noteID uuid.UUID, subjectID uuid.UUID, title string, body string) *models.DispatchReport {
	message := &models.NotificationMessage{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"notification_type": models.CategoryNotes,
			"note_id":           noteID.String(),
			"subject_id":        subjectID.String(),
		},
	}
	return e.notifyCategory(models.CategoryNotes, nil, &actorID, message)
}

// NotifyAnnouncement fans an announcement out to everyone opted in
func (e *Engine) NotifyAnnouncement(actorID uuid.UUID, title string, body string) *models.DispatchReport {
	message := &models.NotificationMessage{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"notification_type": models.CategoryAnnouncement,
		},
	}
	return e.notifyCategory(models.CategoryAnnouncement, nil, &actorID, message)
}

// NotifyScheduleChange fans a timetable update out to everyone opted in
func (e *Engine) NotifyScheduleChange(actorID uuid.UUID, title string, body string) *models.DispatchReport {
	message := &models.NotificationMessage{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"notification_type": models.CategorySchedule,
		},
	}
	return e.notifyCategory(models.CategorySchedule, nil, &actorID, message)
}

// NotifyConnectionRequest targets exactly one user, the request's recipient
func (e *Engine) NotifyConnectionRequest(actorID uuid.UUID, targetID uuid.UUID, title string, body string) *models.DispatchReport {
	message := &models.NotificationMessage{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"notification_type": models.CategoryConnection,
			"user_id":           actorID.String(),
		},
	}
	return e.notifyCategory(models.CategoryConnection, []uuid.UUID{targetID}, &actorID, message)
}
