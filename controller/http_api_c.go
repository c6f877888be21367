package controller

import (
	"fmt"
	"strings"

	"github.com/classpulse/classpulse-server/models"
	"github.com/classpulse/classpulse-server/models/dbmodels"
	"github.com/classpulse/classpulse-server/push"
	"github.com/classpulse/classpulse-server/repository"
	"github.com/classpulse/classpulse-server/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/exp/slices"
	"k8s.io/klog/v2"
)

type HttpController struct {
	UserRepo     *repository.UserRepo
	SettingsRepo *repository.NotificationSettingsRepo
	Engine       *push.Engine
}

var supportedActions = []string{
	"device_update",
	"notification_settings_update",
}

// HandleAction routes action-tagged JSON requests, the same shape mobile
// clients already speak
func (hc *HttpController) HandleAction(c *fiber.Ctx) error {
	var baseRequest map[string]interface{}
	if err := c.BodyParser(&baseRequest); err != nil {
		klog.Errorf("Error unmarshalling http base request %s", err)
		return ErrInvalidRequest(c)
	}

	if _, ok := baseRequest["action"]; !ok {
		return ErrInvalidRequest(c)
	}

	action := strings.ToLower(fmt.Sprintf("%v", baseRequest["action"]))

	if !slices.Contains(supportedActions, action) {
		klog.Errorf("Action %s is not supported", action)
		return ErrUnsupportedAction(c)
	}

	klog.Infof("Received HTTP action %s", action)

	if action == "device_update" {
		var deviceUpdate models.DeviceUpdate
		if err := mapstructure.Decode(baseRequest, &deviceUpdate); err != nil {
			return ErrInvalidRequest(c)
		}
		userID, err := uuid.Parse(deviceUpdate.UserID)
		if err != nil {
			return ErrBadRequest(c, "user_id is not a valid uuid")
		}
		if deviceUpdate.Enabled && !utils.ValidateDeviceToken(deviceUpdate.DeviceToken) {
			return ErrBadRequest(c, "device_token is malformed")
		}
		user, err := hc.UserRepo.FindByID(userID)
		if err != nil {
			klog.Errorf("Error looking up user %s: %v", userID, err)
			return ErrInternalServerError(c, "Unable to look up user")
		}
		if user == nil {
			return ErrBadRequest(c, "user does not exist")
		}
		if deviceUpdate.Enabled {
			if err := hc.UserRepo.AssignDeviceToken(userID, deviceUpdate.DeviceToken); err != nil {
				klog.Errorf("Error assigning device token: %v", err)
				return ErrInternalServerError(c, "Unable to register device")
			}
		} else {
			if err := hc.UserRepo.ClearDeviceToken(userID); err != nil {
				klog.Errorf("Error clearing device token: %v", err)
				return ErrInternalServerError(c, "Unable to unregister device")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
	}

	// notification_settings_update
	var settingsUpdate models.NotificationSettingsUpdate
	if err := mapstructure.Decode(baseRequest, &settingsUpdate); err != nil {
		return ErrInvalidRequest(c)
	}
	userID, err := uuid.Parse(settingsUpdate.UserID)
	if err != nil {
		return ErrBadRequest(c, "user_id is not a valid uuid")
	}
	setting := dbmodels.NotificationSetting{
		UserID:       userID,
		Master:       settingsUpdate.Master,
		Post:         settingsUpdate.Post,
		Notes:        settingsUpdate.Notes,
		Announcement: settingsUpdate.Announcement,
		Connection:   settingsUpdate.Connection,
		Schedule:     settingsUpdate.Schedule,
	}
	if err := hc.SettingsRepo.UpdateSettings(&setting); err != nil {
		klog.Errorf("Error updating notification settings: %v", err)
		return ErrInternalServerError(c, "Unable to update settings")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// HandleEventCallback accepts feature events and fans notifications out in
// the background. It always answers 200: notification delivery is
// best-effort and must never fail the operation that triggered it.
func (hc *HttpController) HandleEventCallback(c *fiber.Ctx) error {
	var event models.EventCallback
	if err := c.BodyParser(&event); err != nil {
		klog.Errorf("Error unmarshalling event callback %s", err)
		return c.SendStatus(fiber.StatusOK)
	}

	actorID, err := uuid.Parse(event.ActorID)
	if err != nil {
		klog.Errorf("Event callback has invalid actor_id %q", event.ActorID)
		return c.SendStatus(fiber.StatusOK)
	}

	switch event.Type {
	case "post_created":
		postID, err := uuid.Parse(event.PostID)
		if err != nil {
			klog.Errorf("post_created callback has invalid post_id %q", event.PostID)
			break
		}
		go hc.Engine.NotifyNewPost(actorID, postID, event.Title, event.Body)
	case "notes_uploaded":
		noteID, err := uuid.Parse(event.NoteID)
		if err != nil {
			klog.Errorf("notes_uploaded callback has invalid note_id %q", event.NoteID)
			break
		}
		subjectID, err := uuid.Parse(event.SubjectID)
		if err != nil {
			klog.Errorf("notes_uploaded callback has invalid subject_id %q", event.SubjectID)
			break
		}
		go hc.Engine.NotifyNewNotes(actorID, noteID, subjectID, event.Title, event.Body)
	case "announcement":
		go hc.Engine.NotifyAnnouncement(actorID, event.Title, event.Body)
	case "schedule_change":
		go hc.Engine.NotifyScheduleChange(actorID, event.Title, event.Body)
	case "connection_request":
		targetID, err := uuid.Parse(event.TargetID)
		if err != nil {
			klog.Errorf("connection_request callback has invalid target_id %q", event.TargetID)
			break
		}
		go hc.Engine.NotifyConnectionRequest(actorID, targetID, event.Title, event.Body)
	default:
		klog.Errorf("Unknown event callback type %s", event.Type)
	}

	return c.SendStatus(fiber.StatusOK)
}
