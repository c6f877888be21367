package push

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/classpulse/classpulse-server/models"
	"github.com/classpulse/classpulse-server/models/dbmodels"
	"github.com/classpulse/classpulse-server/utils"
	"github.com/google/uuid"
)

type fakeUserStore struct {
	users     []dbmodels.User
	listCalls int
}

func (s *fakeUserStore) ListUsersWithDeviceTokens(userIDs []uuid.UUID) ([]dbmodels.User, error) {
	s.listCalls++
	var out []dbmodels.User
	for _, u := range s.users {
		if u.DeviceToken == nil || strings.TrimSpace(*u.DeviceToken) == "" {
			continue
		}
		if userIDs != nil {
			matched := false
			for _, id := range userIDs {
				if id == u.ID {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *fakeUserStore) ClearDeviceTokenByValue(token string) error {
	for i := range s.users {
		if s.users[i].DeviceToken != nil && *s.users[i].DeviceToken == token {
			s.users[i].DeviceToken = nil
		}
	}
	return nil
}

type fakePrefStore struct {
	eligible map[string][]uuid.UUID
}

func (s *fakePrefStore) GetEligibleUserIDs(category string) ([]uuid.UUID, error) {
	return s.eligible[category], nil
}

func fakeUser(token string) dbmodels.User {
	u := dbmodels.User{OnboardingComplete: true}
	u.ID = uuid.New()
	if token != "" {
		u.DeviceToken = &token
	}
	return u
}

func userIDs(users []dbmodels.User) []uuid.UUID {
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func TestResolveRecipientsExcludesActor(t *testing.T) {
	// Five users opted in to notes, the uploader must not hear about
	// their own upload
	users := []dbmodels.User{
		fakeUser("mock-device-00-xYzAbCdEfGhIjKlMnOp"),
		fakeUser("mock-device-01-xYzAbCdEfGhIjKlMnOp"),
		fakeUser("mock-device-02-xYzAbCdEfGhIjKlMnOp"),
		fakeUser("mock-device-03-xYzAbCdEfGhIjKlMnOp"),
		fakeUser("mock-device-04-xYzAbCdEfGhIjKlMnOp"),
	}
	engine := &Engine{
		Users: &fakeUserStore{users: users},
		Prefs: &fakePrefStore{eligible: map[string][]uuid.UUID{
			models.CategoryNotes: userIDs(users),
		}},
	}

	uploader := users[2].ID
	tokens, err := engine.ResolveRecipients(models.CategoryNotes, nil, &uploader)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 4, len(tokens))
	for _, token := range tokens {
		utils.AssertEqual(t, true, token != *users[2].DeviceToken)
	}
}

func TestResolveRecipientsEmptyEligible(t *testing.T) {
	store := &fakeUserStore{users: []dbmodels.User{
		fakeUser("mock-device-00-xYzAbCdEfGhIjKlMnOp"),
	}}
	engine := &Engine{
		Users: store,
		Prefs: &fakePrefStore{eligible: map[string][]uuid.UUID{}},
	}

	tokens, err := engine.ResolveRecipients(models.CategoryPost, nil, nil)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 0, len(tokens))
	// Nobody opted in, the user table is never touched
	utils.AssertEqual(t, 0, store.listCalls)
}

func TestResolveRecipientsDedup(t *testing.T) {
	shared := "mock-shared-00-xYzAbCdEfGhIjKlMnOp"
	users := []dbmodels.User{
		fakeUser(shared),
		fakeUser(shared),
		fakeUser("   "),
		fakeUser("mock-device-01-xYzAbCdEfGhIjKlMnOp"),
	}
	engine := &Engine{
		Users: &fakeUserStore{users: users},
		Prefs: &fakePrefStore{eligible: map[string][]uuid.UUID{
			models.CategoryPost: userIDs(users),
		}},
	}

	tokens, err := engine.ResolveRecipients(models.CategoryPost, nil, nil)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 2, len(tokens))
}

func TestResolveRecipientsExplicitSubset(t *testing.T) {
	users := []dbmodels.User{
		fakeUser("mock-device-00-xYzAbCdEfGhIjKlMnOp"),
		fakeUser("mock-device-01-xYzAbCdEfGhIjKlMnOp"),
		fakeUser("mock-device-02-xYzAbCdEfGhIjKlMnOp"),
	}
	engine := &Engine{
		Users: &fakeUserStore{users: users},
		Prefs: &fakePrefStore{eligible: map[string][]uuid.UUID{
			// Only the first two are opted in to connection requests
			models.CategoryConnection: {users[0].ID, users[1].ID},
		}},
	}

	// Explicit target opted in
	tokens, err := engine.ResolveRecipients(models.CategoryConnection, []uuid.UUID{users[1].ID}, nil)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 1, len(tokens))
	utils.AssertEqual(t, *users[1].DeviceToken, tokens[0])

	// Explicit target opted out
	tokens, err = engine.ResolveRecipients(models.CategoryConnection, []uuid.UUID{users[2].ID}, nil)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 0, len(tokens))
}

func TestSendToDevicesCleansDeadTokens(t *testing.T) {
	var requestCount int64
	server := httptest.NewServer(legacyEchoHandler(&requestCount))
	defer server.Close()

	dispatcher, err := NewDispatcher(
		&LegacyKeyTransport{ServerKey: "test-key"},
		WithLegacyEndpoint(server.URL),
	)
	utils.AssertEqual(t, nil, err)

	deadToken := "dead-device-01-xYzAbCdEfGhIjKlMnOp"
	users := []dbmodels.User{
		fakeUser("mock-device-00-xYzAbCdEfGhIjKlMnOp"),
		fakeUser(deadToken),
		fakeUser("mock-device-02-xYzAbCdEfGhIjKlMnOp"),
	}
	store := &fakeUserStore{users: users}
	engine := &Engine{
		Users: store,
		Prefs: &fakePrefStore{eligible: map[string][]uuid.UUID{
			models.CategoryPost: userIDs(users),
		}},
		Dispatcher: dispatcher,
	}

	tokens, err := engine.ResolveRecipients(models.CategoryPost, nil, nil)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 3, len(tokens))

	report, err := engine.SendToDevices(tokens, &models.NotificationMessage{Title: "t"})
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 2, report.TotalSent)
	utils.AssertEqual(t, 1, report.TotalFailed)
	utils.AssertEqual(t, 1, report.CleanedTokens)

	// The dead token is gone from the store, the next resolve skips it
	tokens, err = engine.ResolveRecipients(models.CategoryPost, nil, nil)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 2, len(tokens))
	for _, token := range tokens {
		utils.AssertEqual(t, true, token != deadToken)
	}
}

func TestNotifyConnectionRequest(t *testing.T) {
	var requestCount int64
	server := httptest.NewServer(legacyEchoHandler(&requestCount))
	defer server.Close()

	dispatcher, err := NewDispatcher(
		&LegacyKeyTransport{ServerKey: "test-key"},
		WithLegacyEndpoint(server.URL),
	)
	utils.AssertEqual(t, nil, err)

	users := []dbmodels.User{
		fakeUser("mock-device-00-xYzAbCdEfGhIjKlMnOp"),
		fakeUser("mock-device-01-xYzAbCdEfGhIjKlMnOp"),
	}
	engine := &Engine{
		Users: &fakeUserStore{users: users},
		Prefs: &fakePrefStore{eligible: map[string][]uuid.UUID{
			models.CategoryConnection: userIDs(users),
		}},
		Dispatcher: dispatcher,
	}

	report := engine.NotifyConnectionRequest(users[0].ID, users[1].ID, "New connection", "Someone wants to connect")
	utils.AssertEqual(t, 1, report.TotalSent)
	utils.AssertEqual(t, 0, report.TotalFailed)
	utils.AssertEqual(t, int64(1), atomic.LoadInt64(&requestCount))
}

func TestNotifyNewPostNoRecipients(t *testing.T) {
	var requestCount int64
	server := httptest.NewServer(legacyEchoHandler(&requestCount))
	defer server.Close()

	dispatcher, err := NewDispatcher(
		&LegacyKeyTransport{ServerKey: "test-key"},
		WithLegacyEndpoint(server.URL),
	)
	utils.AssertEqual(t, nil, err)

	author := fakeUser("mock-device-00-xYzAbCdEfGhIjKlMnOp")
	engine := &Engine{
		Users: &fakeUserStore{users: []dbmodels.User{author}},
		Prefs: &fakePrefStore{eligible: map[string][]uuid.UUID{
			models.CategoryPost: {author.ID},
		}},
		Dispatcher: dispatcher,
	}

	// The author is the only opted-in user, so the fan-out is empty
	report := engine.NotifyNewPost(author.ID, uuid.New(), "New post", "body")
	utils.AssertEqual(t, 0, report.TotalSent)
	utils.AssertEqual(t, int64(0), atomic.LoadInt64(&requestCount))
}

func TestSendToTopic(t *testing.T) {
	var sentTo string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			To string `json:"to"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		sentTo = body.To
		json.NewEncoder(w).Encode(map[string]interface{}{"message_id": 12345})
	}))
	defer server.Close()

	dispatcher, err := NewDispatcher(
		&LegacyKeyTransport{ServerKey: "test-key"},
		WithLegacyEndpoint(server.URL),
	)
	utils.AssertEqual(t, nil, err)

	engine := &Engine{Dispatcher: dispatcher}
	err = engine.SendToTopic("announcements", &models.NotificationMessage{Title: "Heads up"})
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, "/topics/announcements", sentTo)
}

func TestSendToTopicV1Unsupported(t *testing.T) {
	dispatcher, err := NewDispatcher(&ServiceAccountTransport{
		ProjectID:   "p",
		ClientEmail: "e@p.iam.gserviceaccount.com",
		PrivateKey:  "irrelevant",
	})
	utils.AssertEqual(t, nil, err)

	engine := &Engine{Dispatcher: dispatcher}
	err = engine.SendToTopic("announcements", &models.NotificationMessage{Title: "t"})
	utils.AssertEqual(t, ErrLegacyOnly, err)
}
