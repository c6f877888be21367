package push

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/classpulse/classpulse-server/config"
	"github.com/classpulse/classpulse-server/models"
	"github.com/classpulse/classpulse-server/utils"
	"k8s.io/klog/v2"
)

// A separate interface for HTTPClient allows us to create a mock implementation

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	Client HTTPClient
)

func init() {
	Client = &http.Client{Timeout: config.RequestTimeout}
}

// Transport is the credential strategy resolved once at startup.
// A nil Transport means unconfigured, which only becomes an error when a
// send is attempted.
type Transport interface {
	Kind() string
}

// ServiceAccountTransport sends through the FCM HTTP v1 API with an OAuth2
// bearer token minted from the service account
type ServiceAccountTransport struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

func (t *ServiceAccountTransport) Kind() string {
	return "v1"
}

// LegacyKeyTransport sends through the legacy FCM API with a server key
type LegacyKeyTransport struct {
	ServerKey string
}

func (t *LegacyKeyTransport) Kind() string {
	return "legacy"
}

// ResolveTransport probes the environment and config for credentials.
// Precedence: inline service-account JSON, then a path from the environment,
// then the config fallback path, then a legacy server/VAPID key.
func ResolveTransport() Transport {
	if raw := utils.GetEnv("FIREBASE_CREDENTIALS_JSON", ""); raw != "" {
		t, err := serviceAccountTransport([]byte(raw))
		if err != nil {
			klog.Errorf("Ignoring FIREBASE_CREDENTIALS_JSON: %v", err)
		} else {
			return t
		}
	}

	for _, path := range []string{
		utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		config.ServiceAccountFile,
	} {
		if path == "" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		t, err := serviceAccountTransport(raw)
		if err != nil {
			klog.Errorf("Ignoring service account file %s: %v", path, err)
			continue
		}
		return t
	}

	if key := utils.GetEnv("FCM_API_KEY", utils.GetEnv("FCM_VAPID_KEY", "")); key != "" {
		return &LegacyKeyTransport{ServerKey: key}
	}

	return nil
}

func serviceAccountTransport(raw []byte) (*ServiceAccountTransport, error) {
	var sa models.ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, err
	}
	if sa.ProjectID == "" || sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errMissingServiceAccountFields
	}
	return &ServiceAccountTransport{
		ProjectID:   sa.ProjectID,
		ClientEmail: sa.ClientEmail,
		PrivateKey:  sa.PrivateKey,
	}, nil
}
