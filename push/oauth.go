package push

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/classpulse/classpulse-server/config"
	"github.com/classpulse/classpulse-server/database"
	"github.com/classpulse/classpulse-server/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

// TokenIssuer mints short-lived OAuth2 bearer tokens for the v1 transport.
// Issued tokens are cached in redis with an expiry margin; concurrent
// batches collapse onto one issuance via singleflight. Both are
// optimizations, a cache miss just means re-issuing per batch.
type TokenIssuer struct {
	transport *ServiceAccountTransport
	tokenURL  string
	group     singleflight.Group
}

func NewTokenIssuer(transport *ServiceAccountTransport) *TokenIssuer {
	return &TokenIssuer{
		transport: transport,
		tokenURL:  config.OAuthTokenURL,
	}
}

// NewTokenIssuerWithURL is used by tests to point issuance at a local endpoint
func NewTokenIssuerWithURL(transport *ServiceAccountTransport, tokenURL string) *TokenIssuer {
	return &TokenIssuer{
		transport: transport,
		tokenURL:  tokenURL,
	}
}

// AccessToken returns a bearer token, from cache when possible
func (ti *TokenIssuer) AccessToken() (string, error) {
	if cached, err := database.GetRedisDB().Get(config.AccessTokenCacheKey); err == nil && cached != "" {
		return cached, nil
	}
	v, err, _ := ti.group.Do("issue", func() (interface{}, error) {
		return ti.Refresh()
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Refresh unconditionally issues a new token and refreshes the cache.
// The warm-up job calls this before the cached token expires.
func (ti *TokenIssuer) Refresh() (string, error) {
	token, expiresIn, err := ti.issue()
	if err != nil {
		return "", err
	}
	ttl := time.Duration(expiresIn)*time.Second - config.AccessTokenExpiryMargin
	if ttl > 0 {
		if err := database.GetRedisDB().Set(config.AccessTokenCacheKey, token, ttl); err != nil {
			// Cache failures degrade to per-batch issuance
			klog.Errorf("Error caching access token: %v", err)
		}
	}
	return token, nil
}

// issue builds the RS256-signed JWT assertion and exchanges it at the
// Google token endpoint
func (ti *TokenIssuer) issue() (string, int, error) {
	assertion, err := ti.signAssertion()
	if err != nil {
		return "", 0, &AuthError{Op: "sign assertion", Err: err}
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	request, err := http.NewRequest(http.MethodPost, ti.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &AuthError{Op: "build token request", Err: err}
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := Client.Do(request)
	if err != nil {
		return "", 0, &AuthError{Op: "token endpoint", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &AuthError{Op: "read token response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		klog.Errorf("OAuth2 token endpoint returned %d: %s", resp.StatusCode, body)
		return "", 0, &AuthError{Op: "token endpoint", Status: resp.StatusCode}
	}

	var tokenResp models.OAuthTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", 0, &AuthError{Op: "parse token response", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return "", 0, &AuthError{Op: "token response missing access_token", Status: resp.StatusCode}
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	klog.V(3).Infof("Issued FCM access token for %s, expires in %ds", ti.transport.ClientEmail, expiresIn)
	return tokenResp.AccessToken, expiresIn, nil
}

func (ti *TokenIssuer) signAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(ti.transport.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parsing service account private key: %w", err)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   ti.transport.ClientEmail,
		"scope": config.FCMMessagingScope,
		"aud":   config.OAuthTokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}
