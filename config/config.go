package config

import "time"

// FCM endpoints
const (
	FCMLegacySendURL   = "https://fcm.googleapis.com/fcm/send"
	FCMV1SendURLFormat = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
	OAuthTokenURL      = "https://oauth2.googleapis.com/token"
	FCMMessagingScope  = "https://www.googleapis.com/auth/firebase.messaging"
)

// Fallback path for the service account JSON when no env var is set
const ServiceAccountFile = "firebase-service-account.json"

// Dispatch tuning
const (
	// Max tokens per provider request-group
	ChunkSize = 10
	// Upper bound on concurrent chunk sends
	MaxDispatchWorkers = 8
	// In-flight v1 requests within a single chunk
	V1ChunkConcurrency = 4
	// Hard bound on tail latency per provider call
	RequestTimeout = 30 * time.Second
)

// Access token caching
const (
	AccessTokenCacheKey = "fcm_access_token"
	// Refresh this long before the token actually expires
	AccessTokenExpiryMargin = 5 * time.Minute
)
