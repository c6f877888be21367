package utils

import "regexp"

// Anything shorter than this can't be a real registration id
const MinDeviceTokenLength = 20

// One or two alphanumeric/_/- segments, optionally separated by a single colon.
// Legacy FCM registration ids sometimes embed a colon-delimited sender prefix.
const deviceTokenRegexStr = "^[0-9A-Za-z_-]+(:[0-9A-Za-z_-]+)?$"

var deviceTokenRegex = regexp.MustCompile(deviceTokenRegexStr)

// ValidateDeviceToken - Returns true if a device token is syntactically plausible
// This is a cheap pre-filter, not a provider-confirmed validity check
func ValidateDeviceToken(token string) bool {
	if len(token) < MinDeviceTokenLength {
		return false
	}
	return deviceTokenRegex.MatchString(token)
}
