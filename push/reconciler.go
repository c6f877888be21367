package push

import (
	"github.com/appleboy/go-fcm"
	"github.com/classpulse/classpulse-server/models"
	"k8s.io/klog/v2"
)

// ReconcileLegacyChunk maps the legacy per-index results array back onto the
// chunk's tokens. Entries with a message id are successes; entries whose
// error marks the registration dead queue the token for cleanup. Every other
// error code (quota, unavailable, internal) counts as failed but is left
// alone, cleaning those up would lose live tokens on transient conditions.
func ReconcileLegacyChunk(chunk []string, resp *fcm.Response) models.ChunkResult {
	result := models.ChunkResult{}
	if len(resp.Results) != len(chunk) {
		// Can't attribute outcomes per token, fall back to the counters
		klog.Errorf("Legacy response has %d results for %d tokens", len(resp.Results), len(chunk))
		result.Sent = resp.Success
		result.Failed = resp.Failure
		return result
	}
	for i, r := range resp.Results {
		if r.Error == nil && r.MessageID != "" {
			result.Sent++
			continue
		}
		result.Failed++
		if r.Unregistered() {
			result.InvalidTokens = append(result.InvalidTokens, chunk[i])
		}
	}
	return result
}

// v1 error codes that mean the token will never work again
var permanentV1Codes = map[string]bool{
	"UNREGISTERED":       true,
	"INVALID_ARGUMENT":   true,
	"SENDER_ID_MISMATCH": true,
}

// PermanentV1Error reports whether a v1 error condemns the token itself
// rather than the request or the service
func PermanentV1Error(v1err *models.V1Error) bool {
	if v1err == nil {
		return false
	}
	return permanentV1Codes[v1err.ErrorCode()]
}

// CollectInvalidTokens unions the per-chunk invalid sets, deduplicated once
func CollectInvalidTokens(report *models.DispatchReport) []string {
	seen := map[string]struct{}{}
	var invalid []string
	for _, chunk := range report.ChunkResults {
		for _, token := range chunk.InvalidTokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			invalid = append(invalid, token)
		}
	}
	return invalid
}
