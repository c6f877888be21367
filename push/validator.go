package push

import (
	"strings"

	"github.com/classpulse/classpulse-server/utils"
)

// FilterTokens drops structurally invalid device tokens before any network
// call. Whitespace is trimmed first so a padded-but-valid token survives.
func FilterTokens(tokens []string) []string {
	valid := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if utils.ValidateDeviceToken(token) {
			valid = append(valid, token)
		}
	}
	return valid
}
