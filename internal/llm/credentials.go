package llm

import (
	"strings"

	"github.com/joseph-ayodele/cogniflow/internal/common"
)

// ResolveCredential returns the first non-blank candidate. Callers pass
// candidates in priority order: explicit flag, stored settings, environment.
func ResolveCredential(candidates ...string) (string, error) {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c, nil
		}
	}
	return "", common.ConfigError("no API key configured: set one in settings or CEREBRAS_API_KEY")
}
