package settings

import (
	"fmt"
	"os"
	"strings"
)

// ConfigurationError reports credentials missing from the environment. It
// is returned before any network call is made.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: missing environment variable(s) %s",
		strings.Join(e.Missing, ", "))
}

type Credentials struct {
	InferenceToken string
	SearchToken    string
}

// Credentials resolves API keys from the environment. The search key is
// only required when needSearch is set and the provider needs one.
func (c *ConfigurationFile) Credentials(needSearch bool) (*Credentials, error) {
	creds := &Credentials{}
	missing := make([]string, 0, 2)

	if c.Inference.TokenEnv != "" {
		creds.InferenceToken = strings.TrimSpace(os.Getenv(c.Inference.TokenEnv))
		if creds.InferenceToken == "" {
			missing = append(missing, c.Inference.TokenEnv)
		}
	}

	if needSearch && c.Search.Provider != SearchDuckDuckGo && c.Search.TokenEnv != "" {
		creds.SearchToken = strings.TrimSpace(os.Getenv(c.Search.TokenEnv))
		if creds.SearchToken == "" {
			missing = append(missing, c.Search.TokenEnv)
		}
	}

	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	return creds, nil
}
