package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProcessConfigurationFileDefaults(t *testing.T) {
	config, err := ProcessConfigurationFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Agent.MaxIterations != 5 {
		t.Errorf("expected 5 iterations by default, got %d", config.Agent.MaxIterations)
	}
	if config.Inference.Model != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected default model %q", config.Inference.Model)
	}
}

func TestProcessConfigurationFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlText := []byte(`
inference:
  model: mixtral
search:
  provider: duckduckgo
agent:
  max-iterations: 8
`)
	if err := os.WriteFile(path, yamlText, 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := ProcessConfigurationFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Inference.Model != "mixtral" {
		t.Errorf("model not overridden: %q", config.Inference.Model)
	}
	if config.Inference.Endpoint == "" {
		t.Errorf("endpoint default lost during merge")
	}
	if config.Search.Provider != SearchDuckDuckGo {
		t.Errorf("provider not overridden: %q", config.Search.Provider)
	}
	if config.Agent.MaxIterations != 8 {
		t.Errorf("max-iterations not overridden: %d", config.Agent.MaxIterations)
	}
	if config.Agent.MaxParseAttempts != 3 {
		t.Errorf("max-parse-attempts default lost: %d", config.Agent.MaxParseAttempts)
	}
}

func TestParseConfigurationRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"protocol":   "inference:\n  protocol: grpc\n",
		"provider":   "search:\n  provider: bing\n",
		"iterations": "agent:\n  max-iterations: 0\n",
		"generation": "agent:\n  max-generation-failures: 0\n",
		"timeout":    "agent:\n  call-timeout-seconds: -1\n",
		"limit":      "agent:\n  observation-limit: 0\n",
		"inference":  "inference:\n  timeout-seconds: 0\n",
		"results":    "search:\n  max-results: -1\n",
	}
	for name, yamlText := range cases {
		t.Run(name, func(t *testing.T) {
			if err := ParseConfiguration([]byte(yamlText), Default()); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestCredentialsMissing(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("TAVILY_API_KEY", "")

	_, err := Default().Credentials(true)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Missing) != 2 {
		t.Errorf("expected both variables reported, got %v", cfgErr.Missing)
	}
}

func TestCredentialsSearchOptional(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("TAVILY_API_KEY", "")

	creds, err := Default().Credentials(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.InferenceToken != "gsk-test" {
		t.Errorf("unexpected token %q", creds.InferenceToken)
	}

	config := Default()
	config.Search.Provider = SearchDuckDuckGo
	if _, err := config.Credentials(true); err != nil {
		t.Errorf("duckduckgo needs no key, got %v", err)
	}
}

func TestSearchResults(t *testing.T) {
	config := Default()
	if got := config.SearchResults(0, 3); got != 3 {
		t.Errorf("expected the fallback of 3, got %d", got)
	}
	if got := config.SearchResults(0, 0); got != DefaultSearchResults {
		t.Errorf("expected %d, got %d", DefaultSearchResults, got)
	}

	if err := ParseConfiguration([]byte("search:\n  max-results: 8\n"), config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := config.SearchResults(0, 3); got != 8 {
		t.Errorf("expected the configured 8, got %d", got)
	}
	if got := config.SearchResults(2, 3); got != 2 {
		t.Errorf("expected the flag value 2, got %d", got)
	}
}
