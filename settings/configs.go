package settings

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	ProtocolOpenAI   = "http-openai"
	ProtocolTogether = "http-together"

	SearchTavily     = "tavily"
	SearchSerpApi    = "serp-api"
	SearchDuckDuckGo = "duckduckgo"
)

const DefaultSearchResults = 5

type ConfigurationFile struct {
	Inference struct {
		Protocol       string `yaml:"protocol"`
		Endpoint       string `yaml:"endpoint"`
		ModelsEndpoint string `yaml:"models-endpoint"`
		Model          string `yaml:"model"`
		TokenEnv       string `yaml:"token-env"`
		TimeoutSeconds int    `yaml:"timeout-seconds"`
		MaxTokens      int    `yaml:"max-tokens"`
	} `yaml:"inference"`
	Search struct {
		Provider   string `yaml:"provider"`
		TokenEnv   string `yaml:"token-env"`
		MaxResults int    `yaml:"max-results"`
		Depth      string `yaml:"depth"`
		Location   string `yaml:"location"`
		Lang       string `yaml:"lang"`
		Country    string `yaml:"country"`
	} `yaml:"search"`
	Agent struct {
		MaxIterations         int `yaml:"max-iterations"`
		MaxParseAttempts      int `yaml:"max-parse-attempts"`
		MaxToolFailures       int `yaml:"max-tool-failures"`
		MaxGenerationFailures int `yaml:"max-generation-failures"`
		CallTimeoutSeconds    int `yaml:"call-timeout-seconds"`
		ObservationLimit      int `yaml:"observation-limit"`
	} `yaml:"agent"`
}

// Default returns the configuration used when no file is supplied: Groq's
// OpenAI-compatible endpoint and Tavily search.
func Default() *ConfigurationFile {
	config := &ConfigurationFile{}
	config.Inference.Protocol = ProtocolOpenAI
	config.Inference.Endpoint = "https://api.groq.com/openai/v1"
	config.Inference.Model = "llama-3.3-70b-versatile"
	config.Inference.TokenEnv = "GROQ_API_KEY"
	config.Inference.TimeoutSeconds = 45
	config.Inference.MaxTokens = 4096

	config.Search.Provider = SearchTavily
	config.Search.TokenEnv = "TAVILY_API_KEY"
	config.Search.Depth = "basic"

	config.Agent.MaxIterations = 5
	config.Agent.MaxParseAttempts = 3
	config.Agent.MaxToolFailures = 2
	config.Agent.MaxGenerationFailures = 2
	config.Agent.CallTimeoutSeconds = 45
	config.Agent.ObservationLimit = 4096

	return config
}

// ProcessConfigurationFile reads a YAML file on top of Default. An empty
// path returns the defaults.
func ProcessConfigurationFile(path string) (*ConfigurationFile, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	yamlText, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration file %s: %w", path, err)
	}

	if err := ParseConfiguration(yamlText, config); err != nil {
		return nil, fmt.Errorf("error parsing configuration file %s: %w", path, err)
	}

	return config, nil
}

// ParseConfiguration unmarshals YAML over config and validates the result.
func ParseConfiguration(yamlText []byte, config *ConfigurationFile) error {
	if err := yaml.Unmarshal(yamlText, config); err != nil {
		return err
	}

	return config.Validate()
}

func (c *ConfigurationFile) Validate() error {
	switch c.Inference.Protocol {
	case ProtocolOpenAI, ProtocolTogether:
	default:
		return fmt.Errorf("unsupported inference protocol %q", c.Inference.Protocol)
	}
	if strings.TrimSpace(c.Inference.Endpoint) == "" {
		return fmt.Errorf("inference endpoint is empty")
	}

	switch c.Search.Provider {
	case SearchTavily, SearchSerpApi, SearchDuckDuckGo:
	default:
		return fmt.Errorf("unsupported search provider %q", c.Search.Provider)
	}

	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent max-iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxParseAttempts <= 0 {
		return fmt.Errorf("agent max-parse-attempts must be positive, got %d", c.Agent.MaxParseAttempts)
	}
	if c.Agent.MaxToolFailures <= 0 {
		return fmt.Errorf("agent max-tool-failures must be positive, got %d", c.Agent.MaxToolFailures)
	}
	if c.Agent.MaxGenerationFailures <= 0 {
		return fmt.Errorf("agent max-generation-failures must be positive, got %d", c.Agent.MaxGenerationFailures)
	}
	if c.Agent.CallTimeoutSeconds <= 0 {
		return fmt.Errorf("agent call-timeout-seconds must be positive, got %d", c.Agent.CallTimeoutSeconds)
	}
	if c.Agent.ObservationLimit <= 0 {
		return fmt.Errorf("agent observation-limit must be positive, got %d", c.Agent.ObservationLimit)
	}
	if c.Inference.TimeoutSeconds <= 0 {
		return fmt.Errorf("inference timeout-seconds must be positive, got %d", c.Inference.TimeoutSeconds)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search max-results must not be negative, got %d", c.Search.MaxResults)
	}

	return nil
}

func (c *ConfigurationFile) InferenceTimeout() time.Duration {
	return time.Duration(c.Inference.TimeoutSeconds) * time.Second
}

// SearchResults is the number of results a search tool asks for. flagValue
// wins when set, then search.max-results, then the application's fallback.
func (c *ConfigurationFile) SearchResults(flagValue, fallback int) int {
	switch {
	case flagValue > 0:
		return flagValue
	case c.Search.MaxResults > 0:
		return c.Search.MaxResults
	case fallback > 0:
		return fallback
	}
	return DefaultSearchResults
}

func (c *ConfigurationFile) CallTimeout() time.Duration {
	return time.Duration(c.Agent.CallTimeoutSeconds) * time.Second
}
