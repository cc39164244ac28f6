package engines

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/d0rc/scribe-agents/metrics"
	"github.com/d0rc/scribe-agents/settings"
	"github.com/d0rc/scribe-agents/utils"
	"github.com/rs/zerolog"
)

const InferenceTimeout = 45 * time.Second

// GenerationError wraps any failure of the remote model: transport errors,
// non-200 answers and malformed bodies.
type GenerationError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation failed (%s, http %d): %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Endpoint, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type RemoteInferenceEngine struct {
	Protocol       string
	EndpointUrl    string
	ModelsEndpoint string
	Token          string
	Models         []string
	MaxTokens      int
	PromptStyle    PromptStyle
	TokenEstimates bool

	Client *http.Client
	Log    zerolog.Logger

	modelLock sync.Mutex
}

func NewRemoteInferenceEngine(config *settings.ConfigurationFile, token string, lg zerolog.Logger) *RemoteInferenceEngine {
	engine := &RemoteInferenceEngine{
		Protocol:       config.Inference.Protocol,
		EndpointUrl:    config.Inference.Endpoint,
		ModelsEndpoint: config.Inference.ModelsEndpoint,
		Token:          token,
		MaxTokens:      config.Inference.MaxTokens,
		PromptStyle:    PSAlpaca,
		Client:         &http.Client{Timeout: config.InferenceTimeout()},
		Log:            lg.With().Str("endpoint", config.Inference.Endpoint).Logger(),
	}
	if config.Inference.Model != "" {
		engine.Models = []string{config.Inference.Model}
	}

	return engine
}

// Generate runs a single completion. Every failure is returned as a
// *GenerationError.
func (e *RemoteInferenceEngine) Generate(ctx context.Context, messages []Message, gs GenerationSettings) (*Message, error) {
	if len(messages) == 0 {
		return nil, e.fail(0, errors.New("no messages to send"))
	}
	if gs.Temperature < 0 || gs.Temperature > 1 {
		return nil, e.fail(0, fmt.Errorf("temperature %.2f is outside [0, 1]", gs.Temperature))
	}

	if gs.Model == "" {
		model, err := e.defaultModel(ctx)
		if err != nil {
			return nil, e.fail(0, err)
		}
		gs.Model = model
	}
	if gs.MaxTokens == 0 {
		gs.MaxTokens = e.MaxTokens
	}

	metrics.Tick(metrics.LLMRequests, 1)
	if e.TokenEstimates {
		promptTokens := 0
		for _, msg := range messages {
			promptTokens += utils.CountTokens(msg.Content)
		}
		metrics.Tick(metrics.PromptTokens, int64(promptTokens))
		e.Log.Debug().Int("prompt-tokens", promptTokens).Str("model", gs.Model).Msg("sending completion")
	}

	var result *Message
	var err error
	switch e.Protocol {
	case settings.ProtocolOpenAI, "":
		result, err = openAICompatibleInference(ctx, e, messages, gs)
	case settings.ProtocolTogether:
		result, err = togetherAIInference(ctx, e, messages, gs)
	default:
		err = e.fail(0, fmt.Errorf("unsupported protocol %s", e.Protocol))
	}
	if err != nil {
		metrics.Tick(metrics.LLMFailures, 1)
		return nil, err
	}

	return result, nil
}

func (e *RemoteInferenceEngine) defaultModel(ctx context.Context) (string, error) {
	e.modelLock.Lock()
	defer e.modelLock.Unlock()
	if len(e.Models) > 0 && e.Models[0] != "" {
		return e.Models[0], nil
	}

	models, err := e.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("no model configured and model discovery failed: %w", err)
	}
	if len(models) == 0 {
		return "", errors.New("no model configured and endpoint lists none")
	}
	e.Log.Info().Msgf("using model %s", models[0])
	e.Models = []string{models[0]}

	return models[0], nil
}

func (e *RemoteInferenceEngine) fail(statusCode int, err error) *GenerationError {
	return &GenerationError{
		Endpoint:   e.EndpointUrl,
		StatusCode: statusCode,
		Err:        err,
	}
}

func (e *RemoteInferenceEngine) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return &http.Client{Timeout: InferenceTimeout}
}

func (e *RemoteInferenceEngine) endpoint(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(e.EndpointUrl, "/"), path)
}

func (e *RemoteInferenceEngine) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if e.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.Token))
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
