package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []ChatCompletionMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Temperature float32                 `json:"temperature"`
	N           int                     `json:"n"`
	Stream      bool                    `json:"stream"`
	Stop        []string                `json:"stop,omitempty"`
}

type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int                   `json:"index"`
		Message      ChatCompletionMessage `json:"message"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func guessModelsEndpoint(engine *RemoteInferenceEngine) string {
	if strings.Contains(engine.EndpointUrl, "/v1") {
		// http://host/.../v1/something -> http://host/.../v1/models
		tokens := strings.Split(engine.EndpointUrl, "/v1")
		return tokens[0] + "/v1/models"
	}

	return engine.endpoint("models")
}

func openAICompatibleInference(ctx context.Context, inferenceEngine *RemoteInferenceEngine, messages []Message, gs GenerationSettings) (*Message, error) {
	request := &ChatCompletionRequest{
		Model:       gs.Model,
		Messages:    makeChatCompletionMessages(messages),
		MaxTokens:   gs.MaxTokens,
		Temperature: gs.Temperature,
		N:           1,
		Stream:      false,
		Stop:        gs.StopTokens,
	}

	commandBuffer, err := json.Marshal(request)
	if err != nil {
		return nil, inferenceEngine.fail(0, fmt.Errorf("error marshaling command: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		inferenceEngine.endpoint("chat/completions"), bytes.NewReader(commandBuffer))
	if err != nil {
		return nil, inferenceEngine.fail(0, err)
	}
	inferenceEngine.setHeaders(httpReq)

	resp, err := inferenceEngine.client().Do(httpReq)
	if err != nil {
		inferenceEngine.Log.Error().Err(err).Msg("error in request")
		return nil, inferenceEngine.fail(0, err)
	}

	result, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, inferenceEngine.fail(resp.StatusCode, fmt.Errorf("error reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status: %s", snippet(result))
		inferenceEngine.Log.Error().Err(err).Int("status", resp.StatusCode).Msg("err in compl.")
		return nil, inferenceEngine.fail(resp.StatusCode, err)
	}

	parsedResponse := &ChatCompletionResponse{}
	if err := json.Unmarshal(result, parsedResponse); err != nil {
		inferenceEngine.Log.Error().Err(err).Msgf("error unmarshalling response: %s", snippet(result))
		return nil, inferenceEngine.fail(resp.StatusCode, fmt.Errorf("malformed response: %w", err))
	}
	if len(parsedResponse.Choices) == 0 {
		return nil, inferenceEngine.fail(resp.StatusCode, errors.New("response has no choices"))
	}

	inferenceEngine.Log.Debug().
		Int("prompt-tokens", parsedResponse.Usage.PromptTokens).
		Int("completion-tokens", parsedResponse.Usage.CompletionTokens).
		Msg("completion received")

	role := ChatRole(parsedResponse.Choices[0].Message.Role)
	if !role.Valid() {
		role = ChatRoleAssistant
	}
	result0 := NewMessage(role, parsedResponse.Choices[0].Message.Content)
	return &result0, nil
}

func makeChatCompletionMessages(messages []Message) []ChatCompletionMessage {
	result := make([]ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		result = append(result, ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	return result
}

type pointlessOpenAIList struct {
	Object string `json:"object"`
	Data   []struct {
		ModelId string `json:"id"`
	} `json:"data"`
}

// ListModels asks the endpoint which models it serves.
func (e *RemoteInferenceEngine) ListModels(ctx context.Context) ([]string, error) {
	modelsEndpoint := e.ModelsEndpoint
	if modelsEndpoint == "" {
		modelsEndpoint = guessModelsEndpoint(e)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	e.setHeaders(req)

	resp, err := e.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http code is %d: %s", resp.StatusCode, snippet(result))
	}

	models := &pointlessOpenAIList{}
	if err := json.Unmarshal(result, models); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}

	names := make([]string, 0, len(models.Data))
	for _, model := range models.Data {
		names = append(names, model.ModelId)
	}

	return names, nil
}
