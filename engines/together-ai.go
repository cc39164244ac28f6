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

	"github.com/tidwall/gjson"
)

type togetherRequest struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	Temperature       float32  `json:"temperature"`
	TopP              float32  `json:"top_p"`
	TopK              int      `json:"top_k"`
	MaxTokens         int      `json:"max_tokens"`
	RepetitionPenalty float32  `json:"repetition_penalty"`
	Stop              []string `json:"stop"`
}

// togetherAIInference serves completion-only endpoints: the conversation is
// flattened into one raw prompt in the engine's prompt style.
func togetherAIInference(ctx context.Context, inferenceEngine *RemoteInferenceEngine, messages []Message, gs GenerationSettings) (*Message, error) {
	style := inferenceEngine.PromptStyle
	if style == "" {
		style = PSAlpaca
	}

	stopTokens := style.StopTokens()
	if len(gs.StopTokens) > 0 {
		stopTokens = append(stopTokens, gs.StopTokens...)
	}

	req := &togetherRequest{
		Model:             gs.Model,
		Prompt:            NewChatPromptWithMessages(messages).String(style),
		Temperature:       gs.Temperature,
		TopP:              0.9,
		TopK:              50,
		MaxTokens:         gs.MaxTokens,
		RepetitionPenalty: 1,
		Stop:              stopTokens,
	}

	reqJson, err := json.Marshal(req)
	if err != nil {
		return nil, inferenceEngine.fail(0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		inferenceEngine.endpoint("completions"), bytes.NewReader(reqJson))
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
		return nil, inferenceEngine.fail(resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status: %s", snippet(result))
		inferenceEngine.Log.Error().Err(err).Int("status", resp.StatusCode).Msg("err in compl.")
		return nil, inferenceEngine.fail(resp.StatusCode, err)
	}

	if !gjson.ValidBytes(result) {
		return nil, inferenceEngine.fail(resp.StatusCode, fmt.Errorf("malformed response: %s", snippet(result)))
	}

	// current API answers OpenAI-style, older deployments nest under output
	text := gjson.GetBytes(result, "choices.0.text")
	if !text.Exists() {
		text = gjson.GetBytes(result, "output.choices.0.text")
	}
	if !text.Exists() {
		return nil, inferenceEngine.fail(resp.StatusCode, errors.New("response has no choices"))
	}

	message := NewMessage(ChatRoleAssistant, strings.TrimSpace(text.String()))
	return &message, nil
}
