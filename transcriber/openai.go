package transcriber

import (
	"encoding/json"
)

const openAIURL = "https://api.openai.com/v1/audio/transcriptions"

type OpenAI struct {
	baseTranscriber
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		baseTranscriber: baseTranscriber{
			name:           "openai",
			client:         NewTracedClient(),
			apiURL:         openAIURL,
			apiKey:         apiKey,
			model:          "gpt-4o-transcribe",
			responseFormat: "json",
			parse:          parsePlain,
		},
	}
}

func parsePlain(resp *TracedResponse) (*Result, error) {
	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return nil, err
	}
	return &Result{Text: oResp.Text}, nil
}
