package transcriber

import (
	"encoding/json"
)

const groqURL = "https://api.groq.com/openai/v1/audio/transcriptions"

type Groq struct {
	baseTranscriber
}

func NewGroq(apiKey string) *Groq {
	return &Groq{
		baseTranscriber: baseTranscriber{
			name:           "groq",
			client:         NewTracedClient(),
			apiURL:         groqURL,
			apiKey:         apiKey,
			model:          "whisper-large-v3-turbo",
			responseFormat: "verbose_json",
			parse:          parseVerbose,
		},
	}
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func parseVerbose(resp *TracedResponse) (*Result, error) {
	var v verboseResponse
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return nil, err
	}
	r := &Result{Text: v.Text, Duration: v.Duration}
	for _, seg := range v.Segments {
		r.Segments = append(r.Segments, Segment{
			Text:         seg.Text,
			NoSpeechProb: seg.NoSpeechProb,
			AvgLogProb:   seg.AvgLogProb,
			Start:        seg.Start,
			End:          seg.End,
		})
	}
	return r, nil
}
