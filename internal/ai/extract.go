package ai

import (
	"bytes"
	"encoding/json"
	"strings"
)

// NoAnswerText replaces an answer that could not be extracted.
const NoAnswerText = "Sorry, I could not come up with an answer."

// Extractor turns a successful provider response body into the reply text.
// The body is valid JSON. The result is never empty.
type Extractor func(body []byte) string

var stripper = strings.NewReplacer(`"`, "", "\n", "", "\r", "")

// sanitize drops quote and newline characters from a model answer.
func sanitize(s string) string {
	return stripper.Replace(s)
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return NoAnswerText
	}
	return s
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiText reads candidates[0].content.parts[0].text.
func GeminiText(body []byte) string {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return NoAnswerText
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return NoAnswerText
	}
	return orPlaceholder(sanitize(resp.Candidates[0].Content.Parts[0].Text))
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAIText reads choices[0].message.content.
func OpenAIText(body []byte) string {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return NoAnswerText
	}
	if len(resp.Choices) == 0 {
		return NoAnswerText
	}
	return orPlaceholder(sanitize(resp.Choices[0].Message.Content))
}

// RawJSON passes the whole response through, indented by two spaces.
func RawJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return orPlaceholder(string(body))
	}
	return orPlaceholder(buf.String())
}
