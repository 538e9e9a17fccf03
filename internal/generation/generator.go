package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
)

// Client wraps the LLM behind the consultation's three uses: the initial
// four-aspect reading, grounded question answering, and the two small
// classification calls (birth data extraction, topic validation).
type Client struct {
	llm core.LLMProvider
}

func NewClient(llm core.LLMProvider) *Client {
	return &Client{llm: llm}
}

// InitialReading produces the per-aspect summary for a fresh chart.
// The reply is keyed by aspect name in Aspects order.
func (c *Client) InitialReading(ctx context.Context, chart *models.Horoscope, rules []models.RetrievedRule) (map[string]string, error) {
	resp, err := c.llm.Generate(ctx, astrologerSystem, summaryPrompt(chart, rules))
	if err != nil {
		return nil, &core.GenerationError{Err: err}
	}
	return parseSummaryResponse(resp), nil
}

// FormatReading renders the aspect map as the markdown shown to the user.
func FormatReading(reading map[string]string) string {
	var sb strings.Builder
	sb.WriteString("## Your Astrological Summary\n\n")
	for _, aspect := range Aspects {
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n", aspect, reading[aspect])
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Answer responds to a follow-up question, grounded on the retrieved rules
// and the recent conversation history.
func (c *Client) Answer(ctx context.Context, chart *models.Horoscope, rules []models.RetrievedRule, history []models.ChatMessage, question string) (string, error) {
	resp, err := c.llm.Generate(ctx, astrologerSystem, questionPrompt(chart, rules, history, question))
	if err != nil {
		return "", &core.GenerationError{Err: err}
	}
	return strings.TrimSpace(resp), nil
}

// OffTopicReply is the fixed response for questions outside astrology.
func OffTopicReply() string { return offTopicReply }

// BirthExtraction is the structured result of reading birth details out of
// free-form text.
//
// Status is one of:
//
//	complete      all three fields found
//	incomplete    some fields missing (listed in Missing)
//	non_astrology the message was not about birth details at all
type BirthExtraction struct {
	Status  string
	Details *models.BirthDetails
	Missing []string
}

const (
	ExtractionComplete     = "complete"
	ExtractionIncomplete   = "incomplete"
	ExtractionNonAstrology = "non_astrology"
)

// ExtractBirthDetails asks the LLM to normalize whatever birth information
// the message carries into date/time/place.
func (c *Client) ExtractBirthDetails(ctx context.Context, message string) (*BirthExtraction, error) {
	resp, err := c.llm.Generate(ctx, "", extractionPrompt(message))
	if err != nil {
		return nil, &core.GenerationError{Err: err}
	}

	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.Trim(resp, "` \n")
	if strings.EqualFold(resp, ExtractionNonAstrology) {
		return &BirthExtraction{Status: ExtractionNonAstrology}, nil
	}

	var raw struct {
		Date  *string `json:"date"`
		Time  *string `json:"time"`
		Place *string `json:"place"`
	}
	if err := json.Unmarshal([]byte(resp), &raw); err != nil {
		return nil, &core.GenerationError{Err: fmt.Errorf("parse extraction reply: %w", err)}
	}

	ext := &BirthExtraction{Details: &models.BirthDetails{}}
	if raw.Date != nil && *raw.Date != "" {
		ext.Details.Date = *raw.Date
	} else {
		ext.Missing = append(ext.Missing, "birth date")
	}
	if raw.Time != nil && *raw.Time != "" {
		ext.Details.Time = *raw.Time
	} else {
		ext.Missing = append(ext.Missing, "birth time")
	}
	if raw.Place != nil && *raw.Place != "" {
		ext.Details.Place = *raw.Place
	} else {
		ext.Missing = append(ext.Missing, "birth place")
	}

	if len(ext.Missing) == 0 {
		ext.Status = ExtractionComplete
	} else {
		ext.Status = ExtractionIncomplete
	}
	return ext, nil
}

// ValidateTopic reports whether the question is astrology-related.
// A failed classifier call counts as astrology-related.
func (c *Client) ValidateTopic(ctx context.Context, question string) bool {
	resp, err := c.llm.Generate(ctx, "", validationPrompt(question))
	if err != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(resp), "yes")
}
