package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Rajan093/VastuAi/internal/core"
	"github.com/Rajan093/VastuAi/internal/models"
)

// llmStub records the last prompts and returns a canned reply.
type llmStub struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
}

func (l *llmStub) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	l.lastSystem = systemPrompt
	l.lastUser = userPrompt
	if l.err != nil {
		return "", l.err
	}
	return l.reply, nil
}

func testChart() *models.Horoscope {
	return &models.Horoscope{
		Ascendant:   12.0,
		HouseSystem: "equal",
		Positions: map[string]models.PlanetPosition{
			"Sun":    {Longitude: 31.0, House: 1},
			"Saturn": {Longitude: 280.0, House: 10},
		},
	}
}

func testRules() []models.RetrievedRule {
	return []models.RetrievedRule{
		{Chunk: models.RuleChunk{Heading: "Sun in 1st house", Text: "The native is bold."}, Score: 0.91},
		{Chunk: models.RuleChunk{Heading: "Saturn in 10th house", Text: "Slow, steady career growth."}, Score: 0.84},
	}
}

const summaryReply = `**Health:**
Strong vitality from Sun in the 1st house.

**Education:**
Not mentioned in the provided rules.

**Wealth:**
Gradual accumulation, per Saturn in the 10th house.

**Marriage:**
Not mentioned in the provided rules.`

func TestInitialReadingParsesAspects(t *testing.T) {
	stub := &llmStub{reply: summaryReply}
	c := NewClient(stub)

	reading, err := c.InitialReading(context.Background(), testChart(), testRules())
	if err != nil {
		t.Fatalf("InitialReading: %v", err)
	}
	for _, aspect := range Aspects {
		if reading[aspect] == "" {
			t.Errorf("aspect %s missing from reading", aspect)
		}
	}
	if !strings.Contains(reading["Health"], "Sun in the 1st house") {
		t.Errorf("Health section wrong: %q", reading["Health"])
	}
	if strings.Contains(reading["Wealth"], "**") {
		t.Errorf("section markers leaked into aspect text: %q", reading["Wealth"])
	}

	// The prompt must carry the rules and the chart.
	if !strings.Contains(stub.lastUser, "Sun in 1st house") {
		t.Error("rule headings missing from prompt")
	}
	if !strings.Contains(stub.lastUser, "Saturn in House 10") {
		t.Error("chart summary missing from prompt")
	}
}

func TestInitialReadingLLMFailure(t *testing.T) {
	c := NewClient(&llmStub{err: errors.New("rate limited")})

	_, err := c.InitialReading(context.Background(), testChart(), testRules())
	var ge *core.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GenerationError, got %T: %v", err, err)
	}
}

func TestFormatReadingKeepsAspectOrder(t *testing.T) {
	reading := map[string]string{
		"Health": "h", "Education": "e", "Wealth": "w", "Marriage": "m",
	}
	out := FormatReading(reading)
	last := -1
	for _, aspect := range Aspects {
		idx := strings.Index(out, "### "+aspect)
		if idx < 0 {
			t.Fatalf("aspect %s missing from output", aspect)
		}
		if idx < last {
			t.Errorf("aspect %s out of order", aspect)
		}
		last = idx
	}
}

func TestParseSummaryResponseMissingAspect(t *testing.T) {
	got := parseSummaryResponse("**Health:** fine.")
	if !strings.Contains(got["Marriage"], "No information found") {
		t.Errorf("missing aspect should get a placeholder, got %q", got["Marriage"])
	}
	if got["Health"] != "fine." {
		t.Errorf("Health = %q", got["Health"])
	}
}

func TestAnswerIncludesHistoryAndRuleScores(t *testing.T) {
	stub := &llmStub{reply: "Saturn in the 10th house delays but rewards patience."}
	c := NewClient(stub)

	history := []models.ChatMessage{
		{Role: "user", Content: "What about my career?"},
		{Role: "assistant", Content: "Saturn shapes your profession."},
	}
	answer, err := c.Answer(context.Background(), testChart(), testRules(), history, "tell me more")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer == "" {
		t.Fatal("empty answer")
	}
	if !strings.Contains(stub.lastUser, "PREVIOUS CONVERSATION") {
		t.Error("history missing from prompt")
	}
	if !strings.Contains(stub.lastUser, "Relevance: 0.91") {
		t.Error("rule scores missing from prompt")
	}
	if !strings.Contains(stub.lastUser, "tell me more") {
		t.Error("question missing from prompt")
	}
}

func TestAnswerHistoryWindow(t *testing.T) {
	stub := &llmStub{reply: "ok"}
	c := NewClient(stub)

	var history []models.ChatMessage
	for i := 0; i < 12; i++ {
		history = append(history, models.ChatMessage{Role: "user", Content: strings.Repeat("x", 3) + "-msg"})
	}
	history[0].Content = "FIRST-MESSAGE"
	if _, err := c.Answer(context.Background(), testChart(), nil, history, "q"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(stub.lastUser, "FIRST-MESSAGE") {
		t.Error("old history should fall outside the prompt window")
	}
}

func TestExtractBirthDetailsComplete(t *testing.T) {
	stub := &llmStub{reply: `{"date": "2004-01-16", "time": "10:30", "place": "Ahmedabad"}`}
	c := NewClient(stub)

	ext, err := c.ExtractBirthDetails(context.Background(), "date: jan 16 2004 time: 10.30 place: Ahmedabad")
	if err != nil {
		t.Fatalf("ExtractBirthDetails: %v", err)
	}
	if ext.Status != ExtractionComplete {
		t.Fatalf("status = %q", ext.Status)
	}
	if ext.Details.Date != "2004-01-16" || ext.Details.Time != "10:30" || ext.Details.Place != "Ahmedabad" {
		t.Errorf("details = %+v", ext.Details)
	}
}

func TestExtractBirthDetailsIncomplete(t *testing.T) {
	stub := &llmStub{reply: `{"date": "2004-01-16", "time": null, "place": null}`}
	c := NewClient(stub)

	ext, err := c.ExtractBirthDetails(context.Background(), "born 16 jan 2004")
	if err != nil {
		t.Fatal(err)
	}
	if ext.Status != ExtractionIncomplete {
		t.Fatalf("status = %q", ext.Status)
	}
	if len(ext.Missing) != 2 {
		t.Errorf("missing = %v", ext.Missing)
	}
}

func TestExtractBirthDetailsNonAstrology(t *testing.T) {
	stub := &llmStub{reply: "non_astrology"}
	c := NewClient(stub)

	ext, err := c.ExtractBirthDetails(context.Background(), "what's the weather today?")
	if err != nil {
		t.Fatal(err)
	}
	if ext.Status != ExtractionNonAstrology {
		t.Fatalf("status = %q", ext.Status)
	}
}

func TestExtractBirthDetailsFencedJSON(t *testing.T) {
	stub := &llmStub{reply: "```json\n{\"date\": \"1990-05-15\", \"time\": \"14:30\", \"place\": \"Jaipur\"}\n```"}
	c := NewClient(stub)

	ext, err := c.ExtractBirthDetails(context.Background(), "15 may 1990, 2:30pm, Jaipur")
	if err != nil {
		t.Fatal(err)
	}
	if ext.Status != ExtractionComplete || ext.Details.Place != "Jaipur" {
		t.Errorf("ext = %+v details = %+v", ext, ext.Details)
	}
}

func TestExtractBirthDetailsGarbage(t *testing.T) {
	c := NewClient(&llmStub{reply: "sure! here are the details you asked for"})

	_, err := c.ExtractBirthDetails(context.Background(), "born sometime")
	var ge *core.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GenerationError, got %T: %v", err, err)
	}
}

func TestValidateTopic(t *testing.T) {
	cases := []struct {
		reply string
		err   error
		want  bool
	}{
		{reply: "yes", want: true},
		{reply: " Yes \n", want: true},
		{reply: "no", want: false},
		{err: errors.New("timeout"), want: true},
	}
	for _, tc := range cases {
		c := NewClient(&llmStub{reply: tc.reply, err: tc.err})
		if got := c.ValidateTopic(context.Background(), "will I marry?"); got != tc.want {
			t.Errorf("reply %q err %v: got %v, want %v", tc.reply, tc.err, got, tc.want)
		}
	}
}
