package generation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rajan093/VastuAi/internal/models"
)

// Aspects are the life areas covered by the initial reading, in display order.
var Aspects = []string{"Health", "Education", "Wealth", "Marriage"}

// historyWindow bounds how many prior messages follow-up prompts carry.
const historyWindow = 5

const astrologerSystem = `You are an expert astrologer. Answer ONLY from the astrological rules provided in the prompt; never invent rules or draw on outside knowledge. Be specific about which planet-house combination supports each statement.`

const offTopicReply = "I am an astrology assistant and can only answer questions related to your birth chart and astrological predictions. Please ask me about topics like health, career, relationships, wealth, education, or other life aspects based on your horoscope."

func rulesBlock(title string, rules []models.RetrievedRule, withScores bool) string {
	var sb strings.Builder
	sb.WriteString(title + "\n\n")
	if len(rules) == 0 {
		sb.WriteString("(no rules were retrieved for this chart)\n\n")
		return sb.String()
	}
	for i, r := range rules {
		heading := r.Chunk.Heading
		if heading == "" {
			heading = "General passage"
		}
		if withScores {
			fmt.Fprintf(&sb, "Rule %d: %s (Relevance: %.2f)\n", i+1, heading, r.Score)
		} else {
			fmt.Fprintf(&sb, "Rule %d: %s\n", i+1, heading)
		}
		sb.WriteString(r.Chunk.Text + "\n\n")
	}
	return sb.String()
}

func chartBlock(chart *models.Horoscope) string {
	if chart == nil {
		return ""
	}
	return "USER'S HOROSCOPE CHART:\n" + chart.Summary()
}

func historyBlock(history []models.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var sb strings.Builder
	sb.WriteString("\nPREVIOUS CONVERSATION:\n")
	for _, msg := range history {
		role := "User"
		if msg.Role == "assistant" {
			role = "Assistant"
		}
		fmt.Fprintf(&sb, "%s: %s\n\n", role, msg.Content)
	}
	sb.WriteString("Use this conversation history to resolve references like \"it\" or \"that\" and to answer follow-ups.\n")
	return sb.String()
}

func summaryPrompt(chart *models.Horoscope, rules []models.RetrievedRule) string {
	var sb strings.Builder
	sb.WriteString(rulesBlock("RETRIEVED ASTROLOGICAL RULES:", rules, false))
	sb.WriteString(chartBlock(chart))
	sb.WriteString("\nTASK:\nProvide a summary for the following life aspects: ")
	sb.WriteString(strings.Join(Aspects, ", "))
	sb.WriteString(`

For each aspect, analyze the relevant rules and provide:
1. A clear summary of what the rules indicate
2. Specific predictions or characteristics
3. Any remedies mentioned (if applicable)

IMPORTANT:
- Use ONLY the information provided in the rules above
- If an aspect is not covered in the rules, say "Not mentioned in the provided rules"
- Reference the planet-house combination you are discussing
- Keep each aspect summary to 3-4 sentences

Format your response as:

`)
	for _, a := range Aspects {
		fmt.Fprintf(&sb, "**%s:**\n[Your summary here]\n\n", a)
	}
	return sb.String()
}

func questionPrompt(chart *models.Horoscope, rules []models.RetrievedRule, history []models.ChatMessage, question string) string {
	var sb strings.Builder
	sb.WriteString(rulesBlock("RELEVANT ASTROLOGICAL RULES:", rules, true))
	sb.WriteString(chartBlock(chart))
	sb.WriteString(historyBlock(history))
	sb.WriteString("\nUSER'S QUESTION:\n" + question + "\n")
	sb.WriteString(`
INSTRUCTIONS:
1. If the question is NOT about astrology or the user's birth chart, respond with exactly:
   "` + offTopicReply + `"
2. Otherwise answer from the rules above: reference specific planet-house combinations, explain the astrological reasoning, and mention remedies when the rules give them.
3. Be honest when the rules do not fully address the question.
4. Keep the answer concise (3-5 sentences).
`)
	return sb.String()
}

func extractionPrompt(message string) string {
	return `You are a birth data extraction assistant. Extract birth information from the user's message.

USER MESSAGE:
` + message + `

TASK:
1. Check if the message is trying to provide birth details (date, time, place)
2. If it's clearly NOT about birth details (e.g., "what's the weather?", "tell me a joke"), return "non_astrology"
3. Otherwise, extract whatever birth information is present

Extract and return in this EXACT JSON format:
{"date": "YYYY-MM-DD" or null, "time": "HH:MM" (24-hour) or null, "place": "City name" or null}

RULES:
- Convert ANY date format to YYYY-MM-DD (e.g., "jan 16 2004" -> "2004-01-16")
- Convert ANY time format to HH:MM in 24-hour (e.g., "10.30 AM" -> "10:30", "2:30 PM" -> "14:30")
- Assume 2000s for 2-digit years (04 -> 2004)
- If a field is not mentioned, set it to null
- Return ONLY the JSON or the word non_astrology, nothing else

EXAMPLES:
Input: "date: jan 16 2004 time: 10.30 place: Ahmedabad"
Output: {"date": "2004-01-16", "time": "10:30", "place": "Ahmedabad"}

Input: "born 16 jan 2004"
Output: {"date": "2004-01-16", "time": null, "place": null}

Input: "what's the weather today?"
Output: non_astrology`
}

func validationPrompt(question string) string {
	return `You are a question validator. Determine if this question is related to astrology or not.

USER QUESTION:
` + question + `

ASTROLOGY-RELATED topics include:
- Birth chart, planetary positions, houses
- Health, career, wealth, marriage, education predictions
- Astrological remedies
- Personality traits from astrology

NON-ASTROLOGY topics include:
- General knowledge, current events, news
- Technical/coding questions
- Weather, recipes, jokes
- Anything unrelated to the user's horoscope

Return ONLY "yes" if astrology-related, or "no" if not.`
}

// aspectRe matches one "**Aspect:**" section up to the next bold header.
func aspectRe(aspect string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)\*\*` + regexp.QuoteMeta(aspect) + `:?\*\*\s*(.+?)(?:\*\*[A-Z]|$)`)
}

// parseSummaryResponse pulls per-aspect text out of the model's formatted
// reply. Missing sections get a fixed placeholder rather than failing the
// whole reading.
func parseSummaryResponse(response string) map[string]string {
	out := make(map[string]string, len(Aspects))
	for _, aspect := range Aspects {
		m := aspectRe(aspect).FindStringSubmatch(response)
		if m == nil {
			out[aspect] = "No information found for " + aspect
			continue
		}
		out[aspect] = strings.TrimSpace(m[1])
	}
	return out
}
