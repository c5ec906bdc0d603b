// Package ballot parses participant answers into structured votes and
// aggregates them into a weighted decision.
//
// Parsing is a tolerant chain tried in order: a JSON object embedded in the
// response, then labeled lines ("Choice: ...", "Confidence: ..."), then a
// keyword heuristic that infers a yes/no choice and assigns a conservative
// default confidence. A response no parser can handle yields an invalid
// vote, which is excluded from aggregation; the raw Response is retained in
// the round history either way.
package ballot

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/quorumhq/quorum/pkg/models"
)

// FallbackConfidence is assigned to votes inferred by the keyword heuristic.
const FallbackConfidence = 0.3

// defaultConfidence is assigned when a structured answer omits a confidence.
const defaultConfidence = 0.5

var (
	choiceRe     = regexp.MustCompile(`(?im)^[ \t*-]*(?:choice|decision|answer|vote)[ \t]*[:=][ \t]*(.+?)[ \t]*$`)
	confidenceRe = regexp.MustCompile(`(?i)confidence[ \t]*[:=]?[ \t]*([0-9]*\.?[0-9]+)[ \t]*(%?)`)
	rationaleRe  = regexp.MustCompile(`(?im)^[ \t*-]*(?:rationale|reasoning|justification)[ \t]*[:=][ \t]*(.+)$`)
)

var affirmative = keywordPatterns("proceed", "approve", "yes", "agree", "accept", "go ahead", "in favor")
var negative = keywordPatterns("do not proceed", "reject", "no", "disagree", "decline", "against", "halt")

// keywordPatterns compiles word-bounded patterns so "no" does not match
// inside "know" or "now".
func keywordPatterns(words ...string) []*regexp.Regexp {
	ps := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		ps[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return ps
}

// Parse extracts a Vote from a participant's final response text.
// The second return value is false when no parser in the chain succeeds.
func Parse(participantID, text string) (models.Vote, bool) {
	if v, ok := parseJSON(text); ok {
		v.ParticipantID = participantID
		return v, true
	}
	if v, ok := parseLabeled(text); ok {
		v.ParticipantID = participantID
		return v, true
	}
	if v, ok := parseKeywords(text); ok {
		v.ParticipantID = participantID
		return v, true
	}
	return models.Vote{ParticipantID: participantID}, false
}

// jsonVote is the loose shape accepted from embedded JSON answers.
type jsonVote struct {
	Choice     string      `json:"choice"`
	Decision   string      `json:"decision"`
	Answer     string      `json:"answer"`
	Vote       string      `json:"vote"`
	Confidence interface{} `json:"confidence"`
	Rationale  string      `json:"rationale"`
	Reasoning  string      `json:"reasoning"`
}

// parseJSON tries every balanced {...} block in the text, outermost first.
func parseJSON(text string) (models.Vote, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		end := matchBrace(text, start)
		if end < 0 {
			break
		}
		var jv jsonVote
		if err := json.Unmarshal([]byte(text[start:end+1]), &jv); err == nil {
			choice := firstNonEmpty(jv.Choice, jv.Decision, jv.Answer, jv.Vote)
			if choice != "" {
				conf, haveConf := asConfidence(jv.Confidence)
				if !haveConf {
					conf = defaultConfidence
				}
				return models.Vote{
					Choice:     NormalizeChoice(choice),
					Confidence: clamp01(conf),
					Rationale:  firstNonEmpty(jv.Rationale, jv.Reasoning),
				}, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start = start + 1 + next
	}
	return models.Vote{}, false
}

// parseLabeled extracts "Choice:" style labeled lines.
func parseLabeled(text string) (models.Vote, bool) {
	m := choiceRe.FindStringSubmatch(text)
	if m == nil {
		return models.Vote{}, false
	}
	v := models.Vote{
		Choice:     NormalizeChoice(m[1]),
		Confidence: defaultConfidence,
	}
	if cm := confidenceRe.FindStringSubmatch(text); cm != nil {
		if f, err := strconv.ParseFloat(cm[1], 64); err == nil {
			if cm[2] == "%" || f > 1 {
				f /= 100
			}
			v.Confidence = clamp01(f)
		}
	}
	if rm := rationaleRe.FindStringSubmatch(text); rm != nil {
		v.Rationale = strings.TrimSpace(rm[1])
	} else {
		v.Rationale = firstSentence(text)
	}
	return v, true
}

// parseKeywords infers a yes/no choice from keyword presence. The earliest
// match in the text wins, so "I would not proceed" beats a later "proceed".
func parseKeywords(text string) (models.Vote, bool) {
	lower := strings.ToLower(text)

	best := -1
	choice := ""
	for _, re := range negative {
		if loc := re.FindStringIndex(lower); loc != nil && (best < 0 || loc[0] < best) {
			best = loc[0]
			choice = "no"
		}
	}
	for _, re := range affirmative {
		if loc := re.FindStringIndex(lower); loc != nil && (best < 0 || loc[0] < best) {
			best = loc[0]
			choice = "yes"
		}
	}
	if choice == "" {
		return models.Vote{}, false
	}
	return models.Vote{
		Choice:     choice,
		Confidence: FallbackConfidence,
		Rationale:  firstSentence(text),
		Fallback:   true,
	}, true
}

// NormalizeChoice lowercases and strips quoting and trailing punctuation so
// "Proceed." and "proceed" tally together.
func NormalizeChoice(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.Trim(s, `"'`)
	s = strings.TrimRight(s, ".!,;")
	return strings.Join(strings.Fields(s), " ")
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func asConfidence(v interface{}) (float64, bool) {
	switch c := v.(type) {
	case float64:
		if c > 1 && c <= 100 {
			c /= 100
		}
		return c, true
	case string:
		c = strings.TrimSuffix(strings.TrimSpace(c), "%")
		if f, err := strconv.ParseFloat(c, 64); err == nil {
			if f > 1 && f <= 100 {
				f /= 100
			}
			return f, true
		}
	}
	return 0, false
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '\n' {
			return strings.TrimSpace(text[:i])
		}
	}
	if len(text) > 200 {
		return text[:200]
	}
	return text
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
