package intent

import (
	"strings"
)

// Verdict is the structured output the turn-taking core consumes. The core
// never inspects raw transcripts itself; anything smarter than this
// rule-based classifier can be swapped in behind the same interface.
type Verdict struct {
	WakeWordDetected     bool
	Confidence           float64
	HasActionableContent bool
	StopRequested        bool
	Category             string
	Keyword              string
	// Text is the transcript with the wake word stripped, ready for the
	// generator.
	Text string
}

type Classifier interface {
	Classify(text string) Verdict
}

// RuleClassifier detects the wake word by prefix/window match and flags
// actionable content from question and command cues.
type RuleClassifier struct {
	wakeWord string
}

func NewRuleClassifier(wakeWord string) *RuleClassifier {
	return &RuleClassifier{wakeWord: strings.ToLower(strings.TrimSpace(wakeWord))}
}

var questionWords = map[string]bool{
	"what": true, "who": true, "where": true, "when": true, "why": true,
	"how": true, "which": true, "is": true, "are": true, "can": true,
	"could": true, "would": true, "should": true, "do": true, "does": true,
}

var commandWords = map[string]bool{
	"tell": true, "show": true, "find": true, "search": true, "explain": true,
	"summarize": true, "list": true, "give": true, "draw": true, "create": true,
	"set": true, "remind": true, "play": true, "calculate": true,
}

var stopPhrases = []string{
	"stop", "be quiet", "shut up", "never mind", "nevermind", "cancel", "go to sleep",
}

var fillerTokens = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "of": true, "for": true,
	"me": true, "my": true, "please": true, "hey": true, "ok": true, "okay": true,
	"um": true, "uh": true, "it": true, "that": true, "this": true, "about": true,
}

func (c *RuleClassifier) Classify(text string) Verdict {
	v := Verdict{}
	norm := normalize(text)
	if norm == "" {
		return v
	}

	rest, woke := c.stripWakeWord(norm)
	v.WakeWordDetected = woke
	v.Text = rest
	if woke {
		v.Confidence = 0.9
	}

	if isStopCommand(rest) || (!woke && isStopCommand(norm)) {
		v.StopRequested = true
		v.Category = "stop"
		return v
	}

	body := rest
	if !woke {
		body = norm
		v.Text = norm
	}

	words := strings.Fields(body)
	if len(words) == 0 {
		return v
	}

	first := words[0]
	switch {
	case questionWords[first] || strings.HasSuffix(body, "?"):
		v.HasActionableContent = true
		v.Category = "question"
	case commandWords[first]:
		v.HasActionableContent = true
		v.Category = "command"
	}

	v.Keyword = extractKeyword(words)
	// After the wake word, a non-trivial keyword alone is enough to treat
	// the utterance as a request ("aura, weather tomorrow"). Without the
	// wake word this would fire on ordinary meeting chatter.
	if !v.HasActionableContent && woke && len(v.Keyword) > 3 {
		v.HasActionableContent = true
		v.Category = "request"
	}

	return v
}

func (c *RuleClassifier) stripWakeWord(norm string) (string, bool) {
	if c.wakeWord == "" {
		return norm, false
	}
	words := strings.Fields(norm)
	// The wake word must land in the first few tokens; mentions buried in a
	// sentence are conversation, not a trigger.
	limit := 3
	if len(words) < limit {
		limit = len(words)
	}
	for i := 0; i < limit; i++ {
		if trimToken(words[i]) == c.wakeWord {
			rest := strings.Join(words[i+1:], " ")
			return strings.TrimLeft(rest, " ,.!?;:-"), true
		}
	}
	return norm, false
}

func isStopCommand(s string) bool {
	s = strings.TrimSpace(s)
	for _, p := range stopPhrases {
		if s == p || strings.HasPrefix(s, p+" ") || strings.HasPrefix(s, p+",") {
			return true
		}
	}
	return false
}

func extractKeyword(words []string) string {
	var kept []string
	for _, w := range words {
		t := trimToken(w)
		if t == "" || fillerTokens[t] || questionWords[t] || commandWords[t] {
			continue
		}
		kept = append(kept, t)
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, " ")
}

func trimToken(tok string) string {
	return strings.Trim(tok, " ,.!?;:-\"'`~")
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.Join(strings.Fields(s), " ")
}
