package intent

import (
	"testing"
)

func TestClassifyTable(t *testing.T) {
	c := NewRuleClassifier("aura")

	cases := []struct {
		name       string
		text       string
		wake       bool
		actionable bool
		stop       bool
	}{
		{"wake with question", "Aura, what is the weather", true, true, false},
		{"wake only", "Aura", true, false, false},
		{"wake with command", "aura tell me a joke", true, true, false},
		{"no wake, plain chat", "I think we should circle back", false, false, false},
		{"stop after wake", "aura stop", true, false, true},
		{"empty", "   ", false, false, false},
		{"wake buried mid-sentence", "we should ask aura about that later", false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := c.Classify(tc.text)
			if v.WakeWordDetected != tc.wake {
				t.Errorf("wake: got %v, want %v", v.WakeWordDetected, tc.wake)
			}
			if v.HasActionableContent != tc.actionable {
				t.Errorf("actionable: got %v, want %v", v.HasActionableContent, tc.actionable)
			}
			if v.StopRequested != tc.stop {
				t.Errorf("stop: got %v, want %v", v.StopRequested, tc.stop)
			}
		})
	}
}

func TestClassifyStripsWakeWord(t *testing.T) {
	c := NewRuleClassifier("aura")
	v := c.Classify("Aura, what is the weather?")
	if v.Text != "what is the weather?" {
		t.Errorf("unexpected stripped text: %q", v.Text)
	}
	if v.Category != "question" {
		t.Errorf("expected question category, got %q", v.Category)
	}
	if v.Keyword == "" {
		t.Error("expected an extracted keyword")
	}
}
