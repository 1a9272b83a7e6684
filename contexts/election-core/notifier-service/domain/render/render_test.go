package render

import (
	"strings"
	"testing"
)

func TestFinalResultNamesTheWinner(t *testing.T) {
	text := FinalResult("Lunch spot", "Tacos")
	if !strings.Contains(text, "Lunch spot · final result:") {
		t.Fatalf("missing title line: %q", text)
	}
	if !strings.Contains(text, "🏆 Tacos 🏆") {
		t.Fatalf("missing winner line: %q", text)
	}
}

func TestAnonymizedResultsNumbersVotersPositionally(t *testing.T) {
	labels := map[string]string{"a": "Tacos", "b": "Ramen"}
	text := AnonymizedResults(labels, [][]string{
		{"a", "b"},
		{"b"},
	})
	lines := strings.Split(text, "\n")
	if lines[0] != "Anonymized results:" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "Voter 1: Tacos, Ramen" {
		t.Fatalf("unexpected first ballot line: %q", lines[1])
	}
	if lines[2] != "Voter 2: Ramen" {
		t.Fatalf("unexpected second ballot line: %q", lines[2])
	}
}

func TestAnonymizedResultsFallsBackToRawOptionID(t *testing.T) {
	text := AnonymizedResults(map[string]string{}, [][]string{{"opt-x"}})
	if !strings.Contains(text, "Voter 1: opt-x") {
		t.Fatalf("expected raw id fallback, got %q", text)
	}
}

func TestRoundBreakdownLabelsEachRound(t *testing.T) {
	labels := map[string]string{"a": "Tacos", "b": "Ramen"}
	text := RoundBreakdown(labels, [][][]string{
		{{"a"}, {"b", "a"}},
		{{"a"}},
	})
	if !strings.Contains(text, "After round 1: Tacos\nRamen, Tacos") {
		t.Fatalf("missing round 1 block: %q", text)
	}
	if !strings.Contains(text, "After round 2: Tacos") {
		t.Fatalf("missing round 2 block: %q", text)
	}
}

func TestPollPromptSkipsEmptyDescription(t *testing.T) {
	text := PollPrompt("Lunch spot", "  ", "ana")
	if strings.Count(text, "\n") != 1 {
		t.Fatalf("expected two lines without description, got %q", text)
	}
	if !strings.HasSuffix(text, "Created by @ana") {
		t.Fatalf("missing creator line: %q", text)
	}
}
