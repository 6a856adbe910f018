package ingest

import (
	"errors"
	"strings"
	"testing"
)

// TestParseDataset_ExtractsFirstUserAndAssistantTurns verifies the QA
// extraction rule: first user prompt turn, first assistant completion turn.
func TestParseDataset_ExtractsFirstUserAndAssistantTurns(t *testing.T) {
	t.Parallel()

	data := `[
	  {
	    "prompt": [
	      {"role": "system", "content": "be nice"},
	      {"role": "user", "content": "How do I open an account?"},
	      {"role": "user", "content": "second user turn is ignored"}
	    ],
	    "completion": [
	      {"role": "assistant", "content": "Visit a branch with ID."},
	      {"role": "assistant", "content": "ignored too"}
	    ]
	  }
	]`

	pairs, err := ParseDataset(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseDataset: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Question != "How do I open an account?" {
		t.Errorf("question: got %q", pairs[0].Question)
	}
	if pairs[0].Answer != "Visit a branch with ID." {
		t.Errorf("answer: got %q", pairs[0].Answer)
	}
}

// TestParseDataset_DropsIncompleteRecords verifies records missing either
// side are silently dropped.
func TestParseDataset_DropsIncompleteRecords(t *testing.T) {
	t.Parallel()

	data := `[
	  {"prompt": [{"role": "user", "content": "q1"}], "completion": [{"role": "assistant", "content": "a1"}]},
	  {"prompt": [{"role": "system", "content": "no user turn"}], "completion": [{"role": "assistant", "content": "a2"}]},
	  {"prompt": [{"role": "user", "content": "q3"}], "completion": []},
	  {"prompt": [{"role": "user", "content": "q4"}], "completion": [{"role": "assistant", "content": "a4"}]}
	]`

	pairs, err := ParseDataset(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseDataset: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 valid pairs, got %d", len(pairs))
	}
	if pairs[0].Question != "q1" || pairs[1].Question != "q4" {
		t.Errorf("valid pairs not kept in input order: %+v", pairs)
	}
}

// TestParseDataset_MalformedJSON verifies malformed input yields a
// format error, not a panic or a partial result.
func TestParseDataset_MalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseDataset(strings.NewReader(`{"not": "an array"`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !errors.Is(err, ErrDataFormat) {
		t.Errorf("expected ErrDataFormat, got %v", err)
	}
}

// TestParseDataset_EmptyArray verifies an empty dataset is valid and yields
// zero pairs.
func TestParseDataset_EmptyArray(t *testing.T) {
	t.Parallel()

	pairs, err := ParseDataset(strings.NewReader(`[]`))
	if err != nil {
		t.Fatalf("ParseDataset: %v", err)
	}
	if len(pairs) != 0 {
		t.Errorf("expected no pairs, got %d", len(pairs))
	}
}
