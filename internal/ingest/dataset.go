// Package ingest implements the bulk-load pipeline for question/answer
// datasets: parse the dataset file, embed each question, and upload
// (vector, payload) batches into a vector store collection, replacing any
// prior collection of the same name.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bankbot/aicore/internal/rag"
)

// ErrDataFormat marks ingestion input that is not parseable as the expected
// dataset schema. Background jobs record it as a failed-task error; it is
// never surfaced to the HTTP caller that triggered the job.
var ErrDataFormat = errors.New("invalid dataset format")

// turn is one role-tagged message inside a dataset record.
type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// record is one raw dataset entry: a conversational prompt/completion pair.
type record struct {
	Prompt     []turn `json:"prompt"`
	Completion []turn `json:"completion"`
}

// ParseDataset reads a dataset from r and extracts QA pairs. The dataset is
// an array of records; per record, the first user-role prompt turn is the
// question and the first assistant-role completion turn is the answer.
// Records missing either are dropped. Returns ErrDataFormat (wrapped) when
// the input is not valid JSON of that shape.
func ParseDataset(r io.Reader) ([]rag.QAPair, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataFormat, err)
	}

	pairs := make([]rag.QAPair, 0, len(records))
	for _, rec := range records {
		var question, answer string
		for _, t := range rec.Prompt {
			if t.Role == "user" {
				question = t.Content
				break
			}
		}
		for _, t := range rec.Completion {
			if t.Role == "assistant" {
				answer = t.Content
				break
			}
		}
		if question == "" || answer == "" {
			continue
		}
		pairs = append(pairs, rag.QAPair{Question: question, Answer: answer})
	}

	return pairs, nil
}
