// Package recommend asks a chat model for a course schedule built from a
// stored what-if report.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coursepilot/go-services/pkg/logger"
	"github.com/coursepilot/go-services/pkg/metrics"
)

var (
	// ErrCompletion means the model call itself failed.
	ErrCompletion = errors.New("completion failed")
	// ErrMalformed means the model answered with something other than a JSON object.
	ErrMalformed = errors.New("completion is not a json object")
)

// Completer sends a single system prompt and returns the model's reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Query carries the student's details alongside the stored report.
type Query struct {
	Major  string
	Campus string
	Query  string
}

type Recommender struct {
	completer Completer
}

func New(c Completer) *Recommender {
	return &Recommender{completer: c}
}

// Recommend returns the model's schedule verbatim. An empty reply is
// treated as an empty object.
func (r *Recommender) Recommend(ctx context.Context, report string, q Query) (json.RawMessage, error) {
	out, err := r.completer.Complete(ctx, Prompt(report, q))
	if err != nil {
		metrics.Completions.WithLabelValues("error").Inc()
		logger.Errorf("recommend: completion failed: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	raw := bytes.TrimSpace([]byte(out))
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) || raw[0] != '{' {
		metrics.Completions.WithLabelValues("malformed").Inc()
		logger.Warnf("recommend: model returned %d bytes of non-object output", len(raw))
		return nil, ErrMalformed
	}
	metrics.Completions.WithLabelValues("ok").Inc()
	return json.RawMessage(raw), nil
}

// Prompt builds the system message sent to the model.
func Prompt(report string, q Query) string {
	return fmt.Sprintf("```what if report\n\n%s\n```\n\n"+
		"Given the above report. Create a schedule for the student. "+
		"Make sure to take into account the classes they have currently taken and the required classes in the document above. "+
		"Respond in valid json according to the following schema: "+
		"{user_message: \"message to the user explaining your reasoning for choosing each course / a general overview\", "+
		"semesters: [{year: \"year here\", classes: [{code: \"title here\"}]}]}. "+
		"Do not change the title of classes or assume their names. "+
		"Use the names listed in the document for the titles of the classes. "+
		"In addition here is the student's major: %s, campus: %s, and an additional query from the user: \"%s\". "+
		"That may be blank.",
		report, q.Major, q.Campus, q.Query)
}
