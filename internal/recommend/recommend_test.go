package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestPromptEmbedsReportAndQuery(t *testing.T) {
	p := Prompt("MATH 241 completed", Query{Major: "CS", Campus: "Main", Query: "no mornings"})
	require.True(t, strings.HasPrefix(p, "```what if report\n\nMATH 241 completed\n```\n\n"))
	require.Contains(t, p, "major: CS, campus: Main")
	require.Contains(t, p, `additional query from the user: "no mornings"`)
	require.Contains(t, p, "semesters: [{year:")
}

func TestRecommendPassesJSONThrough(t *testing.T) {
	reply := `{"user_message":"ok","semesters":[{"year":"2025","classes":[{"code":"MATH 241"}]}]}`
	f := &fakeCompleter{reply: reply}
	out, err := New(f).Recommend(context.Background(), "report", Query{Major: "CS"})
	require.NoError(t, err)
	require.JSONEq(t, reply, string(out))
	require.Contains(t, f.prompt, "report")
}

func TestRecommendEmptyReplyIsEmptyObject(t *testing.T) {
	out, err := New(&fakeCompleter{reply: "  "}).Recommend(context.Background(), "r", Query{})
	require.NoError(t, err)
	require.Equal(t, "{}", string(out))
}

func TestRecommendErrors(t *testing.T) {
	_, err := New(&fakeCompleter{err: errors.New("boom")}).Recommend(context.Background(), "r", Query{})
	require.ErrorIs(t, err, ErrCompletion)

	for _, reply := range []string{"not json", `["array"]`, `"string"`, `{"open":`} {
		_, err = New(&fakeCompleter{reply: reply}).Recommend(context.Background(), "r", Query{})
		require.ErrorIs(t, err, ErrMalformed, reply)
	}
}

func TestOpenAICompleterRequestsJSONObject(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"semesters\":[]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("sk-test", srv.URL, "")
	out, err := c.Complete(context.Background(), "the prompt")
	require.NoError(t, err)
	require.Equal(t, `{"semesters":[]}`, out)

	require.Equal(t, DefaultModel, got["model"])
	rf, ok := got["response_format"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "json_object", rf["type"])
	msgs := got["messages"].([]interface{})
	require.Len(t, msgs, 1)
	require.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
}

func TestOpenAICompleterNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", srv.URL, "m").Complete(context.Background(), "p")
	require.Error(t, err)
}
