package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clawmart/clawmart/internal/skill"
	"github.com/clawmart/clawmart/pkg/cerr"
)

// Executor runs a skill's logic. What runs is opaque to the gateway.
type Executor interface {
	Execute(ctx context.Context, sk *skill.Skill, input json.RawMessage) (json.RawMessage, error)
}

// ExampleExecutor answers with the skill's published example output.
type ExampleExecutor struct{}

func (ExampleExecutor) Execute(_ context.Context, sk *skill.Skill, _ json.RawMessage) (json.RawMessage, error) {
	if sk.ExampleOutput == "" || !json.Valid([]byte(sk.ExampleOutput)) {
		return json.RawMessage(`{}`), nil
	}
	return json.RawMessage(sk.ExampleOutput), nil
}

// HTTPExecutor forwards the call to the skill's upstream endpoint.
type HTTPExecutor struct {
	client *http.Client
}

func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPExecutor{client: client}
}

func (e *HTTPExecutor) Execute(ctx context.Context, sk *skill.Skill, input json.RawMessage) (json.RawMessage, error) {
	method := string(sk.Method)
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if method != http.MethodGet {
		body = bytes.NewReader(input)
	}
	req, err := http.NewRequestWithContext(ctx, method, sk.Endpoint, body)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	req.Header.Set("Accept", MimeJSON)
	if body != nil {
		req.Header.Set("Content-Type", MimeJSON)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "skill upstream unavailable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "skill upstream unavailable", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cerr.NewError(cerr.Unavailable, "skill upstream failed",
			fmt.Errorf("%s %s returned %d", method, sk.Endpoint, resp.StatusCode))
	}
	if json.Valid(raw) {
		return raw, nil
	}
	// Non-JSON upstream output is passed through as a JSON string.
	wrapped, err := json.Marshal(string(raw))
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	return wrapped, nil
}

// Router sends skills with an absolute endpoint upstream and answers the rest locally.
type Router struct {
	Local  Executor
	Remote Executor
}

func (r Router) Execute(ctx context.Context, sk *skill.Skill, input json.RawMessage) (json.RawMessage, error) {
	if r.Remote != nil && isAbsolute(sk.Endpoint) {
		return r.Remote.Execute(ctx, sk, input)
	}
	return r.Local.Execute(ctx, sk, input)
}

func isAbsolute(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}
