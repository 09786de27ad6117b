package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Request is one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Token  string
	// JSON is encoded as the request body when set.
	JSON any
	// File is sent as a multipart upload when set.
	File *fiber.FormFile
}

// Transport performs API calls and returns the raw status and body.
type Transport interface {
	Do(ctx context.Context, req Request) (status int, body []byte, err error)
}

// AgentTransport sends requests with fiber's HTTP client.
type AgentTransport struct {
	BaseURL string
	Timeout time.Duration
}

// NewAgentTransport returns a transport rooted at baseURL.
func NewAgentTransport(baseURL string) *AgentTransport {
	return &AgentTransport{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: 10 * time.Second}
}

func (t *AgentTransport) Do(ctx context.Context, req Request) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	a := fiber.AcquireAgent()
	r := a.Request()
	r.Header.SetMethod(req.Method)
	uri := t.BaseURL + req.Path
	if len(req.Query) > 0 {
		uri += "?" + req.Query.Encode()
	}
	r.SetRequestURI(uri)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if req.Token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+req.Token)
	}

	timeout := t.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout > 0 {
		a.Timeout(timeout)
	}

	switch {
	case req.File != nil:
		a.FileData(req.File).MultipartForm(nil)
	case req.JSON != nil:
		a.JSON(req.JSON)
	}

	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return 0, nil, fmt.Errorf("prepare %s %s: %w", req.Method, req.Path, err)
	}
	status, body, errs := a.Bytes()
	if len(errs) > 0 {
		return status, body, fmt.Errorf("%s %s: %w", req.Method, req.Path, errors.Join(errs...))
	}
	return status, body, nil
}
