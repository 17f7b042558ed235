package compiler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// RemoteConfig configures the compile service client
type RemoteConfig struct {
	URL       string
	Retries   int
	Timeout   time.Duration
	RetryWait time.Duration
}

// Remote compiles by POSTing to a compile service at <URL>/compile
type Remote struct {
	client *resty.Client
}

type compileRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename"`
}

type compileResponse struct {
	Code  string `json:"code"`
	Error *struct {
		Message string       `json:"message"`
		Errors  []Diagnostic `json:"errors"`
	} `json:"error"`
}

// NewRemote creates a compile service client
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 100 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(10*cfg.RetryWait).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("User-Agent", "livedemo-compiler/1.0").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Compile errors are answers, not outages
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Remote{client: client}
}

// Compile implements Compiler
func (r *Remote) Compile(ctx context.Context, code string, meta Meta) (string, error) {
	var out compileResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(compileRequest{Code: code, Filename: meta.Filename}).
		SetResult(&out).
		SetError(&out).
		Post("/compile")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", ctxErr
		}
		return "", fmt.Errorf("compile service unreachable: %w", err)
	}

	if out.Error != nil {
		return "", &Error{
			Filename:    meta.Filename,
			Message:     out.Error.Message,
			Diagnostics: out.Error.Errors,
		}
	}
	if resp.IsError() {
		return "", fmt.Errorf("compile service returned %s", resp.Status())
	}
	return out.Code, nil
}
