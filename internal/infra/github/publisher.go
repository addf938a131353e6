package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v82/github"

	"github.com/vietddude/botrunner/internal/core/domain"
	"github.com/vietddude/botrunner/internal/metrics"
)

// DefaultTimeout bounds every request made by a Publisher.
const DefaultTimeout = 15 * time.Second

// Options configures a Publisher.
type Options struct {
	// BaseURL overrides the API root, e.g. https://ghe.example.com/api/v3/.
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Publisher writes content to a single file of a GitHub repository,
// creating it or updating it in place. Safe for concurrent use.
type Publisher struct {
	client *gogithub.Client
	logger *slog.Logger
}

type tokenKey struct{}

// tokenTransport picks the bearer token for each request from its context,
// so one client serves every target.
type tokenTransport struct {
	base http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, _ := req.Context().Value(tokenKey{}).(string)
	return (&headerTransport{token: token, base: t.base}).RoundTrip(req)
}

// NewPublisher creates a Publisher with a shared HTTP client.
func NewPublisher(opts Options) (*Publisher, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &tokenTransport{base: opts.Transport},
	}
	client := gogithub.NewClient(httpClient)
	client.UserAgent = userAgent

	if opts.BaseURL != "" {
		baseURL := strings.TrimSuffix(opts.BaseURL, "/") + "/"
		var err error
		client.BaseURL, err = client.BaseURL.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base URL %q: %w", opts.BaseURL, err)
		}
	}

	return &Publisher{client: client, logger: logger}, nil
}

// TryPublish mirrors content to the file described by cfg. It never returns
// an error: failures are logged and reported as false.
func (p *Publisher) TryPublish(ctx context.Context, cfg Config, content, label string) bool {
	start := time.Now()
	result := p.publish(ctx, cfg, content, label)
	metrics.PublishTotal.WithLabelValues(result).Inc()
	metrics.PublishLatency.Observe(time.Since(start).Seconds())
	return result == resultSuccess
}

const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultInvalid = "invalid"
	resultTimeout = "timeout"
)

func (p *Publisher) publish(ctx context.Context, cfg Config, content, label string) string {
	if ctx.Err() != nil {
		p.logger.Warn("GitHub publish timed out", "label", label, "error", ctx.Err())
		return resultTimeout
	}

	target, err := cfg.Target()
	if err != nil {
		p.logger.Error("GitHub publish skipped", "label", label, "repo", cfg.Repo, "error", err)
		return resultInvalid
	}
	log := p.logger.With("target", target.String(), "label", label)

	if target.Token != "" {
		ctx = context.WithValue(ctx, tokenKey{}, target.Token)
	}

	state, err := p.readState(ctx, target)
	if err != nil {
		return p.failure(ctx, log, "read", err)
	}

	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr(target.CommitMessage),
		Content: []byte(content),
		Branch:  gogithub.Ptr(target.Branch),
	}
	if state.Exists() {
		opts.SHA = gogithub.Ptr(state.SHA)
	}

	if _, _, err := p.client.Repositories.CreateFile(ctx, target.Owner, target.Repo, target.Path, opts); err != nil {
		return p.failure(ctx, log, "write", err)
	}

	log.Info("GitHub publish succeeded", "updated", state.Exists())
	return resultSuccess
}

// readState fetches the current file version. A missing file is not an error.
func (p *Publisher) readState(ctx context.Context, target domain.RepoTarget) (domain.RemoteFileState, error) {
	file, _, resp, err := p.client.Repositories.GetContents(ctx, target.Owner, target.Repo, target.Path,
		&gogithub.RepositoryContentGetOptions{Ref: target.Branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return domain.RemoteFileState{}, nil
		}
		return domain.RemoteFileState{}, err
	}
	if file == nil {
		return domain.RemoteFileState{}, nil
	}
	return domain.RemoteFileState{SHA: file.GetSHA()}, nil
}

func (p *Publisher) failure(ctx context.Context, log *slog.Logger, step string, err error) string {
	if isTimeout(ctx, err) {
		log.Warn("GitHub publish timed out", "step", step, "error", err)
		return resultTimeout
	}

	var errResp *gogithub.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		log.Error("GitHub publish failed",
			"step", step,
			"status", errResp.Response.StatusCode,
			"message", errResp.Message,
			"errors", errResp.Errors,
			"body", responseBody(errResp.Response),
		)
		return resultFailure
	}

	log.Error("GitHub publish failed", "step", step, "error", err)
	return resultFailure
}

// maxLoggedBody caps how much of an error response is logged.
const maxLoggedBody = 4 << 10

// responseBody returns the start of resp's body. go-github rewinds the body
// after decoding an error, so non-JSON bodies are still readable here.
func responseBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
