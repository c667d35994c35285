package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("claude-session")

const (
	organizationsPath = "/api/organizations"
	usagePath         = "/api/organizations/{org}/usage"

	maxResponseBytes = 1 << 20 // 1 MiB
)

// Client talks to the claude.ai web API with a session cookie.
type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	// every request carries its own Cookie header; a jar would leak
	// response cookies from one call into the next.
	client.SetCookieJar(nil)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(cfg.requestTimeout())

	client.OnBeforeRequest(logRequest)

	return &Client{http: client}
}

func logRequest(_ *resty.Client, req *resty.Request) error {
	slog.DebugContext(req.Context(), "start request", "method", req.Method, "url", req.URL)
	return nil
}

// logResponse is called by hand: resty skips its response middleware for
// unparsed responses.
func logResponse(res *resty.Response) {
	slog.DebugContext(
		res.Request.Context(), "got response",
		"url", res.Request.URL,
		"status", res.StatusCode(),
		"elapsed", res.Time(),
	)
}

// request leaves the body unread so readBody can cap it. Callers must close
// res.RawBody().
func (c *Client) request(ctx context.Context, cred Credential) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Cookie", cred.Header()).
		SetDoNotParseResponse(true)
}

// Validate probes the organizations endpoint once. Only HTTP 200 counts as
// valid; any other status or a transport error is reported as invalid.
func (c *Client) Validate(ctx context.Context, cred Credential) bool {
	ctx, span := tracer.Start(ctx, "client:Validate")
	defer span.End()

	res, err := c.request(ctx, cred).Get(organizationsPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe request failed")
		slog.Warn("cookie validation failed", "err", err)
		return false
	}
	res.RawBody().Close()
	logResponse(res)
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode()))
	if res.StatusCode() != http.StatusOK {
		slog.Warn("cookie rejected", "status", res.StatusCode())
		return false
	}
	return true
}

// Organizations lists the organizations the session belongs to.
func (c *Client) Organizations(ctx context.Context, cred Credential) ([]Organization, error) {
	res, err := c.request(ctx, cred).Get(organizationsPath)
	body, err := checkResponse("get organizations", res, err)
	if err != nil {
		return nil, err
	}

	var orgs []Organization
	if err := json.Unmarshal(body, &orgs); err != nil {
		return nil, &UpstreamError{Op: "get organizations", StatusCode: res.StatusCode(), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return orgs, nil
}

// FetchUsage resolves the first organization of the session and returns its
// reshaped usage.
func (c *Client) FetchUsage(ctx context.Context, cred Credential) (*UsageSnapshot, error) {
	ctx, span := tracer.Start(ctx, "client:FetchUsage")
	defer span.End()

	orgs, err := c.Organizations(ctx, cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get organizations")
		return nil, err
	}
	if len(orgs) == 0 {
		span.SetStatus(codes.Error, ErrNoOrganization.Error())
		return nil, ErrNoOrganization
	}

	org := orgs[0]
	name := org.Name
	if name == "" {
		name = "Unknown"
	}
	slog.Info("using organization", "name", name, "uuid", org.UUID)
	span.SetAttributes(attribute.String("organization.uuid", org.UUID))

	res, err := c.request(ctx, cred).
		SetPathParam("org", org.UUID).
		Get(usagePath)
	body, err := checkResponse("get usage", res, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get usage")
		return nil, err
	}

	var raw usageResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		span.SetStatus(codes.Error, "failed to parse usage")
		return nil, &UpstreamError{Op: "get usage", StatusCode: res.StatusCode(), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return newUsageSnapshot(raw), nil
}

func checkResponse(op string, res *resty.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, &UpstreamError{Op: op, Err: fmt.Errorf("network error: %w", err)}
	}
	logResponse(res)

	raw := res.RawBody()
	defer raw.Close()
	body, err := io.ReadAll(io.LimitReader(raw, maxResponseBytes+1))
	if err != nil {
		return nil, &UpstreamError{Op: op, StatusCode: res.StatusCode(), Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if len(body) > maxResponseBytes {
		return nil, &UpstreamError{Op: op, StatusCode: res.StatusCode(), Err: fmt.Errorf("API response too large")}
	}
	if res.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{Op: op, StatusCode: res.StatusCode(), Body: truncate(string(body), 200)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
