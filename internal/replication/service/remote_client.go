package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/allisson/caresync/internal/errors"
	replicationDomain "github.com/allisson/caresync/internal/replication/domain"
)

// HTTPRemoteClient talks to one peer's sync API. Outbound requests are
// throttled with a token bucket so a catch-up pass cannot saturate a peer on
// a constrained link.
type HTTPRemoteClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// HTTPRemoteClientConfig holds the knobs for a peer client.
type HTTPRemoteClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	RequestsPerSec float64
	Burst          int
}

// NewHTTPRemoteClient creates a client for the peer at cfg.BaseURL.
func NewHTTPRemoteClient(cfg HTTPRemoteClientConfig, logger *slog.Logger) *HTTPRemoteClient {
	return &HTTPRemoteClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		logger:     logger,
	}
}

// PeerID identifies the peer for checkpoints and logging.
func (c *HTTPRemoteClient) PeerID() string {
	return c.baseURL
}

// Changes retrieves the peer's change feed entries after the given sequence
// position, up to limit entries.
func (c *HTTPRemoteClient) Changes(
	ctx context.Context,
	since uint64,
	limit int,
) ([]*replicationDomain.RemoteChange, error) {
	endpoint := fmt.Sprintf("%s/v1/sync/changes?since=%d&limit=%d", c.baseURL, since, limit)

	var body struct {
		Changes []*replicationDomain.RemoteChange `json:"changes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, err
	}
	return body.Changes, nil
}

// Fetch retrieves one document from the peer by id.
func (c *HTTPRemoteClient) Fetch(
	ctx context.Context,
	id string,
) (*replicationDomain.RemoteDocument, error) {
	endpoint := fmt.Sprintf("%s/v1/sync/documents/%s", c.baseURL, url.PathEscape(id))

	var doc replicationDomain.RemoteDocument
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Push offers a document to the peer. A nil, nil return means the peer
// accepted it. When the peer holds a diverged version it answers 409 with its
// current document, which is returned so the caller can merge and push again.
func (c *HTTPRemoteClient) Push(
	ctx context.Context,
	doc *replicationDomain.RemoteDocument,
) (*replicationDomain.RemoteDocument, error) {
	endpoint := fmt.Sprintf("%s/v1/sync/documents", c.baseURL)

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode document")
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		var current replicationDomain.RemoteDocument
		if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode conflicting document")
		}
		return &current, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, apperrors.Wrap(replicationDomain.ErrRemoteUnavailable, "push failed with status "+strconv.Itoa(resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "push rejected with status "+strconv.Itoa(resp.StatusCode))
	default:
		return nil, nil
	}
}

// doJSON performs a request and decodes a JSON body into out.
func (c *HTTPRemoteClient) doJSON(
	ctx context.Context,
	method, endpoint string,
	payload []byte,
	out any,
) error {
	resp, err := c.do(ctx, method, endpoint, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return apperrors.Wrap(replicationDomain.ErrRemoteUnavailable, "request failed with status "+strconv.Itoa(resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return apperrors.Wrap(apperrors.ErrInvalidInput, "request rejected with status "+strconv.Itoa(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, "failed to decode response body")
	}
	return nil
}

// do waits for the rate limiter, then performs one HTTP request. Transport
// failures are reported as ErrRemoteUnavailable so the engine can distinguish
// an unreachable peer from a protocol error.
func (c *HTTPRemoteClient) do(
	ctx context.Context,
	method, endpoint string,
	payload []byte,
) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(err, "rate limiter wait interrupted")
	}

	var body *bytes.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("peer request failed",
				slog.String("peer", c.baseURL),
				slog.String("method", method),
				slog.Any("error", err))
		}
		return nil, apperrors.Wrap(replicationDomain.ErrRemoteUnavailable, err.Error())
	}
	return resp, nil
}
