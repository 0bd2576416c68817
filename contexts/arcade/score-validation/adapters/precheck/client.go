package precheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainerrors "tiltcheck/contexts/arcade/score-validation/domain/errors"
	"tiltcheck/contexts/arcade/score-validation/ports"
)

const defaultTimeout = 3 * time.Second

// Client calls the external AI vision service that inspects submission
// photos. One bounded attempt per submission, no retries; every failure mode
// (timeout, transport error, non-2xx, malformed body) collapses into
// ErrPrecheckUnavailable so intake degrades to community review.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}
}

type analyzeRequest struct {
	PhotoReference string `json:"photo_reference"`
	MachineName    string `json:"machine_name"`
	ClaimedValue   int64  `json:"claimed_value"`
}

type analyzeResponse struct {
	MachineMatch bool `json:"machine_match"`
	ScoreMatch   bool `json:"score_match"`
	Confidence   struct {
		Machine string `json:"machine"`
		Score   string `json:"score"`
	} `json:"confidence"`
}

func (c *Client) Analyze(ctx context.Context, req ports.PrecheckRequest) (ports.PrecheckResult, error) {
	if c.baseURL == "" {
		return ports.PrecheckResult{}, domainerrors.ErrPrecheckUnavailable
	}

	body, err := json.Marshal(analyzeRequest{
		PhotoReference: req.PhotoReference,
		MachineName:    req.MachineName,
		ClaimedValue:   req.ClaimedValue,
	})
	if err != nil {
		return ports.PrecheckResult{}, c.unavailable("encode request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return ports.PrecheckResult{}, c.unavailable("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ports.PrecheckResult{}, c.unavailable("call vision service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ports.PrecheckResult{}, c.unavailable(fmt.Sprintf("vision service status %d", resp.StatusCode), nil)
	}

	var decoded analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.PrecheckResult{}, c.unavailable("decode response", err)
	}

	return ports.PrecheckResult{
		MachineMatch:      decoded.MachineMatch,
		ScoreMatch:        decoded.ScoreMatch,
		MachineConfidence: normalizeConfidence(decoded.Confidence.Machine),
		ScoreConfidence:   normalizeConfidence(decoded.Confidence.Score),
	}, nil
}

func (c *Client) unavailable(reason string, err error) error {
	attrs := []any{
		"event", "validation_precheck_call_failed",
		"module", "arcade/score-validation",
		"layer", "adapter",
		"reason", reason,
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	c.logger.Warn("automated pre-check call failed", attrs...)
	return domainerrors.ErrPrecheckUnavailable
}

func normalizeConfidence(value string) ports.PrecheckConfidence {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return ports.PrecheckConfidenceLow
	case "medium":
		return ports.PrecheckConfidenceMedium
	case "high":
		return ports.PrecheckConfidenceHigh
	default:
		return ports.PrecheckConfidenceNone
	}
}

var _ ports.PrecheckClient = (*Client)(nil)
