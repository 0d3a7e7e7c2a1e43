package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/costcoplus/offline-relay/internal/domain"
)

// HTTPExecutor replays mutations against the Costco Plus REST API.
// The base URL is injected from config so tests can point to httptest.
type HTTPExecutor struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPExecutor(baseURL string, timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type postBody struct {
	WarehouseID int64  `json:"warehouseId"`
	Content     string `json:"content"`
	PostTypeID  int64  `json:"postTypeId"`
}

type commentBody struct {
	Comment string `json:"comment"`
}

type reactionBody struct {
	PostReactionTypeID int64 `json:"postReactionTypeId"`
}

type availabilityBody struct {
	ProductID   int64                     `json:"productId,omitempty"`
	WarehouseID int64                     `json:"warehouseId,omitempty"`
	Status      domain.AvailabilityStatus `json:"status"`
}

// Execute validates m, sends it, and classifies the outcome.
func (e *HTTPExecutor) Execute(ctx context.Context, m domain.QueuedMutation) error {
	if err := m.Validate(); err != nil {
		return err
	}

	method, path, body, err := route(m.Payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %w", domain.ErrInvalidPayload, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", domain.ErrPermanentRemote, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %w", domain.ErrTransientRemote, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp.StatusCode)
}

// route maps a payload to its HTTP method, path and JSON body.
func route(p domain.Payload) (method, path string, body any, err error) {
	switch v := p.(type) {
	case domain.CreatePost:
		method, path = http.MethodPost, "/v1/posts"
		body = postBody{WarehouseID: v.WarehouseID, Content: v.Content, PostTypeID: v.PostTypeID}
	case domain.CreateComment:
		method, path = http.MethodPost, fmt.Sprintf("/v1/posts/%d/comments", v.PostID)
		body = commentBody{Comment: v.Comment}
	case domain.SubmitReaction:
		method, path = http.MethodPost, fmt.Sprintf("/v1/posts/%d/reaction_records", v.PostID)
		if v.ReactionRecordID != nil {
			method, path = http.MethodPut, fmt.Sprintf("%s/%d", path, *v.ReactionRecordID)
		}
		body = reactionBody{PostReactionTypeID: v.PostReactionTypeID}
	case domain.ReportAvailability:
		if v.RecordID != nil {
			method, path = http.MethodPut, fmt.Sprintf("/v1/product_availability_records/%d", *v.RecordID)
			body = availabilityBody{Status: v.Status}
		} else {
			method, path = http.MethodPost, "/v1/product_availability_records"
			body = availabilityBody{ProductID: v.ProductID, WarehouseID: v.WarehouseID, Status: v.Status}
		}
	default:
		err = fmt.Errorf("%w: no route for payload %T", domain.ErrInvalidPayload, p)
	}
	return method, path, body, err
}

// classifyStatus: 2xx ok; 408, 429 and 5xx may pass on a later attempt;
// every other status is a rejection of the payload itself.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout,
		code == http.StatusTooManyRequests,
		code >= 500:
		return fmt.Errorf("%w: remote status %d", domain.ErrTransientRemote, code)
	default:
		return fmt.Errorf("%w: remote status %d", domain.ErrPermanentRemote, code)
	}
}

// compile-time check that HTTPExecutor implements Executor
var _ Executor = (*HTTPExecutor)(nil)
