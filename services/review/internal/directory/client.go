package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/ReviewPulse/pkg/errors"
	"github.com/utafrali/ReviewPulse/pkg/httpclient"
)

// ServiceName labels upstream errors, circuit breaker metrics and logs.
const ServiceName = "directory"

// maxResponseBytes bounds a single decoded upstream payload.
const maxResponseBytes = 10 << 20

// Doer executes an HTTP request. *httpclient.Client and
// *httpclient.CircuitBreakerClient both satisfy it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Account is a business account in the external directory.
type Account struct {
	Name        string `json:"name"`
	AccountName string `json:"accountName,omitempty"`
}

// Reviewer identifies the author of a review.
type Reviewer struct {
	DisplayName string `json:"displayName"`
}

// ReviewReply is the owner's answer to a review.
type ReviewReply struct {
	Comment    string `json:"comment"`
	UpdateTime string `json:"updateTime"`
}

// Review is a review as the directory returns it. StarRating is either a
// label such as "FOUR" or a number, and is decoded as json.Number for numbers.
type Review struct {
	ReviewID    string       `json:"reviewId"`
	StarRating  any          `json:"starRating"`
	Comment     string       `json:"comment"`
	Reviewer    Reviewer     `json:"reviewer"`
	CreateTime  string       `json:"createTime"`
	UpdateTime  string       `json:"updateTime"`
	ReviewReply *ReviewReply `json:"reviewReply,omitempty"`
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}

type reviewsResponse struct {
	Reviews []Review `json:"reviews"`
}

// Client calls the external business directory API on behalf of a user.
// Non-2xx answers are returned as *httpclient.StatusError.
type Client struct {
	http    Doer
	baseURL string
}

// NewClient creates a directory client rooted at baseURL.
func NewClient(doer Doer, baseURL string) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ListAccounts returns the business accounts visible to accessToken.
func (c *Client) ListAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	var out accountsResponse
	if err := c.get(ctx, accessToken, c.baseURL+"/accounts", &out); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out.Accounts, nil
}

// ListReviews returns the reviews of location under account. Both are
// directory resource names such as "accounts/123" and "locations/456".
func (c *Client) ListReviews(ctx context.Context, accessToken, account, location string) ([]Review, error) {
	url := fmt.Sprintf("%s/%s/%s/reviews", c.baseURL, strings.Trim(account, "/"), strings.Trim(location, "/"))

	var out reviewsResponse
	if err := c.get(ctx, accessToken, url, &out); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return out.Reviews, nil
}

func (c *Client) get(ctx context.Context, accessToken, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, ServiceName)
	}
	defer func() { _ = resp.Body.Close() }()

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", ServiceName, err)
	}
	return nil
}

// CircuitOpenFallback replaces the breaker's open-state error with a readable
// one that ends up in the affected store's fetch_error message.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("directory temporarily unavailable, retry shortly")
}
