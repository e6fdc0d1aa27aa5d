package shiphero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"github.com/sirupsen/logrus"
)

// GraphQL error code the warehouse API uses for throttling. The error
// carries a "time_remaining" field like "27 seconds".
const rateLimitErrorCode = 30

// RetryPolicy bounds the rate-limit retry loop. The zero value means
// unbounded, which matches the upstream API's own guidance: sleep exactly
// the advertised time_remaining and resubmit.
type RetryPolicy struct {
	MaxAttempts int
	MaxWait     time.Duration
}

type Client struct {
	endpoint        string
	refreshEndpoint string
	creds           *CredentialStore
	retry           RetryPolicy
	http            *http.Client
	logger          *logrus.Logger

	// injectable for tests
	sleep func(time.Duration)
	now   func() time.Time
}

func NewClient(creds *CredentialStore) *Client {
	endpoint := config.EnvString("SHIPHERO_GRAPHQL_ENDPOINT", "https://public-api.shiphero.com/graphql")
	refreshEndpoint := config.EnvString("SHIPHERO_REFRESH_ENDPOINT", "https://public-api.shiphero.com/auth/refresh")

	c := &Client{
		endpoint:        endpoint,
		refreshEndpoint: refreshEndpoint,
		creds:           creds,
		http:            &http.Client{Timeout: 60 * time.Second},
		logger:          config.GetLogger(),
		sleep:           time.Sleep,
		now:             time.Now,
	}
	if creds != nil && creds.refresh == nil {
		creds.refresh = c.exchangeRefreshToken
	}
	return c
}

// NewClientFromEnv builds a client whose credential store is seeded from
// SHIPHERO_API_TOKEN / SHIPHERO_REFRESH_TOKEN / SHIPHERO_TOKEN_EXPIRATION.
func NewClientFromEnv() *Client {
	expiry := time.Time{}
	if v := strings.TrimSpace(os.Getenv("SHIPHERO_TOKEN_EXPIRATION")); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			expiry = t
		}
	}
	creds := NewCredentialStore(
		strings.TrimSpace(os.Getenv("SHIPHERO_API_TOKEN")),
		strings.TrimSpace(os.Getenv("SHIPHERO_REFRESH_TOKEN")),
		expiry,
	)
	return NewClient(creds)
}

func (c *Client) SetRetryPolicy(policy RetryPolicy) {
	c.retry = policy
}

type graphQLError struct {
	Message       string `json:"message"`
	Code          int    `json:"code"`
	TimeRemaining string `json:"time_remaining"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Execute posts a GraphQL query, refreshing the access credential first if
// it has expired and absorbing rate-limit errors by sleeping the advertised
// wait and resubmitting the same request.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}) (*graphQLResponse, error) {
	token, err := c.creds.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, err
	}

	deadline := time.Time{}
	if c.retry.MaxWait > 0 {
		deadline = c.now().Add(c.retry.MaxWait)
	}

	attempt := 0
	for {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("warehouse api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}

		var parsed graphQLResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, err
		}

		if wait, throttled := throttleWait(parsed.Errors); throttled {
			if c.retry.MaxAttempts > 0 && attempt >= c.retry.MaxAttempts {
				return nil, fmt.Errorf("rate limited after %d attempts", attempt)
			}
			if !deadline.IsZero() && c.now().Add(wait).After(deadline) {
				return nil, fmt.Errorf("rate limited; wait %s exceeds retry budget", wait)
			}
			c.logger.WithFields(logrus.Fields{
				"module": "shiphero",
				"wait":   wait.String(),
			}).Info("throttled; sleeping before resubmitting")
			c.sleep(wait)
			continue
		}

		return &parsed, nil
	}
}

func throttleWait(errs []graphQLError) (time.Duration, bool) {
	for _, e := range errs {
		if e.Code != rateLimitErrorCode {
			continue
		}
		// time_remaining looks like "27 seconds"
		fields := strings.Fields(e.TimeRemaining)
		if len(fields) == 0 {
			return time.Second, true
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 0 {
			return time.Second, true
		}
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

var errRefreshFailed = errors.New("failed to refresh warehouse access token")

// exchangeRefreshToken trades the refresh credential for a new access token
// and its lifetime.
func (c *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) (string, time.Duration, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: status %d: %s", errRefreshFailed, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", 0, err
	}
	if parsed.AccessToken == "" || parsed.ExpiresIn <= 0 {
		return "", 0, errRefreshFailed
	}
	return parsed.AccessToken, time.Duration(parsed.ExpiresIn) * time.Second, nil
}
