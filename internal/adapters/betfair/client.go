package betfair

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIBase      = "https://api.betfair.com"
	identityBase        = "https://identitysso.betfair.com/api"
	inplayServiceBase   = "https://ips.betfair.com/inplayservice/v1"
	bettingRPCPath      = "/exchange/betting/json-rpc/v1"
	apingMethodPrefix   = "SportsAPING/v1.0/"
	soccerEventTypeID   = "1"
	matchOddsMarketType = "MATCH_ODDS"

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the Betfair HTTP client: identity SSO for session tokens plus
// JSON-RPC calls to the Betting API, rate limited and retried.
type Client struct {
	http         *http.Client
	apiBase      string
	identityBase string
	inplayBase   string
	appKey       string
	user         string
	pass         string
	limiter      *rate.Limiter
}

// NewClient builds a client. An empty apiBase selects production.
func NewClient(apiBase, appKey, user, pass string, rps float64) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		apiBase:      apiBase,
		identityBase: identityBase,
		inplayBase:   inplayServiceBase,
		appKey:       appKey,
		user:         user,
		pass:         pass,
		limiter:      rate.NewLimiter(rate.Limit(rps), 5),
	}
}

// login exchanges the credentials for a session token.
func (c *Client) login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.user)
	form.Set("password", c.pass)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.identityBase+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("betfair: login request: %w", err)
	}
	req.Header.Set("X-Application", c.appKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("betfair: login: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Token   string `json:"token"`
		Status  string `json:"status"`
		Error   string `json:"error"`
		Product string `json:"product"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("betfair: login decode: %w", err)
	}
	if out.Status != "SUCCESS" || out.Token == "" {
		return "", fmt.Errorf("betfair: login rejected: status=%s error=%s", out.Status, out.Error)
	}
	return out.Token, nil
}

// logout invalidates the session token. Failures are logged, not returned:
// the token expires on its own anyway.
func (c *Client) logout(ctx context.Context, token string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.identityBase+"/logout", nil)
	if err != nil {
		return
	}
	req.Header.Set("X-Application", c.appKey)
	req.Header.Set("X-Authentication", token)
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("betfair: logout failed", "err", err)
		return
	}
	resp.Body.Close()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpc calls one Betting API method, retrying transient failures with
// exponential backoff.
func (c *Client) rpc(ctx context.Context, token, method string, params, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  apingMethodPrefix + method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return fmt.Errorf("betfair: marshal %s: %w", method, err)
	}

	endpoint := c.apiBase + bettingRPCPath
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("betfair: rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("betfair: %s request: %w", method, err)
		}
		req.Header.Set("X-Application", c.appKey)
		req.Header.Set("X-Authentication", token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("betfair: %s failed after %d retries: %w", method, maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt == maxRetries {
				return fmt.Errorf("betfair: %s status %d after %d retries", method, resp.StatusCode, maxRetries)
			}
			slog.Warn("betfair: transient API failure", "method", method, "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("betfair: %s status %d: %s", method, resp.StatusCode, body)
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(body, &rpcResp); err != nil {
			return fmt.Errorf("betfair: %s decode: %w", method, err)
		}
		if rpcResp.Error != nil {
			return fmt.Errorf("betfair: %s APING error %d: %s %s",
				method, rpcResp.Error.Code, rpcResp.Error.Message, rpcResp.Error.Data)
		}
		if out != nil {
			if err := json.Unmarshal(rpcResp.Result, out); err != nil {
				return fmt.Errorf("betfair: %s decode result: %w", method, err)
			}
		}
		return nil
	}
	return fmt.Errorf("betfair: %s: exhausted %d retries", method, maxRetries)
}

// getJSON fetches a non-RPC endpoint (the in-play score service).
func (c *Client) getJSON(ctx context.Context, token, rawURL string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("betfair: rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("betfair: get request: %w", err)
		}
		req.Header.Set("X-Application", c.appKey)
		req.Header.Set("X-Authentication", token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("betfair: get failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil // feed has nothing for this event
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt == maxRetries {
				return fmt.Errorf("betfair: get status %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("betfair: get status %d: %s", resp.StatusCode, body)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("betfair: get decode: %w", err)
		}
		return nil
	}
	return fmt.Errorf("betfair: get: exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
