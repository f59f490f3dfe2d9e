package protocol

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// authSkew is subtracted from token lifetimes so a token is refreshed
// shortly before the server would reject it.
const authSkew = 30 * time.Second

// Session identifies the account a per-user operation runs as. The client
// obtains and refreshes the delegated token for the account transparently.
type Session struct {
	Account string
}

type token struct {
	value  string
	expiry time.Time
}

func (t token) valid() bool {
	return t.value != "" && time.Now().Add(authSkew).Before(t.expiry)
}

// Client speaks the remote mail server's stateful envelope protocol.
// The only client-side state is the authentication tokens; every operation
// is independently retryable. Safe for concurrent use: expired tokens are
// refreshed single-flight, so concurrent callers share one refresh.
type Client struct {
	endpoint      string
	adminAccount  string
	adminPassword string
	httpClient    *http.Client

	mu       sync.RWMutex
	admin    token
	sessions map[string]token // delegated tokens by account name

	sf singleflight.Group
}

// NewClient creates a protocol client for the given service base URL and
// administrative credentials.
func NewClient(baseURL, adminAccount, adminPassword string) *Client {
	return &Client{
		endpoint:      strings.TrimRight(baseURL, "/") + "/service/admin",
		adminAccount:  adminAccount,
		adminPassword: adminPassword,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		sessions:      make(map[string]token),
	}
}

// Delegate returns a session handle for per-user operations. No network
// call happens until the session is first used.
func (c *Client) Delegate(account string) Session {
	return Session{Account: account}
}

// roundTrip sends one request element inside an envelope and returns the
// raw inner XML of the response body, or a *Fault.
func (c *Client) roundTrip(ctx context.Context, authToken string, req any) ([]byte, error) {
	payload, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	env := requestEnvelope{NS: nsSOAP, Body: requestBody{Inner: payload}}
	if authToken != "" {
		env.Header = &requestHeader{Context: requestContext{NS: nsAdmin, AuthToken: authToken}}
	}

	raw, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("remote call failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	// Faults arrive with a 5xx status but still carry an envelope, so the
	// body is parsed before the status code is considered.
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp responseEnvelope
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope (status %d): %w", httpResp.StatusCode, err)
	}

	if resp.Body.Fault != nil {
		return nil, &Fault{
			Code:    resp.Body.Fault.Detail.Error.Code,
			Message: resp.Body.Fault.Reason.Text,
		}
	}

	return resp.Body.Inner, nil
}

// invokeAdmin runs one operation under the administrative session,
// refreshing the token and replaying the request once if it expired
// mid-flight.
func (c *Client) invokeAdmin(ctx context.Context, req, resp any) error {
	tok, err := c.ensureAdminToken(ctx)
	if err != nil {
		return err
	}

	inner, err := c.roundTrip(ctx, tok, req)
	if IsFaultCode(err, CodeAuthExpired) {
		c.invalidateAdminToken(tok)
		if tok, err = c.ensureAdminToken(ctx); err != nil {
			return err
		}
		inner, err = c.roundTrip(ctx, tok, req)
	}
	if err != nil {
		return err
	}

	return decodeResponse(inner, resp)
}

// invokeAs runs one operation under the delegated session of sess.Account.
func (c *Client) invokeAs(ctx context.Context, sess Session, req, resp any) error {
	tok, err := c.ensureSessionToken(ctx, sess.Account)
	if err != nil {
		return err
	}

	inner, err := c.roundTrip(ctx, tok, req)
	if IsFaultCode(err, CodeAuthExpired) {
		c.invalidateSessionToken(sess.Account, tok)
		if tok, err = c.ensureSessionToken(ctx, sess.Account); err != nil {
			return err
		}
		inner, err = c.roundTrip(ctx, tok, req)
	}
	if err != nil {
		return err
	}

	return decodeResponse(inner, resp)
}

func decodeResponse(inner []byte, resp any) error {
	if resp == nil {
		return nil
	}
	if err := xml.Unmarshal(inner, resp); err != nil {
		return fmt.Errorf("failed to decode response document: %w", err)
	}
	return nil
}

func (c *Client) ensureAdminToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	tok := c.admin
	c.mu.RUnlock()
	if tok.valid() {
		return tok.value, nil
	}

	v, err, _ := c.sf.Do("auth:admin", func() (any, error) {
		// Another caller may have refreshed while this one waited.
		c.mu.RLock()
		cur := c.admin
		c.mu.RUnlock()
		if cur.valid() {
			return cur.value, nil
		}

		var resp authResponse
		inner, err := c.roundTrip(ctx, "", authRequest{Name: c.adminAccount, Password: c.adminPassword})
		if err != nil {
			return nil, fmt.Errorf("admin authentication failed: %w", err)
		}
		if err := decodeResponse(inner, &resp); err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.admin = token{value: resp.AuthToken, expiry: time.Now().Add(time.Duration(resp.Lifetime) * time.Millisecond)}
		c.mu.Unlock()
		return resp.AuthToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// invalidateAdminToken drops the cached admin token, but only if it is
// still the one the failed request used.
func (c *Client) invalidateAdminToken(used string) {
	c.mu.Lock()
	if c.admin.value == used {
		c.admin = token{}
	}
	c.mu.Unlock()
}

func (c *Client) ensureSessionToken(ctx context.Context, account string) (string, error) {
	c.mu.RLock()
	tok := c.sessions[account]
	c.mu.RUnlock()
	if tok.valid() {
		return tok.value, nil
	}

	v, err, _ := c.sf.Do("auth:delegate:"+account, func() (any, error) {
		c.mu.RLock()
		cur := c.sessions[account]
		c.mu.RUnlock()
		if cur.valid() {
			return cur.value, nil
		}

		var resp delegateAuthResponse
		req := delegateAuthRequest{Account: accountBy{By: "name", Value: account}}
		if err := c.invokeAdmin(ctx, req, &resp); err != nil {
			return nil, fmt.Errorf("delegated authentication for %s failed: %w", account, err)
		}

		c.mu.Lock()
		c.sessions[account] = token{value: resp.AuthToken, expiry: time.Now().Add(time.Duration(resp.Lifetime) * time.Millisecond)}
		c.mu.Unlock()
		return resp.AuthToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) invalidateSessionToken(account, used string) {
	c.mu.Lock()
	if c.sessions[account].value == used {
		delete(c.sessions, account)
	}
	c.mu.Unlock()
}
