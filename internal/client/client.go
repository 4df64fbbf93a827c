// internal/client/client.go

// Package client is a typed HTTP client for the librarydesk API. Error
// bodies are decoded back into *apperr.Error so callers can match codes
// with errors.Is.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"librarydesk/internal/apperr"
	"librarydesk/internal/catalog"
	"librarydesk/internal/ledger"
	"librarydesk/internal/membership"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const dateLayout = "2006-01-02"

// Client talks to one API server. A Client returned by WithToken shares the
// underlying http.Client.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a client for baseURL. A nil httpClient means a client with a
// 10 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// SessionToken is the response to a successful login.
type SessionToken struct {
	Token     string          `json:"token"`
	AccountID uuid.UUID       `json:"account_id"`
	Username  string          `json:"username"`
	Role      membership.Role `json:"role"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (c *Client) Register(ctx context.Context, username, password string, role membership.Role) (*membership.Account, error) {
	var account membership.Account
	body := map[string]string{"username": username, "password": password, "role": string(role)}
	if err := c.do(ctx, http.MethodPost, "/accounts", body, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Login creates a session. Use WithToken to act as the logged-in account.
func (c *Client) Login(ctx context.Context, username, password string) (*SessionToken, error) {
	var sess SessionToken
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/sessions", body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) AddTitle(ctx context.Context, name, author, category string, totalCopies int) (*catalog.Title, error) {
	var title catalog.Title
	body := map[string]any{"name": name, "author": author, "category": category, "total_copies": totalCopies}
	if err := c.do(ctx, http.MethodPost, "/titles", body, &title); err != nil {
		return nil, err
	}
	return &title, nil
}

func (c *Client) GetTitle(ctx context.Context, id uuid.UUID) (*catalog.Title, error) {
	var title catalog.Title
	if err := c.do(ctx, http.MethodGet, "/titles/"+id.String(), nil, &title); err != nil {
		return nil, err
	}
	return &title, nil
}

func (c *Client) Restock(ctx context.Context, id uuid.UUID, additional int) (*catalog.Title, error) {
	var title catalog.Title
	body := map[string]int{"additional": additional}
	if err := c.do(ctx, http.MethodPost, "/titles/"+id.String()+"/restock", body, &title); err != nil {
		return nil, err
	}
	return &title, nil
}

// Borrow issues a loan for the session's own account, or for accountID when
// it is not uuid.Nil.
func (c *Client) Borrow(ctx context.Context, titleID, accountID uuid.UUID, today time.Time) (*ledger.Loan, error) {
	body := map[string]any{"title_id": titleID}
	if accountID != uuid.Nil {
		body["account_id"] = accountID
	}
	if !today.IsZero() {
		body["today"] = today.Format(dateLayout)
	}
	var loan ledger.Loan
	if err := c.do(ctx, http.MethodPost, "/loans", body, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *Client) Return(ctx context.Context, loanID uuid.UUID, today time.Time) (*ledger.Loan, error) {
	body := map[string]string{}
	if !today.IsZero() {
		body["today"] = today.Format(dateLayout)
	}
	var loan ledger.Loan
	if err := c.do(ctx, http.MethodPost, "/loans/"+loanID.String()+"/return", body, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *Client) OverdueReport(ctx context.Context, asOf time.Time) ([]ledger.OverdueLoan, error) {
	q := url.Values{"as_of": {asOf.Format(dateLayout)}}
	var report []ledger.OverdueLoan
	if err := c.do(ctx, http.MethodGet, "/reports/overdue?"+q.Encode(), nil, &report); err != nil {
		return nil, err
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error struct {
			Code    apperr.Code `json:"code"`
			Message string      `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Code == "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return apperr.New(body.Error.Code, body.Error.Message)
}
