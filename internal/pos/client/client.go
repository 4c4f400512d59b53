package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pos-ticketing/internal/models"
)

var (
	// ErrRejected means the store answered with a client-error class:
	// the batch is malformed and retrying will never help.
	ErrRejected = errors.New("store rejected request")

	// ErrNotFound means the store has no such ticket.
	ErrNotFound = errors.New("ticket not found on store")
)

// VerifyRefused carries the store's 400 response for a used, expired or
// invalid ticket so the station can display the reason and usedAt.
type VerifyRefused struct {
	Detail models.VerifyError
}

func (e *VerifyRefused) Error() string {
	return fmt.Sprintf("verification refused: %s", e.Detail.Message)
}

// Client talks to the ticket-service. Every call is bounded by the HTTP
// client timeout; a timeout is a network failure, and the caller degrades
// to the offline queue or the local echo.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return c.HTTP.Do(req)
}

// CreateTickets posts a whole issuance batch. A 201 covers the
// duplicate-tolerant case, so replays of partially-landed batches succeed.
func (c *Client) CreateTickets(ctx context.Context, batch []models.Ticket) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/tickets", bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("post tickets: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	default:
		return fmt.Errorf("store error: status %d", resp.StatusCode)
	}
}

func (c *Client) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/tickets/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store error: status %d", resp.StatusCode)
	}

	var ticket models.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return &ticket, nil
}

// VerifyTicket submits a scanned payload for redemption. The scanned
// string may be the raw ID or the QR JSON; the store accepts both.
func (c *Client) VerifyTicket(ctx context.Context, scanned string) (*models.VerifyResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/tickets/"+url.PathEscape(scanned)+"/verify", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("verify ticket: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result models.VerifyResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode verify result: %w", err)
		}
		return &result, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusBadRequest:
		var detail models.VerifyError
		if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
			return nil, fmt.Errorf("decode verify refusal: %w", err)
		}
		return nil, &VerifyRefused{Detail: detail}
	default:
		return nil, fmt.Errorf("store error: status %d", resp.StatusCode)
	}
}
