// Package caselinesdk is a minimal client for the Caseline HTTP API.
package caselinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a Caseline server. Set either BearerToken or APIKey.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Case is the API case model (partial).
type Case struct {
	ID                string  `json:"id"`
	CaseNumber        string  `json:"case_number"`
	Title             string  `json:"title,omitempty"`
	Status            string  `json:"status"`
	Priority          string  `json:"priority,omitempty"`
	AssignedOfficerID *string `json:"assigned_officer_id,omitempty"`
}

// WorkflowEntry is one approval chain slot.
type WorkflowEntry struct {
	ID          string  `json:"id"`
	CaseID      string  `json:"case_id"`
	OfficerRole string  `json:"officer_role"`
	Stage       string  `json:"stage"`
	Status      string  `json:"status"`
	Advice      string  `json:"advice,omitempty"`
	CompletedBy *string `json:"completed_by,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// Assignment is a hand-off to a litigation officer.
type Assignment struct {
	ID                  string `json:"id"`
	CaseID              string `json:"case_id"`
	AssignedTo          string `json:"assigned_to"`
	ExecutiveCommentary string `json:"executive_commentary"`
	Status              string `json:"status"`
}

// ReassignmentEvent is one parsed assignment event.
type ReassignmentEvent struct {
	Date    string  `json:"date"`
	Officer *string `json:"officer"`
	Kind    string  `json:"kind"`
}

// ParseResult is the outcome of parsing register free text.
type ParseResult struct {
	Events    []ReassignmentEvent `json:"events"`
	Remainder []string            `json:"remainder,omitempty"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// RegisterCase opens a new case file.
func (c *Client) RegisterCase(ctx context.Context, caseNumber, title string) (Case, error) {
	var out struct {
		Case Case `json:"case"`
	}
	err := c.do(ctx, http.MethodPost, "v0/cases", map[string]any{
		"case_number": caseNumber,
		"title":       title,
	}, &out)
	return out.Case, err
}

// GetCase fetches a case with its workflow entries.
func (c *Client) GetCase(ctx context.Context, caseID string) (Case, []WorkflowEntry, error) {
	var out struct {
		Case     Case            `json:"case"`
		Workflow []WorkflowEntry `json:"workflow"`
	}
	err := c.do(ctx, http.MethodGet, "v0/cases/"+url.PathEscape(caseID), nil, &out)
	return out.Case, out.Workflow, err
}

// SubmitAdvice signs off the caller's pending stage.
func (c *Client) SubmitAdvice(ctx context.Context, caseID, advice string) (WorkflowEntry, error) {
	var out struct {
		Entry WorkflowEntry `json:"entry"`
	}
	err := c.do(ctx, http.MethodPost, "v0/cases/"+url.PathEscape(caseID)+"/advice", map[string]any{
		"advice": advice,
	}, &out)
	return out.Entry, err
}

// AssignCase hands a case to a litigation officer.
func (c *Client) AssignCase(ctx context.Context, caseID, assigneeID, instructions string) (Assignment, error) {
	var out struct {
		Assignment Assignment `json:"assignment"`
	}
	err := c.do(ctx, http.MethodPost, "v0/cases/"+url.PathEscape(caseID)+"/assign", map[string]any{
		"assignee_id":  assigneeID,
		"instructions": instructions,
	}, &out)
	return out.Assignment, err
}

// ParseReassignments parses register free text into assignment events.
func (c *Client) ParseReassignments(ctx context.Context, text string) (ParseResult, error) {
	var out ParseResult
	err := c.do(ctx, http.MethodPost, "v0/reassignments/parse", map[string]any{"text": text}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
