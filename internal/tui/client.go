package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Rajan093/VastuAi/internal/models"
)

// Client is a thin HTTP client for the consultation API.
type Client struct {
	base  string
	http  *http.Client
	token string
}

func NewClient(base string) *Client {
	return &Client{base: base, http: &http.Client{Timeout: 2 * time.Minute}}
}

// SessionReply mirrors the create-session response.
type SessionReply struct {
	SessionID string            `json:"session_id"`
	Chart     *models.Horoscope `json:"chart"`
	Reading   string            `json:"reading"`
	Degraded  bool              `json:"degraded"`
}

// AnswerReply mirrors the follow-up message response.
type AnswerReply struct {
	Answer   string                 `json:"answer"`
	Rules    []models.RetrievedRule `json:"rules"`
	Degraded bool                   `json:"degraded"`
}

type apiError struct {
	Error         string   `json:"error"`
	MissingFields []string `json:"missing_fields"`
}

// Login obtains and stores a bearer token.
func (c *Client) Login(email, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.post("/api/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// Signup registers a new account and stores the returned token.
func (c *Client) Signup(email, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.post("/api/signup", map[string]string{"email": email, "password": password}, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// CreateSession sends free-form birth details and returns the chart plus the
// initial reading.
func (c *Client) CreateSession(text string) (*SessionReply, error) {
	var out SessionReply
	if err := c.post("/api/sessions", map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask sends one follow-up question inside a session.
func (c *Client) Ask(sessionID, question string) (*AnswerReply, error) {
	var out AnswerReply
	if err := c.post("/api/sessions/"+sessionID+"/messages", map[string]string{"question": question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg := apiErr.Error
			for _, f := range apiErr.MissingFields {
				msg += "; missing " + f
			}
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
