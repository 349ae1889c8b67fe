package recruiting

import (
	"context"
	"fmt"
	"slices"
	"time"
)

const (
	apiCandidatesPath   = "/candidates"
	apiOnlineStatusPath = "/candidates/online-status"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
)

// Statuses lists the known candidate statuses in display order.
func Statuses() []Status {
	return []Status{StatusActive, StatusPending}
}

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusPending
}

type Candidate struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Department string   `json:"department"`
	Experience string   `json:"experience"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	HireDate   string   `json:"hireDate"`
	Skills     []string `json:"skills"`
	// Score is nil until the backend has produced one.
	Score         *float64  `json:"score"`
	Status        Status    `json:"status"`
	HasTranscript bool      `json:"hasTranscript"`
	IsOnline      bool      `json:"isOnline"`
	OnlineStatus  string    `json:"onlineStatus"`
	LastActivity  time.Time `json:"lastActivity"`
}

// ScoreValue returns the score, treating an absent score as 0.
func (c *Candidate) ScoreValue() float64 {
	if c.Score == nil {
		return 0
	}
	return *c.Score
}

// Clone returns a deep copy so callers can not mutate shared slices or pointers.
func (c Candidate) Clone() Candidate {
	c.Skills = slices.Clone(c.Skills)
	if c.Score != nil {
		score := *c.Score
		c.Score = &score
	}
	return c
}

// Presence is one entry of the online-status roster.
type Presence struct {
	ID           int       `json:"id"`
	IsOnline     bool      `json:"isOnline"`
	OnlineStatus string    `json:"onlineStatus"`
	LastActivity time.Time `json:"lastActivity"`
}

// GetCandidates fetches the full candidate collection.
func (c *Client) GetCandidates(ctx context.Context) ([]Candidate, error) {
	var resp envelope
	if err := c.getJSON(ctx, c.endpoint(apiCandidatesPath), nil, &resp); err != nil {
		return nil, fmt.Errorf("get candidates: %w", err)
	}

	if err := resp.err(); err != nil {
		return nil, fmt.Errorf("get candidates: %w", err)
	}

	candidates := make([]Candidate, 0)
	if resp.Data == nil {
		return candidates, nil
	}

	if err := decode(resp.Data, &candidates); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}

	return candidates, nil
}

// GetOnlineStatus fetches presence information for the whole roster.
func (c *Client) GetOnlineStatus(ctx context.Context) ([]Presence, error) {
	var resp envelope
	if err := c.getJSON(ctx, c.endpoint(apiOnlineStatusPath), nil, &resp); err != nil {
		return nil, fmt.Errorf("get online status: %w", err)
	}

	if err := resp.err(); err != nil {
		return nil, fmt.Errorf("get online status: %w", err)
	}

	var presence []Presence
	if resp.Data == nil {
		return presence, nil
	}

	if err := decode(resp.Data, &presence); err != nil {
		return nil, fmt.Errorf("decode online status: %w", err)
	}

	return presence, nil
}

// RecordActivity reports the given user as active right now.
func (c *Client) RecordActivity(ctx context.Context, userID int) error {
	url := c.endpoint(fmt.Sprintf("%s/%d/activity", apiCandidatesPath, userID))
	if err := c.postJSON(ctx, url, nil, nil); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}

	return nil
}
