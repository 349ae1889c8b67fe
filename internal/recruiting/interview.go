package recruiting

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// interviewFetchLimit bounds concurrent interview requests while seeding the
// question session index.
const interviewFetchLimit = 4

type Interview struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	JobID     int    `json:"job_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// GetInterviews returns interviews recorded for a candidate.
func (c *Client) GetInterviews(ctx context.Context, candidateID int) ([]Interview, error) {
	url := c.endpoint(fmt.Sprintf("%s/%d/interviews", apiCandidatesPath, candidateID))

	var resp envelope
	if err := c.getJSON(ctx, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("get interviews: %w", err)
	}

	if err := resp.err(); err != nil {
		return nil, fmt.Errorf("get interviews: %w", err)
	}

	var interviews []Interview
	if resp.Interviews == nil {
		return interviews, nil
	}

	if err := decode(resp.Interviews, &interviews); err != nil {
		return nil, fmt.Errorf("decode interviews: %w", err)
	}

	return interviews, nil
}

// QuestionSession returns the question session identifier of the first
// interview that has one.
func QuestionSession(interviews []Interview) string {
	for _, interview := range interviews {
		if id := strings.TrimSpace(interview.SessionID); id != "" {
			return id
		}
	}
	return ""
}

// QuestionSessions looks up question sessions for the given candidates. Lookups
// are best effort: failures are logged and the candidate is left out.
func (c *Client) QuestionSessions(ctx context.Context, candidateIDs []int) map[int]string {
	var mu sync.Mutex
	sessions := make(map[int]string)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(interviewFetchLimit)

	for _, id := range candidateIDs {
		g.Go(func() error {
			interviews, err := c.GetInterviews(ctx, id)
			if err != nil {
				c.logger.Debug("skipping interview lookup", zap.Int("candidate_id", id), zap.Error(err))
				return nil
			}

			if session := QuestionSession(interviews); session != "" {
				mu.Lock()
				sessions[id] = session
				mu.Unlock()
			}
			return nil
		})
	}

	// Workers never return errors.
	_ = g.Wait()

	return sessions
}
