package recruiting

import (
	"context"
	"fmt"
	"net/url"
)

const apiJobsPath = "/jobs"

type Job struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Department string `json:"department"`
	Status     string `json:"status"`
}

// GetOpenJobs fetches jobs that are open for applications. The endpoint answers
// either with a bare array or with the usual {success, data} envelope.
func (c *Client) GetOpenJobs(ctx context.Context) ([]Job, error) {
	q := url.Values{}
	q.Set("status", jobStatusOpen)

	var raw any
	if err := c.getJSON(ctx, c.endpoint(apiJobsPath), q, &raw); err != nil {
		return nil, fmt.Errorf("get open jobs: %w", err)
	}

	items := raw
	if m, ok := raw.(map[string]any); ok {
		var resp envelope
		if err := decode(m, &resp); err != nil {
			return nil, fmt.Errorf("decode jobs envelope: %w", err)
		}
		if err := resp.err(); err != nil {
			return nil, fmt.Errorf("get open jobs: %w", err)
		}
		items = resp.Data
	}

	jobs := make([]Job, 0)
	if items == nil {
		return jobs, nil
	}

	if err := decode(items, &jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	return jobs, nil
}

// FindJob returns the job with the given id or nil.
func FindJob(jobs []Job, id int) *Job {
	for i := range jobs {
		if jobs[i].ID == id {
			return &jobs[i]
		}
	}
	return nil
}
