package recruiting

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const defaultTotalQuestions = 10

type generateQuestionsRequest struct {
	JobID          int `json:"job_id"`
	TotalQuestions int `json:"total_questions"`
}

type uploadTranscriptRequest struct {
	JobID          int    `json:"job_id"`
	TranscriptText string `json:"transcript_text"`
}

type generateScoreRequest struct {
	JobID int `json:"job_id"`
}

// ScoreResult is the authoritative outcome of score generation.
type ScoreResult struct {
	Score         float64 `json:"score"`
	HasTranscript bool    `json:"has_transcript"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	ID        string `json:"id"`
}

// GenerateQuestions asks the backend to create interview questions for the
// candidate and job and returns the issued session identifier.
func (c *Client) GenerateQuestions(ctx context.Context, candidateID, jobID, total int) (string, error) {
	if total <= 0 {
		total = defaultTotalQuestions
	}

	url := c.endpoint(fmt.Sprintf("%s/%d/generate-questions", apiCandidatesPath, candidateID))

	var raw map[string]any
	if err := c.postJSON(ctx, url, generateQuestionsRequest{JobID: jobID, TotalQuestions: total}, &raw); err != nil {
		return "", fmt.Errorf("generate questions: %w", err)
	}

	payload, err := unwrap(raw)
	if err != nil {
		return "", fmt.Errorf("generate questions: %w", err)
	}

	var resp sessionResponse
	if err := decode(payload, &resp); err != nil {
		return "", fmt.Errorf("decode question session: %w", err)
	}

	session := strings.TrimSpace(resp.SessionID)
	if session == "" {
		session = strings.TrimSpace(resp.ID)
	}
	if session == "" {
		return "", errors.New("generate questions: response has no session id")
	}

	return session, nil
}

// UploadTranscript stores the transcript for (candidate, job). Uploading again
// overwrites the previous transcript.
func (c *Client) UploadTranscript(ctx context.Context, candidateID, jobID int, text string) error {
	url := c.endpoint(fmt.Sprintf("%s/%d/upload-transcript", apiCandidatesPath, candidateID))

	var raw map[string]any
	if err := c.postJSON(ctx, url, uploadTranscriptRequest{JobID: jobID, TranscriptText: text}, &raw); err != nil {
		return fmt.Errorf("upload transcript: %w", err)
	}

	if _, err := unwrap(raw); err != nil {
		return fmt.Errorf("upload transcript: %w", err)
	}

	return nil
}

// GenerateScore requests a score for (candidate, job). It succeeds without a
// transcript too, in which case the backend returns a default score.
func (c *Client) GenerateScore(ctx context.Context, candidateID, jobID int) (*ScoreResult, error) {
	url := c.endpoint(fmt.Sprintf("%s/%d/generate-score", apiCandidatesPath, candidateID))

	var raw map[string]any
	if err := c.postJSON(ctx, url, generateScoreRequest{JobID: jobID}, &raw); err != nil {
		return nil, fmt.Errorf("generate score: %w", err)
	}

	payload, err := unwrap(raw)
	if err != nil {
		return nil, fmt.Errorf("generate score: %w", err)
	}

	var result ScoreResult
	if err := decode(payload, &result); err != nil {
		return nil, fmt.Errorf("decode score: %w", err)
	}

	return &result, nil
}

// unwrap checks the success flag and returns the data object when the response
// is enveloped, or the response itself otherwise.
func unwrap(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}

	var resp envelope
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(); err != nil {
		return nil, err
	}

	if data, ok := resp.Data.(map[string]any); ok {
		return data, nil
	}

	return raw, nil
}
