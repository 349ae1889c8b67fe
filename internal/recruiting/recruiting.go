package recruiting

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "http://localhost:3000/api"
	userAgent = "spigell/candidate-console"
	// Open is the only job status the console offers for actions.
	jobStatusOpen = "Open"

	defaultTimeout = 15 * time.Second
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// Token returns the bearer token the client was built with.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.APIURL, "/") + path
}
