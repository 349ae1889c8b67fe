package presence

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken        = errors.New("no auth token")
	ErrMalformedToken = errors.New("malformed auth token")
)

var identityClaims = []string{"id", "userId", "user_id", "sub"}

// DecodeIdentity extracts the user id from the token payload. The signature is
// not verified; the backend does that on every request.
func DecodeIdentity(token string) (int, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return 0, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	for _, key := range identityClaims {
		raw, ok := claims[key]
		if !ok {
			continue
		}
		if id, ok := claimID(raw); ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("%w: no user id claim", ErrMalformedToken)
}

func claimID(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		if v <= 0 || v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		id, err := strconv.Atoi(v.String())
		return id, err == nil && id > 0
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(v))
		return id, err == nil && id > 0
	default:
		return 0, false
	}
}
