// Package wsio implements the WebSocket side of the bridge: the signed-URL
// handshake, the real gorilla/websocket-backed handler, and its in-process
// stub used for end-to-end testing without a live endpoint.
package wsio

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenLifetime  = 300 * time.Second
	clockSkewGrace = 60 * time.Second
)

// Clock lets tests fix "now" and the nonce so the signed URL is
// reproducible, matching Scenario E's determinism requirement.
type Clock struct {
	Now   func() time.Time
	Nonce func() string
}

// DefaultClock uses wall-clock time and a random v4 UUID nonce.
func DefaultClock() Clock {
	return Clock{Now: time.Now, Nonce: func() string { return uuid.NewString() }}
}

// URLSigner builds signed WebSocket connection URLs following
// wshandler.py's generate_websocket_url: an HS256 JWT carrying iss/kid/
// client_id/key_id (all set to the key ID), exp/nbf/iat with a five-minute
// lifetime and sixty-second backdated skew allowance, the configured region
// ("ny" by default),
// the request method/path/host, and a random nonce.
type URLSigner struct {
	KeyID     string
	SecretKey string
	Region    string
	Clock     Clock
}

// NewURLSigner builds a signer using the default wall-clock/UUID clock.
func NewURLSigner(keyID, secretKey, region string) *URLSigner {
	if region == "" {
		region = "ny"
	}
	return &URLSigner{KeyID: keyID, SecretKey: secretKey, Region: region, Clock: DefaultClock()}
}

// SignedURL returns baseURL with a jwt query parameter containing the
// signed token. connection_expiry is carried as a claim inside the signed
// payload (generate_websocket_url merges it into jwt_params before the
// payload is built), not as a separate unsigned query parameter.
func (s *URLSigner) SignedURL(baseURL, method string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing websocket URL: %w", err)
	}

	key, err := hex.DecodeString(s.SecretKey)
	if err != nil {
		return "", fmt.Errorf("decoding client secret as hex: %w", err)
	}

	now := s.Clock.Now()
	exp := now.Add(tokenLifetime)
	claims := jwt.MapClaims{
		"iss":               s.KeyID,
		"kid":               s.KeyID,
		"client_id":         s.KeyID,
		"key_id":            s.KeyID,
		"exp":               exp.Unix(),
		"nbf":               now.Add(-clockSkewGrace).Unix(),
		"iat":               now.Add(-clockSkewGrace).Unix(),
		"region":            s.Region,
		"method":            method,
		"path":              u.Path,
		"host":              u.Host,
		"nonce":             s.Clock.Nonce(),
		"connection_expiry": exp.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing websocket URL: %w", err)
	}

	q := u.Query()
	q.Set("jwt", signed)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
