// Package ordertoken issues and verifies the signed, time-limited links that let
// a guest customer open the detail page of one order without logging in.
package ordertoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is how long an issued link stays valid.
	DefaultTTL = 24 * time.Hour

	// SignatureLength is the number of hex characters kept from the HMAC digest (128 bits).
	SignatureLength = 32
)

var (
	ErrMissingSecret = errors.New("order token secret is required")
)

// Token is a signed grant for a single order.
type Token struct {
	OrderID   string
	Value     string
	ExpiresAt int64 // milliseconds since epoch
}

// Service signs and checks order access tokens. It is safe for concurrent use.
type Service struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New refuses to build a service without a signing secret.
func New(secret, baseURL string, opts ...Option) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}

	s := &Service{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs orderID with an expiry of now+TTL.
func (s *Service) Issue(orderID string) Token {
	expiresAt := s.now().Add(s.ttl).UnixMilli()
	return Token{
		OrderID:   orderID,
		Value:     s.sign(orderID, expiresAt),
		ExpiresAt: expiresAt,
	}
}

// Verify reports whether token is the signature of (orderID, expiresAt) and has not expired.
func (s *Service) Verify(orderID, token string, expiresAt int64) bool {
	if token == "" || len(token) != SignatureLength {
		return false
	}
	if expiresAt <= 0 {
		return false
	}
	if s.now().UnixMilli() > expiresAt {
		return false
	}

	expected := s.sign(orderID, expiresAt)
	return hmac.Equal([]byte(expected), []byte(token))
}

// VerifyRaw is Verify for values taken straight from a query string.
func (s *Service) VerifyRaw(orderID, token, expires string) bool {
	expires = strings.TrimSpace(expires)
	if expires == "" {
		return false
	}
	expiresAt, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	return s.Verify(orderID, token, expiresAt)
}

// BuildDetailURL issues a fresh token and returns the customer-facing order link.
// An empty baseURL falls back to the configured application URL.
func (s *Service) BuildDetailURL(orderID, orderNumber, baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = s.baseURL
	}

	tok := s.Issue(orderID)

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("/orders/details/")
	b.WriteString(url.PathEscape(orderID))
	b.WriteString("?token=")
	b.WriteString(url.QueryEscape(tok.Value))
	b.WriteString("&expires=")
	b.WriteString(url.QueryEscape(strconv.FormatInt(tok.ExpiresAt, 10)))
	b.WriteString("&orderNumber=")
	b.WriteString(url.QueryEscape(orderNumber))
	return b.String()
}

func (s *Service) sign(orderID string, expiresAt int64) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = fmt.Fprintf(mac, "%s:%d", orderID, expiresAt)
	return hex.EncodeToString(mac.Sum(nil))[:SignatureLength]
}
