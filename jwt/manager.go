package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MethodHS256 is the only signing method accepted by [Manager].
const MethodHS256 = "hs256"

var (
	// ErrInvalidSignature is returned when the signature does not match the
	// configured secret or the token was signed with another algorithm.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the token expiry lies in the past.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for structurally corrupt tokens and for tokens
	// whose claims are not acceptable.
	ErrMalformed = errors.New("token malformed")
)

// Config defines how a [Manager] signs and verifies tokens.
//
// Access and refresh tokens are expected to use two managers built from two
// distinct Config values: different secrets and different TTLs.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Leeway time.Duration
	Issuer string

	// Now overrides the clock used for issuance and expiry checks.
	Now func() time.Time
}

// Claims is the payload carried by every token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 tokens for one secret and one TTL.
//
// Manager is stateless apart from its configuration and is safe for
// concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a ready [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires secret")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{config: cfg, now: now}, nil
}

// TTL returns the lifetime applied to issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue signs a token for the given principal with a fresh random jti.
func (m *Manager) Issue(userID, email string) (string, time.Time, error) {
	return m.IssueWithID(userID, email, uuid.NewString())
}

// IssueWithID signs a token for the given principal using jti as the token id.
func (m *Manager) IssueWithID(userID, email, jti string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id required")
	}

	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.config.TTL)

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := sign(claims, m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}

	// NumericDate truncates to seconds; report what the token actually carries.
	return token, claims.ExpiresAt.Time, nil
}

// Verify checks signature, structure and expiry and returns the embedded
// claims. Any failure is one of [ErrInvalidSignature], [ErrExpired] or
// [ErrMalformed]; there is no partial success.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	return parse(tokenStr, m.config.Secret, options...)
}

// Issue signs claims with secret, setting the expiry to now+ttl. It is the
// functional form of [Manager.Issue] for callers without a Manager.
func Issue(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("hs256 requires secret")
	}
	if ttl <= 0 {
		return "", errors.New("invalid TTL configuration")
	}
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	return sign(claims, secret)
}

// Verify is the functional form of [Manager.Verify].
func Verify(tokenStr string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty verification secret", ErrInvalidSignature)
	}
	return parse(tokenStr, secret)
}

func sign(claims Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parse(tokenStr string, secret []byte, extra ...jwt.ParserOption) (*Claims, error) {
	options := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	}, extra...)

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId claim", ErrMalformed)
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
