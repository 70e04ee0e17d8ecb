// Package session keeps per-browser session state in a signed cookie. The only
// value stored is the window group id, so every tab of one browser session
// lands in the same group.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is returned when a session cookie is present but its
// signature or expiry does not check out.
var ErrInvalidSession = errors.New("invalid session")

// Claims is the JWT payload carried in the session cookie.
type Claims struct {
	GroupID string `json:"gid,omitempty"`
	jwt.RegisteredClaims
}

// Session is the session state of one request. It implements
// peers.SessionContext.
type Session struct {
	mu      sync.Mutex
	groupID string
	dirty   bool
}

// GroupID returns the stored group id, if any.
func (s *Session) GroupID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID, s.groupID != ""
}

// SetGroupID stores id and marks the session for saving.
func (s *Session) SetGroupID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupID = id
	s.dirty = true
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Store signs and verifies session cookies.
type Store struct {
	secret     []byte
	cookieName string
	duration   time.Duration
	secure     bool
}

// NewStore creates a Store that signs cookies named cookieName with secret.
func NewStore(secret, cookieName string, duration time.Duration, secure bool) *Store {
	return &Store{
		secret:     []byte(secret),
		cookieName: cookieName,
		duration:   duration,
		secure:     secure,
	}
}

// Load reads the session from r. A missing cookie yields an empty session.
// An invalid cookie yields an empty session together with ErrInvalidSession,
// so the caller can log it and carry on with a fresh session.
func (st *Store) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(st.cookieName)
	if err != nil {
		return &Session{}, nil
	}
	claims, err := st.validate(cookie.Value)
	if err != nil {
		return &Session{}, err
	}
	return &Session{groupID: claims.GroupID}, nil
}

// Cookie returns a signed cookie holding s.
func (st *Store) Cookie(s *Session) (*http.Cookie, error) {
	groupID, _ := s.GroupID()
	now := time.Now()
	claims := Claims{
		GroupID: groupID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "windowpeers",
			ExpiresAt: jwt.NewNumericDate(now.Add(st.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(st.secret)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     st.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(st.duration),
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Save writes s to w if it changed.
func (st *Store) Save(w http.ResponseWriter, s *Session) error {
	if !s.Dirty() {
		return nil
	}
	cookie, err := st.Cookie(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie)
	return nil
}

func (st *Store) validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return st.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidSession, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidSession
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
