package peers

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIdentityUnavailable is returned when a group id cannot be minted because
// the randomness source failed. It is not retryable.
var ErrIdentityUnavailable = errors.New("group identity unavailable")

// groupIDBytes matches a 256-bit URL-safe token.
const groupIDBytes = 32

// GroupID identifies one logical user session across all of its windows.
type GroupID string

// SessionContext is the session-scoped storage a group id is kept in.
type SessionContext interface {
	GroupID() (string, bool)
	SetGroupID(id string)
}

// IdentityService assigns group ids to sessions.
type IdentityService struct {
	mu     sync.Mutex
	random io.Reader
}

// NewIdentityService creates an IdentityService that reads from random.
// A nil random uses crypto/rand.
func NewIdentityService(random io.Reader) *IdentityService {
	if random == nil {
		random = rand.Reader
	}
	return &IdentityService{random: random}
}

// GetOrCreateGroupID returns the session's group id, minting and storing a new
// one if the session has none yet. Repeated calls for one session always
// return the same id.
func (s *IdentityService) GetOrCreateGroupID(sess SessionContext) (GroupID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := sess.GroupID(); ok && id != "" {
		return GroupID(id), nil
	}

	buf := make([]byte, groupIDBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
	}
	id := base64.RawURLEncoding.EncodeToString(buf)
	sess.SetGroupID(id)
	return GroupID(id), nil
}
