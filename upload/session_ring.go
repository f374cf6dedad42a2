package upload

import (
	"fmt"
	"sync"

	"github.com/skylock-oss/skylock/session"
)

// SessionKeyRing owns the single active SessionKey for a backup run
// and rotates it transparently once its wear-out budget would be
// crossed. Acquire is the one critical section spec §5 requires:
// checking the counter and swapping in a fresh key happen under the
// same lock, so no caller can observe a key mid-rotation.
type SessionKeyRing struct {
	mu          sync.Mutex
	backupID    string
	longTermKey []byte
	active      *session.Key
	sequence    int
}

// NewSessionKeyRing derives the first session key for backupID.
func NewSessionKeyRing(backupID string, longTermKey []byte) (*SessionKeyRing, error) {
	key, err := session.New(sessionIDFor(backupID, 0), longTermKey)
	if err != nil {
		return nil, err
	}
	return &SessionKeyRing{
		backupID:    backupID,
		longTermKey: longTermKey,
		active:      key,
	}, nil
}

func sessionIDFor(backupID string, sequence int) string {
	return fmt.Sprintf("%s-%d", backupID, sequence)
}

// Acquire returns the key to use for the next encryption, rotating
// first if this encryption would cross the session's wear-out bound.
func (r *SessionKeyRing) Acquire() (*session.Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active.EncryptionCount()+1 >= session.MaxEncryptionsPerSession {
		r.sequence++
		next, err := session.New(sessionIDFor(r.backupID, r.sequence), r.longTermKey)
		if err != nil {
			return nil, err
		}
		r.active.Zeroize()
		r.active = next
	}

	return r.active, nil
}

// Active returns the currently active key without rotating it.
func (r *SessionKeyRing) Active() *session.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Close zeroizes the active key. Call once the pipeline run is done
// with it.
func (r *SessionKeyRing) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active.Zeroize()
}
