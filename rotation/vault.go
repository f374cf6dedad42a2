package rotation

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	skycrypto "github.com/skylock-oss/skylock/crypto"
)

// Errors returned by Vault implementations. Values, not wrapped
// errs.Error, so callers can compare with errors.Is/== directly as the
// rotation manager's own contract requires.
var (
	ErrKeyNotFound       = errors.New("rotation: key not found")
	ErrInvalidPassphrase = errors.New("rotation: invalid passphrase")
	ErrInvalidKeyID      = errors.New("rotation: invalid key id")
)

// Vault persists key material encrypted under a passphrase, keyed by
// an opaque key ID. Used to keep the key cache's decryptable versions
// available across process restarts without ever storing plaintext
// key material on disk.
type Vault interface {
	StoreEncrypted(keyID string, key []byte, passphrase string) error
	LoadDecrypted(keyID string, passphrase string) ([]byte, error)
	Delete(keyID string) error
	Exists(keyID string) bool
	ListKeys() []string
	SetPermissions(keyID string, mode os.FileMode) error
}

type vaultRecord struct {
	KdfParams skycrypto.KdfParams `json:"kdf_params"`
	Blob      string              `json:"blob"` // base64 nonce||ciphertext||tag
}

// FileVault is a directory of one JSON file per key ID, each
// encrypted under a passphrase-derived Argon2id key.
type FileVault struct {
	dir string
	mu  sync.Mutex
}

// NewFileVault opens (creating if needed) a FileVault rooted at dir.
func NewFileVault(dir string) (*FileVault, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &FileVault{dir: dir}, nil
}

func (v *FileVault) path(keyID string) string {
	return filepath.Join(v.dir, keyID+".json")
}

// StoreEncrypted writes key to disk, encrypted under passphrase.
func (v *FileVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	if keyID == "" {
		return ErrInvalidKeyID
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	params, err := skycrypto.NewKdfParams()
	if err != nil {
		return err
	}
	derived, err := skycrypto.DeriveLongTermKey([]byte(passphrase), params)
	if err != nil {
		return err
	}
	defer skycrypto.Zeroize(derived)

	blob, err := skycrypto.Encrypt(derived, key, []byte(keyID))
	if err != nil {
		return err
	}

	rec := vaultRecord{
		KdfParams: params,
		Blob:      base64.StdEncoding.EncodeToString(blob),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(v.path(keyID), data, 0600)
}

// LoadDecrypted reads and decrypts the key stored under keyID.
func (v *FileVault) LoadDecrypted(keyID string, passphrase string) ([]byte, error) {
	if keyID == "" {
		return nil, ErrInvalidKeyID
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path(keyID))
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec vaultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	blob, err := base64.StdEncoding.DecodeString(rec.Blob)
	if err != nil {
		return nil, err
	}

	derived, err := skycrypto.DeriveLongTermKey([]byte(passphrase), rec.KdfParams)
	if err != nil {
		return nil, err
	}
	defer skycrypto.Zeroize(derived)

	plaintext, err := skycrypto.Decrypt(derived, blob, []byte(keyID))
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return plaintext, nil
}

// Delete removes the stored key. Returns ErrKeyNotFound if absent.
func (v *FileVault) Delete(keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := os.Stat(v.path(keyID)); os.IsNotExist(err) {
		return ErrKeyNotFound
	}
	return os.Remove(v.path(keyID))
}

// Exists reports whether a key is stored under keyID.
func (v *FileVault) Exists(keyID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := os.Stat(v.path(keyID))
	return err == nil
}

// ListKeys returns every key ID currently stored.
func (v *FileVault) ListKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ".json" {
			out = append(out, name[:len(name)-len(".json")])
		}
	}
	return out
}

// SetPermissions changes the file mode of a stored key's backing file.
func (v *FileVault) SetPermissions(keyID string, mode os.FileMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := os.Stat(v.path(keyID)); os.IsNotExist(err) {
		return ErrKeyNotFound
	}
	return os.Chmod(v.path(keyID), mode)
}

// MemoryVault is an in-process Vault, useful for tests and for the
// default rotation manager configuration when no on-disk persistence
// is required.
type MemoryVault struct {
	mu      sync.Mutex
	records map[string]vaultRecord
}

// NewMemoryVault returns an empty MemoryVault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{records: make(map[string]vaultRecord)}
}

func (v *MemoryVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	if keyID == "" {
		return ErrInvalidKeyID
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	params, err := skycrypto.NewKdfParams()
	if err != nil {
		return err
	}
	derived, err := skycrypto.DeriveLongTermKey([]byte(passphrase), params)
	if err != nil {
		return err
	}
	defer skycrypto.Zeroize(derived)

	blob, err := skycrypto.Encrypt(derived, key, []byte(keyID))
	if err != nil {
		return err
	}
	v.records[keyID] = vaultRecord{KdfParams: params, Blob: base64.StdEncoding.EncodeToString(blob)}
	return nil
}

func (v *MemoryVault) LoadDecrypted(keyID string, passphrase string) ([]byte, error) {
	if keyID == "" {
		return nil, ErrInvalidKeyID
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.records[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	blob, err := base64.StdEncoding.DecodeString(rec.Blob)
	if err != nil {
		return nil, err
	}

	derived, err := skycrypto.DeriveLongTermKey([]byte(passphrase), rec.KdfParams)
	if err != nil {
		return nil, err
	}
	defer skycrypto.Zeroize(derived)

	plaintext, err := skycrypto.Decrypt(derived, blob, []byte(keyID))
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return plaintext, nil
}

func (v *MemoryVault) Delete(keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.records[keyID]; !ok {
		return ErrKeyNotFound
	}
	delete(v.records, keyID)
	return nil
}

func (v *MemoryVault) Exists(keyID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.records[keyID]
	return ok
}

func (v *MemoryVault) ListKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.records))
	for k := range v.records {
		out = append(out, k)
	}
	return out
}

// SetPermissions is a no-op for MemoryVault; there is no backing file.
func (v *MemoryVault) SetPermissions(keyID string, _ os.FileMode) error {
	if !v.Exists(keyID) {
		return ErrKeyNotFound
	}
	return nil
}
