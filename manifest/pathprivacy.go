package manifest

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/skylock-oss/skylock/internal/errs"
)

// metadataKeyInfo namespaces the HKDF expansion that derives a
// path-privacy key from the long-term key, keeping it distinct from
// any data-encryption key derived from the same secret.
const metadataKeyInfo = "skylock-metadata-v1"

// maxEncryptedPathLength bounds the base64-encoded path length this
// package will produce, matching the storage backend's practical path
// length limits.
const maxEncryptedPathLength = 200

var (
	// ErrEmptyPathComponent is returned when encrypting or decrypting
	// an empty path component.
	ErrEmptyPathComponent = errors.New("manifest: empty path component")
	// ErrEmptyPath is returned when encrypting or decrypting an empty
	// path.
	ErrEmptyPath = errors.New("manifest: empty path")
	// ErrPathTooLong is returned when an encrypted path would exceed
	// maxEncryptedPathLength.
	ErrPathTooLong = errors.New("manifest: encrypted path too long")
	// ErrShortComponent is returned when a decoded component is
	// shorter than a nonce, so it can't have been produced by
	// EncryptComponent.
	ErrShortComponent = errors.New("manifest: encrypted component missing nonce")
)

// PathEncryptor encrypts individual path components so a storage
// provider never sees plaintext filenames or directory structure.
type PathEncryptor struct {
	key []byte
}

// NewPathEncryptor derives a path-privacy key from longTermKey via
// HKDF-SHA256 with info="skylock-metadata-v1" and builds a
// PathEncryptor around it.
func NewPathEncryptor(longTermKey []byte) (*PathEncryptor, error) {
	if len(longTermKey) < 32 {
		return nil, errs.New(errs.InvalidKey, "long-term key too short (need 32+ bytes)")
	}

	reader := hkdf.New(sha256.New, longTermKey, nil, []byte(metadataKeyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, errs.Wrap(errs.InvalidKey, "derive metadata key", err)
	}

	return &PathEncryptor{key: key}, nil
}

func (p *PathEncryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidKey, "construct aes cipher", err)
	}
	return cipher.NewGCM(block)
}

// EncryptComponent encrypts a single path component (a directory name
// or filename), returning base64url(nonce || ciphertext) with no
// padding.
func (p *PathEncryptor) EncryptComponent(component string) (string, error) {
	if component == "" {
		return "", ErrEmptyPathComponent
	}

	aead, err := p.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errs.Wrap(errs.IoError, "generate nonce", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(component), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// DecryptComponent is the inverse of EncryptComponent.
func (p *PathEncryptor) DecryptComponent(encrypted string) (string, error) {
	combined, err := base64.RawURLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", errs.Wrap(errs.InvalidCiphertext, "decode base64url component", err)
	}

	aead, err := p.gcm()
	if err != nil {
		return "", err
	}
	if len(combined) < aead.NonceSize() {
		return "", ErrShortComponent
	}

	nonce, ciphertext := combined[:aead.NonceSize()], combined[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errs.Wrap(errs.InvalidKey, "decrypt path component", err)
	}
	return string(plaintext), nil
}

// EncryptPath encrypts every component of path independently,
// returning the reconstructed encrypted path and a PathMapping
// recording the plaintext↔ciphertext correspondence for this run.
func (p *PathEncryptor) EncryptPath(path string) (string, PathMapping, error) {
	if path == "" {
		return "", PathMapping{}, ErrEmptyPath
	}

	mapping := NewPathMapping()
	components := splitPath(path)
	encryptedComponents := make([]string, 0, len(components))

	for _, component := range components {
		encrypted, err := p.EncryptComponent(component)
		if err != nil {
			return "", PathMapping{}, err
		}
		encryptedComponents = append(encryptedComponents, encrypted)
		mapping.Add(component, encrypted)
	}

	encryptedPath := strings.Join(encryptedComponents, "/")
	if strings.HasPrefix(path, "/") {
		encryptedPath = "/" + encryptedPath
	}

	if len(encryptedPath) > maxEncryptedPathLength {
		return "", PathMapping{}, ErrPathTooLong
	}

	return encryptedPath, mapping, nil
}

// DecryptPath reverses EncryptPath, preferring mapping lookups over
// direct decryption since they're cheaper.
func (p *PathEncryptor) DecryptPath(encryptedPath string, mapping PathMapping) (string, error) {
	if encryptedPath == "" {
		return "", ErrEmptyPath
	}

	components := splitPath(encryptedPath)
	plaintextComponents := make([]string, 0, len(components))

	for _, component := range components {
		if plaintext, ok := mapping.GetPlaintext(component); ok {
			plaintextComponents = append(plaintextComponents, plaintext)
			continue
		}
		plaintext, err := p.DecryptComponent(component)
		if err != nil {
			return "", err
		}
		plaintextComponents = append(plaintextComponents, plaintext)
	}

	plaintextPath := strings.Join(plaintextComponents, "/")
	if strings.HasPrefix(encryptedPath, "/") {
		plaintextPath = "/" + plaintextPath
	}
	return plaintextPath, nil
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PathMapping is a bidirectional plaintext↔encrypted path-component
// mapping, built up during one encryption run so that decryption on
// the same run can skip re-deriving ciphertext.
type PathMapping struct {
	PlaintextToEncrypted map[string]string `json:"plaintext_to_encrypted"`
	EncryptedToPlaintext map[string]string `json:"encrypted_to_plaintext"`
}

// NewPathMapping returns an empty PathMapping.
func NewPathMapping() PathMapping {
	return PathMapping{
		PlaintextToEncrypted: make(map[string]string),
		EncryptedToPlaintext: make(map[string]string),
	}
}

// Add records a component mapping.
func (m *PathMapping) Add(plaintext, encrypted string) {
	if m.PlaintextToEncrypted == nil {
		m.PlaintextToEncrypted = make(map[string]string)
		m.EncryptedToPlaintext = make(map[string]string)
	}
	m.PlaintextToEncrypted[plaintext] = encrypted
	m.EncryptedToPlaintext[encrypted] = plaintext
}

// GetEncrypted looks up the encrypted form of a plaintext component.
func (m PathMapping) GetEncrypted(plaintext string) (string, bool) {
	v, ok := m.PlaintextToEncrypted[plaintext]
	return v, ok
}

// GetPlaintext looks up the plaintext form of an encrypted component.
func (m PathMapping) GetPlaintext(encrypted string) (string, bool) {
	v, ok := m.EncryptedToPlaintext[encrypted]
	return v, ok
}

// Merge folds other's entries into m.
func (m *PathMapping) Merge(other PathMapping) {
	if m.PlaintextToEncrypted == nil {
		m.PlaintextToEncrypted = make(map[string]string)
		m.EncryptedToPlaintext = make(map[string]string)
	}
	for k, v := range other.PlaintextToEncrypted {
		m.PlaintextToEncrypted[k] = v
	}
	for k, v := range other.EncryptedToPlaintext {
		m.EncryptedToPlaintext[k] = v
	}
}

// Len returns the number of mapped components.
func (m PathMapping) Len() int {
	return len(m.PlaintextToEncrypted)
}

// IsEmpty reports whether the mapping has no entries.
func (m PathMapping) IsEmpty() bool {
	return len(m.PlaintextToEncrypted) == 0
}
