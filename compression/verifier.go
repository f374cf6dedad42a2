// Package compression implements the zstd compression-with-integrity
// verifier (spec §4.D): every artifact this package produces has
// already round-tripped through decompression and a hash check before
// it is handed back to the caller, so a corrupt compressor output
// never silently reaches storage.
package compression

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/klauspost/compress/zstd"

	"github.com/skylock-oss/skylock/config"
	"github.com/skylock-oss/skylock/internal/errs"
)

// Verified is the result of Verifier.Compress: the data to store, the
// plaintext hash needed to verify decompression later, and whether
// compression was actually applied.
type Verified struct {
	Data           []byte
	OriginalHash   string
	OriginalSize   int64
	CompressedHash string
	Ratio          float64
	WasCompressed  bool
}

// Decompressed is the result of Verifier.Decompress.
type Decompressed struct {
	Data              []byte
	Hash              string
	IntegrityVerified bool
}

// Verifier compresses and decompresses data under the policy in spec
// §4.D, never returning a compressed artifact it hasn't already
// verified round-trips back to the original plaintext.
type Verifier struct {
	cfg config.CompressionConfig
}

// New builds a Verifier from cfg.
func New(cfg config.CompressionConfig) *Verifier {
	return &Verifier{cfg: clampConfig(cfg)}
}

func clampConfig(cfg config.CompressionConfig) config.CompressionConfig {
	if cfg.Level < 1 {
		cfg.Level = 1
	}
	if cfg.Level > 22 {
		cfg.Level = 22
	}
	if cfg.MinRatio < 0.5 {
		cfg.MinRatio = 0.5
	}
	if cfg.MinRatio > 1.0 {
		cfg.MinRatio = 1.0
	}
	return cfg
}

// Compress applies the spec §4.D policy: files below MinSize are
// stored uncompressed; otherwise zstd is attempted and discarded if
// it doesn't beat MinRatio. Every compressed result is decompressed
// and hash-checked before being returned.
func (v *Verifier) Compress(data []byte) (Verified, error) {
	originalHash := hashHex(data)
	originalSize := int64(len(data))

	if originalSize < v.cfg.MinSize {
		return Verified{
			Data:           data,
			OriginalHash:   originalHash,
			OriginalSize:   originalSize,
			CompressedHash: originalHash,
			Ratio:          1.0,
			WasCompressed:  false,
		}, nil
	}

	compressed, err := v.encode(data)
	if err != nil {
		return Verified{}, errs.Wrap(errs.CompressionIntegrity, "zstd encode failed", err)
	}

	ratio := float64(len(compressed)) / float64(originalSize)
	if ratio >= v.cfg.MinRatio {
		return Verified{
			Data:           data,
			OriginalHash:   originalHash,
			OriginalSize:   originalSize,
			CompressedHash: originalHash,
			Ratio:          1.0,
			WasCompressed:  false,
		}, nil
	}

	verify, err := v.decode(compressed)
	if err != nil {
		return Verified{}, errs.Wrap(errs.CompressionIntegrity, "post-compression decode failed", err)
	}
	verifyHash := hashHex(verify)
	if subtle.ConstantTimeCompare([]byte(verifyHash), []byte(originalHash)) != 1 {
		return Verified{}, errs.New(errs.CompressionIntegrity,
			"compressed artifact failed roundtrip verification")
	}

	return Verified{
		Data:           compressed,
		OriginalHash:   originalHash,
		OriginalSize:   originalSize,
		CompressedHash: hashHex(compressed),
		Ratio:          ratio,
		WasCompressed:  true,
	}, nil
}

// Decompress reverses Compress, verifying the result against
// expectedHash using a constant-time comparison.
func (v *Verifier) Decompress(data []byte, expectedHash string, wasCompressed bool) (Decompressed, error) {
	var plain []byte
	var err error
	if wasCompressed {
		plain, err = v.decode(data)
		if err != nil {
			return Decompressed{}, errs.Wrap(errs.CompressionIntegrity, "zstd decode failed", err)
		}
	} else {
		plain = data
	}

	hash := hashHex(plain)
	verified := subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
	if !verified {
		return Decompressed{}, errs.New(errs.CompressionIntegrity,
			"decompressed hash does not match expected hash")
	}

	return Decompressed{Data: plain, Hash: hash, IntegrityVerified: verified}, nil
}

func (v *Verifier) encode(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(v.cfg.Level)))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func (v *Verifier) decode(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
