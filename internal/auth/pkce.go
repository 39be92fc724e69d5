package auth

import (
	"crypto"
	crand "crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"io"
	mrand "math/rand/v2"
	"time"

	"github.com/google/uuid"
)

const (
	// MethodS256 is the RFC 7636 SHA-256 challenge method.
	MethodS256 = "S256"
	// MethodPlain sends the verifier itself as the challenge.
	MethodPlain = "plain"

	verifierBytes = 32
)

// Credentials is the PKCE material for a single authorization attempt.
type Credentials struct {
	CodeVerifier        string
	CodeChallenge       string
	CodeChallengeMethod string
	State               string
}

// HashingStrategy derives a code challenge from a verifier.
type HashingStrategy interface {
	Method() string
	Challenge(verifier string) string
}

// S256Strategy hashes the verifier with SHA-256.
type S256Strategy struct{}

func (S256Strategy) Method() string { return MethodS256 }

func (S256Strategy) Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// PlainStrategy returns the verifier unchanged. The authorization server must accept it.
type PlainStrategy struct{}

func (PlainStrategy) Method() string { return MethodPlain }

func (PlainStrategy) Challenge(verifier string) string { return verifier }

// DetectHashingStrategy picks S256 when a SHA-256 implementation is linked
// into the binary, plain otherwise. Call it once at startup.
func DetectHashingStrategy() HashingStrategy {
	return NewHashingStrategy(crypto.SHA256.Available())
}

// NewHashingStrategy returns S256Strategy if sha256Available, else PlainStrategy.
func NewHashingStrategy(sha256Available bool) HashingStrategy {
	if sha256Available {
		return S256Strategy{}
	}
	return PlainStrategy{}
}

// PKCEGenerator produces fresh PKCE credentials. It never fails: if the
// secure random source errors it falls back to a time-seeded ChaCha8 stream.
type PKCEGenerator struct {
	strategy HashingStrategy
	random   io.Reader
}

// NewPKCEGenerator creates a generator backed by crypto/rand.
func NewPKCEGenerator(strategy HashingStrategy) *PKCEGenerator {
	return NewPKCEGeneratorWithReader(strategy, crand.Reader)
}

// NewPKCEGeneratorWithReader creates a generator reading entropy from r.
func NewPKCEGeneratorWithReader(strategy HashingStrategy, r io.Reader) *PKCEGenerator {
	if strategy == nil {
		strategy = DetectHashingStrategy()
	}
	return &PKCEGenerator{strategy: strategy, random: r}
}

// Method reports the challenge method this generator uses.
func (g *PKCEGenerator) Method() string {
	return g.strategy.Method()
}

// Generate returns a complete credential set for one login attempt.
func (g *PKCEGenerator) Generate() Credentials {
	verifier := g.GenerateCodeVerifier()
	challenge, method := g.GenerateCodeChallenge(verifier)
	return Credentials{
		CodeVerifier:        verifier,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		State:               g.GenerateState(),
	}
}

// GenerateCodeVerifier returns 32 random bytes as unpadded base64url (43 chars).
func (g *PKCEGenerator) GenerateCodeVerifier() string {
	b := make([]byte, verifierBytes)
	g.fill(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// GenerateCodeChallenge derives the challenge for verifier and reports its method.
func (g *PKCEGenerator) GenerateCodeChallenge(verifier string) (string, string) {
	return g.strategy.Challenge(verifier), g.strategy.Method()
}

// GenerateState returns a random UUID v4 used to correlate the callback with the request.
func (g *PKCEGenerator) GenerateState() string {
	if g.random != nil {
		if id, err := uuid.NewRandomFromReader(g.random); err == nil {
			return id.String()
		}
	}
	id, _ := uuid.NewRandomFromReader(fallbackReader())
	return id.String()
}

// ValidateChallenge checks that challenge was derived from verifier with method.
func (g *PKCEGenerator) ValidateChallenge(challenge, method, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	var expected string
	switch method {
	case MethodS256:
		expected = S256Strategy{}.Challenge(verifier)
	case MethodPlain:
		expected = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}

func (g *PKCEGenerator) fill(b []byte) {
	if g.random != nil {
		if _, err := io.ReadFull(g.random, b); err == nil {
			return
		}
	}
	_, _ = io.ReadFull(fallbackReader(), b)
}

func fallbackReader() io.Reader {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint64(seed[8:16], mrand.Uint64())
	binary.LittleEndian.PutUint64(seed[16:24], mrand.Uint64())
	binary.LittleEndian.PutUint64(seed[24:], mrand.Uint64())
	return mrand.NewChaCha8(seed)
}
