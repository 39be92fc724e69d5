package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPKCE_GenerateCodeVerifier(t *testing.T) {
	tests := []struct {
		name string
		g    *PKCEGenerator
	}{
		{name: "secure source", g: NewPKCEGenerator(S256Strategy{})},
		{name: "failing source falls back", g: NewPKCEGeneratorWithReader(S256Strategy{}, errReader{})},
		{name: "nil source falls back", g: NewPKCEGeneratorWithReader(S256Strategy{}, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := tt.g.GenerateCodeVerifier()
			assert.Len(t, verifier, 43)
			assert.Regexp(t, "^[A-Za-z0-9_-]+$", verifier)
			assert.NotEqual(t, verifier, tt.g.GenerateCodeVerifier())
		})
	}
}

func TestPKCE_GenerateCodeChallenge(t *testing.T) {
	// RFC 7636 appendix B
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	tests := []struct {
		name       string
		strategy   HashingStrategy
		wantMethod string
		want       string
	}{
		{
			name:       "S256",
			strategy:   S256Strategy{},
			wantMethod: MethodS256,
			want:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		},
		{
			name:       "plain",
			strategy:   PlainStrategy{},
			wantMethod: MethodPlain,
			want:       verifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewPKCEGenerator(tt.strategy)
			challenge, method := g.GenerateCodeChallenge(verifier)
			assert.Equal(t, tt.want, challenge)
			assert.Equal(t, tt.wantMethod, method)

			again, _ := g.GenerateCodeChallenge(verifier)
			assert.Equal(t, challenge, again)
		})
	}
}

func TestPKCE_S256MatchesSHA256(t *testing.T) {
	g := NewPKCEGenerator(S256Strategy{})
	verifier := g.GenerateCodeVerifier()

	sum := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])

	challenge, _ := g.GenerateCodeChallenge(verifier)
	assert.Equal(t, want, challenge)
	assert.NotContains(t, challenge, "=")
}

func TestPKCE_GenerateState(t *testing.T) {
	tests := []struct {
		name string
		g    *PKCEGenerator
	}{
		{name: "secure source", g: NewPKCEGenerator(S256Strategy{})},
		{name: "failing source falls back", g: NewPKCEGeneratorWithReader(S256Strategy{}, errReader{})},
		{name: "nil source falls back", g: NewPKCEGeneratorWithReader(S256Strategy{}, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var state string
			require.NotPanics(t, func() { state = tt.g.GenerateState() })
			id, err := uuid.Parse(state)
			require.NoError(t, err)
			assert.Equal(t, uuid.Version(4), id.Version())
			assert.NotEqual(t, state, tt.g.GenerateState())
		})
	}
}

func TestPKCE_ValuesAreUnique(t *testing.T) {
	const samples = 1000

	for _, g := range []*PKCEGenerator{
		NewPKCEGenerator(S256Strategy{}),
		NewPKCEGeneratorWithReader(S256Strategy{}, errReader{}),
	} {
		verifiers := make(map[string]struct{}, samples)
		states := make(map[string]struct{}, samples)
		for i := 0; i < samples; i++ {
			creds := g.Generate()
			verifiers[creds.CodeVerifier] = struct{}{}
			states[creds.State] = struct{}{}
		}
		assert.Len(t, verifiers, samples, "verifier collision")
		assert.Len(t, states, samples, "state collision")
	}
}

func TestPKCE_Generate(t *testing.T) {
	g := NewPKCEGenerator(nil)
	creds := g.Generate()

	assert.Len(t, creds.CodeVerifier, 43)
	assert.NotEmpty(t, creds.State)
	assert.Equal(t, g.Method(), creds.CodeChallengeMethod)
	assert.True(t, g.ValidateChallenge(creds.CodeChallenge, creds.CodeChallengeMethod, creds.CodeVerifier))
}

func TestPKCE_ValidateChallenge(t *testing.T) {
	g := NewPKCEGenerator(S256Strategy{})
	verifier := g.GenerateCodeVerifier()
	challenge, _ := g.GenerateCodeChallenge(verifier)

	tests := []struct {
		name      string
		challenge string
		method    string
		verifier  string
		want      bool
	}{
		{name: "S256 match", challenge: challenge, method: MethodS256, verifier: verifier, want: true},
		{name: "plain match", challenge: verifier, method: MethodPlain, verifier: verifier, want: true},
		{name: "wrong verifier", challenge: challenge, method: MethodS256, verifier: "other", want: false},
		{name: "unknown method", challenge: challenge, method: "S512", verifier: verifier, want: false},
		{name: "empty challenge", challenge: "", method: MethodS256, verifier: verifier, want: false},
		{name: "empty verifier", challenge: challenge, method: MethodS256, verifier: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.ValidateChallenge(tt.challenge, tt.method, tt.verifier))
		})
	}
}

func TestDetectHashingStrategy(t *testing.T) {
	// crypto/sha256 is linked into this binary
	assert.Equal(t, MethodS256, DetectHashingStrategy().Method())
	assert.Equal(t, MethodPlain, NewHashingStrategy(false).Method())
	assert.Equal(t, MethodS256, NewHashingStrategy(true).Method())
}
