package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/capturelog/pkg/requestlog"
)

var testKey = []byte("test-secret")

func signedToken(t *testing.T, claims jwt.MapClaims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestBearerJWT_ValidToken(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{
		"name":  "Ada",
		"email": "ada@example.com",
		"roles": []interface{}{"admin", "ops"},
		"exp":   float64(time.Now().Add(time.Hour).Unix()),
	}, testKey)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	b := &BearerJWT{Key: testKey}
	p, ok := b.Resolve(req)
	require.True(t, ok)

	name, _ := p.Claims.Get("name")
	assert.Equal(t, "Ada", name)

	var roles []string
	for _, kv := range p.Claims {
		if kv.Key == "roles" {
			roles = append(roles, kv.Value)
		}
	}
	assert.Equal(t, []string{"admin", "ops"}, roles)
}

func TestBearerJWT_Rejects(t *testing.T) {
	b := &BearerJWT{Key: testKey}

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := b.Parse(req)
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"name": "x"}, []byte("other")))
		_, ok := b.Resolve(req)
		assert.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{
			"exp": float64(time.Now().Add(-time.Hour).Unix()),
		}, testKey))
		_, ok := b.Resolve(req)
		assert.False(t, ok)
	})
}

func TestBearerJWT_CustomHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Token", signedToken(t, jwt.MapClaims{"sub": "42"}, testKey))

	b := &BearerJWT{Key: testKey, Header: "X-Token"}
	p, ok := b.Resolve(req)
	require.True(t, ok)
	sub, _ := p.Claims.Get("sub")
	assert.Equal(t, "42", sub)
}

func TestChain_ContextFirst(t *testing.T) {
	ctxPrincipal := Principal{Claims: requestlog.Pairs{{Key: "name", Value: "from-context"}}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(NewContext(req.Context(), ctxPrincipal))
	req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"name": "from-token"}, testKey))

	resolve := Chain(ContextResolver, nil, (&BearerJWT{Key: testKey}).Resolve)
	p, ok := resolve(req)
	require.True(t, ok)
	name, _ := p.Claims.Get("name")
	assert.Equal(t, "from-context", name)

	_, ok = Chain(ContextResolver)(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestClaimsFromMap_SortedAndStringified(t *testing.T) {
	claims := ClaimsFromMap(map[string]interface{}{
		"b":      true,
		"a":      float64(3),
		"":       "dropped",
		"nested": map[string]interface{}{"k": "v"},
	})

	require.Len(t, claims, 3)
	assert.Equal(t, requestlog.KeyValue{Key: "a", Value: "3"}, claims[0])
	assert.Equal(t, requestlog.KeyValue{Key: "b", Value: "true"}, claims[1])
	assert.Equal(t, requestlog.KeyValue{Key: "nested", Value: `{"k":"v"}`}, claims[2])
}
