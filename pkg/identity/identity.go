// Package identity resolves the authenticated principal of a request.
//
// Hosts that authenticate upstream attach claims to the request context
// with NewContext. Alternatively, BearerJWT validates an HMAC-signed token
// from the Authorization header and exposes its claims.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/encoding/json"

	"github.com/getmockd/capturelog/pkg/requestlog"
)

// Principal is an authenticated caller and its ordered claims.
type Principal struct {
	Claims requestlog.Pairs
}

// Resolver returns the principal of r, if the request is authenticated.
type Resolver func(r *http.Request) (Principal, bool)

type principalKey struct{}

// NewContext returns a context carrying p.
func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal carried by ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// ContextResolver resolves the principal attached with NewContext.
func ContextResolver(r *http.Request) (Principal, bool) {
	return FromContext(r.Context())
}

// Chain returns a resolver trying each resolver in order.
func Chain(resolvers ...Resolver) Resolver {
	return func(r *http.Request) (Principal, bool) {
		for _, resolve := range resolvers {
			if resolve == nil {
				continue
			}
			if p, ok := resolve(r); ok {
				return p, true
			}
		}
		return Principal{}, false
	}
}

// ErrNoToken is returned when the request carries no bearer token.
var ErrNoToken = errors.New("identity: no bearer token")

// BearerJWT validates HMAC-signed bearer tokens.
type BearerJWT struct {
	// Key is the HMAC secret.
	Key []byte

	// Header is the header carrying the token. Default: Authorization.
	Header string
}

// Resolve implements Resolver. Invalid or missing tokens leave the
// request unauthenticated.
func (b *BearerJWT) Resolve(r *http.Request) (Principal, bool) {
	p, err := b.Parse(r)
	if err != nil {
		return Principal{}, false
	}
	return p, true
}

// Parse extracts and validates the bearer token of r.
func (b *BearerJWT) Parse(r *http.Request) (Principal, error) {
	header := b.Header
	if header == "" {
		header = "Authorization"
	}
	raw := strings.TrimSpace(r.Header.Get(header))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return Principal{}, ErrNoToken
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return b.Key, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("identity: failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New("identity: invalid claims format")
	}
	return Principal{Claims: ClaimsFromMap(claims)}, nil
}

// ClaimsFromMap flattens a claim map into ordered pairs. Keys are sorted;
// array claims produce one pair per element.
func ClaimsFromMap(m map[string]interface{}) requestlog.Pairs {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out requestlog.Pairs
	for _, k := range keys {
		switch v := m[k].(type) {
		case []interface{}:
			for _, item := range v {
				out = append(out, requestlog.KeyValue{Key: k, Value: claimString(item)})
			}
		default:
			out = append(out, requestlog.KeyValue{Key: k, Value: claimString(v)})
		}
	}
	return out
}

func claimString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
