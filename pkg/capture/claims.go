package capture

import (
	"strings"

	"github.com/getmockd/capturelog/pkg/requestlog"
)

// ClaimMatcher is an ordered list of candidate claim names. Matching is
// case-insensitive; the first candidate present in the claims wins.
type ClaimMatcher []string

// Match returns the value of the first candidate found in claims.
func (m ClaimMatcher) Match(claims requestlog.Pairs) string {
	for _, candidate := range m {
		for _, c := range claims {
			if strings.EqualFold(c.Key, candidate) {
				return c.Value
			}
		}
	}
	return ""
}

// deriveUser computes user details from claims.
func deriveUser(claims requestlog.Pairs, opts *Options) *requestlog.UserDetails {
	return &requestlog.UserDetails{
		Name:         opts.UserNameClaims.Match(claims),
		EmailAddress: opts.EmailClaims.Match(claims),
		Avatar:       opts.AvatarClaims.Match(claims),
	}
}
