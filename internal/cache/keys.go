package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const keyPrefix = "survey_console:scope"

// Keys are grouped by scope (the caller's organization, or the user when the
// caller has none) and then by the credentials the entry was fetched with. A
// cached entry is only served to the same user presenting the same token; a
// write invalidates the whole scope.

// CredentialSegment fingerprints a user and bearer token for use in keys.
func CredentialSegment(userID, token string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + token))
	return hex.EncodeToString(sum[:16])
}

func TemplateKey(scope, credential, templateID string) string {
	return fmt.Sprintf("%s:%s:cred:%s:template:%s", keyPrefix, scopeSegment(scope), credential, templateID)
}

// TemplateListKey caches the first page of the list view; active selects the active-only variant.
func TemplateListKey(scope, credential string, active bool) string {
	variant := "all"
	if active {
		variant = "active"
	}
	return fmt.Sprintf("%s:%s:cred:%s:templates:%s", keyPrefix, scopeSegment(scope), credential, variant)
}

func ScopePattern(scope string) string {
	return fmt.Sprintf("%s:%s:*", keyPrefix, scopeSegment(scope))
}

// scopeSegment keeps separators and glob characters out of the key so one
// scope's pattern never matches another scope.
func scopeSegment(scope string) string {
	if scope == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '*', '?', '[', ']', '\\':
			return '_'
		}
		return r
	}, scope)
}
