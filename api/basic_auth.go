package api

import (
	"context"
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/jmcleod/gatehouse/storage"
)

const basicPrefix = "Basic "

// extractHeaderToken returns the base64 payload of a Basic authorization
// header value. The "Basic " prefix is matched case-sensitively; anything
// else yields "".
func extractHeaderToken(header string) string {
	if !strings.HasPrefix(header, basicPrefix) {
		return ""
	}
	return header[len(basicPrefix):]
}

// decodePayload decodes a Basic auth payload in strict base64 (invalid
// alphabet or padding is rejected, not tolerated). Non-UTF-8 output is
// refused as well.
func decodePayload(payload string) (string, bool) {
	if payload == "" {
		return "", false
	}
	decoded, err := base64.StdEncoding.Strict().DecodeString(payload)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}

// splitCredentials splits "username:password" on the first colon only, so
// passwords containing colons survive intact.
func splitCredentials(decoded string) (username, password string, ok bool) {
	username, password, ok = strings.Cut(decoded, ":")
	if !ok {
		return "", "", false
	}
	return username, password, true
}

// credentialsLookup resolves a user from a verified username/password pair.
type credentialsLookup func(ctx context.Context, email, password string) (*storage.User, bool)

// resolveUser delegates to the supplied lookup. Empty credentials are
// refused before the lookup runs.
func resolveUser(ctx context.Context, username, password string, lookup credentialsLookup) (*storage.User, bool) {
	if username == "" || password == "" {
		return nil, false
	}
	return lookup(ctx, username, password)
}
