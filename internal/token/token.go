package token

import (
	"strings"
	"time"
)

const (
	// StoreKey identifies the cached token entry in a token store.
	StoreKey = "Token"

	// AccessTokenField and ExpireTimeField are the record fields written by
	// the mint endpoint and read back on every request.
	AccessTokenField = "accessToken"
	ExpireTimeField  = "expireTime"

	// SchemePrefix is prepended to a raw token to form the Authorization
	// header value.
	SchemePrefix = "Bearer "

	// ExpireTimeLayout parses the mint endpoint's yyyy-MM-dd'T'HH:mm:ssZ
	// timestamps. "Z0700" accepts both a literal Z and a numeric offset.
	ExpireTimeLayout = "2006-01-02T15:04:05Z0700"
)

// Token is an authorization credential ready to be placed in an
// Authorization header. ExpireTime is zero when the source did not supply a
// parseable expiry.
type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpireTime  time.Time `json:"expireTime"`
}

// New builds a Token from a raw access token, applying the scheme prefix.
func New(raw string, expireTime time.Time) Token {
	return Token{
		AccessToken: SchemePrefix + raw,
		ExpireTime:  expireTime,
	}
}

// Raw returns the access token without the scheme prefix.
func (t Token) Raw() string {
	raw, _ := strings.CutPrefix(t.AccessToken, SchemePrefix)
	return raw
}

// Record is the persisted form of a token: the field map returned by the
// mint endpoint.
type Record map[string]string

// AccessToken returns the raw access token, or the empty string when the
// field is absent.
func (r Record) AccessToken() string {
	return r[AccessTokenField]
}

// ExpireTime parses the expiry field. The boolean is false when the field is
// absent or cannot be parsed.
func (r Record) ExpireTime() (time.Time, bool) {
	value, ok := r[ExpireTimeField]
	if !ok {
		return time.Time{}, false
	}

	expiry, err := time.Parse(ExpireTimeLayout, value)
	if err != nil {
		return time.Time{}, false
	}

	return expiry, true
}

// Token synthesizes a Token from the record. The expiry is left zero when it
// cannot be parsed.
func (r Record) Token() Token {
	expiry, _ := r.ExpireTime()
	return New(r.AccessToken(), expiry)
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
