package token_test

import (
	"testing"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/stretchr/testify/assert"
)

func TestNew_AppliesSchemePrefix(t *testing.T) {
	tok := token.New("abc", time.Time{})

	assert.Equal(t, "Bearer abc", tok.AccessToken)
	assert.Equal(t, "abc", tok.Raw())
}

func TestNew_EmptyRaw(t *testing.T) {
	tok := token.New("", time.Time{})

	assert.Equal(t, "Bearer ", tok.AccessToken)
	assert.Equal(t, "", tok.Raw())
}

func TestRecord_Token(t *testing.T) {
	record := token.Record{
		"accessToken": "abc",
		"expireTime":  "2099-01-01T00:00:00Z",
	}

	tok := record.Token()

	assert.Equal(t, "Bearer abc", tok.AccessToken)
	assert.Equal(t, time.Date(2099, time.January, 1, 0, 0, 0, 0, time.UTC), tok.ExpireTime.UTC())
}

func TestRecord_TokenWithBadExpiry(t *testing.T) {
	record := token.Record{
		"accessToken": "abc",
		"expireTime":  "soon",
	}

	tok := record.Token()

	assert.Equal(t, "Bearer abc", tok.AccessToken)
	assert.True(t, tok.ExpireTime.IsZero())
}

func TestRecord_Clone(t *testing.T) {
	original := token.Record{"accessToken": "abc"}

	c := original.Clone()
	c["accessToken"] = "changed"

	assert.Equal(t, "abc", original.AccessToken())
	assert.Nil(t, token.Record(nil).Clone())
}
