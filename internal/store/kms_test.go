package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKMS struct {
	plaintext []byte
	err       error
	received  []byte
}

func (f *fakeKMS) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.received = params.CiphertextBlob
	if f.err != nil {
		return nil, f.err
	}
	return &kms.DecryptOutput{
		KeyId:     aws.String("arn:aws:kms:us-east-1:123456789012:key/test"),
		Plaintext: f.plaintext,
	}, nil
}

func TestKMSDataKey_Success(t *testing.T) {
	client := &fakeKMS{plaintext: bytes.Repeat([]byte{'k'}, 32)}
	ciphertext := base64.StdEncoding.EncodeToString([]byte("wrapped-key"))

	key, err := KMSDataKey(context.Background(), client, ciphertext)

	require.NoError(t, err)
	assert.Equal(t, client.plaintext, key)
	assert.Equal(t, []byte("wrapped-key"), client.received)
}

func TestKMSDataKey_InvalidBase64(t *testing.T) {
	client := &fakeKMS{}

	_, err := KMSDataKey(context.Background(), client, "!!!")

	assert.ErrorContains(t, err, "not valid base64")
	assert.Nil(t, client.received)
}

func TestKMSDataKey_DecryptFailure(t *testing.T) {
	client := &fakeKMS{err: errors.New("access denied")}

	_, err := KMSDataKey(context.Background(), client, base64.StdEncoding.EncodeToString([]byte("x")))

	assert.ErrorContains(t, err, "KMS decrypt of data key failed")
	assert.ErrorContains(t, err, "access denied")
}

func TestKMSDataKey_WrongLength(t *testing.T) {
	client := &fakeKMS{plaintext: []byte("too-short")}

	_, err := KMSDataKey(context.Background(), client, base64.StdEncoding.EncodeToString([]byte("x")))

	assert.ErrorContains(t, err, "must be 32 bytes")
}
