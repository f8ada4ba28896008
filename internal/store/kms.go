package store

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/rs/zerolog/log"
)

// KMSDecrypter is the subset of the KMS client used to unwrap data keys.
type KMSDecrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// NewKMSClient creates a KMS client from the default AWS configuration chain.
func NewKMSClient(ctx context.Context) (*kms.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return kms.NewFromConfig(cfg), nil
}

// KMSDataKey decrypts a base64 encoded data key ciphertext (as produced by
// `aws kms generate-data-key`) and returns the plaintext key. The key must be
// 32 bytes.
func KMSDataKey(ctx context.Context, client KMSDecrypter, ciphertext string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("data key ciphertext is not valid base64: %w", err)
	}

	out, err := client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: blob,
	})
	if err != nil {
		return nil, fmt.Errorf("KMS decrypt of data key failed: %w", err)
	}

	if len(out.Plaintext) != 32 {
		return nil, fmt.Errorf("KMS data key must be 32 bytes, got %d", len(out.Plaintext))
	}

	log.Info().
		Str("kms_key_id", aws.ToString(out.KeyId)).
		Msg("token store data key decrypted")

	return out.Plaintext, nil
}
