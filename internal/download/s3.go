package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidS3URL is returned when an s3 URL misses the bucket or the key.
var ErrInvalidS3URL = errors.New("s3 url requires bucket and key")

var (
	// s3ClientOnce guards lazy construction of the shared S3 client.
	//nolint:gochecknoglobals // One client per process; credentials come from the environment.
	s3ClientOnce sync.Once
	//nolint:gochecknoglobals // See s3ClientOnce.
	s3Client *s3.Client
	//nolint:gochecknoglobals // See s3ClientOnce.
	s3ClientErr error
)

// fetchS3 downloads an s3://bucket/key object into destPath.
// The client is initialized once from the default AWS environment chain.
func fetchS3(ctx context.Context, parsed *url.URL, destPath string) error {
	bucket := parsed.Host
	key := strings.TrimPrefix(parsed.Path, "/")

	if bucket == "" || key == "" {
		return fmt.Errorf("%s: %w", parsed.String(), ErrInvalidS3URL)
	}

	client, err := sharedS3Client(ctx)
	if err != nil {
		return err
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3 object: %w", err)
	}

	defer func() {
		_ = result.Body.Close()
	}()

	return writeAtomically(destPath, result.Body)
}

// sharedS3Client returns the lazily initialized process-wide S3 client.
func sharedS3Client(ctx context.Context) (*s3.Client, error) {
	s3ClientOnce.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			s3ClientErr = fmt.Errorf("load AWS config: %w", err)
			return
		}

		s3Client = s3.NewFromConfig(cfg)
	})

	if s3ClientErr != nil {
		return nil, s3ClientErr
	}

	return s3Client, nil
}
