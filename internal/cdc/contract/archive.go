package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Archiver writes every captured Record as canonical JSON to paths like
// s3://<bucket>/<prefix>/cdc/<source_id>/YYYY/MM/DD/<position>.json.
type S3Archiver struct {
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Archiver builds an S3Archiver, picking up credentials/region from
// the environment the way the AWS SDK default config loader does.
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("cdc s3 archiver: bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cdc s3 archiver: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// Archive uploads r's canonical JSON. It is meant to be wired as a
// post-emit hook alongside a pipeline sink, not as the sink itself.
func (a *S3Archiver) Archive(ctx context.Context, r Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: marshal cdc record: %v", ErrSerialization, err)
	}

	ts := r.Ts
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	year, month, day := ts.Date()
	objectKey := path.Join(a.prefix, "cdc", r.SourceID,
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", int(month)),
		fmt.Sprintf("%02d", day),
		fmt.Sprintf("%s.json", sanitizePosition(r.Position)),
	)

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		StorageClass: s3types.StorageClassStandard,
	})
	if err != nil {
		return fmt.Errorf("cdc s3 archiver: upload %s: %w", objectKey, err)
	}
	return nil
}

func sanitizePosition(position string) string {
	if position == "" {
		return "unknown"
	}
	out := make([]byte, 0, len(position))
	for i := 0; i < len(position); i++ {
		c := position[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
