// Package blob stores complaint photos in S3 compatible object storage.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	mathrand "math/rand"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"github.com/redmonkez12/nagarseva-api/internal/config"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
	ErrEmpty           = errors.New("image is empty")
)

// imageExtensions lists the accepted content types and the key suffix used for each
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Object is an upload request
type Object struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Validate checks the object against the accepted image types and size limit.
// An empty ContentType is sniffed from the data.
func Validate(obj *Object, maxBytes int64) error {
	if len(obj.Data) == 0 {
		return ErrEmpty
	}
	if maxBytes > 0 && int64(len(obj.Data)) > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(obj.Data), maxBytes)
	}

	ct := normalizeContentType(obj.ContentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = normalizeContentType(http.DetectContentType(obj.Data))
	}
	if _, ok := imageExtensions[ct]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	obj.ContentType = ct
	return nil
}

func normalizeContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// putObjectAPI is the subset of the S3 client used by S3Store
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) putObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Store uploads objects with PutObject and hands back their public URL
type S3Store struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
	maxBytes      int64
	timeout       time.Duration
	now           func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewS3Store builds an S3 client from the storage settings. A custom endpoint
// (MinIO, LocalStack) is used when configured.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Store(client, cfg), nil
}

func newS3Store(client putObjectAPI, cfg config.StorageConfig) *S3Store {
	base := cfg.PublicBaseURL
	if base == "" && cfg.S3Endpoint != "" {
		base = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
	}

	return &S3Store{
		client:        client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		maxBytes:      cfg.MaxImageBytes,
		timeout:       cfg.UploadTimeout,
		now:           time.Now,
		entropy:       ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Put validates and uploads obj, returning the URL it can be fetched from
func (s *S3Store) Put(ctx context.Context, obj Object) (string, error) {
	if err := Validate(&obj, s.maxBytes); err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	now := s.now().UTC()
	key := objectKey(now, s.newID(now), imageExtensions[obj.ContentType])

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(obj.Data),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return s.publicBaseURL + "/" + key, nil
}

func (s *S3Store) newID(t time.Time) ulid.ULID {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy)
}

// objectKey lays objects out by upload date: complaints/YYYY/MM/DD/<ulid><ext>
func objectKey(t time.Time, id ulid.ULID, ext string) string {
	return path.Join("complaints", t.Format("2006/01/02"), id.String()+ext)
}

// IsInvalid reports whether err is a rejection of the object itself rather
// than a storage failure
func IsInvalid(err error) bool {
	return errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrTooLarge) || errors.Is(err, ErrEmpty)
}
