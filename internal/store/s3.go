package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/gostones/mediavault/internal/types"
)

// S3Options configures an S3Store. Credentials come from the default AWS
// chain (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, shared config) unless
// AccessKeyID is set.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      *int

	PutExpiry  time.Duration
	PartExpiry time.Duration
}

// S3Store signs uploads against an S3 bucket and manages multipart sessions.
type S3Store struct {
	svc        s3iface.S3API
	bucket     string
	putExpiry  time.Duration
	partExpiry time.Duration
}

func NewS3Store(opts S3Options) (*S3Store, error) {
	cfg := aws.NewConfig().
		WithRegion(opts.Region).
		WithS3ForcePathStyle(opts.ForcePathStyle)
	if opts.Endpoint != "" {
		cfg = cfg.WithEndpoint(opts.Endpoint)
	}
	if opts.AccessKeyID != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, ""))
	}
	if opts.MaxRetries != nil {
		cfg = cfg.WithMaxRetries(*opts.MaxRetries)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}

	return &S3Store{
		svc:        s3.New(sess),
		bucket:     opts.Bucket,
		putExpiry:  opts.PutExpiry,
		partExpiry: opts.PartExpiry,
	}, nil
}

func (s *S3Store) Authorize(ctx context.Context, key string, op Operation, scope Scope) (*Authorization, error) {
	switch op {
	case OpPutObject:
		req, _ := s.svc.PutObjectRequest(&s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			ContentType: aws.String(scope.ContentType),
		})
		req.SetContext(ctx)
		u, err := req.Presign(s.putExpiry)
		if err != nil {
			return nil, fmt.Errorf("presign put object: %w", err)
		}
		return &Authorization{URL: u, ExpiresIn: s.putExpiry}, nil

	case OpUploadPart:
		if scope.SessionToken == "" || scope.PartNumber < 1 {
			return nil, fmt.Errorf("%w: upload-part requires a session token and part number", ErrInvalidPart)
		}
		req, _ := s.svc.UploadPartRequest(&s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(scope.SessionToken),
			PartNumber: aws.Int64(int64(scope.PartNumber)),
		})
		req.SetContext(ctx)
		u, err := req.Presign(s.partExpiry)
		if err != nil {
			return nil, fmt.Errorf("presign upload part: %w", err)
		}
		return &Authorization{URL: u, ExpiresIn: s.partExpiry}, nil
	}
	return nil, fmt.Errorf("unsupported operation %q", op)
}

func (s *S3Store) InitiateSession(ctx context.Context, key, contentType string) (string, error) {
	out, err := s.svc.CreateMultipartUploadWithContext(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("create multipart upload: %w", translate(err))
	}
	if out.UploadId == nil || *out.UploadId == "" {
		return "", errors.New("create multipart upload: store returned no upload id")
	}
	return *out.UploadId, nil
}

func (s *S3Store) FinalizeSession(ctx context.Context, key, sessionToken string, parts []types.CompletePart) error {
	completed := make([]*s3.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, &s3.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int64(int64(p.PartNumber)),
		})
	}
	_, err := s.svc.CompleteMultipartUploadWithContext(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(sessionToken),
		MultipartUpload: &s3.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return fmt.Errorf("complete multipart upload: %w", translate(err))
	}
	return nil
}

func (s *S3Store) AbortSession(ctx context.Context, key, sessionToken string) error {
	_, err := s.svc.AbortMultipartUploadWithContext(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(sessionToken),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", translate(err))
	}
	return nil
}

func (s *S3Store) ListObjects(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	err := s.svc.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, o := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.StringValue(o.Key),
				Size:         aws.Int64Value(o.Size),
				LastModified: aws.TimeValue(o.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", translate(err))
	}
	return objects, nil
}

func (s *S3Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", translate(err))
	}
	return nil
}

// translate maps S3 error codes onto the package sentinels, keeping the
// AWS error in the chain.
func translate(err error) error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return err
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchUpload:
		return errors.Join(ErrNoSuchUpload, err)
	case "InvalidPart", "InvalidPartOrder", "EntityTooSmall":
		return errors.Join(ErrInvalidPart, err)
	case s3.ErrCodeNoSuchKey:
		return errors.Join(ErrNotFound, err)
	}
	return err
}
