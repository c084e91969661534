package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/blob"
)

const Scheme = "s3"

type Option func(*Repository)

func WithRegion(region string) Option {
	return func(r *Repository) {
		r.Region = region
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

func WithForcePathStyle(forcePathStyle bool) Option {
	return func(r *Repository) {
		r.ForcePathStyle = forcePathStyle
	}
}

func WithEndpoint(endpoint string) Option {
	return func(r *Repository) {
		r.Endpoint = endpoint
	}
}

func WithClient(client s3iface.S3API) Option {
	return func(r *Repository) {
		r.client = client
	}
}

// Repository reads object attributes from S3 and uploads fixtures into it.
type Repository struct {
	logger   *zap.Logger
	client   s3iface.S3API
	uploader *s3manager.Uploader

	Endpoint       string
	Region         string
	ForcePathStyle bool
}

func New(opts ...Option) (*Repository, error) {
	r := &Repository{
		logger: zap.NewNop(),
	}

	for _, o := range opts {
		o(r)
	}

	if r.client == nil {
		awsConfig := &aws.Config{
			S3ForcePathStyle: aws.Bool(r.ForcePathStyle),
		}
		if r.Region != "" {
			awsConfig.Region = aws.String(r.Region)
		}
		if r.Endpoint != "" {
			awsConfig.Endpoint = aws.String(r.Endpoint)
		}

		sess, err := session.NewSession(awsConfig)
		if err != nil {
			return nil, fmt.Errorf("creating aws session: %w", err)
		}
		r.client = awss3.New(sess)
	}

	r.uploader = s3manager.NewUploaderWithClient(r.client)
	return r, nil
}

func (r *Repository) Scheme() string {
	return Scheme
}

func (r *Repository) Head(ctx context.Context, bucket, key string) (blob.Attributes, error) {
	out, err := r.client.HeadObjectWithContext(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return blob.Attributes{}, &blob.Error{
			Kind:      classify(err),
			Container: bucket,
			Key:       key,
			Err:       err,
		}
	}

	attrs := blob.Attributes{
		Container:   bucket,
		Key:         key,
		Size:        aws.Int64Value(out.ContentLength),
		ETag:        aws.StringValue(out.ETag),
		ContentType: aws.StringValue(out.ContentType),
		Metadata:    aws.StringValueMap(out.Metadata),
	}
	if out.LastModified != nil {
		attrs.LastModified = *out.LastModified
	}

	r.logger.Debug("head object",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("size", attrs.Size),
		zap.Any("metadata", attrs.Metadata),
	)
	return attrs, nil
}

func classify(err error) blob.Kind {
	if rf, ok := err.(awserr.RequestFailure); ok {
		switch rf.StatusCode() {
		case http.StatusNotFound:
			return blob.KindNotFound
		case http.StatusForbidden:
			return blob.KindAccessDenied
		}
	}

	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case "NotFound", awss3.ErrCodeNoSuchKey, awss3.ErrCodeNoSuchBucket:
			return blob.KindNotFound
		case "AccessDenied", "Forbidden":
			return blob.KindAccessDenied
		}
	}
	return blob.KindTransient
}

func (r *Repository) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string, metadata map[string]string) error {
	r.logger.Debug("S3 put",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.String("content_type", contentType),
	)

	input := &s3manager.UploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     body,
		Metadata: aws.StringMap(metadata),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := r.uploader.UploadWithContext(ctx, input)
	return err
}
