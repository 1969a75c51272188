package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"montage/internal/ports"
)

// Client implements ports.StorageProvider on an S3 bucket. Object keys are
// stored under an optional prefix.
type Client struct {
	svc      *awss3.S3
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

func New(sess *session.Session, bucket, prefix string) *Client {
	svc := awss3.New(sess)
	return &Client{
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
		bucket:   bucket,
		prefix:   prefix,
	}
}

func (c *Client) Provider() string { return "s3" }

func (c *Client) key(objectKey string) string {
	if c.prefix == "" {
		return objectKey
	}
	return path.Join(c.prefix, objectKey)
}

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	input := &s3manager.UploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(in.ObjectKey)),
		Body:   in.Reader,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	if _, err := c.uploader.UploadWithContext(ctx, input); err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("s3 upload failed: %w", err)
	}
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: in.Size}, nil
}

func (c *Client) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	out, err := c.svc.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(objectKey)),
	})
	if err != nil {
		return nil, "", 0, err
	}
	return out.Body, aws.StringValue(out.ContentType), aws.Int64Value(out.ContentLength), nil
}

func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	_, err := c.svc.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(objectKey)),
	})
	return err
}

func (c *Client) GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (ports.SignedURLOutput, error) {
	req, _ := c.svc.GetObjectRequest(&awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(objectKey)),
	})
	req.SetContext(ctx)

	url, err := req.Presign(expiresIn)
	if err != nil {
		return ports.SignedURLOutput{}, err
	}
	return ports.SignedURLOutput{URL: url, ExpiresAt: time.Now().UTC().Add(expiresIn)}, nil
}

// Ping checks that the bucket is reachable with the current credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.svc.HeadBucketWithContext(ctx, &awss3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	return err
}
