package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client abstracts the S3 API operations used by [S3Store].
// The [s3.Client] type satisfies this interface.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store implements FileStore backed by Amazon S3 or any S3-compatible
// object store (MinIO, R2, etc.).
//
// All storage paths are mapped to S3 keys under an optional prefix.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 creates an S3-backed FileStore.
// Prefix is prepended to all object keys; pass "" for no prefix.
func NewS3(client S3Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// S3Options holds the settings needed to build a client without the shared
// AWS config loader.
type S3Options struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewS3Client builds an [s3.Client] from static credentials. An empty
// Endpoint targets AWS itself.
func NewS3Client(o S3Options) *s3.Client {
	opts := s3.Options{
		Region:       o.Region,
		UsePathStyle: o.UsePathStyle,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				if o.AccessKey == "" || o.SecretKey == "" {
					return aws.Credentials{}, errors.New("storage: s3 access key and secret key are required")
				}
				return aws.Credentials{AccessKeyID: o.AccessKey, SecretAccessKey: o.SecretKey, Source: "deskmate"}, nil
			})),
	}
	if o.Endpoint != "" {
		opts.BaseEndpoint = aws.String(o.Endpoint)
	}
	return s3.New(opts)
}

func (s *S3Store) key(p string) string {
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

// Read opens the named object for reading via GetObject.
// Returns an error wrapping os.ErrNotExist if the key does not exist.
func (s *S3Store) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("storage: read %s: %w", p, os.ErrNotExist)
		}
		return nil, err
	}
	return out.Body, nil
}

// Write buffers the document and uploads it with a single PutObject when
// the writer is closed. Transcripts are small, and a seekable body lets the
// SDK sign the payload.
func (s *S3Store) Write(ctx context.Context, p string) (io.WriteCloser, error) {
	return &s3Writer{ctx: ctx, s: s, path: p}, nil
}

// List pages through ListObjectsV2 under dir.
func (s *S3Store) List(ctx context.Context, dir string) ([]string, error) {
	prefix := s.key(strings.Trim(dir, "/"))
	if prefix != "" {
		prefix += "/"
	}
	var out []string
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", dir, err)
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if s.prefix != "" {
				k = strings.TrimPrefix(k, s.prefix+"/")
			}
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

type s3Writer struct {
	ctx    context.Context
	s      *S3Store
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	_, err := w.s.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.s.bucket),
		Key:         aws.String(w.s.key(w.path)),
		Body:        bytes.NewReader(w.buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", w.path, err)
	}
	return nil
}

// isS3NotFound reports whether err indicates the S3 object does not exist.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ FileStore = (*S3Store)(nil)
