// Package storage keeps article PDFs in an S3 compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rd-agent/backend/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	pdfContentType = "application/pdf"
	linkExpiry     = 15 * time.Minute
	maxObjectBytes = 64 << 20
)

// Store wraps an S3 client bound to one bucket.
type Store struct {
	client         *s3.Client
	bucket         string
	publicEndpoint string
}

func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnv("AWS_REGION")),
		config.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

func NewStore(client *s3.Client, bucket, publicEndpoint string) *Store {
	return &Store{client: client, bucket: bucket, publicEndpoint: publicEndpoint}
}

// NewStoreFromEnv builds a Store from AWS_* variables.
func NewStoreFromEnv(ctx context.Context) (*Store, error) {
	client, err := NewS3Client(ctx)
	if err != nil {
		return nil, err
	}
	return NewStore(client, util.GetEnv("AWS_BUCKET"), util.GetEnv("AWS_PUBLIC_ENDPOINT")), nil
}

// ArticlePrefix is the folder holding every file of one article.
func ArticlePrefix(pmid string) string {
	return fmt.Sprintf("articles/%s/", pmid)
}

// NewPDFKey returns a fresh object key for an article PDF.
func NewPDFKey(pmid string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	return ArticlePrefix(pmid) + id + ".pdf", nil
}

// PutPDF uploads data under a new key and returns it.
func (s *Store) PutPDF(ctx context.Context, pmid string, data []byte) (string, error) {
	key, err := NewPDFKey(pmid)
	if err != nil {
		return "", fmt.Errorf("failed to generate object key: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(pdfContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return key, nil
}

// GetFile reads a stored object into memory.
func (s *Store) GetFile(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get file from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(io.LimitReader(result.Body, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	if len(data) > maxObjectBytes {
		return nil, fmt.Errorf("object %s exceeds %d bytes", key, maxObjectBytes)
	}
	return data, nil
}

// DeleteArticleFiles removes every stored file of an article.
func (s *Store) DeleteArticleFiles(ctx context.Context, pmid string) error {
	prefix := ArticlePrefix(pmid)
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		listOutput, err := s.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return fmt.Errorf("failed to list objects in folder %s: %w", prefix, err)
		}
		if len(listOutput.Contents) == 0 {
			break
		}

		objects := make([]types.ObjectIdentifier, 0, len(listOutput.Contents))
		for _, obj := range listOutput.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects in folder %s: %w", prefix, err)
		}

		if listOutput.IsTruncated == nil || !*listOutput.IsTruncated {
			break
		}
		listInput.ContinuationToken = listOutput.NextContinuationToken
	}
	return nil
}

// DownloadLink presigns a GET for key against the public endpoint.
func (s *Store) DownloadLink(ctx context.Context, key string) (string, error) {
	base, prefix, err := splitPublicEndpoint(s.publicEndpoint)
	if err != nil {
		return "", err
	}

	// The signature covers the Host header, so presign against the public host.
	presignClient := s3.NewFromConfig(
		aws.Config{
			Region:      s.client.Options().Region,
			Credentials: s.client.Options().Credentials,
			HTTPClient:  s.client.Options().HTTPClient,
		},
		func(o *s3.Options) {
			o.BaseEndpoint = aws.String(base)
			o.UsePathStyle = true
		},
	)

	out, err := s3.NewPresignClient(presignClient).PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(linkExpiry),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}
	return withPathPrefix(out.URL, prefix)
}

func splitPublicEndpoint(endpoint string) (base, prefix string, err error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("invalid AWS_PUBLIC_ENDPOINT: %q", endpoint)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), strings.TrimSuffix(u.Path, "/"), nil
}

func withPathPrefix(signed, prefix string) (string, error) {
	if prefix == "" {
		return signed, nil
	}
	u, err := url.Parse(signed)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	u.Path = prefix + u.Path
	return u.String(), nil
}
