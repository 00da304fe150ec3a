// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config configures an S3-compatible backend.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3 is a Store backed by an S3-compatible bucket, one object key per oid.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 builds an S3-backed Store from cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket required for s3 backend")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

func (s *S3) Read(ctx context.Context, oid string, offset, length uint64) ([]byte, error) {
	start := time.Now()
	defer func() { BackendLatencySeconds.WithLabelValues("s3", "read").Observe(time.Since(start).Seconds()) }()
	ObjectReadsTotal.Inc()

	rangeStr := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(oid),
		Range:  aws.String(rangeStr),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("objectstore: s3 get %s: %w", oid, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: s3 read body %s: %w", oid, err)
	}
	return data, nil
}

func (s *S3) Write(ctx context.Context, oid string, offset uint64, data []byte) error {
	start := time.Now()
	defer func() { BackendLatencySeconds.WithLabelValues("s3", "write").Observe(time.Since(start).Seconds()) }()
	ObjectWritesTotal.Inc()
	ObjectBytesWritten.Add(float64(len(data)))

	// S3 objects are immutable: a partial write must read-modify-write
	// the whole object.
	existing, _, err := s.readWhole(ctx, oid)
	if err != nil {
		return err
	}
	need := offset + uint64(len(data))
	if uint64(len(existing)) < need {
		grown := make([]byte, need)
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:], data)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(oid),
		Body:          bytes.NewReader(existing),
		ContentLength: aws.Int64(int64(len(existing))),
	})
	if err != nil {
		return fmt.Errorf("objectstore: s3 put %s: %w", oid, err)
	}
	return nil
}

func (s *S3) Discard(ctx context.Context, oid string, offset, length uint64, wholeObject bool) error {
	ObjectDiscardsTotal.Inc()

	existing, size, err := s.readWhole(ctx, oid)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	if wholeObject && offset == 0 && length >= size {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(oid),
		})
		if err != nil {
			return fmt.Errorf("objectstore: s3 delete %s: %w", oid, err)
		}
		return nil
	}

	end := offset + length
	if end > size {
		end = size
	}
	for i := offset; i < end; i++ {
		existing[i] = 0
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(oid),
		Body:          bytes.NewReader(existing),
		ContentLength: aws.Int64(int64(len(existing))),
	})
	if err != nil {
		return fmt.Errorf("objectstore: s3 put (discard) %s: %w", oid, err)
	}
	return nil
}

func (s *S3) Remove(ctx context.Context, oid string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(oid),
	})
	if err != nil {
		return fmt.Errorf("objectstore: s3 delete %s: %w", oid, err)
	}
	return nil
}

func (s *S3) Truncate(ctx context.Context, oid string, size uint64) error {
	existing, curSize, err := s.readWhole(ctx, oid)
	if err != nil {
		return err
	}
	if curSize <= size {
		return nil
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(oid),
		Body:          bytes.NewReader(existing[:size]),
		ContentLength: aws.Int64(int64(size)),
	})
	if err != nil {
		return fmt.Errorf("objectstore: s3 put (truncate) %s: %w", oid, err)
	}
	return nil
}

func (s *S3) Stat(ctx context.Context, oid string) (uint64, bool, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(oid),
	})
	if isNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("objectstore: s3 head %s: %w", oid, err)
	}
	if out.ContentLength == nil {
		return 0, true, nil
	}
	return uint64(*out.ContentLength), true, nil
}

// Flush is a no-op: every S3 write above is already a completed PutObject.
func (s *S3) Flush(ctx context.Context, oid string) error {
	return nil
}

func (s *S3) Close() error {
	return nil
}

func (s *S3) readWhole(ctx context.Context, oid string) ([]byte, uint64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(oid),
	})
	if isNotFound(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("objectstore: s3 get %s: %w", oid, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("objectstore: s3 read body %s: %w", oid, err)
	}
	return data, uint64(len(data)), nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if ok := asSmithyAPIError(err, &apiErr); ok {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func asSmithyAPIError(err error, target *smithy.APIError) bool {
	type apiError interface {
		error
		ErrorCode() string
		ErrorMessage() string
		ErrorFault() smithy.ErrorFault
	}
	var ae apiError
	for err != nil {
		if e, ok := err.(apiError); ok {
			ae = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ae == nil {
		return false
	}
	*target = ae
	return true
}
