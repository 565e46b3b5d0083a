// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package gcs wraps the Cloud Storage client with the bucket and object
// helpers used by functions that move JSON data in and out of GCS.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/gcputil/internal/gcperr"
)

const (
	// DefaultLocation is used when a bucket is created without a location.
	DefaultLocation = "US"

	// DefaultContentType is the content type given to uploaded objects.
	DefaultContentType = "text/plain"
)

var tracer = otel.Tracer("github.com/cardinalhq/gcputil/pkg/gcs")

// CreateBucket creates bucket in project and returns its attributes.
// The calling account needs Storage Admin on the project.
func CreateBucket(ctx context.Context, client *storage.Client, project, bucket, location string) (*storage.BucketAttrs, error) {
	if location == "" {
		location = DefaultLocation
	}

	ctx, span := tracer.Start(ctx, "gcs.CreateBucket",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("project", project),
		),
	)
	defer span.End()

	slog.Info("Attempting to create bucket", slog.String("bucket", bucket), slog.String("project", project))

	bh := client.Bucket(bucket)
	if err := bh.Create(ctx, project, &storage.BucketAttrs{Location: location}); err != nil {
		span.RecordError(err)
		if gcperr.IsPermissionDenied(err) {
			slog.Error("Current account does not have required permissions to create buckets",
				slog.String("project", project),
				slog.String("console", "https://console.cloud.google.com/iam-admin/iam?project="+project),
				slog.String("role", "Storage Admin"))
		}
		return nil, err
	}

	attrs, err := bh.Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("get attributes of new bucket %s: %w", bucket, err)
	}

	slog.Info("Bucket created", slog.String("bucket", attrs.Name))
	return attrs, nil
}

// Read returns the full contents of gs://bucket/object.
func Read(ctx context.Context, client *storage.Client, bucket, object string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "gcs.Read",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("object", object),
		),
	)
	defer span.End()

	slog.Info("Getting object", slog.String("uri", URI(bucket, object)))

	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		span.RecordError(err)
		reason := "unknown"
		if errors.Is(err, storage.ErrObjectNotExist) {
			reason = "not_found"
		}
		readErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("reason", reason),
		))
		return nil, fmt.Errorf("read %s: %w", URI(bucket, object), err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		readErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("reason", "copy_failed"),
		))
		return nil, fmt.Errorf("copy object content: %w", err)
	}

	readCount.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucket)))
	readBytes.Add(ctx, int64(len(data)), metric.WithAttributes(attribute.String("bucket", bucket)))
	return data, nil
}

// ReadString is Read with the contents returned as text.
func ReadString(ctx context.Context, client *storage.Client, bucket, object string) (string, error) {
	data, err := Read(ctx, client, bucket, object)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type writeConfig struct {
	contentType  string
	createBucket bool
	project      string
	location     string
}

// WriteOption adjusts how Write uploads an object.
type WriteOption func(*writeConfig)

// WithContentType sets the MIME type stored with the object.
func WithContentType(contentType string) WriteOption {
	return func(c *writeConfig) {
		c.contentType = contentType
	}
}

// WithCreateBucket creates the destination bucket in project when it does
// not exist yet. An empty location means DefaultLocation.
func WithCreateBucket(project, location string) WriteOption {
	return func(c *writeConfig) {
		c.createBucket = true
		c.project = project
		c.location = location
	}
}

// Write uploads data to gs://bucket/object and returns the stored object's
// attributes. Without WithCreateBucket a missing bucket is an error.
func Write(ctx context.Context, client *storage.Client, bucket, object string, data []byte, opts ...WriteOption) (*storage.ObjectAttrs, error) {
	cfg := writeConfig{contentType: DefaultContentType}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := tracer.Start(ctx, "gcs.Write",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("object", object),
			attribute.Int("size", len(data)),
		),
	)
	defer span.End()

	bh := client.Bucket(bucket)
	if cfg.createBucket {
		if _, err := bh.Attrs(ctx); err != nil {
			if !errors.Is(err, storage.ErrBucketNotExist) {
				return nil, fmt.Errorf("get bucket %s: %w", bucket, err)
			}
			slog.Warn("Bucket not found, creating it", slog.String("bucket", bucket))
			if _, err := CreateBucket(ctx, client, cfg.project, bucket, cfg.location); err != nil {
				return nil, err
			}
		}
	}

	slog.Info("Writing to GCS", slog.String("uri", URI(bucket, object)))

	writer := bh.Object(object).NewWriter(ctx)
	writer.ContentType = cfg.contentType
	writer.Metadata = map[string]string{
		"writer": "gcputil-go",
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		span.RecordError(err)
		writeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucket)))
		return nil, fmt.Errorf("failed to upload object %s: %w", URI(bucket, object), err)
	}
	if err := writer.Close(); err != nil {
		span.RecordError(err)
		writeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucket)))
		return nil, fmt.Errorf("failed to close writer for %s: %w", URI(bucket, object), err)
	}

	writeCount.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucket)))
	writeBytes.Add(ctx, int64(len(data)), metric.WithAttributes(attribute.String("bucket", bucket)))

	slog.Info("Upload complete", slog.String("uri", URI(bucket, object)))
	return writer.Attrs(), nil
}

// URI formats a gs:// location.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}
