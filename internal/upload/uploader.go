package upload

import (
	"bytes"
	"context"
	"io"
	"path"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/hash"
)

var tracer = otel.Tracer(
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/upload",
)

// Key prefix for archived submission sources
const SourcePrefix = "sources"

//go:generate mockgen -destination ./mock/mock.go -package mock . Uploader

// Blob persistence used to archive submission sources
type Uploader interface {
	// Create or overwrite the object named `key`
	Upload(ctx context.Context, reader io.ReadSeeker, length int64, key string) error
	// Used to skip duplicate uploads, not an authoritative existence check.
	//
	// May always return false
	Exists(ctx context.Context, key string) (bool, error)
	// Bucket or container name, for logs and audit records
	StoreIdentifier(ctx context.Context) (string, error)
}

// Uploads `reader` under `prefix/<sha256 of contents>` unless that key already exists.
// The reader is rewound before hashing and before uploading.
func Hashed(
	ctx context.Context,
	u Uploader,
	prefix string,
	reader io.ReadSeeker,
	length int64,
) (string, error) {
	ctx, span := tracer.Start(ctx, "UploadHashed", trace.WithAttributes(
		attribute.String("prefix", prefix),
		attribute.Int64("length", length),
	))
	defer span.End()

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	sum, err := hash.Reader(ctx, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash reader")
		return "", err
	}
	key := path.Join(prefix, sum)

	exists, err := u.Exists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check if object exists")
		return "", err
	}

	if exists {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found existing object")
		return key, nil
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	if err := u.Upload(ctx, reader, length, key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload object")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded object by hash")
	return key, nil
}

// Archives a submission's source code and returns its object key
func Source(ctx context.Context, u Uploader, source string) (string, error) {
	b := []byte(source)
	return Hashed(ctx, u, SourcePrefix, bytes.NewReader(b), int64(len(b)))
}
