package upload

import (
	"context"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/codes"
)

var _ Uploader = (*RetryUploader)(nil)

// Wraps every Uploader call in a backoff loop
type RetryUploader struct {
	uploader Uploader
	backoff  func() retry.Backoff
}

func NewRetryUploaderBackoff(uploader Uploader, backoff func() retry.Backoff) *RetryUploader {
	return &RetryUploader{uploader: uploader, backoff: backoff}
}

// Archiving happens off the request path so a long backoff is fine
func NewRetryUploader(uploader Uploader) *RetryUploader {
	return NewRetryUploaderBackoff(uploader, func() retry.Backoff {
		b := retry.NewExponential(time.Second)
		return retry.WithMaxDuration(time.Minute*2, b)
	})
}

func withRetry[T any](
	ctx context.Context,
	r *RetryUploader,
	name string,
	op func(ctx context.Context) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, "RetryUploader."+name)
	defer span.End()

	var out T
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		//nolint:govet // shadow: keep the attempt span separate from the outer one
		ctx, span := tracer.Start(ctx, "RetryUploader."+name+".Attempt")
		defer span.End()

		var err error
		out, err = op(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "attempt failed")
			return retry.RetryableError(err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "attempt succeeded")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed after retries")
		return out, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, name+" succeeded")
	return out, nil
}

func (r *RetryUploader) Exists(ctx context.Context, key string) (bool, error) {
	return withRetry(ctx, r, "Exists", func(ctx context.Context) (bool, error) {
		return r.uploader.Exists(ctx, key)
	})
}

func (r *RetryUploader) StoreIdentifier(ctx context.Context) (string, error) {
	return withRetry(ctx, r, "StoreIdentifier", r.uploader.StoreIdentifier)
}

func (r *RetryUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	key string,
) error {
	_, err := withRetry(ctx, r, "Upload", func(ctx context.Context) (struct{}, error) {
		// a failed attempt may have consumed part of the reader
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, r.uploader.Upload(ctx, reader, length, key)
	})
	return err
}
