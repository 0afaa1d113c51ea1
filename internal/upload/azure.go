package upload

import (
	"context"
	"errors"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ Uploader = (*AzureUploader)(nil)

type AzureConfig struct {
	AccountName string
	AccountKey  string
	ServiceURL  string
	Container   string
}

// Azure blob storage backed object store
type AzureUploader struct {
	client    *azblob.Client
	container string
}

func NewAzureUploader(cfg AzureConfig) (*AzureUploader, error) {
	if cfg.Container == "" {
		return nil, errors.New("container is required")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(cfg.ServiceURL, cred, nil)
	if err != nil {
		return nil, err
	}

	return &AzureUploader{client: client, container: cfg.Container}, nil
}

// Creates the container, an existing container is not an error
func (u *AzureUploader) EnsureContainer(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "AzureUploader.EnsureContainer", trace.WithAttributes(
		attribute.String("container", u.container),
	))
	defer span.End()

	_, err := u.client.CreateContainer(ctx, u.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create container")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "container ready")
	return nil
}

func (u *AzureUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	key string,
) error {
	ctx, span := tracer.Start(ctx, "AzureUploader.Upload", trace.WithAttributes(
		attribute.String("key", key),
		attribute.Int64("length", length),
	))
	defer span.End()

	contentType := "text/plain; charset=utf-8"
	_, err := u.client.UploadStream(ctx, u.container, key, reader, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload blob")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded blob")
	return nil
}

func (u *AzureUploader) blob(key string) *blob.Client {
	return u.client.ServiceClient().NewContainerClient(u.container).NewBlobClient(key)
}

func (u *AzureUploader) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "AzureUploader.Exists", trace.WithAttributes(
		attribute.String("key", key),
	))
	defer span.End()

	_, err := u.blob(key).GetProperties(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(bloberror.BlobNotFound) {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "did not find blob")
			return false, nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get blob properties")
		return false, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "found blob")
	return true, nil
}

func (u *AzureUploader) StoreIdentifier(_ context.Context) (string, error) {
	return u.container, nil
}
