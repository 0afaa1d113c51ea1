package upload_test

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/azure/azurite"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/upload"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestAzure(t *testing.T) {
	ctx := t.Context()
	container := "sources"

	azuriteContainer, err := azurite.Run(
		ctx,
		"mcr.microsoft.com/azure-storage/azurite:latest",
		azurite.WithInMemoryPersistence(256),
	)
	require.NoError(t, err, "failed to make azurite container")
	defer func() {
		require.NoError(t, testcontainers.TerminateContainer(azuriteContainer))
	}()

	serviceURL, err := azuriteContainer.BlobServiceURL(ctx)
	require.NoError(t, err, "failed to get serviceURL")
	serviceURL = fmt.Sprintf("%s/%s", serviceURL, azurite.AccountName)

	uploader, err := upload.NewAzureUploader(upload.AzureConfig{
		AccountName: azurite.AccountName,
		AccountKey:  azurite.AccountKey,
		ServiceURL:  serviceURL,
		Container:   container,
	})
	require.NoError(t, err, "failed to construct uploader")

	require.NoError(t, uploader.EnsureContainer(ctx), "failed to create container")
	require.NoError(t, uploader.EnsureContainer(ctx), "second create should be a no-op")

	cred, err := azblob.NewSharedKeyCredential(azurite.AccountName, azurite.AccountKey)
	require.NoError(t, err)
	azclient, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	require.NoError(t, err)

	t.Run("NotExists", func(t *testing.T) {
		exists, err := uploader.Exists(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Upload", func(t *testing.T) {
		key := uuid.NewString()
		expected := "abc"
		err := uploader.Upload(ctx, strings.NewReader(expected), int64(len(expected)), key)
		require.NoError(t, err)

		buffer := make([]byte, len(expected))
		_, err = azclient.DownloadBuffer(ctx, container, key, buffer, nil)
		require.NoError(t, err)
		assert.Equal(t, expected, string(buffer))

		exists, err := uploader.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Source", func(t *testing.T) {
		source := "#include <stdio.h>\nint main(){return 0;}\n"
		key, err := upload.Source(ctx, uploader, source)
		require.NoError(t, err)
		assert.Equal(t, "sources/"+sha256Hex(source), key)

		again, err := upload.Source(ctx, uploader, source)
		require.NoError(t, err)
		assert.Equal(t, key, again)
	})
}
