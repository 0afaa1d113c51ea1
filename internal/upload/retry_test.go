package upload_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/upload"
	mockuploader "github.com/Ashutoshbind15/dev-iterate-sub000/internal/upload/mock"
)

func fastBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond*10))
}

func TestRetryExists(t *testing.T) {
	t.Run("SucceedsAfterOneFailure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		gomock.InOrder(
			u.EXPECT().Exists(gomock.Any(), "key").Return(false, errors.New("expected error")),
			u.EXPECT().Exists(gomock.Any(), "key").Return(true, nil),
		)

		exists, err := upload.NewRetryUploaderBackoff(u, fastBackoff).Exists(t.Context(), "key")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("GivesUp", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), "key").Return(false, errors.New("expected error")).Times(4)

		_, err := upload.NewRetryUploaderBackoff(u, fastBackoff).Exists(t.Context(), "key")
		require.Error(t, err)
	})
}

func TestRetryStoreIdentifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	u := mockuploader.NewMockUploader(ctrl)

	u.EXPECT().StoreIdentifier(gomock.Any()).Return("bucket", nil).Times(1)

	ident, err := upload.NewRetryUploader(u).StoreIdentifier(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "bucket", ident)
}

func TestRetryUploadRewinds(t *testing.T) {
	ctrl := gomock.NewController(t)
	u := mockuploader.NewMockUploader(ctrl)

	content := "print('hi')"
	reader := strings.NewReader(content)

	calls := 0
	u.EXPECT().
		Upload(gomock.Any(), gomock.Any(), int64(len(content)), "key").
		DoAndReturn(func(_ context.Context, r io.ReadSeeker, _ int64, _ string) error {
			calls++
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, content, string(got), "every attempt should see the whole body")
			if calls == 1 {
				return errors.New("expected error")
			}
			return nil
		}).
		Times(2)

	err := upload.NewRetryUploaderBackoff(u, fastBackoff).Upload(t.Context(), reader, int64(len(content)), "key")
	require.NoError(t, err)
}

func TestSource(t *testing.T) {
	source := "print(input())"
	// sha256 of the source above
	key := "sources/" + sha256Hex(source)

	t.Run("UploadsWhenMissing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), key).Return(false, nil)
		u.EXPECT().Upload(gomock.Any(), gomock.Any(), int64(len(source)), key).Return(nil)

		got, err := upload.Source(t.Context(), u, source)
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})

	t.Run("SkipsExisting", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), key).Return(true, nil)
		u.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		got, err := upload.Source(t.Context(), u, source)
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})

	t.Run("Disabled", func(t *testing.T) {
		got, err := upload.Source(t.Context(), upload.Disabled{}, source)
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})
}
