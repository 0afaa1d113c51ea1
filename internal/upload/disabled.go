package upload

import (
	"context"
	"io"
)

var _ Uploader = Disabled{}

// StoreIdentifier reported by Disabled
const DisabledStore = "disabled"

// Used when no object store is configured. Uploads are accepted and dropped.
type Disabled struct{}

func (Disabled) Upload(_ context.Context, _ io.ReadSeeker, _ int64, _ string) error {
	return nil
}

func (Disabled) Exists(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (Disabled) StoreIdentifier(_ context.Context) (string, error) {
	return DisabledStore, nil
}
