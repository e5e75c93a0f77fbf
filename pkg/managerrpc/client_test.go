package managerrpc

import (
	"context"
	"testing"

	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledClientReturnsFeatureDisabled(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.SystemInfo(ctx)
	assert.ErrorIs(t, err, apperrors.ErrFeatureDisabled)

	_, err = c.SoftwareInfo(ctx)
	assert.ErrorIs(t, err, apperrors.ErrFeatureDisabled)

	err = c.RequestUpdateSoftware(ctx, "build-1", true)
	assert.ErrorIs(t, err, apperrors.ErrFeatureDisabled)

	err = c.RequestReboot(ctx)
	assert.ErrorIs(t, err, apperrors.ErrFeatureDisabled)

	assert.NoError(t, c.Close())
}
