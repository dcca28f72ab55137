package errext_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/mofka-sub001/internal/errext"
)

func TestNewAndKind(t *testing.T) {
	t.Parallel()

	err := errext.New(errext.InvalidMetadata, "energy %d too high", 150)
	assert.Equal(t, errext.InvalidMetadata, err.Kind())
	assert.True(t, errext.Is(err, errext.InvalidMetadata))
	assert.False(t, errext.Is(err, errext.Transport))
	assert.Equal(t, "energy 150 too high", err.Error())
}

func TestWrapPreservesChain(t *testing.T) {
	t.Parallel()

	base := errors.New("connection reset")
	wrapped := errext.Wrap(errext.Transport, fmt.Errorf("send batch: %w", base))

	require.Error(t, wrapped)
	assert.Equal(t, errext.Transport, errext.KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, base))
}

func TestWithHintComposes(t *testing.T) {
	t.Parallel()

	err := errext.New(errext.PluginLoadFailed, "cannot dlopen libenergy.so")
	withHint := errext.WithHint(err, "check LD_LIBRARY_PATH")
	withHint2 := errext.WithHint(withHint, "or pass an absolute path")

	assert.Equal(t, "or pass an absolute path (check LD_LIBRARY_PATH)", withHint2.Hint())
	var h errext.HasHint
	require.True(t, errors.As(error(withHint2), &h))
}

func TestKindOfNoKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errext.Kind(""), errext.KindOf(errors.New("plain")))
	assert.False(t, errext.Is(errors.New("plain"), errext.Closed))
}
