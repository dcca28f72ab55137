package datastore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/mofka-sub001/pkg/datadescriptor"
	"github.com/mochi-hpc/mofka-sub001/pkg/datastore"
)

func TestStoreAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemory(datastore.MemoryConfig{})
	ctx := context.Background()

	payload := []byte("hello-world-payload")
	descriptors, err := store.Store(ctx, []uint64{uint64(len(payload))}, payload)
	require.NoError(t, err)
	require.Len(t, descriptors, 1)

	results, errs := store.Load(ctx, descriptors)
	require.NoError(t, errs[0])
	assert.Equal(t, payload, results[0])
}

func TestStoreMultipleEvents(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemory(datastore.MemoryConfig{})
	ctx := context.Background()

	a, b, c := []byte("aaa"), []byte("bb"), []byte("c")
	combined := append(append(append([]byte{}, a...), b...), c...)
	descriptors, err := store.Store(ctx, []uint64{3, 2, 1}, combined)
	require.NoError(t, err)

	results, errs := store.Load(ctx, descriptors)
	for _, e := range errs {
		require.NoError(t, e)
	}
	assert.Equal(t, a, results[0])
	assert.Equal(t, b, results[1])
	assert.Equal(t, c, results[2])
}

func TestStridedViewOverStoredBytes(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemory(datastore.MemoryConfig{})
	ctx := context.Background()

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	descriptors, err := store.Store(ctx, []uint64{1024}, payload)
	require.NoError(t, err)

	strided, err := descriptors[0].StridedView(16, 4, 32, 16)
	require.NoError(t, err)

	results, errs := store.Load(ctx, []datadescriptor.DataDescriptor{strided})
	require.NoError(t, errs[0])
	require.Len(t, results[0], 128)

	var expected []byte
	for _, block := range [][2]int{{16, 48}, {64, 96}, {112, 144}, {160, 192}} {
		expected = append(expected, payload[block[0]:block[1]]...)
	}
	assert.Equal(t, expected, results[0])
}

func TestLoadNullDescriptorSkipsFetch(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemory(datastore.MemoryConfig{})
	results, errs := store.Load(context.Background(), []datadescriptor.DataDescriptor{datadescriptor.Null()})
	require.NoError(t, errs[0])
	assert.Nil(t, results[0])
}

func TestSizeMismatchRejected(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemory(datastore.MemoryConfig{})
	_, err := store.Store(context.Background(), []uint64{10}, []byte("short"))
	assert.Error(t, err)
}

func TestDestroyIsIdempotentAndFailsLater(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemory(datastore.MemoryConfig{})
	require.NoError(t, store.Destroy())
	require.NoError(t, store.Destroy())

	_, err := store.Store(context.Background(), []uint64{1}, []byte("x"))
	assert.Error(t, err)
}

func TestCompressedRoundTrip(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemory(datastore.MemoryConfig{Compress: true})
	ctx := context.Background()

	payload := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	descriptors, err := store.Store(ctx, []uint64{uint64(len(payload))}, payload)
	require.NoError(t, err)

	results, errs := store.Load(ctx, descriptors)
	require.NoError(t, errs[0])
	assert.Equal(t, payload, results[0])
}
