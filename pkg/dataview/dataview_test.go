package dataview_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mochi-hpc/mofka-sub001/pkg/dataview"
)

func TestNewAggregatesSize(t *testing.T) {
	t.Parallel()

	v := dataview.New([]byte("hello"), []byte(" "), []byte("world"))
	assert.Equal(t, uint64(11), v.Size())
	assert.Equal(t, "hello world", string(v.Bytes()))
	assert.Len(t, v.Segments(), 3)
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	v := dataview.Empty()
	assert.Equal(t, uint64(0), v.Size())
	assert.Empty(t, v.Segments())
}
