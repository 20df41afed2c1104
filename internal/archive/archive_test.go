package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObjectName_ContentAddressed(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	body := []byte(`{"jobs": []}`)

	name := ObjectName("greenhouse", at, body)
	require.True(t, strings.HasPrefix(name, "raw/greenhouse/2026-04-01/"))

	// Same content, same key; different content, different key.
	require.Equal(t, name, ObjectName("greenhouse", at, body))
	require.NotEqual(t, name, ObjectName("greenhouse", at, []byte("other")))
	require.NotEqual(t, name, ObjectName("lever", at, body))
}

func TestMemory_PutAndGet(t *testing.T) {
	t.Parallel()

	mem := NewMemory()
	uri, err := mem.Put(context.Background(), "rss", "application/xml", []byte("<rss/>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "mem://raw/rss/"))
	require.Equal(t, 1, mem.Len())

	body, ok := mem.Get(strings.TrimPrefix(uri, "mem://"))
	require.True(t, ok)
	require.Equal(t, []byte("<rss/>"), body)

	// Identical payloads collapse onto one object.
	_, err = mem.Put(context.Background(), "rss", "application/xml", []byte("<rss/>"))
	require.NoError(t, err)
	require.Equal(t, 1, mem.Len())
}
