package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoKey(t *testing.T) {
	assert.Equal(t, "user-42/abc123.mp4", VideoKey("user-42", "abc123", ""))
	assert.Equal(t, "user-42/abc123_v1.mp4", VideoKey("user-42", "abc123", "v1"))
	assert.Equal(t, "user-42/abc123.jpg", ThumbnailKey("user-42", "abc123"))
}

func TestParse_RoundTrip(t *testing.T) {
	s := NewScheme(nil)

	for _, variant := range append([]string{""}, s.Variants()...) {
		key := VideoKey("user-42", "abc123", variant)
		parsed, err := s.Parse(key)
		require.NoError(t, err)
		assert.Equal(t, "user-42", parsed.Owner)
		assert.Equal(t, "abc123", parsed.TaskID)
		assert.Equal(t, variant, parsed.Variant)
		assert.Equal(t, KindVideo, parsed.Kind)
		assert.Equal(t, key, parsed.String())
	}

	thumb, err := s.Parse(ThumbnailKey("user-42", "abc123"))
	require.NoError(t, err)
	assert.Equal(t, KindThumbnail, thumb.Kind)
	assert.Equal(t, "abc123", thumb.TaskID)
}

func TestParse_UnknownSuffixStaysInTaskID(t *testing.T) {
	s := NewScheme(nil)

	k, err := s.Parse("u1/t1_final.mp4")
	require.NoError(t, err)
	assert.Equal(t, "t1_final", k.TaskID)
	assert.Empty(t, k.Variant)

	k, err = s.Parse("u1/t1_processed.mp4")
	require.NoError(t, err)
	assert.Equal(t, "t1", k.TaskID)
	assert.Equal(t, "processed", k.Variant)
}

func TestParse_VariantSuffixWinsOverTaskID(t *testing.T) {
	s := NewScheme(nil)

	key := VideoKey("u1", "abc_v1", "")
	k, err := s.Parse(key)
	require.NoError(t, err)
	assert.Equal(t, "abc", k.TaskID)
	assert.Equal(t, "v1", k.Variant)
	assert.Equal(t, key, k.String())
	assert.NotEqual(t, "abc_v1", k.TaskID)
}

func TestParse_Invalid(t *testing.T) {
	s := NewScheme(nil)
	for _, key := range []string{"", "noslash.mp4", "u1/", "u1/.mp4", "u1/file.txt", "/t1.mp4"} {
		_, err := s.Parse(key)
		assert.Error(t, err, key)
	}
}

func TestGroupTasks(t *testing.T) {
	s := NewScheme(nil)
	entries := s.GroupTasks([]string{
		"u1/t1.mp4",
		"u1/t1_v1.mp4",
		"u1/t1_v2.mp4",
		"u1/t1.jpg",
		"u1/t2_v1.mp4",
		"u1/t0_final.mp4",
		"u1/notes.txt",
	})

	require.Len(t, entries, 3)
	assert.Equal(t, "t2", entries[0].TaskID)
	assert.Equal(t, []string{"v1"}, entries[0].Variants)
	assert.False(t, entries[0].HasOriginal)

	assert.Equal(t, "t1", entries[1].TaskID)
	assert.Equal(t, []string{"v1", "v2"}, entries[1].Variants)
	assert.True(t, entries[1].HasOriginal)
	assert.True(t, entries[1].HasThumbnail)

	assert.Equal(t, "t0_final", entries[2].TaskID)
	assert.Empty(t, entries[2].Variants)
}

func TestScheme_CustomVariants(t *testing.T) {
	s := NewScheme([]string{"a", "b", "c"})
	assert.True(t, s.IsVariant("c"))
	assert.False(t, s.IsVariant("v1"))

	k, err := s.Parse("u1/t1_v1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "t1_v1", k.TaskID)
}
