package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "artist:foo", []string{"artist:foo"}},
		{"trims whitespace", " artist:foo ,  parody:bar", []string{"artist:foo", "parody:bar"}},
		{"drops empties", "a,,b,", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitTags(tt.raw))
		})
	}
}

func TestTagKey(t *testing.T) {
	assert.Equal(t, "artist", TagKey("artist:foo"))
	assert.Equal(t, "date_added", TagKey("date_added:1690000000"))
	assert.Equal(t, "", TagKey("english"))
	assert.Equal(t, "source", TagKey("source:https://example.com/g/1"))
}

func TestIsReservedTag(t *testing.T) {
	assert.True(t, IsReservedTag("date_added:123"))
	assert.True(t, IsReservedTag("source:example.com"))
	assert.False(t, IsReservedTag("artist:foo"))
	assert.False(t, IsReservedTag("sourced"))
}

func TestCountTags_ExcludesReservedKeys(t *testing.T) {
	archives := []*Archive{
		{ID: "a", Tags: "date_added:123, artist:foo"},
		{ID: "b", Tags: "artist:foo,source:example.com,language:english"},
	}

	items := CountTags(archives, nil)

	assert.Equal(t, []TagItem{
		{Tag: "artist:foo", Count: 2},
		{Tag: "language:english", Count: 1},
	}, items)
}

func TestCountTags_Normalizes(t *testing.T) {
	archives := []*Archive{
		{ID: "a", Tags: "Artist:Foo"},
		{ID: "b", Tags: "artist:foo"},
	}

	items := CountTags(archives, strings.ToLower)

	assert.Equal(t, []TagItem{{Tag: "artist:foo", Count: 2}}, items)
}

func TestCategory_IsDynamic(t *testing.T) {
	static := Category{ID: "SET_1", Archives: []string{"a"}}
	dynamic := Category{ID: "SET_2", Search: "artist:foo"}

	assert.False(t, static.IsDynamic())
	assert.True(t, static.Contains("a"))
	assert.True(t, dynamic.IsDynamic())
}

func TestDownloadJob_Finished(t *testing.T) {
	assert.False(t, (&DownloadJob{IsActive: true}).Finished())
	assert.True(t, (&DownloadJob{IsSuccess: true}).Finished())
	assert.True(t, (&DownloadJob{IsError: true}).Finished())
	assert.False(t, (&DownloadJob{}).Finished())
}
