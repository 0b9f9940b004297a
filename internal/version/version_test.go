package version

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		text     string
		want     Metadata
		wantOK   bool
	}{
		{
			name:   "marker on first line",
			text:   "<!--VERSION:1.2.3 LAST_MODIFIED:2025-06-01T12:00:00Z-->\n# Guide\n",
			want:   Metadata{Version: SemVer{1, 2, 3}, LastModified: t1},
			wantOK: true,
		},
		{
			name:   "marker mid-document",
			text:   "# Guide\n<!--VERSION:2.0.0 LAST_MODIFIED:2025-06-01T12:00:00Z-->\nbody",
			want:   Metadata{Version: SemVer{2, 0, 0}, LastModified: t1},
			wantOK: true,
		},
		{
			name:   "no marker",
			text:   "# Guide\nplain content\n",
			wantOK: false,
		},
		{
			name:   "empty text",
			text:   "",
			wantOK: false,
		},
		{
			name:   "malformed version",
			text:   "<!--VERSION:1.2 LAST_MODIFIED:2025-06-01T12:00:00Z-->\nbody",
			wantOK: false,
		},
		{
			name:   "garbage version",
			text:   "<!--VERSION:banana LAST_MODIFIED:2025-06-01T12:00:00Z-->\nbody",
			wantOK: false,
		},
		{
			name:   "missing timestamp keeps version",
			text:   "<!--VERSION:1.0.0 LAST_MODIFIED:-->\nbody",
			want:   Metadata{Version: SemVer{1, 0, 0}},
			wantOK: true,
		},
		{
			name:   "unparseable timestamp keeps version",
			text:   "<!--VERSION:1.0.0 LAST_MODIFIED:yesterday-->\nbody",
			want:   Metadata{Version: SemVer{1, 0, 0}},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestInjectRoundTrip(t *testing.T) {
	metas := []Metadata{
		{Version: SemVer{1, 0, 0}},
		{Version: SemVer{1, 0, 1}, LastModified: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Version: SemVer{12, 34, 56}, LastModified: time.Date(2030, 12, 31, 23, 59, 59, 0, time.UTC)},
	}

	texts := []string{
		"# Guide\nbody\n",
		"",
		"<!--VERSION:0.9.0 LAST_MODIFIED:2020-01-01T00:00:00Z-->\nold content\n",
	}

	for _, meta := range metas {
		for i, text := range texts {
			t.Run(fmt.Sprintf("%s/text%d", meta.Version, i), func(t *testing.T) {
				out := Inject(text, meta)

				got, ok := Extract(out)
				require.True(t, ok)
				assert.Equal(t, meta, got)
			})
		}
	}
}

func TestInjectReplacesInPlace(t *testing.T) {
	text := "# Guide\n<!--VERSION:1.0.0 LAST_MODIFIED:2020-01-01T00:00:00Z-->\nbody"
	out := Inject(text, Metadata{Version: SemVer{1, 0, 1}})

	// Marker position is preserved; no second marker is prepended.
	assert.Equal(t, "# Guide\n<!--VERSION:1.0.1 LAST_MODIFIED:-->\nbody", out)
}

func TestInjectPrependsWhenAbsent(t *testing.T) {
	out := Inject("# Guide\n", Metadata{Version: SemVer{1, 0, 0}})
	assert.Equal(t, "<!--VERSION:1.0.0 LAST_MODIFIED:-->\n# Guide\n", out)
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "marker on first line",
			text: "<!--VERSION:1.0.0 LAST_MODIFIED:2020-01-01T00:00:00Z-->\n# Guide\n",
			want: "# Guide\n",
		},
		{
			name: "marker mid-document",
			text: "# Guide\n<!--VERSION:1.0.0 LAST_MODIFIED:-->\nbody\n",
			want: "# Guide\nbody\n",
		},
		{
			name: "no marker",
			text: "# Guide\nbody\n",
			want: "# Guide\nbody\n",
		},
		{
			name: "marker only",
			text: "<!--VERSION:1.0.0 LAST_MODIFIED:-->",
			want: "",
		},
		{
			name: "marker without trailing newline",
			text: "body\n<!--VERSION:1.0.0 LAST_MODIFIED:-->",
			want: "body\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.text))
		})
	}
}

func TestNextVersion(t *testing.T) {
	tests := []struct {
		name string
		text string
		want SemVer
	}{
		{
			name: "bumps patch of embedded version",
			text: "<!--VERSION:1.2.3 LAST_MODIFIED:-->\nbody",
			want: SemVer{1, 2, 4},
		},
		{
			name: "no marker defaults to 1.0.1",
			text: "plain content",
			want: SemVer{1, 0, 1},
		},
		{
			name: "malformed marker defaults to 1.0.1",
			text: "<!--VERSION:oops LAST_MODIFIED:-->\nbody",
			want: SemVer{1, 0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextVersion(tt.text))
		})
	}
}

func TestNextVersionMonotone(t *testing.T) {
	// Repeated bump-and-inject must be strictly increasing from any start.
	text := "some content without a marker\n"

	prev := SemVer{}
	for i := 0; i < 10; i++ {
		next := NextVersion(text)
		assert.Equal(t, 1, next.Compare(prev), "iteration %d: %s not > %s", i, next, prev)

		text = Inject(text, Metadata{Version: next, LastModified: time.Now()})
		prev = next
	}

	assert.Equal(t, SemVer{1, 0, 10}, prev)
}

func TestParseSemVer(t *testing.T) {
	tests := []struct {
		in     string
		want   SemVer
		wantOK bool
	}{
		{"1.0.0", SemVer{1, 0, 0}, true},
		{"10.20.30", SemVer{10, 20, 30}, true},
		{"1.0", SemVer{}, false},
		{"1", SemVer{}, false},
		{"v1.0.0", SemVer{}, false},
		{"1.0.0-beta", SemVer{}, false},
		{"", SemVer{}, false},
		{"a.b.c", SemVer{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSemVer(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
