// Package version parses and injects the version marker embedded in the
// managed guide file. The marker is a single HTML comment line carrying a
// semantic version and a last-modified timestamp:
//
//	<!--VERSION:1.0.2 LAST_MODIFIED:2025-06-01T12:00:00Z-->
//
// The wire format is fixed for interop with guide files already stored on
// the remote side. Raw marker text never leaves this package; callers work
// with the parsed Metadata type.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// markerRe matches the embedded version marker anywhere in the text. The
// version group is parsed strictly afterwards; the timestamp group is
// best-effort (an unparseable timestamp degrades to a zero time, it does
// not invalidate the marker).
var markerRe = regexp.MustCompile(`<!--VERSION:([^ >]+) LAST_MODIFIED:([^>]*)-->`)

// SemVer is a parsed semantic version triple.
type SemVer struct {
	Major int
	Minor int
	Patch int
}

// DefaultVersion is assumed for artifacts without a parseable marker.
var DefaultVersion = SemVer{Major: 1, Minor: 0, Patch: 0}

func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// BumpPatch returns the next patch version. Major and minor are preserved.
func (v SemVer) BumpPatch() SemVer {
	return SemVer{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// Compare returns -1, 0, or 1 ordering v against other.
func (v SemVer) Compare(other SemVer) int {
	return semver.Compare("v"+v.String(), "v"+other.String())
}

// ParseSemVer parses a dotted version triple. Returns false for anything
// that is not a strictly valid X.Y.Z version.
func ParseSemVer(s string) (SemVer, bool) {
	if !semver.IsValid("v"+s) || semver.Canonical("v"+s) != "v"+s {
		return SemVer{}, false
	}

	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return SemVer{}, false
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return SemVer{}, false
	}

	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return SemVer{}, false
	}

	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return SemVer{}, false
	}

	return SemVer{Major: major, Minor: minor, Patch: patch}, true
}

// Metadata is the parsed form of the embedded marker. A zero LastModified
// means the marker carried no reliable timestamp.
type Metadata struct {
	Version      SemVer
	LastModified time.Time
}

// HasTimestamp reports whether the metadata carries a usable timestamp.
func (m Metadata) HasTimestamp() bool {
	return !m.LastModified.IsZero()
}

// Marker renders the metadata back into its wire form.
func (m Metadata) Marker() string {
	ts := ""
	if m.HasTimestamp() {
		ts = m.LastModified.UTC().Format(time.RFC3339)
	}

	return fmt.Sprintf("<!--VERSION:%s LAST_MODIFIED:%s-->", m.Version, ts)
}

// Extract scans text for the version marker and returns the parsed
// metadata. The second return value is false when no marker is present or
// the embedded version is malformed. Extraction never fails with an error;
// absence is the failure mode.
func Extract(text string) (Metadata, bool) {
	match := markerRe.FindStringSubmatch(text)
	if match == nil {
		return Metadata{}, false
	}

	ver, ok := ParseSemVer(match[1])
	if !ok {
		return Metadata{}, false
	}

	meta := Metadata{Version: ver}

	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(match[2])); err == nil {
		meta.LastModified = ts
	}

	return meta, true
}

// Inject writes metadata into text, replacing an existing marker in place
// or prepending a new marker line when none exists. Extract on the result
// returns exactly the given metadata.
func Inject(text string, meta Metadata) string {
	marker := meta.Marker()

	if markerRe.MatchString(text) {
		return markerRe.ReplaceAllString(text, marker)
	}

	return marker + "\n" + text
}

// Strip removes the marker line from text so content comparison ignores
// version metadata. When the marker sits on its own line the whole line is
// removed, including its trailing newline.
func Strip(text string) string {
	loc := markerRe.FindStringIndex(text)
	if loc == nil {
		return text
	}

	start, end := loc[0], loc[1]

	// Expand to the full line when the marker is surrounded only by the
	// line's own boundaries.
	lineStart := strings.LastIndexByte(text[:start], '\n') + 1
	if strings.TrimSpace(text[lineStart:start]) == "" {
		start = lineStart
	}

	if nl := strings.IndexByte(text[end:], '\n'); nl >= 0 && strings.TrimSpace(text[end:end+nl]) == "" {
		end += nl + 1
	}

	return text[:start] + text[end:]
}

// NextVersion returns the version an upload should stamp onto the
// artifact: the embedded version with the patch component incremented.
// Absent or malformed markers fall back to bumping the 1.0.0 default, so
// the result is always strictly greater than whatever was readable. Parse
// failures never abort an upload.
func NextVersion(text string) SemVer {
	meta, ok := Extract(text)
	if !ok {
		return DefaultVersion.BumpPatch()
	}

	return meta.Version.BumpPatch()
}
