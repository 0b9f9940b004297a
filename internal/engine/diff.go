package engine

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/alexjbarnes/guidesync/internal/version"
)

const (
	// diffCleanupThreshold is the minimum number of diffs before running
	// the semantic cleanup pass. Below this count the diffs are simple
	// enough that cleanup would not improve the result.
	diffCleanupThreshold = 2

	// maxDiffPreviewBytes caps the rendered preview so a huge divergence
	// does not flood the prompt.
	maxDiffPreviewBytes = 2048
)

// diffPreview renders a compact content comparison for the interactive
// divergence prompt. Markers are stripped first so the preview shows
// only the real content difference. Lines present only locally are
// prefixed "+", lines present only remotely "-". This is display only;
// the engine never merges divergent content.
func diffPreview(localText, remoteText string) string {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(version.Strip(remoteText), version.Strip(localText), true)
	if len(diffs) > diffCleanupThreshold {
		diffs = dmp.DiffCleanupSemantic(diffs)
	}

	var b strings.Builder

	for _, d := range diffs {
		text := strings.TrimRight(d.Text, "\n")
		if text == "" {
			continue
		}

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			writePrefixed(&b, "+ ", text)
		case diffmatchpatch.DiffDelete:
			writePrefixed(&b, "- ", text)
		case diffmatchpatch.DiffEqual:
			// Unchanged regions collapse to a single elision marker.
			if strings.ContainsRune(text, '\n') {
				b.WriteString("  ...\n")
			}
		}

		if b.Len() > maxDiffPreviewBytes {
			b.WriteString("  (preview truncated)\n")
			break
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writePrefixed(b *strings.Builder, prefix, text string) {
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteByte('\n')
	}
}
