package engine

import (
	"github.com/alexjbarnes/guidesync/internal/fingerprint"
	"github.com/alexjbarnes/guidesync/internal/version"
)

// Classification is the relationship between the local and remote copies
// of the artifact, computed fresh on every reconciliation pass and never
// persisted.
type Classification int

const (
	// BothAbsent means neither replica holds the artifact.
	BothAbsent Classification = iota

	// RemoteOnly means only the remote store holds the artifact.
	RemoteOnly

	// LocalOnly means only the local filesystem holds the artifact.
	LocalOnly

	// Identical means both copies exist and their fingerprints match.
	// Version metadata may still differ; content equality wins.
	Identical

	// DivergedLocalNewer means contents differ and the local embedded
	// timestamp is strictly newer.
	DivergedLocalNewer

	// DivergedRemoteNewer means contents differ and the remote embedded
	// timestamp is strictly newer.
	DivergedRemoteNewer

	// DivergedAmbiguous means contents differ but no direction can be
	// established: a timestamp is missing, unparseable, or the two are
	// equal. Autonomous passes never guess a direction here.
	DivergedAmbiguous
)

func (c Classification) String() string {
	switch c {
	case BothAbsent:
		return "BothAbsent"
	case RemoteOnly:
		return "RemoteOnly"
	case LocalOnly:
		return "LocalOnly"
	case Identical:
		return "Identical"
	case DivergedLocalNewer:
		return "Diverged/LocalNewer"
	case DivergedRemoteNewer:
		return "Diverged/RemoteNewer"
	case DivergedAmbiguous:
		return "Diverged/Ambiguous"
	default:
		return "Unknown"
	}
}

// Diverged reports whether both copies exist with differing content.
func (c Classification) Diverged() bool {
	return c == DivergedLocalNewer || c == DivergedRemoteNewer || c == DivergedAmbiguous
}

// Snapshot is one replica's observed state at the start of a pass: either
// absent, or present with its full text. Snapshots are borrowed for the
// duration of one pass and never cached across passes.
type Snapshot struct {
	Present bool
	Text    string
}

// Present returns a snapshot holding text.
func Present(text string) Snapshot {
	return Snapshot{Present: true, Text: text}
}

// Absent returns the empty snapshot.
func Absent() Snapshot {
	return Snapshot{}
}

// Classify computes the relationship between the two replicas. It is a
// pure, total function over every combination of presence, fingerprint
// equality, and timestamp comparability:
//
//  1. Neither present: BothAbsent.
//  2. Exactly one present: RemoteOnly or LocalOnly.
//  3. Both present with equal fingerprints: Identical, regardless of any
//     version metadata difference.
//  4. Otherwise the embedded timestamps decide the direction; if either
//     is missing or unparseable, or they are equal, the divergence is
//     Ambiguous.
func Classify(local, remote Snapshot) Classification {
	switch {
	case !local.Present && !remote.Present:
		return BothAbsent
	case !local.Present:
		return RemoteOnly
	case !remote.Present:
		return LocalOnly
	}

	if fingerprint.Equal(local.Text, remote.Text) {
		return Identical
	}

	localMeta, localOK := version.Extract(local.Text)
	remoteMeta, remoteOK := version.Extract(remote.Text)

	if !localOK || !remoteOK || !localMeta.HasTimestamp() || !remoteMeta.HasTimestamp() {
		return DivergedAmbiguous
	}

	switch {
	case localMeta.LastModified.After(remoteMeta.LastModified):
		return DivergedLocalNewer
	case remoteMeta.LastModified.After(localMeta.LastModified):
		return DivergedRemoteNewer
	default:
		// Equal timestamps with different content: no direction can be
		// trusted.
		return DivergedAmbiguous
	}
}
