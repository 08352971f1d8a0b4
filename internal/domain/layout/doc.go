// Package layout persists the widget arrangement across restarts.
//
// Snapshots are stored as a versioned JSON envelope on disk. Writes are
// atomic: the snapshot is written to a temp file, fsynced, then renamed over
// the previous file, so a crash mid-save never truncates the layout. Reads
// fail closed: a file written by a newer build is refused untouched with
// ErrUnsupportedVersion, while an unparseable file is quarantined as .bak and
// reported with ErrCorruptSnapshot so the caller can fall back to an empty
// layout without losing the evidence.
//
// Older snapshot versions are migrated in ordered steps on load. Each step
// backs the original file up as <file>.v<N>.bak before rewriting, so a failed
// migration leaves both the input and the backup behind.
package layout
