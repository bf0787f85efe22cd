// Package fixture discovers build-parity fixtures on disk.
//
// A discovery root holds one subdirectory per fixture. Each fixture is planned
// into an ordered list of build steps:
//
//   - A regular file named exactly "Dockerfile" (not a symlink) makes the
//     fixture single-step: one implicit step, no base override.
//   - Otherwise every entry whose name starts with "dockerfile" (compared
//     case-insensitively) is a chain step, ordered by a lexicographic sort of
//     the file names (Dockerfile.1, Dockerfile.2, ...).
//
// Fixture identifiers are derived from the fixture's path relative to the
// root by replacing every character outside [A-Za-z0-9_] with an underscore.
// That mapping is lossy ("a-b" and "a_b" both become "a_b"), so Discover
// rejects roots where two fixtures would share an identifier. The check is
// done on case-folded identifiers because artifact names are lower-cased.
package fixture
