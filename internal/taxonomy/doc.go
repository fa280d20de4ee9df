// Package taxonomy turns a flat taxonomy source (tab-separated rows with ids,
// parent references and tier or label columns) into a code-addressed forest.
//
// Two build variants produce the same Entry shape:
//
//   - ranked (primary): siblings are sorted case-insensitively by label and
//     coded by 1-based rank, ROOT{n} for roots and {parent}-{n} below them.
//     Byte-identical input always yields identical codes.
//   - explicit: trusts a code column already present in the source.
//
// A Service owns the built indexes, one per source location. Reload builds
// a new index off to the side and publishes it with an atomic pointer swap,
// so readers never observe a partially built index. When a rebuild fails the
// previous index stays in place.
package taxonomy
