// Package layout implements the pure layout engines that map raw entity and
// relationship data to positioned nodes.
//
// Two families exist behind one contract:
//
//   - Containment (KindContainment): builds the parent/child tree from
//     containment-tagged relationships, grids children inside their parent,
//     grows containers bottom-up to the minimum bounding box of their
//     children plus a fixed margin, and packs root boxes left-to-right.
//
//   - Flat (KindFlat, KindForce): ignores hierarchy. The grid variant is
//     deterministic and is the default; the force variant refines the grid
//     with damped attract/repulse relaxation over a fixed iteration budget.
//
// Both engines are pure functions: given the same entities and
// relationships they produce identical positions. Snapshot load depends on
// this purity - "no layout ran after load" is only provable because a rerun
// would be byte-identical anyway.
//
// Sibling ordering is by sort key with input order as the stable tie-break,
// so golden-position tests are reproducible.
//
// Selection is a closed tagged set ([Kind]); [ParseKind] rejects unknown
// tags instead of silently falling back.
package layout
