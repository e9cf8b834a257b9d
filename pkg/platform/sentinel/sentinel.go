package sentinel

import "errors"

// Sentinel errors for infrastructure and isolation facts. Stores and guards
// return these (optionally wrapped) so services can translate them into
// transport-level responses.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: record absent, or its training-mode partition does not match
//     the caller's. The two cases are deliberately indistinguishable so that a
//     probe cannot learn whether shadow data exists.
//   - ErrCrossTenant: the record belongs to another organization. Always audited
//     before being returned.
//   - ErrConflict: a uniqueness constraint rejected the write.
//   - ErrUnavailable: backing service temporarily unreachable.
var (
	ErrNotFound    = errors.New("not found")
	ErrCrossTenant = errors.New("cross-tenant access forbidden")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
