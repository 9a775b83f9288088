package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: optimistic-concurrency write lost (version mismatch)
// - ErrDuplicateCode: subject code uniqueness constraint violated
// - ErrCodeAssigned: identity already carries a subject code
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrDuplicateCode = errors.New("duplicate subject code")
	ErrCodeAssigned  = errors.New("subject code already assigned")
	ErrUnavailable   = errors.New("unavailable")
)
