// Package errtax holds the sentinel errors shared across components.
// Exported as its own package because the taxonomy crosses package
// boundaries: policy, lifecycle, and history all raise from this shared
// set.
package errtax

import "errors"

var (
	ErrSecurityDeny         = errors.New("security deny")
	ErrPolicyMisconfig      = errors.New("policy misconfigured")
	ErrIsolateBuildError    = errors.New("isolate build error")
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")
	ErrStorageError         = errors.New("storage error")
	ErrTimeoutError         = errors.New("timeout")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrNotFound             = errors.New("not found")
)
