// Package status exports errors produced by the core package.
package status

import (
	"github.com/nc6/cvmfs/pkg/errors"
)

var (
	// ErrUsage indicates a bad invocation. Nothing was attempted.
	ErrUsage = errors.New("usage error")

	// ErrInvalidName indicates a repository name which is not a fully qualified name
	ErrInvalidName = ErrUsage.Sub("invalid repository name")

	// ErrPrecondition indicates that an operation was refused before any mutation
	ErrPrecondition = errors.New("precondition failed")

	// ErrRepoNotFound indicates that the repository is not registered on this host
	ErrRepoNotFound = ErrPrecondition.Sub("repository not found")

	// ErrRepoExists indicates that the repository is already registered on this host
	ErrRepoExists = ErrPrecondition.Sub("repository already exists")

	// ErrWrongRole indicates an operation not supported by the role of the repository
	ErrWrongRole = ErrPrecondition.Sub("operation not supported for this repository type")

	// ErrAlreadyInTransaction indicates an open transaction
	ErrAlreadyInTransaction = ErrPrecondition.Sub("Already in a transaction")

	// ErrNotInTransaction indicates that no transaction is open
	ErrNotInTransaction = ErrPrecondition.Sub("Not in a transaction")

	// ErrResourceBusy indicates processes holding files open under the union mount
	ErrResourceBusy = ErrPrecondition.Sub("open file descriptors on the repository")

	// ErrLocked indicates another cvmfs-server process working on the repository
	ErrLocked = ErrPrecondition.Sub("another operation is running on the repository")

	// ErrConfirmationDeclined indicates that the operator declined a destructive operation.
	// This is not a failure.
	ErrConfirmationDeclined = errors.New("operation declined")

	// ErrConfirmationRequired indicates that a destructive operation needs a confirmation,
	// but nobody can answer
	ErrConfirmationRequired = ErrPrecondition.Sub("confirmation required: not a terminal, use -f to force")

	// ErrMount indicates a failed mount operation
	ErrMount = errors.New("mount operation failed")

	// ErrExternalCommand indicates a failed external command
	ErrExternalCommand = errors.New("external command failed")

	// ErrStorage indicates a failure of the upstream storage
	ErrStorage = errors.New("upstream storage failure")
)
