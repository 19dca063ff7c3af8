package cerr

import (
	"errors"
	"fmt"

	"github.com/clawmart/clawmart/pkg/storage"
)

// StorageOp names the storage call that failed, for the wrapped message.
type StorageOp string

const (
	StorageRead   StorageOp = "read"
	StorageWrite  StorageOp = "write"
	StorageDelete StorageOp = "delete"
)

// WrapStorageError turns a backend error about a record of kind target into
// a coded error. A missing record is NotFound, a malformed key InvalidArgument;
// everything else is an Internal error whose detail stays in the log.
func WrapStorageError(op StorageOp, target string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound) && op != StorageWrite:
		return NewError(NotFound, target+" not found", err)
	case errors.Is(err, storage.ErrInvalidKey):
		return NewError(InvalidArgument, "invalid "+target+" id", err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to %s %s: %w", op, target, err))
}
