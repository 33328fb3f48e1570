package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/notapoint/backend/internal/calculator"
	"github.com/notapoint/backend/internal/catalog"
	"github.com/notapoint/backend/internal/storage"
)

// ErrorKindHeader carries a machine-readable failure kind next to the code.
const ErrorKindHeader = "Np-Error-Kind"

var errPermissionDenied = errors.New("not the owner of this list")

// toConnectError maps domain errors to Connect codes. Anything unrecognized
// is logged and reported as internal.
func toConnectError(ctx context.Context, logger *slog.Logger, op string, err error) error {
	var (
		insufficient *calculator.InsufficientDataError
		invalid      *calculator.InvalidConstraintError
		cerr         *connect.Error
	)
	switch {
	case errors.As(err, &cerr):
		return cerr
	case errors.As(err, &insufficient):
		e := connect.NewError(connect.CodeFailedPrecondition, err)
		e.Meta().Set(ErrorKindHeader, "insufficient_data")
		return e
	case errors.As(err, &invalid):
		e := connect.NewError(connect.CodeInvalidArgument, err)
		e.Meta().Set(ErrorKindHeader, "invalid_constraint:"+invalid.Field)
		return e
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, catalog.ErrUnknownProduct),
		errors.Is(err, catalog.ErrUnknownStore):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, catalog.ErrDuplicate), errors.Is(err, storage.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, catalog.ErrInvalidObservation),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, catalog.ErrInvalidStore):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, errPermissionDenied):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	logger.ErrorContext(ctx, op+" failed", "error", err)
	return connect.NewError(connect.CodeInternal, fmt.Errorf("%s failed", op))
}

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}
