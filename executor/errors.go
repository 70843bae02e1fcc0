package executor

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"shelfdb/storage"
)

// QueryError is an error carrying a PostgreSQL SQLSTATE code. The server
// sends Code, Message and Detail to the client in an ErrorResponse.
type QueryError struct {
	Code    string
	Message string
	Detail  string
}

func (e *QueryError) Error() string {
	return e.Message
}

// SQLSTATE codes used by the executor.
const (
	codeSyntaxError       = "42601"
	codeUndefinedColumn   = "42703"
	codeUndefinedObject   = "42704"
	codeDuplicateColumn   = "42701"
	codeDatatypeMismatch  = "42804"
	codeNoDataFound       = "P0002"
	codeUniqueViolation   = "23505"
	codeInvalidParameter  = "22023"
	codeObjectNotInState  = "55000"
	codeObjectInUse       = "55006"
	codeInternalError     = "XX000"
	codeFeatureNotSupport = "0A000"
)

// WrapError converts a storage error into a QueryError with the matching
// SQLSTATE. Errors that are already QueryErrors pass through unchanged.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var qe *QueryError
	if errors.As(err, &qe) {
		return qe
	}

	var (
		notFound    *storage.NotFoundError
		already     *storage.AlreadyBorrowedError
		notBorrowed *storage.NotBorrowedError
		unavailable *storage.UnavailableError
		duplicate   *storage.DuplicateKeyError
		invalid     *storage.InvalidRecordError
	)
	switch {
	case errors.As(err, &notFound):
		return &QueryError{Code: codeNoDataFound, Message: notFound.Error()}
	case errors.As(err, &already):
		return &QueryError{
			Code:    codeUniqueViolation,
			Message: already.Error(),
			Detail:  fmt.Sprintf("Key (user_id, book_id)=(%d, %d) already exists.", already.UserID, already.BookID),
		}
	case errors.As(err, &notBorrowed):
		return &QueryError{Code: codeObjectNotInState, Message: notBorrowed.Error()}
	case errors.As(err, &unavailable):
		return &QueryError{
			Code:    codeObjectInUse,
			Message: unavailable.Error(),
			Detail:  "All copies of this title are checked out.",
		}
	case errors.As(err, &duplicate):
		return &QueryError{
			Code:    codeUniqueViolation,
			Message: duplicate.Error(),
			Detail:  fmt.Sprintf("Key (%s)=(%v) already exists.", duplicate.Field, duplicate.Value),
		}
	case errors.As(err, &invalid):
		return &QueryError{Code: codeInvalidParameter, Message: invalid.Error()}
	default:
		return &QueryError{Code: codeInternalError, Message: err.Error()}
	}
}
