package ledger

import (
	"git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.LedgerError("could not open artifact ledger").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.LedgerError("failed to initialize artifact ledger schema").Build()

	// ErrRecordFailed indicates inserting an entry failed.
	ErrRecordFailed = errors.LedgerError("failed to record artifact").Build()

	// ErrQueryFailed indicates querying entries failed.
	ErrQueryFailed = errors.LedgerError("failed to query artifact ledger").Build()
)

func wrap(sentinel *errors.ClassifiedError, cause error) error {
	return errors.WrapError(cause, sentinel.Category(), sentinel.Message()).Build()
}
