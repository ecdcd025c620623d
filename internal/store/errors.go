package store

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/roach88/seedgraph/internal/ir"
)

// MySQL error numbers reported as constraint violations.
var mysqlConstraintErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1364: true, // field has no default value
	1451: true, // cannot delete or update a parent row
	1452: true, // cannot add or update a child row
}

// classify turns driver constraint errors into CONSTRAINT_VIOLATION. The
// engine adds the node path. Other errors are returned unchanged.
func classify(entity string, err error) error {
	if msg, ok := constraintMessage(err); ok {
		return ir.NewConstraintViolationError("", entity, msg, err)
	}
	return err
}

func constraintMessage(err error) (string, bool) {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) && mattnErr.Code == sqlite3.ErrConstraint {
		return mattnErr.Error(), true
	}

	var modernErr *sqlite.Error
	if errors.As(err, &modernErr) && modernErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT {
		return modernErr.Error(), true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return pgErr.Message, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return pqErr.Message, true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && mysqlConstraintErrors[myErr.Number] {
		return myErr.Message, true
	}

	return "", false
}
