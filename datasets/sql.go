package datasets

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DefaultTable is the reference table read when a SQL source names none.
const DefaultTable = "cases"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadCasesSQL reads every row of table through the named database/sql
// driver ("sqlite" or "postgres"). Row order is whatever the backend returns
// for an unordered scan.
func LoadCasesSQL(ctx context.Context, driver, dsn, table string) ([]Case, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrDatasetLoad, table)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatasetLoad, driver, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrDatasetLoad, driver, err)
	}

	query := fmt.Sprintf(`
		SELECT
			trip_duration_days,
			miles_traveled,
			total_receipts_amount,
			expected_output
		FROM %s`, table)

	var rows []struct {
		Days     *float64 `db:"trip_duration_days"`
		Miles    *float64 `db:"miles_traveled"`
		Receipts *float64 `db:"total_receipts_amount"`
		Expected *float64 `db:"expected_output"`
	}
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrDatasetLoad, table, err)
	}

	cases := make([]Case, len(rows))
	for i, r := range rows {
		if r.Days == nil || r.Miles == nil || r.Receipts == nil || r.Expected == nil {
			return nil, fmt.Errorf("%w: %s row %d: NULL column", ErrDatasetLoad, table, i)
		}
		if *r.Days != float64(int(*r.Days)) {
			return nil, fmt.Errorf("%w: %s row %d: trip_duration_days must be an integer, got %v", ErrDatasetLoad, table, i, *r.Days)
		}
		c := Case{
			Input:    Input{Days: int(*r.Days), Miles: *r.Miles, Receipts: *r.Receipts},
			Expected: *r.Expected,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrDatasetLoad, table, i, err)
		}
		cases[i] = c
	}
	return cases, nil
}
