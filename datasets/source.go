package datasets

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultSources are the locations searched for the reference dataset when
// none is named, relative to the working directory.
var DefaultSources = []string{
	"public_cases.json",
	"data/public_cases.json",
	"../public_cases.json",
	"../../public_cases.json",
}

// Open loads the reference cases named by source. The kind of source is
// chosen by URL scheme (sqlite://, postgres://, postgresql://) or, for plain
// paths, by file extension (.json, .csv).
func Open(ctx context.Context, source string) (*CasesDataset, error) {
	cases, err := load(ctx, source)
	if err != nil {
		return nil, err
	}
	return NewCasesDataset(source, cases), nil
}

func load(ctx context.Context, source string) ([]Case, error) {
	switch {
	case strings.HasPrefix(source, "sqlite://"):
		path, table, err := splitTable(strings.TrimPrefix(source, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return LoadCasesSQL(ctx, "sqlite", path, table)
	case strings.HasPrefix(source, "postgres://"), strings.HasPrefix(source, "postgresql://"):
		u, err := url.Parse(source)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrDatasetLoad, source, err)
		}
		q := u.Query()
		table := q.Get("table")
		q.Del("table")
		u.RawQuery = q.Encode()
		return LoadCasesSQL(ctx, "postgres", u.String(), table)
	}

	switch strings.ToLower(filepath.Ext(source)) {
	case ".json":
		return LoadCasesJSON(source)
	case ".csv":
		return LoadCasesCSV(source)
	default:
		return nil, fmt.Errorf("%w: unsupported reference source: %s", ErrDatasetLoad, source)
	}
}

// splitTable separates an optional "?table=name" suffix from a sqlite path.
func splitTable(s string) (path, table string, err error) {
	path, rawQuery, _ := strings.Cut(s, "?")
	if path == "" {
		return "", "", fmt.Errorf("%w: sqlite path is required", ErrDatasetLoad)
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", "", fmt.Errorf("%w: parse sqlite query %q: %v", ErrDatasetLoad, rawQuery, err)
	}
	return path, q.Get("table"), nil
}
