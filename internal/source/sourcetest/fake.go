// Package sourcetest provides an in-memory RecordSource for tests.
package sourcetest

import (
	"context"
	"strings"
	"sync"

	"github.com/solatis/linewarden/internal/source"
)

// Route answers queries containing Match.
type Route struct {
	Match   string
	Records []source.Record
	Err     error
}

// Fake is a RecordSource answering from routes. The first route whose Match
// is a substring of the query wins; unmatched queries return no records.
type Fake struct {
	mu      sync.Mutex
	routes  []Route
	queries []string
}

// New creates a Fake.
func New(routes ...Route) *Fake {
	return &Fake{routes: routes}
}

// Add appends a route.
func (f *Fake) Add(match string, records ...source.Record) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, Route{Match: match, Records: records})
	return f
}

// Fail appends a route that returns err.
func (f *Fake) Fail(match string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, Route{Match: match, Err: err})
	return f
}

// ExecuteQuery implements source.RecordSource.
func (f *Fake) ExecuteQuery(ctx context.Context, q string) (source.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	if err := ctx.Err(); err != nil {
		return source.Result{}, err
	}
	for _, r := range f.routes {
		if strings.Contains(q, r.Match) {
			if r.Err != nil {
				return source.Result{}, r.Err
			}
			return source.Result{TotalSize: len(r.Records), Records: r.Records}, nil
		}
	}
	return source.Result{}, nil
}

// Queries returns the queries seen so far.
func (f *Fake) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}
