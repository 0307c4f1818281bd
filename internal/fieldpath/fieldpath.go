// internal/fieldpath/fieldpath.go
package fieldpath

import (
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/linewarden/internal/types"
)

/*
 * Dotted path resolution over decoded catalog data.
 *
 * Catalog records arrive as nested map[string]any / []any trees. Related
 * objects are addressed with dots ("Order.vlocity_cmt__Reason__c",
 * "Product2.Name"); numeric segments index into arrays; "*" matches the
 * first element or key that resolves (ANY semantics).
 *
 * Key functions:
 *   - Parse: splits a dotted path into segments
 *   - Resolve: walks data following the segments
 *   - Lookup: Parse + Resolve, also honoring flat dotted keys
 *
 * Flat keys: some sources flatten relationships into a single key
 * ("Product2.Name": "x"). Lookup tries the whole path as a key first.
 *
 * Object wildcards iterate keys in sorted order so results are stable.
 */

// Segment is one component of a dotted path.
type Segment struct {
	Key      string // object key (mutually exclusive with Index/Wildcard)
	Index    int    // array index
	IsIndex  bool   // disambiguates Index=0 from unset
	Wildcard bool   // "*"
}

// Result contains the resolved value and the concrete path taken.
type Result struct {
	Value        any
	ResolvedPath []Segment
	Found        bool
}

// Parse splits a dotted path into segments. Empty segments are dropped.
func Parse(path string) []Segment {
	parts := strings.Split(path, ".")
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == "":
			continue
		case p == "*":
			segs = append(segs, Segment{Wildcard: true})
		default:
			if n, err := strconv.Atoi(p); err == nil && n >= 0 {
				segs = append(segs, Segment{Index: n, IsIndex: true, Key: p})
				continue
			}
			segs = append(segs, Segment{Key: p})
		}
	}
	return segs
}

// String renders segments back to dotted form.
func String(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		switch {
		case s.Wildcard:
			parts[i] = "*"
		case s.IsIndex:
			parts[i] = strconv.Itoa(s.Index)
		default:
			parts[i] = s.Key
		}
	}
	return strings.Join(parts, ".")
}

// Lookup resolves a dotted path against data. A flat key equal to the whole
// path wins over nested traversal.
func Lookup(data map[string]any, path string) (any, bool) {
	if v, ok := data[path]; ok {
		return v, true
	}
	res, err := Resolve(Parse(path), data)
	if err != nil || !res.Found {
		return nil, false
	}
	return res.Value, true
}

// Resolve walks data following segments.
// Returns ErrPathTooDeep if the path exceeds MaxPathDepth and
// ErrFieldNotFound if the path does not exist in data.
func Resolve(path []Segment, data any) (Result, error) {
	if len(path) > types.MaxPathDepth {
		return Result{}, types.ErrPathTooDeep
	}
	return resolveRecursive(path, data, nil)
}

// resolveRecursive traverses nested structures, accumulating the concrete
// path with wildcards replaced by the key or index that matched.
func resolveRecursive(path []Segment, current any, resolvedSoFar []Segment) (Result, error) {
	if len(path) == 0 {
		return Result{Value: current, ResolvedPath: resolvedSoFar, Found: true}, nil
	}

	seg := path[0]
	remaining := path[1:]

	switch v := current.(type) {
	case map[string]any:
		if seg.Wildcard {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				resolved := append(resolvedSoFar, Segment{Key: key})
				result, err := resolveRecursive(remaining, v[key], resolved)
				if err == nil && result.Found {
					return result, nil
				}
			}
			return Result{}, types.ErrFieldNotFound
		}
		// numeric segments double as keys on objects
		val, ok := v[seg.Key]
		if !ok {
			return Result{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, val, append(resolvedSoFar, Segment{Key: seg.Key}))

	case []any:
		if seg.Wildcard {
			for i, elem := range v {
				resolved := append(resolvedSoFar, Segment{Index: i, IsIndex: true})
				result, err := resolveRecursive(remaining, elem, resolved)
				if err == nil && result.Found {
					return result, nil
				}
			}
			return Result{}, types.ErrFieldNotFound
		}
		if !seg.IsIndex || seg.Index >= len(v) {
			return Result{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, v[seg.Index], append(resolvedSoFar, Segment{Index: seg.Index, IsIndex: true}))

	default:
		// nil or scalar with path remaining
		return Result{}, types.ErrFieldNotFound
	}
}
