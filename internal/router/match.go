package router

import "strings"

// Table is the ordered route list evaluated on every request.
type Table struct {
	routes []Route
}

// NewTableFrom builds a Table from an explicit route slice, sorted so that
// the longest literal prefix wins when multiple patterns could match the
// same path.
func NewTableFrom(routes []Route) *Table {
	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	sortBySpecificity(sorted)
	return &Table{routes: sorted}
}

func sortBySpecificity(routes []Route) {
	// Insertion sort: small, fixed-size table (tens of routes), and it
	// keeps entries with equal specificity in their original order.
	for i := 1; i < len(routes); i++ {
		for j := i; j > 0 && specificity(routes[j]) > specificity(routes[j-1]); j-- {
			routes[j], routes[j-1] = routes[j-1], routes[j]
		}
	}
}

// specificity approximates "longest pattern wins" by literal prefix length
// up to the first path parameter.
func specificity(r Route) int {
	if idx := strings.IndexByte(r.PathPattern, '{'); idx >= 0 {
		return idx
	}
	return len(r.PathPattern) + 1 // exact literal patterns outrank a parameterized prefix of equal length
}

// Match finds the first route (in specificity order) whose method and path
// pattern match the request. It returns ok=false on no match (404).
func (t *Table) Match(method, path string) (Route, bool) {
	for _, r := range t.routes {
		if r.Method != method {
			continue
		}
		if params, ok := matchPattern(r.PathPattern, path); ok {
			_ = params
			return r, true
		}
	}
	return Route{}, false
}

// matchPattern matches a chi-style "{param}" pattern against path and
// returns the extracted parameter values.
func matchPattern(pattern, path string) (map[string]string, bool) {
	pSegs := splitPath(pattern)
	rSegs := splitPath(path)
	if len(pSegs) != len(rSegs) {
		return nil, false
	}
	params := map[string]string{}
	for i, seg := range pSegs {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			params[name] = rSegs[i]
			continue
		}
		if seg != rSegs[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return []string{}
	}
	return strings.Split(p, "/")
}

// PathParams re-extracts named parameters for a matched route, for
// handlers/proxy code that need {id}/{subject} values.
func PathParams(pattern, path string) map[string]string {
	params, _ := matchPattern(pattern, path)
	return params
}
