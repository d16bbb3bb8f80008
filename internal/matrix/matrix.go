// Package matrix defines the test matrix driven through the solver: test
// cases, their parameters, and the immutable registry that orders them.
package matrix

import (
	"fmt"
	"sort"
	"strings"
)

// Param is one solver parameter. It is either a scalar (one value) or a
// sweep (a list of values the solver receives as a repeated flag).
type Param struct {
	Name   string
	values []Value
	swept  bool
}

// Scalar creates a single-valued parameter.
func Scalar(name string, v Value) Param {
	return Param{Name: name, values: []Value{v}}
}

// Swept creates a list-valued parameter.
func Swept(name string, values ...Value) Param {
	cp := make([]Value, len(values))
	copy(cp, values)
	return Param{Name: name, values: cp, swept: true}
}

// IsSwept reports whether the parameter is a sweep.
func (p Param) IsSwept() bool { return p.swept }

// Value returns the scalar value. For a sweep it returns the first value.
func (p Param) Value() Value {
	if len(p.values) == 0 {
		return Value{}
	}
	return p.values[0]
}

// Values returns a copy of all values in list order.
func (p Param) Values() []Value {
	cp := make([]Value, len(p.values))
	copy(cp, p.values)
	return cp
}

// TestCase is one named configuration of solver parameters executed as a unit.
type TestCase struct {
	ID          int
	Name        string
	Description string
	// Purpose and Expected describe the hypothesis under test. They are
	// authored statically and rendered into the report as-is.
	Purpose  string
	Expected string
	Params   []Param
}

// Stage returns the console label for this case, e.g. "case 2 DOS_vs_lambda".
func (tc TestCase) Stage() string {
	return fmt.Sprintf("case %d %s", tc.ID, tc.Name)
}

// ScalarSignature serializes the scalar parameters as name_value pairs
// joined by "_", in parameter order. Sweeps are omitted.
func (tc TestCase) ScalarSignature() string {
	parts := make([]string, 0, len(tc.Params))
	for _, p := range tc.Params {
		if p.IsSwept() {
			continue
		}
		parts = append(parts, p.Name+"_"+p.Value().String())
	}
	return strings.Join(parts, "_")
}

func (tc TestCase) validate() error {
	if tc.Name == "" {
		return fmt.Errorf("test case %d: name is required", tc.ID)
	}
	if strings.ContainsAny(tc.Name, `/\`) {
		return fmt.Errorf("test case %d: name %q must not contain path separators", tc.ID, tc.Name)
	}
	seen := make(map[string]bool, len(tc.Params))
	for _, p := range tc.Params {
		if p.Name == "" {
			return fmt.Errorf("test case %d: parameter with empty name", tc.ID)
		}
		if seen[p.Name] {
			return fmt.Errorf("test case %d: parameter %q defined more than once", tc.ID, p.Name)
		}
		seen[p.Name] = true
		if p.IsSwept() && len(p.values) == 0 {
			return fmt.Errorf("test case %d: sweep %q has no values", tc.ID, p.Name)
		}
	}
	return nil
}

// Registry is an immutable, id-ordered collection of test cases.
type Registry struct {
	cases []TestCase
	byID  map[int]int
}

// NewRegistry builds a registry from cases. Cases are ordered by ascending id;
// duplicate ids and duplicate parameter names are rejected. Parameter values
// are not range-checked; the solver is the authority on its own domain.
func NewRegistry(cases ...TestCase) (*Registry, error) {
	sorted := make([]TestCase, len(cases))
	copy(sorted, cases)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int]int, len(sorted))
	for i, tc := range sorted {
		if _, dup := byID[tc.ID]; dup {
			return nil, fmt.Errorf("duplicate test case id %d", tc.ID)
		}
		if err := tc.validate(); err != nil {
			return nil, err
		}
		tc.Params = copyParams(tc.Params)
		sorted[i] = tc
		byID[tc.ID] = i
	}

	return &Registry{cases: sorted, byID: byID}, nil
}

// All returns the test cases in execution order.
func (r *Registry) All() []TestCase {
	result := make([]TestCase, len(r.cases))
	for i, tc := range r.cases {
		tc.Params = copyParams(tc.Params)
		result[i] = tc
	}
	return result
}

// Len returns the number of test cases.
func (r *Registry) Len() int { return len(r.cases) }

// Get returns the test case with the given id.
func (r *Registry) Get(id int) (TestCase, bool) {
	i, ok := r.byID[id]
	if !ok {
		return TestCase{}, false
	}
	tc := r.cases[i]
	tc.Params = copyParams(tc.Params)
	return tc, true
}

// Select returns a registry restricted to the given ids.
// An empty id list selects everything.
func (r *Registry) Select(ids []int) (*Registry, error) {
	if len(ids) == 0 {
		return r, nil
	}
	var selected []TestCase
	for _, id := range ids {
		tc, ok := r.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown test case id %d (available: %s)", id, r.idList())
		}
		selected = append(selected, tc)
	}
	return NewRegistry(selected...)
}

func (r *Registry) idList() string {
	ids := make([]string, len(r.cases))
	for i, tc := range r.cases {
		ids[i] = fmt.Sprint(tc.ID)
	}
	return strings.Join(ids, ", ")
}

func copyParams(params []Param) []Param {
	if params == nil {
		return nil
	}
	result := make([]Param, len(params))
	for i, p := range params {
		if p.swept {
			result[i] = Swept(p.Name, p.values...)
		} else {
			result[i] = p
		}
	}
	return result
}
