package pipeline

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// Unwind emits one document per element of the array at Path. Documents
// whose array is missing, null or empty produce no output.
type Unwind struct {
	Path string
}

func (u Unwind) Render() bson.D { return bson.D{{Key: "$unwind", Value: "$" + u.Path}} }

func (u Unwind) Validate() error { return validPath(u.Path) }

func (u Unwind) apply(docs []bson.M) ([]bson.M, error) {
	out := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		v, ok := lookup(d, u.Path)
		if !ok || v == nil {
			continue
		}
		elems, isArr := asArray(v)
		if !isArr {
			// a scalar behaves as a one element array
			out = append(out, d)
			continue
		}
		for _, e := range elems {
			out = append(out, setPath(d, u.Path, e))
		}
	}
	return out, nil
}

// AccOp names a group accumulator.
type AccOp string

const (
	AccFirst AccOp = "$first"
	AccAvg   AccOp = "$avg"
	AccSum   AccOp = "$sum"
)

// Accumulator computes one output field of a Group. Exactly one of Path or
// Const is used: Path reads a field, Const sums a literal (Count).
type Accumulator struct {
	Name  string
	Op    AccOp
	Path  string
	Const any
}

// First takes the value of path from the first document of each group, in
// input order.
func First(name, path string) Accumulator { return Accumulator{Name: name, Op: AccFirst, Path: path} }

// Avg is the arithmetic mean of the numeric values of path.
func Avg(name, path string) Accumulator { return Accumulator{Name: name, Op: AccAvg, Path: path} }

// Count counts the documents of each group ({$sum: 1}).
func Count(name string) Accumulator { return Accumulator{Name: name, Op: AccSum, Const: int32(1)} }

func (a Accumulator) expr() any {
	if a.Path != "" {
		return "$" + a.Path
	}
	return a.Const
}

func (a Accumulator) validate() error {
	if a.Name == "" || a.Name == "_id" {
		return fmt.Errorf("accumulator needs an output name other than _id")
	}
	switch a.Op {
	case AccFirst, AccAvg:
		return validPath(a.Path)
	case AccSum:
		if a.Path != "" {
			return validPath(a.Path)
		}
		if _, ok := toFloat(a.Const); !ok {
			return fmt.Errorf("$sum constant must be numeric, got %T", a.Const)
		}
		return nil
	}
	return fmt.Errorf("unknown accumulator %q", a.Op)
}

// Group collects documents by the value at Key into one output document per
// distinct key, with the key in _id.
type Group struct {
	Key    string
	Fields []Accumulator
}

func (g Group) Render() bson.D {
	spec := bson.D{{Key: "_id", Value: "$" + g.Key}}
	for _, a := range g.Fields {
		spec = append(spec, bson.E{Key: a.Name, Value: bson.D{{Key: string(a.Op), Value: a.expr()}}})
	}
	return bson.D{{Key: "$group", Value: spec}}
}

func (g Group) Validate() error {
	if err := validPath(g.Key); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, a := range g.Fields {
		if err := a.validate(); err != nil {
			return err
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate group field %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

type groupState struct {
	id     any
	first  map[string]any
	sums   map[string]float64
	counts map[string]int
	ints   map[string]bool
}

func (g Group) apply(docs []bson.M) ([]bson.M, error) {
	order := []string{}
	groups := map[string]*groupState{}
	for _, d := range docs {
		id, _ := lookup(d, g.Key)
		k := groupKey(id)
		st, ok := groups[k]
		if !ok {
			st = &groupState{id: id, first: map[string]any{}, sums: map[string]float64{}, counts: map[string]int{}, ints: map[string]bool{}}
			for _, a := range g.Fields {
				st.ints[a.Name] = true
			}
			groups[k] = st
			order = append(order, k)
		}
		for _, a := range g.Fields {
			switch a.Op {
			case AccFirst:
				if _, done := st.first[a.Name]; !done {
					v, _ := lookup(d, a.Path)
					st.first[a.Name] = v
				}
			case AccAvg, AccSum:
				var v any = a.Const
				if a.Path != "" {
					v, _ = lookup(d, a.Path)
				}
				f, isNum := toFloat(v)
				if !isNum {
					continue
				}
				switch v.(type) {
				case float64, float32:
					st.ints[a.Name] = false
				}
				st.sums[a.Name] += f
				st.counts[a.Name]++
			}
		}
	}

	out := make([]bson.M, 0, len(order))
	for _, k := range order {
		st := groups[k]
		row := bson.M{"_id": st.id}
		for _, a := range g.Fields {
			switch a.Op {
			case AccFirst:
				row[a.Name] = st.first[a.Name]
			case AccAvg:
				if n := st.counts[a.Name]; n > 0 {
					row[a.Name] = st.sums[a.Name] / float64(n)
				} else {
					row[a.Name] = nil
				}
			case AccSum:
				sum := st.sums[a.Name]
				if st.ints[a.Name] {
					row[a.Name] = int64(sum)
				} else {
					row[a.Name] = sum
				}
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// CmpOp names a comparison used by Match.
type CmpOp string

const (
	CmpEq  CmpOp = "$eq"
	CmpLt  CmpOp = "$lt"
	CmpGte CmpOp = "$gte"
)

// Condition compares the value at Field against Value.
type Condition struct {
	Field string
	Op    CmpOp
	Value any
}

func Eq(field string, v any) Condition  { return Condition{Field: field, Op: CmpEq, Value: v} }
func Lt(field string, v any) Condition  { return Condition{Field: field, Op: CmpLt, Value: v} }
func Gte(field string, v any) Condition { return Condition{Field: field, Op: CmpGte, Value: v} }

func (c Condition) matches(doc bson.M) bool {
	v, ok := lookup(doc, c.Field)
	if !ok {
		v = nil
	}
	cmp, sameType := compare(v, c.Value)
	switch c.Op {
	case CmpEq:
		return sameType && cmp == 0
	case CmpLt:
		return ok && sameType && cmp < 0
	case CmpGte:
		return ok && sameType && cmp >= 0
	}
	return false
}

// Match keeps documents satisfying every condition.
type Match struct {
	Conditions []Condition
}

// Where builds a Match from conditions joined with AND.
func Where(conds ...Condition) Match { return Match{Conditions: conds} }

// Filter renders the conditions as a query filter, usable with Find as well
// as inside a $match stage. Conditions on the same field share one operator
// document.
func (m Match) Filter() bson.D {
	fields := []string{}
	byField := map[string][]Condition{}
	for _, c := range m.Conditions {
		if _, ok := byField[c.Field]; !ok {
			fields = append(fields, c.Field)
		}
		byField[c.Field] = append(byField[c.Field], c)
	}
	filter := bson.D{}
	for _, f := range fields {
		conds := byField[f]
		if len(conds) == 1 && conds[0].Op == CmpEq {
			filter = append(filter, bson.E{Key: f, Value: conds[0].Value})
			continue
		}
		ops := bson.D{}
		for _, c := range conds {
			ops = append(ops, bson.E{Key: string(c.Op), Value: c.Value})
		}
		filter = append(filter, bson.E{Key: f, Value: ops})
	}
	return filter
}

func (m Match) Render() bson.D { return bson.D{{Key: "$match", Value: m.Filter()}} }

func (m Match) Validate() error {
	for _, c := range m.Conditions {
		if err := validPath(c.Field); err != nil {
			return err
		}
		switch c.Op {
		case CmpEq, CmpLt, CmpGte:
		default:
			return fmt.Errorf("unknown comparison %q", c.Op)
		}
	}
	return nil
}

func (m Match) apply(docs []bson.M) ([]bson.M, error) {
	out := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		if m.Matches(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Matches reports whether doc satisfies every condition.
func (m Match) Matches(doc bson.M) bool {
	for _, c := range m.Conditions {
		if !c.matches(doc) {
			return false
		}
	}
	return true
}

// SortKey orders by Field, descending when Desc is set.
type SortKey struct {
	Field string
	Desc  bool
}

func Asc(field string) SortKey  { return SortKey{Field: field} }
func Desc(field string) SortKey { return SortKey{Field: field, Desc: true} }

// Sort orders documents by its keys in turn.
type Sort struct {
	Keys []SortKey
}

// By builds a Sort stage.
func By(keys ...SortKey) Sort { return Sort{Keys: keys} }

func (s Sort) Render() bson.D {
	spec := bson.D{}
	for _, k := range s.Keys {
		dir := 1
		if k.Desc {
			dir = -1
		}
		spec = append(spec, bson.E{Key: k.Field, Value: dir})
	}
	return bson.D{{Key: "$sort", Value: spec}}
}

func (s Sort) Validate() error {
	if len(s.Keys) == 0 {
		return fmt.Errorf("sort needs at least one key")
	}
	for _, k := range s.Keys {
		if err := validPath(k.Field); err != nil {
			return err
		}
	}
	return nil
}

func (s Sort) apply(docs []bson.M) ([]bson.M, error) {
	out := make([]bson.M, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range s.Keys {
			a, _ := lookup(out[i], k.Field)
			b, _ := lookup(out[j], k.Field)
			c, _ := compare(a, b)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out, nil
}

// Project keeps only the listed top-level fields, optionally dropping _id.
type Project struct {
	Include   []string
	ExcludeID bool
}

// Spec renders the projection document for Find options.
func (p Project) Spec() bson.D {
	spec := bson.D{}
	if p.ExcludeID {
		spec = append(spec, bson.E{Key: "_id", Value: 0})
	}
	for _, f := range p.Include {
		spec = append(spec, bson.E{Key: f, Value: 1})
	}
	return spec
}

func (p Project) Render() bson.D { return bson.D{{Key: "$project", Value: p.Spec()}} }

func (p Project) Validate() error {
	if len(p.Include) == 0 {
		return fmt.Errorf("projection includes no fields")
	}
	for _, f := range p.Include {
		if err := validPath(f); err != nil {
			return err
		}
	}
	return nil
}

func (p Project) apply(docs []bson.M) ([]bson.M, error) {
	out := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		out = append(out, p.Apply(d))
	}
	return out, nil
}

// Apply projects a single document.
func (p Project) Apply(doc bson.M) bson.M {
	row := bson.M{}
	if id, ok := doc["_id"]; ok && !p.ExcludeID {
		row["_id"] = id
	}
	for _, f := range p.Include {
		if v, ok := lookup(doc, f); ok {
			row = setPath(row, f, v)
		}
	}
	return row
}
