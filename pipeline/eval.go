package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ============================================================================
// PLAN EVALUATION — runs a stage plan over an in-memory document set
// ============================================================================
// Stage order is the plan order. Each stage consumes the previous stage's
// rows. Evaluation is pure: input documents are never mutated (addFields and
// project build fresh maps).
//
// Numeric policy:
//   - toDouble/toInt accept native numbers and numeric strings; anything
//     else fails the whole run (unparseable input is an error, not a zero).
//   - null flows through conversions and arithmetic as null.
//   - divide by zero yields 0, so the derived-metric invariant (CTR, CPM,
//     CPC, AOV) holds for every plan, trusted or model-generated.
// ============================================================================

// Run executes the plan against docs and returns the resulting rows.
func (p Pipeline) Run(docs []Doc) ([]Doc, error) {
	rows := docs
	for i, s := range p {
		var err error
		rows, err = s.run(rows)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return rows, nil
}

func (s Stage) run(rows []Doc) ([]Doc, error) {
	switch {
	case s.Match != nil:
		return runMatch(s.Match, rows)
	case s.AddFields != nil:
		return runAddFields(s.AddFields, rows)
	case s.Group != nil:
		return runGroup(s.Group, rows)
	case s.Project != nil:
		return runProject(s.Project, rows)
	case s.Sort != nil:
		return runSort(s.Sort, rows), nil
	case s.Limit != nil:
		if len(rows) > *s.Limit {
			rows = rows[:*s.Limit]
		}
		return rows, nil
	}
	return nil, fmt.Errorf("empty stage")
}

// ============================================================================
// MATCH
// ============================================================================

func runMatch(m MatchStage, rows []Doc) ([]Doc, error) {
	out := make([]Doc, 0, len(rows))
	for _, doc := range rows {
		if matchDoc(m, doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Matches reports whether a document satisfies every condition in the stage.
func (m MatchStage) Matches(doc Doc) bool {
	return matchDoc(m, doc)
}

func matchDoc(m MatchStage, doc Doc) bool {
	for field, cond := range m {
		val := doc[field]
		if cond.Has {
			if val == nil {
				return false
			}
			if cond.Gte != nil {
				c, ok := compareValues(val, cond.Gte)
				if !ok || c < 0 {
					return false
				}
			}
			if cond.Lte != nil {
				c, ok := compareValues(val, cond.Lte)
				if !ok || c > 0 {
					return false
				}
			}
			continue
		}
		if !looseEq(val, cond.Eq) {
			return false
		}
	}
	return true
}

// ============================================================================
// ADD FIELDS / PROJECT
// ============================================================================

func runAddFields(f AddFieldsStage, rows []Doc) ([]Doc, error) {
	out := make([]Doc, 0, len(rows))
	for _, doc := range rows {
		next := make(Doc, len(doc)+len(f))
		for k, v := range doc {
			next[k] = v
		}
		for name, expr := range f {
			val, err := evalExpr(expr, doc)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			next[name] = val
		}
		out = append(out, next)
	}
	return out, nil
}

func runProject(p ProjectStage, rows []Doc) ([]Doc, error) {
	out := make([]Doc, 0, len(rows))
	for _, doc := range rows {
		next := make(Doc, len(p)+1)
		if id, ok := doc["_id"]; ok {
			next["_id"] = id
		}
		for name, expr := range p {
			val, err := evalExpr(expr, doc)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			next[name] = val
		}
		out = append(out, next)
	}
	return out, nil
}

// ============================================================================
// GROUP
// ============================================================================

type groupState struct {
	id     any
	sums   map[string]float64
	firsts map[string]any
	counts map[string]int64
}

func runGroup(g *GroupStage, rows []Doc) ([]Doc, error) {
	states := make(map[string]*groupState)
	order := make([]string, 0)

	for _, doc := range rows {
		var id any
		if g.Key != nil {
			var err error
			id, err = evalExpr(*g.Key, doc)
			if err != nil {
				return nil, fmt.Errorf("group key: %w", err)
			}
		}
		key := canonicalKey(id)
		st, ok := states[key]
		if !ok {
			st = &groupState{
				id:     id,
				sums:   make(map[string]float64),
				firsts: make(map[string]any),
				counts: make(map[string]int64),
			}
			states[key] = st
			order = append(order, key)
		}
		for name, acc := range g.Fields {
			switch {
			case acc.Sum != nil:
				val, err := evalExpr(*acc.Sum, doc)
				if err != nil {
					return nil, fmt.Errorf("group field %q: %w", name, err)
				}
				if val == nil {
					continue
				}
				f, ok := toFloat(val)
				if !ok {
					return nil, fmt.Errorf("group field %q: cannot sum %T", name, val)
				}
				st.sums[name] += f
			case acc.First != nil:
				if _, seen := st.firsts[name]; !seen {
					val, err := evalExpr(*acc.First, doc)
					if err != nil {
						return nil, fmt.Errorf("group field %q: %w", name, err)
					}
					st.firsts[name] = val
				}
			case acc.Count:
				st.counts[name]++
			}
		}
	}

	out := make([]Doc, 0, len(order))
	for _, key := range order {
		st := states[key]
		row := Doc{"_id": st.id}
		for name, acc := range g.Fields {
			switch {
			case acc.Sum != nil:
				row[name] = st.sums[name]
			case acc.First != nil:
				row[name] = st.firsts[name]
			case acc.Count:
				row[name] = st.counts[name]
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func canonicalKey(v any) string {
	if v == nil {
		return "\x00null"
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// ============================================================================
// SORT
// ============================================================================

func runSort(s *SortStage, rows []Doc) []Doc {
	out := make([]Doc, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		c, ok := compareValues(out[i][s.By], out[j][s.By])
		if !ok {
			return false
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// ============================================================================
// EXPRESSION EVALUATION
// ============================================================================

func evalExpr(e Expr, doc Doc) (any, error) {
	switch {
	case e.HasField:
		return doc[e.Field], nil

	case e.HasLit:
		return e.Literal, nil

	case e.ToDouble != nil:
		v, err := evalExpr(*e.ToDouble, doc)
		if err != nil || v == nil {
			return nil, err
		}
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("toDouble: cannot convert %q", s)
			}
			return f, nil
		}
		return nil, fmt.Errorf("toDouble: cannot convert %T", v)

	case e.ToInt != nil:
		v, err := evalExpr(*e.ToInt, doc)
		if err != nil || v == nil {
			return nil, err
		}
		if f, ok := toFloat(v); ok {
			return int64(f), nil
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("toInt: cannot convert %q", s)
			}
			return int64(f), nil
		}
		return nil, fmt.Errorf("toInt: cannot convert %T", v)

	case e.IfNull != nil:
		var last any
		for _, op := range e.IfNull {
			v, err := evalExpr(op, doc)
			if err != nil {
				return nil, err
			}
			if v != nil {
				return v, nil
			}
			last = v
		}
		return last, nil

	case e.Cond != nil:
		cond, err := evalExpr(e.Cond.If, doc)
		if err != nil {
			return nil, err
		}
		if cond == true {
			return evalExpr(e.Cond.Then, doc)
		}
		return evalExpr(e.Cond.Else, doc)

	case e.Divide != nil:
		num, den, err := evalNumericPair(e.Divide, doc, "divide")
		if err != nil {
			return nil, err
		}
		if num == nil || den == nil {
			return nil, nil
		}
		if *den == 0 {
			return float64(0), nil
		}
		return *num / *den, nil

	case e.Multiply != nil:
		product := 1.0
		for _, op := range e.Multiply {
			v, err := evalExpr(op, doc)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, nil
			}
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("multiply: non-numeric operand %T", v)
			}
			product *= f
		}
		return product, nil

	case e.Eq != nil:
		a, err := evalExpr(e.Eq[0], doc)
		if err != nil {
			return nil, err
		}
		b, err := evalExpr(e.Eq[1], doc)
		if err != nil {
			return nil, err
		}
		return looseEq(a, b), nil

	case e.Gt != nil:
		a, err := evalExpr(e.Gt[0], doc)
		if err != nil {
			return nil, err
		}
		b, err := evalExpr(e.Gt[1], doc)
		if err != nil {
			return nil, err
		}
		c, ok := compareValues(a, b)
		return ok && c > 0, nil

	case e.IsNumber != nil:
		v, err := evalExpr(*e.IsNumber, doc)
		if err != nil {
			return nil, err
		}
		_, ok := toFloat(v)
		return ok, nil
	}
	return nil, fmt.Errorf("empty expression")
}

func evalNumericPair(ops []Expr, doc Doc, op string) (*float64, *float64, error) {
	vals := make([]*float64, 2)
	for i := 0; i < 2; i++ {
		v, err := evalExpr(ops[i], doc)
		if err != nil {
			return nil, nil, err
		}
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, nil, fmt.Errorf("%s: non-numeric operand %T", op, v)
		}
		vals[i] = &f
	}
	return vals[0], vals[1], nil
}

// ============================================================================
// VALUE HELPERS
// ============================================================================

// toFloat reports whether v is a native number, and its float64 value.
// Numeric strings are NOT numbers here; that is what toDouble is for.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// looseEq compares two values, treating all native numeric types as one.
func looseEq(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	if aok != bok {
		return false
	}
	return a == b
}

// compareValues orders two values: numbers numerically, strings lexically
// (zero-padded YYYY-MM-DD dates compare correctly this way). Nil sorts
// before everything. Incomparable pairs report ok=false.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}
