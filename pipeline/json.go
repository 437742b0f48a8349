package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ============================================================================
// PLAN JSON DIALECT — wire form for stages and expressions
// ============================================================================
// Stages are single-key objects:
//
//	{"match": {"platform": "google", "date": {"gte": "2025-01-01", "lte": "2025-01-31"}}}
//	{"addFields": {"spend": {"toDouble": {"ifNull": [{"field": "spend"}, "0"]}}}}
//	{"group": {"key": {"field": "campaign_id"}, "fields": {"total_clicks": {"sum": {"field": "clicks"}}}}}
//	{"project": {"ctr": {"multiply": [{"divide": [{"field": "total_clicks"}, {"field": "total_impressions"}]}, 100]}}}
//	{"sort": {"by": "total_spend", "dir": "desc"}}
//	{"limit": 20}
//
// Expressions are bare scalars (literals) or single-key objects. Decoding is
// the allow-list: any key outside the closed stage/expression vocabulary is
// rejected with its name, so an untrusted plan cannot carry write, delete,
// or merge semantics past this layer.
// ============================================================================

// Decode parses a JSON array into a Pipeline. The input must be a list;
// anything else is an error (the translator surfaces it with the raw text).
func Decode(data []byte) (Pipeline, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("plan is not a JSON array")
	}
	var p Pipeline
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// UnmarshalJSON decodes a single-key stage object.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("stage must be an object: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("stage must have exactly one key, got %d", len(raw))
	}
	for key, val := range raw {
		switch key {
		case "match":
			var m MatchStage
			if err := json.Unmarshal(val, &m); err != nil {
				return fmt.Errorf("match: %w", err)
			}
			s.Match = m
		case "addFields":
			var f AddFieldsStage
			if err := json.Unmarshal(val, &f); err != nil {
				return fmt.Errorf("addFields: %w", err)
			}
			s.AddFields = f
		case "group":
			var g GroupStage
			if err := json.Unmarshal(val, &g); err != nil {
				return fmt.Errorf("group: %w", err)
			}
			s.Group = &g
		case "project":
			var p ProjectStage
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("project: %w", err)
			}
			s.Project = p
		case "sort":
			var srt sortJSON
			if err := json.Unmarshal(val, &srt); err != nil {
				return fmt.Errorf("sort: %w", err)
			}
			s.Sort = &SortStage{By: srt.By, Desc: srt.Dir == "desc"}
		case "limit":
			var n int
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("limit: %w", err)
			}
			if n < 0 {
				return fmt.Errorf("limit must be non-negative, got %d", n)
			}
			s.Limit = &n
		default:
			return fmt.Errorf("unsupported stage %q", key)
		}
	}
	return nil
}

// MarshalJSON emits the single-key stage object.
func (s Stage) MarshalJSON() ([]byte, error) {
	switch {
	case s.Match != nil:
		return marshalKeyed("match", s.Match)
	case s.AddFields != nil:
		return marshalKeyed("addFields", s.AddFields)
	case s.Group != nil:
		return marshalKeyed("group", s.Group)
	case s.Project != nil:
		return marshalKeyed("project", s.Project)
	case s.Sort != nil:
		dir := "asc"
		if s.Sort.Desc {
			dir = "desc"
		}
		return marshalKeyed("sort", sortJSON{By: s.Sort.By, Dir: dir})
	case s.Limit != nil:
		return marshalKeyed("limit", *s.Limit)
	}
	return nil, fmt.Errorf("empty stage")
}

type sortJSON struct {
	By  string `json:"by"`
	Dir string `json:"dir"`
}

func marshalKeyed(key string, v any) ([]byte, error) {
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(inner)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ============================================================================
// CONDITIONS
// ============================================================================

// UnmarshalJSON accepts either a scalar (equality) or a {gte, lte} object.
func (c *Condition) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var r struct {
			Gte any `json:"gte"`
			Lte any `json:"lte"`
		}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("condition: %w", err)
		}
		if r.Gte == nil && r.Lte == nil {
			return fmt.Errorf("range condition needs gte and/or lte")
		}
		*c = Condition{Gte: r.Gte, Lte: r.Lte, Has: true}
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*c = Condition{Eq: v}
	return nil
}

// MarshalJSON emits the scalar or range form.
func (c Condition) MarshalJSON() ([]byte, error) {
	if !c.Has {
		return json.Marshal(c.Eq)
	}
	out := map[string]any{}
	if c.Gte != nil {
		out["gte"] = c.Gte
	}
	if c.Lte != nil {
		out["lte"] = c.Lte
	}
	return json.Marshal(out)
}

// ============================================================================
// GROUP + ACCUMULATORS
// ============================================================================

type groupJSON struct {
	Key    json.RawMessage            `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// UnmarshalJSON decodes {"key": expr|null, "fields": {...}}.
func (g *GroupStage) UnmarshalJSON(data []byte) error {
	var raw groupJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Key) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Key), []byte("null")) {
		var key Expr
		if err := json.Unmarshal(raw.Key, &key); err != nil {
			return fmt.Errorf("group key: %w", err)
		}
		g.Key = &key
	}
	g.Fields = make(map[string]Accumulator, len(raw.Fields))
	for name, val := range raw.Fields {
		var acc Accumulator
		if err := json.Unmarshal(val, &acc); err != nil {
			return fmt.Errorf("group field %q: %w", name, err)
		}
		g.Fields[name] = acc
	}
	return nil
}

// MarshalJSON emits {"key": ..., "fields": {...}}.
func (g GroupStage) MarshalJSON() ([]byte, error) {
	out := map[string]any{"key": nil, "fields": g.Fields}
	if g.Key != nil {
		out["key"] = *g.Key
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes {"sum": expr} | {"first": expr} | {"count": true}.
func (a *Accumulator) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("accumulator must be an object: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("accumulator must have exactly one key, got %d", len(raw))
	}
	for key, val := range raw {
		switch key {
		case "sum":
			var e Expr
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			a.Sum = &e
		case "first":
			var e Expr
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			a.First = &e
		case "count":
			a.Count = true
		default:
			return fmt.Errorf("unsupported accumulator %q", key)
		}
	}
	return nil
}

// MarshalJSON emits the single-key accumulator object.
func (a Accumulator) MarshalJSON() ([]byte, error) {
	switch {
	case a.Sum != nil:
		return marshalKeyed("sum", *a.Sum)
	case a.First != nil:
		return marshalKeyed("first", *a.First)
	case a.Count:
		return marshalKeyed("count", true)
	}
	return nil, fmt.Errorf("empty accumulator")
}

// ============================================================================
// EXPRESSIONS
// ============================================================================

// UnmarshalJSON decodes a bare scalar (literal) or a single-key operator.
func (e *Expr) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty expression")
	}
	if trimmed[0] != '{' {
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*e = Expr{Literal: v, HasLit: true}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("expression must have exactly one key, got %d", len(raw))
	}
	for key, val := range raw {
		switch key {
		case "field":
			var name string
			if err := json.Unmarshal(val, &name); err != nil {
				return fmt.Errorf("field: %w", err)
			}
			*e = Expr{Field: name, HasField: true}
		case "literal":
			var v any
			if err := json.Unmarshal(val, &v); err != nil {
				return err
			}
			*e = Expr{Literal: v, HasLit: true}
		case "toDouble":
			inner, err := unmarshalExpr(val)
			if err != nil {
				return fmt.Errorf("toDouble: %w", err)
			}
			*e = Expr{ToDouble: inner}
		case "toInt":
			inner, err := unmarshalExpr(val)
			if err != nil {
				return fmt.Errorf("toInt: %w", err)
			}
			*e = Expr{ToInt: inner}
		case "ifNull":
			list, err := unmarshalExprList(val)
			if err != nil {
				return fmt.Errorf("ifNull: %w", err)
			}
			*e = Expr{IfNull: list}
		case "cond":
			var c struct {
				If   Expr `json:"if"`
				Then Expr `json:"then"`
				Else Expr `json:"else"`
			}
			if err := json.Unmarshal(val, &c); err != nil {
				return fmt.Errorf("cond: %w", err)
			}
			*e = Expr{Cond: &IfExpr{If: c.If, Then: c.Then, Else: c.Else}}
		case "divide":
			list, err := unmarshalExprList(val)
			if err != nil {
				return fmt.Errorf("divide: %w", err)
			}
			if len(list) != 2 {
				return fmt.Errorf("divide needs exactly 2 operands, got %d", len(list))
			}
			*e = Expr{Divide: list}
		case "multiply":
			list, err := unmarshalExprList(val)
			if err != nil {
				return fmt.Errorf("multiply: %w", err)
			}
			*e = Expr{Multiply: list}
		case "eq":
			list, err := unmarshalExprList(val)
			if err != nil {
				return fmt.Errorf("eq: %w", err)
			}
			if len(list) != 2 {
				return fmt.Errorf("eq needs exactly 2 operands, got %d", len(list))
			}
			*e = Expr{Eq: list}
		case "gt":
			list, err := unmarshalExprList(val)
			if err != nil {
				return fmt.Errorf("gt: %w", err)
			}
			if len(list) != 2 {
				return fmt.Errorf("gt needs exactly 2 operands, got %d", len(list))
			}
			*e = Expr{Gt: list}
		case "isNumber":
			inner, err := unmarshalExpr(val)
			if err != nil {
				return fmt.Errorf("isNumber: %w", err)
			}
			*e = Expr{IsNumber: inner}
		default:
			return fmt.Errorf("unsupported expression %q", key)
		}
	}
	return nil
}

func unmarshalExpr(data []byte) (*Expr, error) {
	var e Expr
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func unmarshalExprList(data []byte) ([]Expr, error) {
	var list []Expr
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// MarshalJSON emits the matching single-key operator or bare literal.
func (e Expr) MarshalJSON() ([]byte, error) {
	switch {
	case e.HasField:
		return marshalKeyed("field", e.Field)
	case e.HasLit:
		return json.Marshal(e.Literal)
	case e.ToDouble != nil:
		return marshalKeyed("toDouble", *e.ToDouble)
	case e.ToInt != nil:
		return marshalKeyed("toInt", *e.ToInt)
	case e.IfNull != nil:
		return marshalKeyed("ifNull", e.IfNull)
	case e.Cond != nil:
		return marshalKeyed("cond", map[string]Expr{
			"if": e.Cond.If, "then": e.Cond.Then, "else": e.Cond.Else,
		})
	case e.Divide != nil:
		return marshalKeyed("divide", e.Divide)
	case e.Multiply != nil:
		return marshalKeyed("multiply", e.Multiply)
	case e.Eq != nil:
		return marshalKeyed("eq", e.Eq)
	case e.Gt != nil:
		return marshalKeyed("gt", e.Gt)
	case e.IsNumber != nil:
		return marshalKeyed("isNumber", *e.IsNumber)
	}
	return nil, fmt.Errorf("empty expression")
}
