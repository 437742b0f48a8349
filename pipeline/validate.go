package pipeline

import "fmt"

// ============================================================================
// PLAN VALIDATION — structural checks before execution
// ============================================================================
// Decoding already rejects unknown stage and operator names, but plans can
// also be built programmatically. Validate walks the whole plan and checks
// that every stage and expression is a well-formed member of the closed
// vocabulary. Model-generated plans go through Decode AND Validate before
// the executor sees them.
// ============================================================================

// Validate checks the structural well-formedness of a plan.
// An empty plan is valid: it matches everything and returns it unchanged,
// which is how out-of-domain questions resolve to zero-result responses.
func (p Pipeline) Validate() error {
	for i, s := range p {
		if err := s.validate(); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return nil
}

func (s Stage) validate() error {
	set := 0
	if s.Match != nil {
		set++
		for field, c := range s.Match {
			if field == "" {
				return fmt.Errorf("match: empty field name")
			}
			if c.Has && c.Gte == nil && c.Lte == nil {
				return fmt.Errorf("match %q: range without bounds", field)
			}
		}
	}
	if s.AddFields != nil {
		set++
		for name, e := range s.AddFields {
			if name == "" {
				return fmt.Errorf("addFields: empty field name")
			}
			if err := e.validate(); err != nil {
				return fmt.Errorf("addFields %q: %w", name, err)
			}
		}
	}
	if s.Group != nil {
		set++
		if s.Group.Key != nil {
			if err := s.Group.Key.validate(); err != nil {
				return fmt.Errorf("group key: %w", err)
			}
		}
		for name, acc := range s.Group.Fields {
			if name == "" {
				return fmt.Errorf("group: empty field name")
			}
			if err := acc.validate(); err != nil {
				return fmt.Errorf("group field %q: %w", name, err)
			}
		}
	}
	if s.Project != nil {
		set++
		for name, e := range s.Project {
			if name == "" {
				return fmt.Errorf("project: empty field name")
			}
			if err := e.validate(); err != nil {
				return fmt.Errorf("project %q: %w", name, err)
			}
		}
	}
	if s.Sort != nil {
		set++
		if s.Sort.By == "" {
			return fmt.Errorf("sort: missing field")
		}
	}
	if s.Limit != nil {
		set++
		if *s.Limit < 0 {
			return fmt.Errorf("limit: negative")
		}
	}
	if set != 1 {
		return fmt.Errorf("stage must have exactly one kind, has %d", set)
	}
	return nil
}

func (a Accumulator) validate() error {
	set := 0
	if a.Sum != nil {
		set++
		if err := a.Sum.validate(); err != nil {
			return err
		}
	}
	if a.First != nil {
		set++
		if err := a.First.validate(); err != nil {
			return err
		}
	}
	if a.Count {
		set++
	}
	if set != 1 {
		return fmt.Errorf("accumulator must have exactly one kind, has %d", set)
	}
	return nil
}

func (e Expr) validate() error {
	set := 0
	if e.HasField {
		set++
		if e.Field == "" {
			return fmt.Errorf("empty field reference")
		}
	}
	if e.HasLit {
		set++
	}
	for _, inner := range []*Expr{e.ToDouble, e.ToInt, e.IsNumber} {
		if inner != nil {
			set++
			if err := inner.validate(); err != nil {
				return err
			}
		}
	}
	if e.Cond != nil {
		set++
		for _, inner := range []Expr{e.Cond.If, e.Cond.Then, e.Cond.Else} {
			if err := inner.validate(); err != nil {
				return err
			}
		}
	}
	for _, pair := range [][]Expr{e.Divide, e.Eq, e.Gt} {
		if pair != nil {
			set++
			if len(pair) != 2 {
				return fmt.Errorf("operator needs exactly 2 operands, got %d", len(pair))
			}
			for _, inner := range pair {
				if err := inner.validate(); err != nil {
					return err
				}
			}
		}
	}
	if e.IfNull != nil {
		set++
		if len(e.IfNull) < 2 {
			return fmt.Errorf("ifNull needs at least 2 operands")
		}
		for _, inner := range e.IfNull {
			if err := inner.validate(); err != nil {
				return err
			}
		}
	}
	if e.Multiply != nil {
		set++
		if len(e.Multiply) < 2 {
			return fmt.Errorf("multiply needs at least 2 operands")
		}
		for _, inner := range e.Multiply {
			if err := inner.validate(); err != nil {
				return err
			}
		}
	}
	if set != 1 {
		return fmt.Errorf("expression must have exactly one operator, has %d", set)
	}
	return nil
}
