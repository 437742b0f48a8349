package pipeline

// ============================================================================
// PLAN TYPES — Abstract aggregation stages and field expressions
// ============================================================================
// A Pipeline is an ordered list of stages: match → addFields → group →
// project → sort → limit. The builder produces trusted plans; the AI
// translator produces untrusted ones in the same JSON dialect (see json.go).
//
// Every stage kind here is read-only. Write/delete stages do not exist in
// the type system, so a decoded plan cannot smuggle one in.
// ============================================================================

// Doc is a single document flowing through a plan.
type Doc = map[string]any

// Pipeline is an ordered sequence of aggregation stages.
type Pipeline []Stage

// Stage is a closed union: exactly one member is non-nil.
type Stage struct {
	Match     MatchStage     `json:"-"`
	AddFields AddFieldsStage `json:"-"`
	Group     *GroupStage    `json:"-"`
	Project   ProjectStage   `json:"-"`
	Sort      *SortStage     `json:"-"`
	Limit     *int           `json:"-"`
}

// MatchStage filters documents. Keys are field names; conditions are
// AND-combined across fields.
type MatchStage map[string]Condition

// Condition is either an equality against a literal or an inclusive range.
type Condition struct {
	Eq  any  // equality match when Gte/Lte are unset
	Gte any  // lower bound, inclusive
	Lte any  // upper bound, inclusive
	Has bool // true when a range bound is set
}

// AddFieldsStage computes new fields on each document, keeping existing ones.
type AddFieldsStage map[string]Expr

// GroupStage folds documents into one row per distinct key value.
// A nil Key produces a single total row with a null id.
type GroupStage struct {
	Key    *Expr
	Fields map[string]Accumulator
}

// Accumulator is a closed union of grouping reducers.
type Accumulator struct {
	Sum   *Expr // numeric sum across the group
	First *Expr // value from the first document seen
	Count bool  // number of documents in the group
}

// ProjectStage builds the output row from expressions. The group id ("_id")
// is carried through implicitly.
type ProjectStage map[string]Expr

// SortStage orders rows by a single field.
type SortStage struct {
	By   string
	Desc bool
}

// ============================================================================
// EXPRESSIONS
// ============================================================================

// Expr is a closed expression union: exactly one member is set.
type Expr struct {
	Field    string  // document field reference
	HasField bool    //
	Literal  any     // constant value
	HasLit   bool    //
	ToDouble *Expr   // numeric conversion; numeric strings accepted
	ToInt    *Expr   // integer conversion; numeric strings accepted
	IfNull   []Expr  // first non-null operand
	Cond     *IfExpr // conditional
	Divide   []Expr  // [num, den]; den == 0 evaluates to 0
	Multiply []Expr  // product of operands
	Eq       []Expr  // predicate: operands equal
	Gt       []Expr  // predicate: left greater than right
	IsNumber *Expr   // predicate: operand is a native number
}

// IfExpr is a three-way conditional expression.
type IfExpr struct {
	If   Expr
	Then Expr
	Else Expr
}

// Constructors keep builder code readable.

// F references a document field.
func F(name string) Expr { return Expr{Field: name, HasField: true} }

// Lit wraps a constant.
func Lit(v any) Expr { return Expr{Literal: v, HasLit: true} }

// ToF64 converts the operand to a float64.
func ToF64(e Expr) Expr { return Expr{ToDouble: &e} }

// ToI64 converts the operand to an int64.
func ToI64(e Expr) Expr { return Expr{ToInt: &e} }

// Coalesce yields the first non-null operand.
func Coalesce(exprs ...Expr) Expr { return Expr{IfNull: exprs} }

// If builds a conditional expression.
func If(cond, then, els Expr) Expr { return Expr{Cond: &IfExpr{If: cond, Then: then, Else: els}} }

// Div divides num by den; a zero denominator yields 0, never an error.
func Div(num, den Expr) Expr { return Expr{Divide: []Expr{num, den}} }

// Mul multiplies its operands.
func Mul(exprs ...Expr) Expr { return Expr{Multiply: exprs} }

// EqE tests operand equality.
func EqE(a, b Expr) Expr { return Expr{Eq: []Expr{a, b}} }

// IsNum tests whether the operand is a native number (not a numeric string).
func IsNum(e Expr) Expr { return Expr{IsNumber: &e} }

// Stage constructors.

// MatchS wraps a MatchStage into a Stage.
func MatchS(m MatchStage) Stage { return Stage{Match: m} }

// AddFieldsS wraps an AddFieldsStage into a Stage.
func AddFieldsS(f AddFieldsStage) Stage { return Stage{AddFields: f} }

// GroupS wraps a GroupStage into a Stage.
func GroupS(g GroupStage) Stage { return Stage{Group: &g} }

// ProjectS wraps a ProjectStage into a Stage.
func ProjectS(p ProjectStage) Stage { return Stage{Project: p} }

// SortS wraps a SortStage into a Stage.
func SortS(by string, desc bool) Stage { return Stage{Sort: &SortStage{By: by, Desc: desc}} }

// LimitS caps the number of rows.
func LimitS(n int) Stage { return Stage{Limit: &n} }

// EqC builds an equality condition.
func EqC(v any) Condition { return Condition{Eq: v} }

// RangeC builds an inclusive range condition.
func RangeC(gte, lte any) Condition { return Condition{Gte: gte, Lte: lte, Has: true} }

// SumA sums an expression across the group.
func SumA(e Expr) Accumulator { return Accumulator{Sum: &e} }

// FirstA carries the first-seen value through the group.
func FirstA(e Expr) Accumulator { return Accumulator{First: &e} }

// CountA counts documents in the group.
func CountA() Accumulator { return Accumulator{Count: true} }
