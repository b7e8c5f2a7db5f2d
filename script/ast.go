package script

// Program is a parsed script body: a sequence of assignments.
type Program struct {
	Stmts []Stmt
}

// Stmt assigns the value of Expr to the local variable Name.
type Stmt struct {
	Name string
	Expr Expr
	Line int
}

// Expr is a node in the expression tree.
type Expr interface {
	exprLine() int
}

type NumberLit struct {
	Value float64
	Line  int
}

type StringLit struct {
	Value string
	Line  int
}

type BoolLit struct {
	Value bool
	Line  int
}

// Ident reads a local or an environment variable.
type Ident struct {
	Name string
	Line int
}

// Unary is "not x" or "-x".
type Unary struct {
	Op   string
	X    Expr
	Line int
}

// Binary covers boolean, comparison and arithmetic operators.
type Binary struct {
	Op   string
	X, Y Expr
	Line int
}

// Call invokes an allow-listed environment function.
type Call struct {
	Name string
	Args []Expr
	Line int
}

// Index subscripts a series, list, candle slice or object. Negative
// indices count from the end.
type Index struct {
	X    Expr
	Idx  Expr
	Line int
}

func (e *NumberLit) exprLine() int { return e.Line }
func (e *StringLit) exprLine() int { return e.Line }
func (e *BoolLit) exprLine() int   { return e.Line }
func (e *Ident) exprLine() int     { return e.Line }
func (e *Unary) exprLine() int     { return e.Line }
func (e *Binary) exprLine() int    { return e.Line }
func (e *Call) exprLine() int      { return e.Line }
func (e *Index) exprLine() int     { return e.Line }
