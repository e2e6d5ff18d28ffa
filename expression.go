package devirt

import (
	"fmt"
	"go/types"
	"strings"
)

// Value is the identity an Expression is rooted at. Instruction results from
// golang.org/x/tools/go/ssa satisfy it directly. Implementations must be
// comparable, since Expressions are used as map keys.
type Value interface {
	Name() string
}

// Symbol is the shape of an Expression.
type Symbol uint8

const (
	// Simple is a bare location x.
	Simple Symbol = iota
	// Pointer is a dereference *x.
	Pointer
	// Arrow is a field access through a pointer x->f.
	Arrow
	// Dot is a field access on a value x.f.
	Dot
	// Address is the address of a term &x.
	Address
	// Constant is an opaque value that is never decomposed.
	Constant
)

func (s Symbol) String() string {
	switch s {
	case Simple:
		return "simple"
	case Pointer:
		return "pointer"
	case Arrow:
		return "arrow"
	case Dot:
		return "dot"
	case Address:
		return "address"
	case Constant:
		return "constant"
	default:
		return fmt.Sprintf("Symbol(%d)", uint8(s))
	}
}

// Expression is a symbolic name for a memory location or value at a program
// point. Expressions are immutable values: two Expressions are equal iff all
// of their fields are equal, which is exactly Go's == on the struct.
type Expression struct {
	Base Value
	// FunctionArg is set instead of Base when the term roots at a parameter.
	FunctionArg Value
	// Type is the static type of the denoted location. It only takes part in
	// equality.
	Type   types.Type
	Symbol Symbol
	// Optional is the field selector of Arrow and Dot terms.
	Optional Value
	// RHSIsAddress distinguishes the address-taken variant of a term.
	RHSIsAddress bool
}

// Var returns the simple term x.
func Var(base Value, typ types.Type) Expression {
	return Expression{Base: base, Type: typ, Symbol: Simple}
}

// Arg returns the simple term rooted at a function parameter.
func Arg(param Value, typ types.Type) Expression {
	return Expression{FunctionArg: param, Type: typ, Symbol: Simple}
}

// Deref returns *x.
func Deref(base Value, typ types.Type) Expression {
	return Expression{Base: base, Type: typ, Symbol: Pointer}
}

// FieldOf returns x->f when viaPointer holds, and x.f otherwise.
func FieldOf(base Value, field Value, typ types.Type, viaPointer bool) Expression {
	sym := Dot
	if viaPointer {
		sym = Arrow
	}
	return Expression{Base: base, Type: typ, Symbol: sym, Optional: field}
}

// AddrOf returns &x.
func AddrOf(base Value, typ types.Type) Expression {
	return Expression{Base: base, Type: typ, Symbol: Address}
}

// Opaque returns a constant term.
func Opaque(typ types.Type) Expression {
	return Expression{Type: typ, Symbol: Constant}
}

// Equal reports whether e and o denote the same term.
func (e Expression) Equal(o Expression) bool {
	return e == o
}

// Root returns the value the term is rooted at, preferring Base.
func (e Expression) Root() Value {
	if e.Base != nil {
		return e.Base
	}
	return e.FunctionArg
}

// CanPoint reports whether the value of e may itself be a pointer that has to
// be expanded through the alias relation, i.e. whether e is *x or x->f.
func (e Expression) CanPoint() bool {
	return e.Symbol == Pointer || e.Symbol == Arrow
}

// WithSymbol returns a copy of e with a different shape.
func (e Expression) WithSymbol(s Symbol) Expression {
	e.Symbol = s
	return e
}

// SimpleForm returns x for *x, x->f and x.f: the shape is forced to Simple and
// the field selector and address flag are cleared.
func (e Expression) SimpleForm() Expression {
	e.Symbol = Simple
	e.Optional = nil
	e.RHSIsAddress = false
	return e
}

// AddressForm returns the address-taken variant &x of e.
func (e Expression) AddressForm() Expression {
	e.Symbol = Address
	e.RHSIsAddress = true
	return e
}

func (e Expression) String() string {
	if e.Symbol == Constant {
		return "constant"
	}

	var sb strings.Builder
	switch e.Symbol {
	case Address:
		sb.WriteString("&")
	case Pointer:
		sb.WriteString("*")
	}

	if root := e.Root(); root != nil {
		sb.WriteString(root.Name())
	} else {
		sb.WriteString("?")
	}

	switch e.Symbol {
	case Arrow:
		sb.WriteString("->")
	case Dot:
		sb.WriteString(".")
	}
	if e.Optional != nil && (e.Symbol == Arrow || e.Symbol == Dot) {
		sb.WriteString(e.Optional.Name())
	}
	return sb.String()
}

// sortKey orders terms deterministically. Distinct terms may print the same,
// so the remaining fields break ties.
func (e Expression) sortKey() string {
	return fmt.Sprintf("%s|%d|%v|%t|%v", e.String(), e.Symbol, e.Type, e.RHSIsAddress, e.FunctionArg != nil)
}
