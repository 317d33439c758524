// Package parseapi is the recursive-descent front end: it tokenizes
// source text and drives an env.Environment's allocation and
// subroutine-context methods to build an execution tree, implementing the
// env.Parser interface.
//
// Concrete syntax, statements (each terminated by ';'):
//
//	def NAME := expr [size N] [range N];
//	def NAME from OTHER;
//	dim NAME [, sizeExpr];
//	global NAME [ '[' ']' ];
//	static NAME [ '[' ']' ] [:= expr];
//	NAME := expr;                    scalar assign (auto-declares NAME)
//	NAME[idx] := expr;                element assign
//	NAME := { e0, e1, ... };          list assign (auto-declares array)
//	NAME := arg(i);                   vararg copy (array copy when NAME
//	                                   is an array, else scalar value)
//	NAME := callee(args);             array-function call, or plain scalar
//	                                   call assigned to a scalar
//	callee(args);                     procedure call
//	if expr { ... } [else { ... }]
//	while expr { ... }
//	for NAME := expr to expr [step expr] { ... }
//	break; exit; quit;
//	sleep; / sleep expr; / sleep until expr;
//	print arg [, arg ...];            arg is a string literal or
//	                                   expr [':' modifier]
//	poke[8|16|32|64](addr, value [, mask]);
//	map(phys, size [, at [, "device"]]);
//	import "file"; / include "file";
//	defproc NAME(params) { ... }
//	deffunc NAME(params) { ... }
//	defarray NAME(params) { ... }
//
// params := (item (',' item)*)? ['...']  where item is NAME or NAME[].
//
// Expressions follow ordinary C-like precedence (||, &&, |, ^, &, ==/!=,
// relational, shift, +/-, * / %, unary -/~/!), plus call-like forms:
// mask8/16/32/64(e) for bit-width restriction, slt/sgt/sle/sge/sdiv/smod
// for the signed comparison and division/modulo variants, size(NAME) for
// an array's element count, range(NAME[, idx]) for a def's symbolic
// range, peek[8|16|32|64](addr) for a typed load, and arg()/arg(i)/
// arg(i,j)/argsize(i)/argtype(i) for vararg introspection.
package parseapi

type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tInt
	tFloat
	tString

	tLParen
	tRParen
	tLBrace
	tRBrace
	tLBracket
	tRBracket
	tComma
	tSemicolon
	tColon
	tEllipsis

	tAssign // :=

	tPlus
	tMinus
	tStar
	tSlash
	tPercent

	tAmp
	tPipe
	tCaret
	tTilde
	tBang

	tShl
	tShr

	tLt
	tGt
	tLe
	tGe
	tEq
	tNe

	tAndAnd
	tOrOr
	tXorXor
)

type token struct {
	kind tokenKind
	text string
	line int
}

var keywords = map[string]bool{
	"def": true, "dim": true, "global": true, "static": true,
	"from": true, "size": true, "range": true,
	"if": true, "else": true, "while": true, "for": true, "to": true, "step": true,
	"break": true, "exit": true, "quit": true,
	"sleep": true, "until": true,
	"print": true,
	"import": true, "include": true,
	"defproc": true, "deffunc": true, "defarray": true,
	"map": true,
}
