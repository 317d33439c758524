package parseapi

import (
	"errors"
	"fmt"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/env"
	"github.com/hammelm/mempeek/internal/storage"
)

// Parser is the env.Parser implementation: a hand-written recursive-descent
// front end over the grammar documented in token.go.
type Parser struct{}

// Parse tokenizes content and parses it as a sequence of statements,
// wrapped in a Block. loc supplies the file name and starting line for
// diagnostics; token line numbers are 1-based and added to loc.FirstLine.
func (Parser) Parse(e *env.Environment, loc ast.Location, content []byte) (ast.Node, error) {
	toks, err := tokenize(content)
	if err != nil {
		return nil, ast.NewError(ast.KindSyntaxError, loc, "%v", err)
	}
	p := &parser{env: e, toks: toks, file: loc.File, base: loc.FirstLine}
	if p.base == 0 {
		p.base = 1
	}
	blk := ast.NewBlock(p.locAt(1))
	for !p.at(tEOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			blk.AddStatement(stmt)
		}
	}
	return blk, nil
}

type parser struct {
	env  *env.Environment
	toks []token
	pos  int
	file string
	base int
}

func (p *parser) cur() token          { return p.toks[p.pos] }
func (p *parser) at(k tokenKind) bool { return p.cur().kind == k }

func (p *parser) atKeyword(text string) bool {
	return p.cur().kind == tIdent && p.cur().text == text
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) match(k tokenKind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) matchKeyword(text string) bool {
	if p.atKeyword(text) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) locAt(line int) ast.Location {
	return ast.Location{File: p.file, FirstLine: p.base + line - 1, LastLine: p.base + line - 1}
}

func (p *parser) loc() ast.Location { return p.locAt(p.cur().line) }

func (p *parser) errf(format string, args ...any) error {
	return ast.NewError(ast.KindSyntaxError, p.loc(), format, args...)
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if !p.at(k) {
		return token{}, p.errf("expected %s, got %q", what, p.cur().text)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(text string) error {
	if !p.atKeyword(text) {
		return p.errf("expected %q, got %q", text, p.cur().text)
	}
	p.advance()
	return nil
}

// isUndefined reports whether err is the "undefined name" error raised by
// GetFunction/GetProcedure/GetArrayFunc lookups, the signal that a call
// site should be retried against a different resolution path.
func isUndefined(err error) bool {
	var ae *ast.Error
	if errors.As(err, &ae) {
		return ae.Kind == ast.KindUndefinedVar
	}
	return false
}

func isKeyword(s string) bool { return keywords[s] }

// ---- statements ----

func (p *parser) parseStatement() (ast.Node, error) {
	switch {
	case p.atKeyword("def"):
		return p.parseDef()
	case p.atKeyword("dim"):
		return p.parseDim()
	case p.atKeyword("global"):
		return p.parseGlobal()
	case p.atKeyword("static"):
		return p.parseStatic()
	case p.atKeyword("import"):
		return p.parseImport(true)
	case p.atKeyword("include"):
		return p.parseImport(false)
	case p.atKeyword("defproc"):
		return p.parseSubroutineDef(ast.Procedure)
	case p.atKeyword("deffunc"):
		return p.parseSubroutineDef(ast.Function)
	case p.atKeyword("defarray"):
		return p.parseSubroutineDef(ast.ArrayFunction)
	case p.atKeyword("if"):
		return p.parseIf()
	case p.atKeyword("while"):
		return p.parseWhile()
	case p.atKeyword("for"):
		return p.parseFor()
	case p.atKeyword("break"):
		loc := p.loc()
		p.advance()
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		return ast.NewBreak(loc), nil
	case p.atKeyword("exit"):
		loc := p.loc()
		p.advance()
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		return ast.NewExit(loc), nil
	case p.atKeyword("quit"):
		loc := p.loc()
		p.advance()
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		return ast.NewQuit(loc), nil
	case p.atKeyword("sleep"):
		return p.parseSleep()
	case p.atKeyword("print"):
		return p.parsePrint()
	case p.atKeyword("map"):
		return p.parseMapStmt()
	case p.at(tIdent) && isPokeKeyword(p.cur().text):
		return p.parsePoke(pokeWidth(p.cur().text))
	default:
		return p.parseAssignOrCall()
	}
}

func isPokeKeyword(s string) bool {
	switch s {
	case "poke8", "poke16", "poke32", "poke64":
		return true
	}
	return false
}

func pokeWidth(s string) int {
	switch s {
	case "poke8":
		return 8
	case "poke16":
		return 16
	case "poke32":
		return 32
	default:
		return 64
	}
}

func (p *parser) parseDef() (ast.Node, error) {
	loc := p.loc()
	p.advance() // 'def'
	nameTok, err := p.expect(tIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if p.matchKeyword("from") {
		otherTok, err := p.expect(tIdent, "identifier")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		return p.buildDefFrom(loc, nameTok.text, otherTok.text)
	}
	if _, err := p.expect(tAssign, ":="); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var sizeTok, rangeTok *token
	for {
		if p.matchKeyword("size") {
			t, err := p.expect(tInt, "integer")
			if err != nil {
				return nil, err
			}
			sizeTok = &t
			continue
		}
		if p.matchKeyword("range") {
			t, err := p.expect(tInt, "integer")
			if err != nil {
				return nil, err
			}
			rangeTok = &t
			continue
		}
		break
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	v := p.env.AllocDefVar(nameTok.text)
	if v == nil {
		return nil, ast.NewError(ast.KindNamingConflict, loc, "%q is already defined", nameTok.text)
	}
	switch {
	case sizeTok != nil && rangeTok != nil:
		sizeVal, _ := env.ParseInt(sizeTok.text)
		rangeVal, _ := env.ParseInt(rangeTok.text)
		return ast.NewDefRanged(loc, v, expr, rangeVal, int(sizeVal))
	case sizeTok != nil:
		d, err := ast.NewDef(loc, v, expr)
		if err != nil {
			return nil, err
		}
		sizeVal, _ := env.ParseInt(sizeTok.text)
		v.SetSize(int(sizeVal))
		return d, nil
	case rangeTok != nil:
		d, err := ast.NewDef(loc, v, expr)
		if err != nil {
			return nil, err
		}
		rangeVal, _ := env.ParseInt(rangeTok.text)
		v.SetRange(rangeVal)
		return d, nil
	default:
		return ast.NewDef(loc, v, expr)
	}
}

func (p *parser) buildDefFrom(loc ast.Location, name, other string) (ast.Node, error) {
	base := p.env.GetVar(other)
	if base == nil {
		return nil, ast.NewError(ast.KindUndefinedVar, loc, "undefined variable %q", other)
	}
	v := p.env.AllocDefVar(name)
	if v == nil {
		return nil, ast.NewError(ast.KindNamingConflict, loc, "%q is already defined", name)
	}
	blk := ast.NewBlock(loc)
	blk.AddStatement(ast.NewDefFromValue(loc, v, base.Get()))
	for _, suffix := range p.env.GetStructMembers(other) {
		member := p.env.GetVar(other + "." + suffix)
		if member == nil {
			continue
		}
		mv := p.env.AllocDefVar(name + "." + suffix)
		if mv == nil {
			continue
		}
		offset := member.Get() - base.Get()
		blk.AddStatement(ast.NewDefFromValue(loc, mv, offset))
		mv.SetSize(member.Size())
		mv.SetRange(member.Range())
	}
	return blk, nil
}

func (p *parser) parseDim() (ast.Node, error) {
	loc := p.loc()
	p.advance()
	nameTok, err := p.expect(tIdent, "identifier")
	if err != nil {
		return nil, err
	}
	var sizeNode ast.Node
	if p.match(tComma) {
		sizeNode, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	} else {
		sizeNode = ast.NewConstant(loc, 0)
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	arr := p.env.AllocArray(nameTok.text)
	if arr == nil {
		return nil, ast.NewError(ast.KindNamingConflict, loc, "%q is already defined", nameTok.text)
	}
	return ast.NewDim(loc, p.env, arr, sizeNode), nil
}

func (p *parser) parseGlobal() (ast.Node, error) {
	loc := p.loc()
	p.advance()
	nameTok, err := p.expect(tIdent, "identifier")
	if err != nil {
		return nil, err
	}
	isArray := false
	if p.match(tLBracket) {
		if _, err := p.expect(tRBracket, "]"); err != nil {
			return nil, err
		}
		isArray = true
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	if isArray {
		if p.env.AllocGlobalArray(nameTok.text) == nil {
			return nil, ast.NewError(ast.KindNamingConflict, loc, "%q is already defined", nameTok.text)
		}
	} else if p.env.AllocGlobalVar(nameTok.text) == nil {
		return nil, ast.NewError(ast.KindNamingConflict, loc, "%q is already defined", nameTok.text)
	}
	return ast.NewConstant(loc, 0), nil
}

func (p *parser) parseStatic() (ast.Node, error) {
	loc := p.loc()
	p.advance()
	nameTok, err := p.expect(tIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if p.match(tLBracket) {
		if p.match(tRBracket) {
			if p.match(tAssign) {
				src, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(tSemicolon, ";"); err != nil {
					return nil, err
				}
				arr := p.env.AllocStaticArray(nameTok.text)
				if arr == nil {
					return nil, ast.NewError(ast.KindNamingConflict, loc, "%q is already defined", nameTok.text)
				}
				return ast.NewStaticArrayCopyFrom(loc, p.env, arr, src), nil
			}
			if _, err := p.expect(tSemicolon, ";"); err != nil {
				return nil, err
			}
			arr := p.env.AllocStaticArray(nameTok.text)
			if arr == nil {
				return nil, ast.NewError(ast.KindNamingConflict, loc, "%q is already defined", nameTok.text)
			}
			return ast.NewStaticArrayUninit(loc, arr, 0), nil
		}
		sizeExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRBracket, "]"); err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		arr := p.env.AllocStaticArray(nameTok.text)
		if arr == nil {
			return nil, ast.NewError(ast.KindNamingConflict, loc, "%q is already defined", nameTok.text)
		}
		return ast.NewStaticArraySizeOnly(loc, p.env, arr, sizeExpr), nil
	}
	v := p.env.AllocStaticVar(nameTok.text)
	if v == nil {
		return nil, ast.NewError(ast.KindNamingConflict, loc, "%q is already defined", nameTok.text)
	}
	var expr ast.Node = ast.NewConstant(loc, 0)
	if p.match(tAssign) {
		var err error
		expr, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	return ast.NewStaticScalar(loc, p.env, v, expr), nil
}

func (p *parser) parseImport(runOnce bool) (ast.Node, error) {
	loc := p.loc()
	p.advance()
	strTok, err := p.expect(tString, "string literal")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	child, err := p.env.Parse(loc, strTok.text, true, runOnce)
	if err != nil {
		return nil, err
	}
	return ast.NewImport(loc, child), nil
}

func (p *parser) parseSubroutineDef(kind ast.SubroutineKind) (ast.Node, error) {
	loc := p.loc()
	p.advance()
	nameTok, err := p.expect(tIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if err := p.env.EnterSubroutineContext(loc, nameTok.text, kind); err != nil {
		return nil, err
	}
	if err := p.parseParamList(); err != nil {
		p.env.AbortSubroutineContext()
		return nil, err
	}
	body, err := p.parseBraceBlock()
	if err != nil {
		p.env.AbortSubroutineContext()
		return nil, err
	}
	p.env.SetSubroutineBody(body)
	p.env.CommitSubroutineContext()
	return ast.NewConstant(loc, 0), nil
}

func (p *parser) parseParamList() error {
	if _, err := p.expect(tLParen, "("); err != nil {
		return err
	}
	if !p.at(tRParen) {
		for {
			if p.match(tEllipsis) {
				p.env.SetSubroutineVarargs()
				break
			}
			nameTok, err := p.expect(tIdent, "identifier")
			if err != nil {
				return err
			}
			isArray := false
			if p.match(tLBracket) {
				if _, err := p.expect(tRBracket, "]"); err != nil {
					return err
				}
				isArray = true
			}
			p.env.SetSubroutineParam(nameTok.text, isArray)
			if !p.match(tComma) {
				break
			}
		}
	}
	_, err := p.expect(tRParen, ")")
	return err
}

func (p *parser) parseBraceBlock() (ast.Node, error) {
	loc := p.loc()
	if _, err := p.expect(tLBrace, "{"); err != nil {
		return nil, err
	}
	blk := ast.NewBlock(loc)
	for !p.at(tRBrace) && !p.at(tEOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			blk.AddStatement(stmt)
		}
	}
	if _, err := p.expect(tRBrace, "}"); err != nil {
		return nil, err
	}
	return blk, nil
}

func (p *parser) parseIf() (ast.Node, error) {
	loc := p.loc()
	p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	thenBlk, err := p.parseBraceBlock()
	if err != nil {
		return nil, err
	}
	var elseNode ast.Node
	if p.matchKeyword("else") {
		if p.atKeyword("if") {
			elseNode, err = p.parseIf()
		} else {
			elseNode, err = p.parseBraceBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIf(loc, p.env, cond, thenBlk, elseNode), nil
}

func (p *parser) parseWhile() (ast.Node, error) {
	loc := p.loc()
	p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBraceBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(loc, p.env, cond, body), nil
}

func (p *parser) parseFor() (ast.Node, error) {
	loc := p.loc()
	p.advance()
	nameTok, err := p.expect(tIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tAssign, ":="); err != nil {
		return nil, err
	}
	from, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("to"); err != nil {
		return nil, err
	}
	to, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var step ast.Node
	if p.matchKeyword("step") {
		step, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	v := p.env.GetVar(nameTok.text)
	if v == nil {
		v = p.env.AllocVar(nameTok.text)
	}
	if v == nil {
		return nil, ast.NewError(ast.KindNamingConflict, loc, "%q cannot be used as a loop variable", nameTok.text)
	}
	body, err := p.parseBraceBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewFor(loc, p.env, v, from, to, step, body), nil
}

func (p *parser) parseSleep() (ast.Node, error) {
	loc := p.loc()
	p.advance()
	if p.match(tSemicolon) {
		return ast.NewSleepNow(loc), nil
	}
	if p.matchKeyword("until") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		return ast.NewSleepAbsolute(loc, p.env, expr), nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	return ast.NewSleepRelative(loc, p.env, expr), nil
}

func (p *parser) parsePrint() (ast.Node, error) {
	loc := p.loc()
	p.advance()
	var args []ast.PrintArg
	if !p.at(tSemicolon) {
		for {
			arg, err := p.parsePrintArg()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(tComma) {
				break
			}
		}
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	return ast.NewPrint(loc, p.env, args), nil
}

func (p *parser) parsePrintArg() (ast.PrintArg, error) {
	if p.at(tString) {
		t := p.advance()
		return ast.PrintArg{Text: t.text}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return ast.PrintArg{}, err
	}
	defMod := p.env.DefaultPrintModifier()
	arg := ast.PrintArg{
		Expr:     expr,
		ModType:  ast.PrintModType(defMod & 0xff),
		ModWidth: ast.PrintWidth((defMod >> 8) & 0xff),
	}
	for p.match(tColon) {
		modTok, err := p.expect(tIdent, "print modifier")
		if err != nil {
			return ast.PrintArg{}, err
		}
		switch modTok.text {
		case "list":
			arg.ArrMode = ast.ArrayList
		case "str":
			arg.ArrMode = ast.ArrayString
		default:
			mt, hasType, mw, hasWidth, err := parseTypeWidthToken(modTok.text)
			if err != nil {
				return ast.PrintArg{}, p.errf("%v", err)
			}
			if hasType {
				arg.ModType = mt
			}
			if hasWidth {
				arg.ModWidth = mw
			}
		}
	}
	return arg, nil
}

func parseTypeWidthToken(s string) (mt ast.PrintModType, hasType bool, mw ast.PrintWidth, hasWidth bool, err error) {
	i := 0
	if i < len(s) {
		switch s[i] {
		case 'x':
			mt, hasType = ast.ModHex, true
			i++
		case 'd':
			mt, hasType = ast.ModDec, true
			i++
		case 'b':
			mt, hasType = ast.ModBin, true
			i++
		case 's':
			mt, hasType = ast.ModSignedDec, true
			i++
		case 'f':
			mt, hasType = ast.ModFloat, true
			i++
		}
	}
	switch s[i:] {
	case "":
	case "8":
		mw, hasWidth = ast.Width8, true
	case "16":
		mw, hasWidth = ast.Width16, true
	case "32":
		mw, hasWidth = ast.Width32, true
	case "64":
		mw, hasWidth = ast.Width64, true
	case "w":
		mw, hasWidth = ast.ModWordSize, true
	default:
		err = fmt.Errorf("unknown print modifier %q", s)
	}
	if !hasType && !hasWidth && err == nil {
		err = fmt.Errorf("unknown print modifier %q", s)
	}
	return
}

func (p *parser) parsePoke(width int) (ast.Node, error) {
	loc := p.loc()
	p.advance()
	if _, err := p.expect(tLParen, "("); err != nil {
		return nil, err
	}
	addr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tComma, ","); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var mask ast.Node
	if p.match(tComma) {
		mask, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tRParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	if mask != nil {
		return ast.NewPokeMasked(loc, p.env, addr, value, mask, width), nil
	}
	return ast.NewPoke(loc, p.env, addr, value, width), nil
}

func (p *parser) parseMapStmt() (ast.Node, error) {
	loc := p.loc()
	p.advance()
	if _, err := p.expect(tLParen, "("); err != nil {
		return nil, err
	}
	phys, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tComma, ","); err != nil {
		return nil, err
	}
	size, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var at ast.Node
	device := ""
	if p.match(tComma) {
		at, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.match(tComma) {
			devTok, err := p.expect(tString, "string literal")
			if err != nil {
				return nil, err
			}
			device = devTok.text
		}
	}
	if _, err := p.expect(tRParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	return ast.NewMap(loc, p.env, phys, at, size, device)
}

// parseAssignOrCall handles every statement that starts with a bare
// identifier: scalar/element/list/copy/arg assignment, auto-vivifying the
// target's storage class from the shape of the right-hand side, and plain
// procedure-call statements.
func (p *parser) parseAssignOrCall() (ast.Node, error) {
	loc := p.loc()
	if !p.at(tIdent) {
		return nil, p.errf("unexpected token %q", p.cur().text)
	}
	nameTok := p.advance()
	name := nameTok.text

	if p.at(tLParen) {
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		return p.resolveBareCall(loc, name, args)
	}

	if p.at(tLBracket) {
		p.advance()
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRBracket, "]"); err != nil {
			return nil, err
		}
		arr := p.env.GetArray(name)
		if arr == nil {
			return nil, ast.NewError(ast.KindUndefinedVar, loc, "undefined array %q", name)
		}
		if _, err := p.expect(tAssign, ":="); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		return ast.NewAssignElement(loc, p.env, arr, idx, value), nil
	}

	if _, err := p.expect(tAssign, ":="); err != nil {
		return nil, err
	}
	return p.parseAssignRHS(loc, name)
}

func (p *parser) parseCallArgs() ([]ast.Node, error) {
	if _, err := p.expect(tLParen, "("); err != nil {
		return nil, err
	}
	var args []ast.Node
	if !p.at(tRParen) {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(tComma) {
				break
			}
		}
	}
	if _, err := p.expect(tRParen, ")"); err != nil {
		return nil, err
	}
	return args, nil
}

// resolveBareCall resolves `name(args);` used as a full statement: first as
// a procedure, falling back to a scalar function called for its value
// alone (discarded by virtue of being a statement).
func (p *parser) resolveBareCall(loc ast.Location, name string, args []ast.Node) (ast.Node, error) {
	node, err := p.env.GetProcedure(loc, name, args)
	if err == nil {
		return node, nil
	}
	if !isUndefined(err) {
		return nil, err
	}
	if node, ferr := p.env.GetFunction(loc, name, args); ferr == nil {
		return node, nil
	}
	return nil, err
}

// scanCallShapeEnd reports whether the tokens starting at p.pos form
// `IDENT '(' ... ')'` with balanced parens, returning the index of the
// token immediately after the closing ')'.
func (p *parser) scanCallShapeEnd() (int, bool) {
	if p.toks[p.pos].kind != tIdent || p.pos+1 >= len(p.toks) || p.toks[p.pos+1].kind != tLParen {
		return 0, false
	}
	depth := 0
	for i := p.pos + 1; i < len(p.toks); i++ {
		switch p.toks[i].kind {
		case tLParen:
			depth++
		case tRParen:
			depth--
			if depth == 0 {
				return i + 1, true
			}
		case tEOF:
			return 0, false
		}
	}
	return 0, false
}

func (p *parser) peekIsBareIdentEnd() bool {
	return p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == tSemicolon
}

// parseAssignRHS parses the right-hand side of `name := ...;` and builds
// the correct Assign variant, auto-vivifying name's storage class (scalar
// or array) from the shape of the right-hand side when it is not yet
// declared.
func (p *parser) parseAssignRHS(loc ast.Location, name string) (ast.Node, error) {
	if p.at(tLBrace) {
		p.advance()
		var list []ast.Node
		if !p.at(tRBrace) {
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				list = append(list, e)
				if !p.match(tComma) {
					break
				}
			}
		}
		if _, err := p.expect(tRBrace, "}"); err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		arr, err := p.resolveAssignArray(loc, name)
		if err != nil {
			return nil, err
		}
		return ast.NewAssignList(loc, p.env, arr, list), nil
	}

	if p.at(tString) {
		t := p.advance()
		if _, err := p.expect(tSemicolon, ";"); err != nil {
			return nil, err
		}
		arr, err := p.resolveAssignArray(loc, name)
		if err != nil {
			return nil, err
		}
		return ast.NewString(loc, arr, t.text), nil
	}

	if p.at(tIdent) && !isKeyword(p.cur().text) {
		rhsName := p.cur().text
		if endPos, ok := p.scanCallShapeEnd(); ok && p.toks[endPos].kind == tSemicolon {
			callLine := p.cur().line
			p.advance()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tSemicolon, ";"); err != nil {
				return nil, err
			}
			return p.resolveAssignCallRHS(loc, name, p.locAt(callLine), rhsName, args)
		}
		if arr := p.env.GetArray(rhsName); arr != nil && p.peekIsBareIdentEnd() {
			p.advance()
			if _, err := p.expect(tSemicolon, ";"); err != nil {
				return nil, err
			}
			dest, err := p.resolveAssignArray(loc, name)
			if err != nil {
				return nil, err
			}
			return ast.NewAssignCopy(loc, p.env, dest, ast.NewArraySize(loc, arr)), nil
		}
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tSemicolon, ";"); err != nil {
		return nil, err
	}
	v := p.env.GetVar(name)
	if v == nil {
		v = p.env.AllocVar(name)
	}
	if v == nil {
		return nil, ast.NewError(ast.KindNamingConflict, loc, "%q cannot be assigned a scalar value", name)
	}
	return ast.NewAssignScalar(loc, p.env, v, expr), nil
}

// resolveAssignCallRHS disambiguates `name := callee(args);` once the
// whole right-hand side has been confirmed to be exactly one call.
func (p *parser) resolveAssignCallRHS(loc ast.Location, name string, callLoc ast.Location, rhsName string, args []ast.Node) (ast.Node, error) {
	if existingArr := p.env.GetArray(name); existingArr != nil {
		if rhsName == "arg" && len(args) == 1 {
			return ast.NewAssignArg(loc, p.env, existingArr, args[0]), nil
		}
		return p.env.GetArrayFunc(callLoc, rhsName, existingArr, args)
	}
	if existingVar := p.env.GetVar(name); existingVar != nil {
		var node ast.Node
		if rhsName == "arg" && len(args) == 1 {
			node = ast.NewArgQuery(callLoc, p.env, args[0], ast.ArgGetVar)
		} else {
			var err error
			node, err = p.env.GetFunction(callLoc, rhsName, args)
			if err != nil {
				return nil, err
			}
		}
		return ast.NewAssignScalar(loc, p.env, existingVar, node), nil
	}
	if rhsName == "arg" && len(args) == 1 {
		v := p.env.AllocVar(name)
		if v == nil {
			return nil, ast.NewError(ast.KindNamingConflict, loc, "%q cannot be assigned", name)
		}
		return ast.NewAssignScalar(loc, p.env, v, ast.NewArgQuery(callLoc, p.env, args[0], ast.ArgGetVar)), nil
	}
	if node, err := p.env.GetFunction(callLoc, rhsName, args); err == nil {
		v := p.env.AllocVar(name)
		if v == nil {
			return nil, ast.NewError(ast.KindNamingConflict, loc, "%q cannot be assigned", name)
		}
		return ast.NewAssignScalar(loc, p.env, v, node), nil
	} else if !isUndefined(err) {
		return nil, err
	}
	arr := p.env.AllocArray(name)
	if arr == nil {
		return nil, ast.NewError(ast.KindNamingConflict, loc, "%q cannot be assigned", name)
	}
	return p.env.GetArrayFunc(callLoc, rhsName, arr, args)
}

// resolveAssignArray returns name's array storage, allocating it if name
// is not yet declared.
func (p *parser) resolveAssignArray(loc ast.Location, name string) (storage.Array, error) {
	if arr := p.env.GetArray(name); arr != nil {
		return arr, nil
	}
	arr := p.env.AllocArray(name)
	if arr == nil {
		return nil, ast.NewError(ast.KindNamingConflict, loc, "%q cannot be used as an array", name)
	}
	return arr, nil
}

// ---- expressions ----

func (p *parser) parseExpr() (ast.Node, error) { return p.parseLogicalOr() }

func (p *parser) parseLogicalOr() (ast.Node, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.at(tOrOr) || p.at(tXorXor) {
		loc := p.loc()
		op := ast.OpLogOr
		if p.at(tXorXor) {
			op = ast.OpLogXor
		}
		p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, op, left, right)
	}
	return left, nil
}

func (p *parser) parseLogicalAnd() (ast.Node, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	for p.at(tAndAnd) {
		loc := p.loc()
		p.advance()
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, ast.OpLogAnd, left, right)
	}
	return left, nil
}

func (p *parser) parseBitOr() (ast.Node, error) {
	left, err := p.parseBitXor()
	if err != nil {
		return nil, err
	}
	for p.at(tPipe) {
		loc := p.loc()
		p.advance()
		right, err := p.parseBitXor()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, ast.OpOr, left, right)
	}
	return left, nil
}

func (p *parser) parseBitXor() (ast.Node, error) {
	left, err := p.parseBitAnd()
	if err != nil {
		return nil, err
	}
	for p.at(tCaret) {
		loc := p.loc()
		p.advance()
		right, err := p.parseBitAnd()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, ast.OpXor, left, right)
	}
	return left, nil
}

func (p *parser) parseBitAnd() (ast.Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.at(tAmp) {
		loc := p.loc()
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, ast.OpAnd, left, right)
	}
	return left, nil
}

func (p *parser) parseEquality() (ast.Node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.at(tEq) || p.at(tNe) {
		loc := p.loc()
		op := ast.OpEq
		if p.at(tNe) {
			op = ast.OpNe
		}
		p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, op, left, right)
	}
	return left, nil
}

func (p *parser) parseRelational() (ast.Node, error) {
	left, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for p.at(tLt) || p.at(tGt) || p.at(tLe) || p.at(tGe) {
		loc := p.loc()
		var op ast.BinaryOpKind
		switch {
		case p.at(tLt):
			op = ast.OpLt
		case p.at(tGt):
			op = ast.OpGt
		case p.at(tLe):
			op = ast.OpLe
		default:
			op = ast.OpGe
		}
		p.advance()
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, op, left, right)
	}
	return left, nil
}

func (p *parser) parseShift() (ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(tShl) || p.at(tShr) {
		loc := p.loc()
		op := ast.OpShl
		if p.at(tShr) {
			op = ast.OpShr
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, op, left, right)
	}
	return left, nil
}

func (p *parser) parseAdditive() (ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(tPlus) || p.at(tMinus) {
		loc := p.loc()
		op := ast.OpAdd
		if p.at(tMinus) {
			op = ast.OpSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, op, left, right)
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(tStar) || p.at(tSlash) || p.at(tPercent) {
		loc := p.loc()
		var op ast.BinaryOpKind
		switch {
		case p.at(tStar):
			op = ast.OpMul
		case p.at(tSlash):
			op = ast.OpDiv
		default:
			op = ast.OpMod
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(loc, p.env, op, left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Node, error) {
	if p.at(tMinus) || p.at(tTilde) || p.at(tBang) {
		loc := p.loc()
		var op ast.UnaryOpKind
		switch {
		case p.at(tMinus):
			op = ast.OpNeg
		case p.at(tTilde):
			op = ast.OpBitNot
		default:
			op = ast.OpLogNot
		}
		p.advance()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(loc, p.env, op, child), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ast.Node, error) {
	loc := p.loc()
	switch {
	case p.at(tInt):
		t := p.advance()
		c, ok := ast.NewConstantFromInt(loc, t.text)
		if !ok {
			return nil, p.errf("invalid integer literal %q", t.text)
		}
		return c, nil
	case p.at(tFloat):
		t := p.advance()
		c, ok := ast.NewConstantFromFloat(loc, t.text)
		if !ok {
			return nil, p.errf("invalid float literal %q", t.text)
		}
		return c, nil
	case p.at(tLParen):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case p.at(tIdent):
		if isKeyword(p.cur().text) {
			return nil, p.errf("unexpected keyword %q in expression", p.cur().text)
		}
		return p.parseIdentExpr()
	}
	return nil, p.errf("unexpected token %q", p.cur().text)
}

func (p *parser) parseIdentExpr() (ast.Node, error) {
	loc := p.loc()
	name := p.advance().text
	switch {
	case isMaskName(name):
		width := maskWidth(name)
		if _, err := p.expect(tLParen, "("); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return nil, err
		}
		return ast.NewRestriction(loc, p.env, e, width), nil

	case isPeekName(name):
		width := peekWidth(name)
		if _, err := p.expect(tLParen, "("); err != nil {
			return nil, err
		}
		addr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return nil, err
		}
		return ast.NewPeek(loc, p.env, addr, width), nil

	case signedOp(name) >= 0:
		op := signedOp(name)
		if _, err := p.expect(tLParen, "("); err != nil {
			return nil, err
		}
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tComma, ","); err != nil {
			return nil, err
		}
		b, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return nil, err
		}
		return ast.NewBinaryOp(loc, p.env, op, a, b), nil

	case name == "size":
		if _, err := p.expect(tLParen, "("); err != nil {
			return nil, err
		}
		argNameTok, err := p.expect(tIdent, "identifier")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return nil, err
		}
		arr := p.env.GetArray(argNameTok.text)
		if arr == nil {
			return nil, ast.NewError(ast.KindUndefinedVar, loc, "undefined array %q", argNameTok.text)
		}
		return ast.NewArraySize(loc, arr), nil

	case name == "range":
		if _, err := p.expect(tLParen, "("); err != nil {
			return nil, err
		}
		argNameTok, err := p.expect(tIdent, "identifier")
		if err != nil {
			return nil, err
		}
		def := p.env.GetVar(argNameTok.text)
		if def == nil {
			return nil, ast.NewError(ast.KindUndefinedVar, loc, "undefined variable %q", argNameTok.text)
		}
		if p.match(tComma) {
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRParen, ")"); err != nil {
				return nil, err
			}
			return ast.NewRangeIndexed(loc, p.env, def, idx), nil
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return nil, err
		}
		return ast.NewRangeOnly(loc, def), nil

	case name == "arg":
		if _, err := p.expect(tLParen, "("); err != nil {
			return nil, err
		}
		if p.match(tRParen) {
			return ast.NewArgCount(loc), nil
		}
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.match(tComma) {
			arrIdx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRParen, ")"); err != nil {
				return nil, err
			}
			return ast.NewArgIndexed(loc, p.env, idx, arrIdx), nil
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return nil, err
		}
		return ast.NewArgQuery(loc, p.env, idx, ast.ArgGetVar), nil

	case name == "argsize":
		if _, err := p.expect(tLParen, "("); err != nil {
			return nil, err
		}
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return nil, err
		}
		return ast.NewArgQuery(loc, p.env, idx, ast.ArgGetArraySize), nil

	case name == "argtype":
		if _, err := p.expect(tLParen, "("); err != nil {
			return nil, err
		}
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return nil, err
		}
		return ast.NewArgQuery(loc, p.env, idx, ast.ArgGetType), nil

	case p.at(tLParen):
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return p.env.GetFunction(loc, name, args)

	case p.at(tLBracket):
		p.advance()
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRBracket, "]"); err != nil {
			return nil, err
		}
		arr := p.env.GetArray(name)
		if arr == nil {
			return nil, ast.NewError(ast.KindUndefinedVar, loc, "undefined array %q", name)
		}
		return ast.NewArrayIndex(loc, p.env, arr, idx), nil

	default:
		if v := p.env.GetVar(name); v != nil {
			return ast.NewVar(loc, v), nil
		}
		if arr := p.env.GetArray(name); arr != nil {
			return ast.NewArraySize(loc, arr), nil
		}
		return nil, ast.NewError(ast.KindUndefinedVar, loc, "undefined variable %q", name)
	}
}

func isMaskName(s string) bool {
	switch s {
	case "mask8", "mask16", "mask32", "mask64":
		return true
	}
	return false
}

func maskWidth(s string) int {
	switch s {
	case "mask8":
		return 8
	case "mask16":
		return 16
	case "mask32":
		return 32
	default:
		return 64
	}
}

func isPeekName(s string) bool {
	switch s {
	case "peek8", "peek16", "peek32", "peek64":
		return true
	}
	return false
}

func peekWidth(s string) int {
	switch s {
	case "peek8":
		return 8
	case "peek16":
		return 16
	case "peek32":
		return 32
	default:
		return 64
	}
}

func signedOp(s string) ast.BinaryOpKind {
	switch s {
	case "slt":
		return ast.OpSLt
	case "sgt":
		return ast.OpSGt
	case "sle":
		return ast.OpSLe
	case "sge":
		return ast.OpSGe
	case "sdiv":
		return ast.OpSDiv
	case "smod":
		return ast.OpSMod
	}
	return -1
}
