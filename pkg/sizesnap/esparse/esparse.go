// Package esparse parses ES module source and locates its top-level import
// declarations. Offsets are in bytes; sizes are in UTF-16 code units.
package esparse

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// ImportDecl is one top-level import declaration. Start and End are byte
// offsets; End is exclusive and includes the terminating semicolon when one
// is present. Size is the length of the declaration text in UTF-16 units.
type ImportDecl struct {
	Start  int
	End    int
	Size   int64
	Source string
}

// Module is a parsed ES module.
type Module struct {
	Imports []ImportDecl
}

// ImportSize sums the sizes of every top-level import declaration.
func (m *Module) ImportSize() int64 {
	var total int64
	for _, imp := range m.Imports {
		total += imp.Size
	}
	return total
}

// Parse validates src as an ES module and records its top-level import
// declarations. Invalid input yields a *types.SyntaxError with stage "parse".
func Parse(src string) (*Module, error) {
	ast, err := js.Parse(parse.NewInputString(src), js.Options{})
	if err != nil {
		return nil, &types.SyntaxError{Stage: "parse", Messages: []string{describe(err)}}
	}

	declared := 0
	for _, stmt := range ast.BlockStmt.List {
		if _, ok := stmt.(*js.ImportStmt); ok {
			declared++
		}
	}

	toks, err := tokenize(src)
	if err != nil {
		return nil, &types.SyntaxError{Stage: "parse", Messages: []string{describe(err)}}
	}

	imports := scanImports(src, toks)
	if len(imports) != declared {
		return nil, fmt.Errorf("esparse: located %d import declarations, parser found %d", len(imports), declared)
	}

	return &Module{Imports: imports}, nil
}

func describe(err error) string {
	var perr *parse.Error
	if errors.As(err, &perr) {
		return fmt.Sprintf("%d:%d: %s", perr.Line, perr.Column, perr.Message)
	}
	return err.Error()
}

type token struct {
	tt    js.TokenType
	text  string
	start int
	end   int

	// newline reports a line break between this token and the previous
	// significant one.
	newline bool

	// stmtParen marks the closing paren of an if/for/while/with head, after
	// which a slash starts a regular expression.
	stmtParen bool

	// params marks the closing paren of a function parameter list; fnExpr
	// tells whether that function is an expression.
	params bool
	fnExpr bool

	// exprBrace marks a closing brace that ends an expression (an object
	// literal, or a function or class expression body). A slash after it
	// is a division.
	exprBrace bool
}

type parenKind int

const (
	parenPlain parenKind = iota
	parenStmt
	parenFuncDecl
	parenFuncExpr
)

// opener is a function or class keyword waiting for its parameter list or
// body at the nesting depth where it appeared.
type opener struct {
	expr   bool
	parens int
	braces int
}

// tokenize lexes src into significant tokens with byte offsets.
func tokenize(src string) ([]token, error) {
	offset := 0
	if strings.HasPrefix(src, "#!") {
		if i := strings.IndexAny(src, "\r\n"); i >= 0 {
			offset = i
		} else {
			return nil, nil
		}
	}

	l := js.NewLexer(parse.NewInputString(src[offset:]))
	var (
		toks    []token
		parens  []parenKind
		braces  []bool
		fn, cls *opener
	)
	newline := false

	for {
		tt, data := l.Next()
		start := offset

		switch tt {
		case js.ErrorToken:
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			return toks, nil
		case js.DivToken, js.DivEqToken:
			if regexAllowed(toks) {
				tt, data = l.RegExp()
				if tt == js.ErrorToken {
					return nil, l.Err()
				}
			}
		}

		offset += len(data)

		switch tt {
		case js.WhitespaceToken, js.CommentToken:
			continue
		case js.LineTerminatorToken, js.CommentLineTerminatorToken:
			newline = true
			continue
		}

		tok := token{tt: tt, text: string(data), start: start, end: offset, newline: newline}
		here := func(o *opener) bool {
			return o != nil && o.parens == len(parens) && o.braces == len(braces)
		}

		switch tt {
		case js.FunctionToken:
			fn = &opener{expr: !declarationPosition(toks, newline), parens: len(parens), braces: len(braces)}
		case js.ClassToken:
			cls = &opener{expr: !declarationPosition(toks, newline), parens: len(parens), braces: len(braces)}
		case js.OpenParenToken:
			kind := parenPlain
			switch {
			case here(fn):
				kind = parenFuncDecl
				if fn.expr {
					kind = parenFuncExpr
				}
				fn = nil
			case len(toks) > 0 && isStmtHead(toks[len(toks)-1].tt):
				kind = parenStmt
			}
			parens = append(parens, kind)
		case js.CloseParenToken:
			if n := len(parens); n > 0 {
				kind := parens[n-1]
				tok.stmtParen = kind == parenStmt
				tok.params = kind == parenFuncDecl || kind == parenFuncExpr
				tok.fnExpr = kind == parenFuncExpr
				parens = parens[:n-1]
			}
		case js.OpenBraceToken:
			var expr bool
			if here(cls) {
				expr = cls.expr
				cls = nil
			} else {
				expr = objectLiteral(toks)
			}
			braces = append(braces, expr)
		case js.CloseBraceToken:
			if n := len(braces); n > 0 {
				tok.exprBrace = braces[n-1]
				braces = braces[:n-1]
			}
		}
		toks = append(toks, tok)
		newline = false
	}
}

// objectLiteral reports whether a brace after toks opens an expression: an
// object literal or the body of a function expression.
func objectLiteral(toks []token) bool {
	if len(toks) == 0 {
		return false
	}
	prev := toks[len(toks)-1]

	switch prev.tt {
	case js.CloseParenToken:
		return prev.params && prev.fnExpr
	case js.SemicolonToken, js.OpenBraceToken, js.CloseBraceToken, js.ArrowToken,
		js.ElseToken, js.DoToken, js.TryToken, js.FinallyToken:
		return false
	}
	return regexAllowed(toks)
}

// declarationPosition reports whether a function or class keyword following
// toks starts a declaration rather than an expression.
func declarationPosition(toks []token, newline bool) bool {
	n := len(toks)
	if n > 0 && toks[n-1].tt == js.AsyncToken {
		newline = toks[n-1].newline
		n--
	}
	if n == 0 {
		return true
	}
	prev := toks[n-1]

	switch prev.tt {
	case js.SemicolonToken, js.OpenBraceToken, js.CloseBraceToken,
		js.ElseToken, js.DoToken, js.ExportToken, js.DefaultToken:
		return true
	case js.CloseParenToken:
		if prev.stmtParen {
			return true
		}
	}
	// A line break after a complete expression ends the statement.
	return newline && !regexAllowed(toks[:n])
}

// regexAllowed reports whether a slash at this point starts a regular
// expression literal rather than a division.
func regexAllowed(toks []token) bool {
	if len(toks) == 0 {
		return true
	}
	prev := toks[len(toks)-1]

	switch prev.tt {
	case js.CloseParenToken:
		return prev.stmtParen
	case js.CloseBraceToken:
		return !prev.exprBrace
	case js.CloseBracketToken, js.IncrToken, js.DecrToken,
		js.StringToken, js.TemplateToken, js.TemplateEndToken, js.RegExpToken,
		js.PrivateIdentifierToken:
		return false
	case js.ReturnToken, js.TypeofToken, js.InstanceofToken, js.InToken, js.NewToken,
		js.DeleteToken, js.VoidToken, js.ThrowToken, js.CaseToken, js.DoToken,
		js.ElseToken, js.YieldToken, js.AwaitToken, js.OfToken:
		return true
	}

	if js.IsNumeric(prev.tt) || js.IsIdentifierName(prev.tt) {
		return false
	}
	return true
}

func isStmtHead(tt js.TokenType) bool {
	return tt == js.IfToken || tt == js.ForToken || tt == js.WhileToken || tt == js.WithToken
}

// scanImports finds import declarations at module level. Import calls and
// import.meta are expressions, not declarations.
func scanImports(src string, toks []token) []ImportDecl {
	var imports []ImportDecl
	depth := 0

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch tok.tt {
		case js.OpenBraceToken, js.OpenParenToken, js.OpenBracketToken, js.TemplateStartToken:
			depth++
			continue
		case js.CloseBraceToken, js.CloseParenToken, js.CloseBracketToken, js.TemplateEndToken:
			depth--
			continue
		case js.ImportToken:
		default:
			continue
		}

		if depth != 0 || i+1 >= len(toks) {
			continue
		}
		if i > 0 && (toks[i-1].tt == js.DotToken || toks[i-1].tt == js.OptChainToken) {
			continue
		}
		if next := toks[i+1].tt; next == js.OpenParenToken || next == js.DotToken {
			continue
		}

		decl, lit := importSpan(toks, i)
		if lit != i {
			decl.Source = unquote(src[toks[lit].start:toks[lit].end])
		}
		decl.Size = types.Length(src[decl.Start:decl.End])
		imports = append(imports, decl)
	}

	return imports
}

// importSpan measures the declaration starting at toks[i]. It returns the
// declaration and the index of its module specifier token.
func importSpan(toks []token, i int) (ImportDecl, int) {
	decl := ImportDecl{Start: toks[i].start, End: toks[i].end}
	lit := i

	depth := 0
	j := i + 1
	for ; j < len(toks); j++ {
		switch toks[j].tt {
		case js.OpenBraceToken:
			depth++
		case js.CloseBraceToken:
			depth--
		case js.StringToken:
			if depth == 0 {
				lit = j
			}
		}
		if lit != i {
			break
		}
	}
	if lit == i {
		decl.End = toks[len(toks)-1].end
		return decl, i
	}
	decl.End = toks[lit].end
	j = lit + 1

	// import attributes: with { type: "json" }
	if j+1 < len(toks) && !toks[j].newline && isAttributesKeyword(toks[j]) && toks[j+1].tt == js.OpenBraceToken {
		depth = 0
		for k := j + 1; k < len(toks); k++ {
			if toks[k].tt == js.OpenBraceToken {
				depth++
			} else if toks[k].tt == js.CloseBraceToken {
				depth--
				if depth == 0 {
					decl.End = toks[k].end
					j = k + 1
					break
				}
			}
		}
	}

	if j < len(toks) && toks[j].tt == js.SemicolonToken {
		decl.End = toks[j].end
	}
	return decl, lit
}

func isAttributesKeyword(tok token) bool {
	return tok.tt == js.WithToken || tok.text == "assert"
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}
