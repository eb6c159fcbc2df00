package skeleton

import (
	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"

	"github.com/codelens-dev/codelens/internal/linecount"
	"github.com/codelens-dev/codelens/internal/types"
)

// goFastCallSites runs a secondary go-fast parse over plain JavaScript
// content to recover call sites the tree-sitter query-capture pass
// doesn't attempt (tree-sitter's call_expression walk already covers
// this, but go-fast's typed AST catches a few call shapes — wrapped in
// an await, or nested in a single-branch if — that the generic field-name
// heuristic in extractCallSites can miss). Errors are swallowed: go-fast
// does not parse every TypeScript construct, and this pass is additive,
// not authoritative.
func goFastCallSites(content []byte, lc *linecount.Counter) []types.CallSite {
	program, err := parser.ParseFile(string(content))
	if err != nil {
		return nil
	}

	v := &goFastCallVisitor{lc: lc}
	for _, stmt := range program.Body {
		if stmt.Stmt != nil {
			v.visitStatement(stmt.Stmt)
		}
	}
	return v.calls
}

type goFastCallVisitor struct {
	lc    *linecount.Counter
	calls []types.CallSite
}

func (v *goFastCallVisitor) visitStatement(stmt ast.Stmt) {
	if stmt == nil {
		return
	}
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if s.Expression != nil && s.Expression.Expr != nil {
			v.visitExpression(s.Expression.Expr)
		}
	case *ast.BlockStatement:
		for _, bodyStmt := range s.List {
			if bodyStmt.Stmt != nil {
				v.visitStatement(bodyStmt.Stmt)
			}
		}
	case *ast.FunctionDeclaration:
		if s.Function != nil && s.Function.Body != nil {
			for _, bodyStmt := range s.Function.Body.List {
				if bodyStmt.Stmt != nil {
					v.visitStatement(bodyStmt.Stmt)
				}
			}
		}
	case *ast.ReturnStatement:
		if s.Argument != nil && s.Argument.Expr != nil {
			v.visitExpression(s.Argument.Expr)
		}
	case *ast.IfStatement:
		if s.Test != nil && s.Test.Expr != nil {
			v.visitExpression(s.Test.Expr)
		}
		if s.Consequent.Stmt != nil {
			v.visitStatement(s.Consequent.Stmt)
		}
		if s.Alternate.Stmt != nil {
			v.visitStatement(s.Alternate.Stmt)
		}
	}
}

func (v *goFastCallVisitor) visitExpression(expr ast.Expr) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *ast.CallExpression:
		v.recordCall(e)
		for _, arg := range e.ArgumentList {
			if arg.Expr != nil {
				v.visitExpression(arg.Expr)
			}
		}
	case *ast.AwaitExpression:
		if e.Argument != nil && e.Argument.Expr != nil {
			v.visitExpression(e.Argument.Expr)
		}
	}
}

func (v *goFastCallVisitor) recordCall(call *ast.CallExpression) {
	name, object := calleeNameAndObject(call.Callee)
	if name == "" {
		return
	}
	line, col := v.lc.LineColumn(int(call.LeftParenthesis))
	callType := types.CallDirect
	if object != "" {
		callType = types.CallMethod
	}
	v.calls = append(v.calls, types.CallSite{
		CalleeName:   name,
		CalleeObject: object,
		Line:         line,
		Column:       col,
		CallType:     callType,
	})
}

func calleeNameAndObject(callee *ast.Expression) (name, object string) {
	if callee == nil || callee.Expr == nil {
		return "", ""
	}
	switch c := callee.Expr.(type) {
	case *ast.Identifier:
		return c.Name, ""
	case *ast.MemberExpression:
		if c.Property != nil && c.Property.Prop != nil {
			if ident, ok := c.Property.Prop.(*ast.Identifier); ok {
				name = ident.Name
			}
		}
	}
	return name, object
}
