// Resolve user function calls and determine which parameters are
// arrays.
//
// Arrays are passed to functions by reference, so the interpreter has
// to know at call time whether each parameter is an array or a
// scalar. Most of the time usage inside the function body decides
// directly; a parameter that's only ever passed on to another
// function takes the kind of the parameter it's passed to, resolved
// by a small fixed-point iteration over the call links.

package parser

import (
	. "github.com/pegasusheavy/rawk/internal/ast"
	. "github.com/pegasusheavy/rawk/lexer"
)

type varKind int

const (
	kindUnknown varKind = iota
	kindScalar
	kindArray
)

type varInfo struct {
	kind varKind
	ref  *VarExpr // the reference that marked it scalar, for call-arg rebinding
	// Call link for parameters only used as call arguments
	callName string
	argIndex int
}

type scopeInfo struct {
	vars map[string]*varInfo
}

type userCall struct {
	call *UserCallExpr
	pos  Position
}

func (p *parser) initResolve() {
	p.scopes = map[string]*scopeInfo{
		"": {vars: make(map[string]*varInfo)},
	}
	p.functions = make(map[string]int)
}

func (p *parser) startFunction(name string, params []string) {
	p.funcName = name
	p.locals = make(map[string]bool, len(params))
	for _, param := range params {
		p.locals[param] = true
	}
	p.scopes[name] = &scopeInfo{vars: make(map[string]*varInfo)}
}

func (p *parser) stopFunction() {
	p.funcName = ""
	p.locals = nil
}

// infoFor returns (creating if necessary) the tracking entry for a
// name: in the current function's scope if it's a parameter, in the
// global scope otherwise.
func (p *parser) infoFor(name string) *varInfo {
	scopeName := ""
	if p.funcName != "" && p.locals[name] {
		scopeName = p.funcName
	}
	scope := p.scopes[scopeName]
	info := scope.vars[name]
	if info == nil {
		info = &varInfo{}
		scope.vars[name] = info
	}
	return info
}

// varRef builds a scalar variable reference and marks the name's kind
// if it isn't known yet.
func (p *parser) varRef(name string, pos Position) *VarExpr {
	expr := &VarExpr{Name: name, Pos: pos}
	if IsSpecialVar(name) {
		return expr
	}
	info := p.infoFor(name)
	if info.kind == kindUnknown && info.callName == "" {
		info.kind = kindScalar
		info.ref = expr
	}
	return expr
}

// arrayRef marks a name as used as an array.
func (p *parser) arrayRef(name string, pos Position) {
	if IsSpecialVar(name) {
		panic(PosErrorf(pos, "can't use special variable %q as an array", name))
	}
	p.infoFor(name).kind = kindArray
}

// processUserCallArg handles a bare variable passed as a call
// argument: if this reference is the only thing we know about the
// name, its kind is whatever the callee's parameter turns out to be.
func (p *parser) processUserCallArg(callName string, arg Expr, index int) {
	varExpr, ok := arg.(*VarExpr)
	if !ok || IsSpecialVar(varExpr.Name) {
		return
	}
	info := p.infoFor(varExpr.Name)
	if info.ref == varExpr {
		info.kind = kindUnknown
		info.ref = nil
		info.callName = callName
		info.argIndex = index
	}
}

func (p *parser) recordUserCall(call *UserCallExpr, pos Position) {
	p.userCalls = append(p.userCalls, userCall{call, pos})
}

// resolve checks user calls against definitions and fills in
// Function.Arrays for every function.
func (p *parser) resolve(prog *Program) {
	for _, c := range p.userCalls {
		index, ok := p.functions[c.call.Name]
		if !ok {
			panic(PosErrorf(c.pos, "undefined function %q", c.call.Name))
		}
		function := prog.Functions[index]
		if len(c.call.Args) > len(function.Params) {
			panic(PosErrorf(c.pos, "%q called with more arguments than declared", c.call.Name))
		}
	}

	for _, f := range prog.Functions {
		if _, ok := p.scopes[""].vars[f.Name]; ok {
			panic(PosErrorf(f.Pos, "global var %q can't also be a function", f.Name))
		}
	}

	// Chains of pass-through parameters are rare; a handful of rounds
	// resolves anything that can be resolved, and what's left
	// defaults to scalar.
	for i := 0; i < 5; i++ {
		numUnknowns := 0
		for _, scope := range p.scopes {
			for _, info := range scope.vars {
				if info.kind != kindUnknown || info.callName == "" {
					continue
				}
				index, ok := p.functions[info.callName]
				if !ok {
					continue // already reported above
				}
				function := prog.Functions[index]
				paramName := function.Params[info.argIndex]
				paramInfo := p.scopes[info.callName].vars[paramName]
				if paramInfo != nil && paramInfo.kind != kindUnknown {
					info.kind = paramInfo.kind
				} else {
					numUnknowns++
				}
			}
		}
		if numUnknowns == 0 {
			break
		}
	}

	for _, f := range prog.Functions {
		arrays := make([]bool, len(f.Params))
		scope := p.scopes[f.Name]
		for i, param := range f.Params {
			if info := scope.vars[param]; info != nil && info.kind == kindArray {
				arrays[i] = true
			}
		}
		f.Arrays = arrays
	}
}
