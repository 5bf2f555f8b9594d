// Package script checks SecRuleScript files at compile time. Scripts are
// parsed and compiled to Lua bytecode but never run.
package script

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"

	"github.com/klyr/seclang/internal/logging"
)

// Loader compiles Lua scripts and caches the result per path.
type Loader struct {
	mu     sync.Mutex
	protos map[string]*lua.FunctionProto
}

func NewLoader() *Loader {
	return &Loader{protos: map[string]*lua.FunctionProto{}}
}

// Load reports whether path holds a compilable Lua script.
func (l *Loader) Load(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".lua") {
		return logging.Unsupportedf("SecRuleScript", "Script engine for %s is not supported, only Lua scripts can be loaded", path)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.protos[path]; ok {
		return nil
	}

	proto, err := compileFile(path)
	if err != nil {
		return err
	}
	l.protos[path] = proto
	return nil
}

func compileFile(path string) (*lua.FunctionProto, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, logging.NewError(logging.KindSemantic, "Failed to open file: "+path, err)
	}
	defer file.Close()

	chunk, err := parse.Parse(bufio.NewReader(file), path)
	if err != nil {
		return nil, logging.NewError(logging.KindSemantic, err.Error(), err)
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, logging.NewError(logging.KindSemantic, err.Error(), err)
	}
	if !definesMain(chunk) {
		return nil, logging.Semanticf("%s does not define a main function", path)
	}
	return proto, nil
}

// definesMain looks for a top-level "function main" declaration or an
// assignment to main, which the engine calls for every evaluation.
func definesMain(chunk []ast.Stmt) bool {
	for _, stmt := range chunk {
		switch s := stmt.(type) {
		case *ast.FuncDefStmt:
			if ident, ok := s.Name.Func.(*ast.IdentExpr); ok && ident.Value == "main" {
				return true
			}
		case *ast.AssignStmt:
			for _, lhs := range s.Lhs {
				if ident, ok := lhs.(*ast.IdentExpr); ok && ident.Value == "main" {
					return true
				}
			}
		case *ast.LocalAssignStmt:
			for _, name := range s.Names {
				if name == "main" {
					return true
				}
			}
		}
	}
	return false
}
