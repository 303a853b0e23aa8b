// Package testutil holds test helpers that enforce the package boundaries of
// chemident: pkg/ stays free of internal code and only the blob and source
// wrappers reach into internal/infra.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// ModulePath is the import path prefix of this module.
const ModulePath = "chemident"

// InfraImportForbidden matches the concrete storage and source adapters under
// internal/infra.
func InfraImportForbidden(path string) bool {
	return path == ModulePath+"/internal/infra" || strings.HasPrefix(path, ModulePath+"/internal/infra/")
}

// InternalImportForbidden matches any package under this module's internal/
// tree. Standard library internals are not matched.
func InternalImportForbidden(path string) bool {
	return strings.HasPrefix(path, ModulePath+"/internal/")
}

// AssertNoTransitiveDependency loads the packages matching pattern and fails
// if any package in their import graph satisfies forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, err := transitiveDependencyViolations(pattern, forbidden)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	failIfTransitiveViolations(t, reason, viols)
}

// AssertNoDirectImports parses the non-test .go files directly in dir and
// fails if any import satisfies forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failIfDirectViolations(t, reason, viols)
}

// loadDeps returns the import paths of pattern and everything it imports.
var loadDeps = func(pattern string) ([]string, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	roots, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	var paths []string
	var loadErr error
	packages.Visit(roots, nil, func(p *packages.Package) {
		paths = append(paths, p.PkgPath)
		if len(p.Errors) > 0 && loadErr == nil {
			loadErr = fmt.Errorf("%s: %v", p.PkgPath, p.Errors[0])
		}
	})
	return paths, loadErr
}

func transitiveDependencyViolations(pattern string, forbidden func(path string) bool) ([]string, error) {
	paths, err := loadDeps(pattern)
	if err != nil {
		return nil, err
	}
	var viols []string
	for _, p := range paths {
		if p != "" && forbidden(p) {
			viols = append(viols, p)
		}
	}
	sort.Strings(viols)
	return viols, nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			ip, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, err
			}
			if forbidden(ip) {
				viols = append(viols, fmt.Sprintf("%s (in %s)", ip, filepath.Base(name)))
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfTransitiveViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden transitive dependency (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

func failIfDirectViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
