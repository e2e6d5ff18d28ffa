// Package pkgutil loads Go packages and builds their SSA form for analysis.
package pkgutil

import (
	"errors"
	"os"
	"path"

	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Should be equivalent to packages.LoadAllSyntax (which is deprecated)
const LoadMode = packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedTypes |
	packages.NeedTypesSizes | packages.NeedImports | packages.NeedName |
	packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedDeps

// fakeDir holds the in-memory sources.
const fakeDir = "/fake/testpackage"

// LoadPackagesFromSource loads a single main.go file given as source.
func LoadPackagesFromSource(source string) ([]*packages.Package, error) {
	return LoadPackagesFromSources(map[string]string{"main.go": source})
}

// LoadPackagesFromSources loads one package made of the given files, keyed by
// file name.
func LoadPackagesFromSources(files map[string]string) ([]*packages.Package, error) {
	// The Overlay mechanism lets the tool load files that do not exist.
	overlay := make(map[string][]byte, len(files))
	queries := make([]string, 0, len(files))
	for name, src := range files {
		file := path.Join(fakeDir, name)
		overlay[file] = []byte(src)
		queries = append(queries, file)
	}
	slices.Sort(queries)

	config := &packages.Config{
		Mode:    LoadMode,
		Tests:   false,
		Dir:     "",
		Env:     append(os.Environ(), "GO111MODULE=off", "GOPATH=/fake"),
		Overlay: overlay,
	}

	return LoadPackagesWithConfig(config, queries...)
}

func LoadPackagesWithConfig(config *packages.Config, queries ...string) ([]*packages.Package, error) {
	pkgs, err := packages.Load(config, queries...)
	switch {
	case err != nil:
		return nil, err
	case packages.PrintErrors(pkgs) > 0:
		return pkgs, errors.New("errors encountered while loading packages")
	default:
		return pkgs, nil
	}
}

// BuildSSA creates and builds the SSA program of pkgs and their
// dependencies. The returned packages correspond to pkgs.
func BuildSSA(pkgs []*packages.Package, mode ssa.BuilderMode) (*ssa.Program, []*ssa.Package) {
	prog, spkgs := ssautil.AllPackages(pkgs, mode)
	prog.Build()
	return prog, spkgs
}
