package pkgutil_test

import (
	"testing"

	"github.com/BarrensZeppelin/devirt/pkgutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
)

func TestLoadPackagesFromSources(t *testing.T) {
	pkgs, err := pkgutil.LoadPackagesFromSources(map[string]string{
		"main.go": `
			package main

			func main() { helper() }`,
		"helper.go": `
			package main

			func helper() {}`,
	})
	require.Nil(t, err)
	require.Len(t, pkgs, 1)
	assert.Len(t, pkgs[0].Syntax, 2)

	prog, spkgs := pkgutil.BuildSSA(pkgs, ssa.SanityCheckFunctions)
	require.Len(t, spkgs, 1)
	assert.NotNil(t, prog)

	helper := spkgs[0].Func("helper")
	require.NotNil(t, helper)
	assert.NotEmpty(t, helper.Blocks, "functions are built")
}

func TestLoadPackagesFromSourceErrors(t *testing.T) {
	_, err := pkgutil.LoadPackagesFromSource(`
		package main

		func main() { undefined() }`)
	assert.Error(t, err)
}
