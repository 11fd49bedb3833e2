package manifest_test

import (
	"context"
	"testing"

	"github.com/evanw/packcore/internal/cache"
	"github.com/evanw/packcore/internal/dependency"
	"github.com/evanw/packcore/internal/fs"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/logger"
	"github.com/evanw/packcore/internal/manifest"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/treeshaking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importExample = `
modules:
  src/index.js:
    source: |
      import { foo } from "./lib.js";
      foo();
    deps:
      - kind: esm-compatibility
      - kind: esm-import
        request: ./lib.js
        sourceOrder: 1
      - kind: esm-import-specifier
        request: ./lib.js
        sourceOrder: 1
        match: foo
        nth: 2
        ids: [foo]
        call: true
      - kind: const
        match: 'import { foo } from "./lib.js";'
        code: ""
    refs:
      - kind: import
        local: foo
        imported: foo
        dep: 1
      - kind: usage
        local: foo
  src/lib.js:
    source: |
      export function foo() {}
    deps:
      - kind: esm-export-specifier
        name: foo
        value: foo
    refs:
      - kind: declaration
        local: foo
        exported: foo
  lodash:
    exportsKind: commonjs
    source: |
      module.exports = {};
`

func parse(t *testing.T, contents string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse(manifest.Options{}, []byte(contents), ".")
	require.NoError(t, err)
	return m
}

func TestCreate(t *testing.T) {
	m := parse(t, importExample)
	assert.Equal(t, []string{"lodash", "src/index.js", "src/lib.js"}, m.ModuleIDs())

	result, err := m.Create(context.Background(), "src/index.js")
	require.NoError(t, err)
	module := result.Module

	assert.Equal(t, graph.ModuleIdentifier("src/index.js"), module.Identifier)
	assert.Equal(t, "src/index.js", module.Source.KeyPath)
	assert.Equal(t, graph.ExportsESM, module.ExportsKind)
	require.Len(t, module.Dependencies, 4)

	for i, dep := range module.Dependencies {
		assert.Equal(t, graph.MakeDependencyID("src/index.js", uint32(i)), dep.ID())
	}
	assert.IsType(t, &dependency.Compatibility{}, module.Dependencies[0])
	assert.IsType(t, &dependency.ImportSideEffect{}, module.Dependencies[1])
	assert.IsType(t, &dependency.Const{}, module.Dependencies[3])

	// The second "foo" is the call
	specifier, ok := module.Dependencies[2].(*dependency.ImportSpecifier)
	require.True(t, ok)
	span, ok := specifier.Span()
	require.True(t, ok)
	assert.Equal(t, graph.Span{Start: 32, End: 35}, span)
	assert.Equal(t, "./lib.js", specifier.Request())

	require.Len(t, result.SymbolRefs, 2)
	assert.Equal(t, treeshaking.Indirect{
		Kind:         treeshaking.IndirectImport,
		Importer:     "src/index.js",
		Source:       "./lib.js",
		Imported:     "foo",
		Local:        "foo",
		DependencyID: graph.MakeDependencyID("src/index.js", 1),
	}, result.SymbolRefs[0])
	assert.Equal(t, treeshaking.Usage{Module: "src/index.js", Local: "foo"}, result.SymbolRefs[1])
}

func TestExportsKind(t *testing.T) {
	m := parse(t, importExample)

	lib, err := m.Create(context.Background(), "src/lib.js")
	require.NoError(t, err)
	assert.Equal(t, graph.ExportsESM, lib.Module.ExportsKind)
	assert.Equal(t, []treeshaking.SymbolRef{
		treeshaking.Declaration{Module: "src/lib.js", Local: "foo", Exported: "foo"},
	}, lib.SymbolRefs)

	lodash, err := m.Create(context.Background(), "lodash")
	require.NoError(t, err)
	assert.Equal(t, graph.ExportsCommonJS, lodash.Module.ExportsKind)
	assert.Empty(t, lodash.Module.Dependencies)
}

func TestResolve(t *testing.T) {
	m := parse(t, importExample)
	ctx := context.Background()

	cases := []struct {
		importer graph.ModuleIdentifier
		request  string
		expected graph.ModuleIdentifier
		ok       bool
	}{
		{"", "./src/index.js", "src/index.js", true},
		{"", "src/index.js", "src/index.js", true},
		{"", "/src/index.js", "src/index.js", true},
		{"src/index.js", "./lib.js", "src/lib.js", true},
		{"src/index.js", "../src/lib.js", "src/lib.js", true},
		{"src/index.js", "lodash", "lodash", true},
		{"src/index.js", "./missing.js", "", false},
		{"src/index.js", "lib.js", "", false},
	}
	for _, c := range cases {
		t.Run(string(c.importer)+" "+c.request, func(t *testing.T) {
			id, ok, err := m.Resolve(ctx, c.importer, c.request)
			require.NoError(t, err)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.expected, id)
		})
	}
}

func TestResolveCanceled(t *testing.T) {
	m := parse(t, importExample)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.Resolve(ctx, "", "./src/index.js")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.Create(ctx, "src/index.js")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadReadsModuleFiles(t *testing.T) {
	mockFS := fs.NewMockFS(map[string]string{
		"project/build.yaml": "modules:\n  main.js:\n    file: src/main.js\n",
		"project/src/main.js": "console.log(1);\n",
	})
	cacheSet := cache.MakeCacheSet()
	m, err := manifest.Load(manifest.Options{FS: mockFS, FSCache: &cacheSet.FSCache}, "project/build.yaml")
	require.NoError(t, err)

	result, err := m.Create(context.Background(), "main.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1);\n", result.Module.Source.Contents)
	assert.Equal(t, graph.ExportsNone, result.Module.ExportsKind)

	_, err = manifest.Load(manifest.Options{FS: mockFS}, "project/missing.yaml")
	assert.Error(t, err)
}

func TestWorkerSyntax(t *testing.T) {
	contents := `
modules:
  main.js:
    source: |
      import { Worker } from "worker_threads";
      new Worker(new URL("./w.js", import.meta.url));
    deps:
      - kind: worker
        request: ./w.js
        match: 'new URL("./w.js", import.meta.url)'
        callee: Worker
        from: worker_threads
      - kind: worker
        request: ./w.js
        match: 'new URL("./w.js", import.meta.url)'
    refs:
      - kind: worker
        dep: 0
  w.js:
    source: ""
`
	m := parse(t, contents)
	result, err := m.Create(context.Background(), "main.js")
	require.NoError(t, err)

	imported, ok := result.Module.Dependencies[0].(*dependency.Worker)
	require.True(t, ok)
	assert.Equal(t, "Worker from worker_threads", imported.Syntax())
	global, ok := result.Module.Dependencies[1].(*dependency.Worker)
	require.True(t, ok)
	assert.Equal(t, "Worker", global.Syntax())

	assert.Equal(t, []treeshaking.SymbolRef{treeshaking.Worker{
		Importer:     "main.js",
		Source:       "./w.js",
		DependencyID: graph.MakeDependencyID("main.js", 0),
	}}, result.SymbolRefs)

	// Only the configured constructors are recognized
	list, err := dependency.ParseWorkerSyntax([]string{"SharedWorker"})
	require.NoError(t, err)
	restricted, err := manifest.Parse(manifest.Options{WorkerSyntax: &list}, []byte(contents), ".")
	require.NoError(t, err)
	_, err = restricted.Create(context.Background(), "main.js")
	assert.ErrorContains(t, err, "not a supported worker constructor")
}

func TestRuntimeGlobals(t *testing.T) {
	m := parse(t, `
modules:
  main.js:
    source: "module.id;\n"
    deps:
      - kind: const
        match: module.id
        code: module.id
        globals: [module]
      - kind: runtime-requirements
        globals: [__webpack_require__, __webpack_require__.c]
      - kind: static-exports
        unknown: true
`)
	result, err := m.Create(context.Background(), "main.js")
	require.NoError(t, err)
	require.Len(t, result.Module.Dependencies, 3)
	assert.Equal(t, dependency.NewRuntimeRequirements(
		graph.MakeDependencyID("main.js", 1), runtime.Require|runtime.ModuleCache,
	), result.Module.Dependencies[1])
	assert.Equal(t, dependency.NewUnknownExports(graph.MakeDependencyID("main.js", 2)), result.Module.Dependencies[2])
}

func TestEvaluatedExpressions(t *testing.T) {
	m := parse(t, `
modules:
  main.js:
    source: "if (DEBUG) log(VERSION, PATTERN);\n"
    deps:
      - kind: evaluated
        match: DEBUG
        type: boolean
        value: "false"
      - kind: evaluated
        match: VERSION
        type: string
        value: 1.2.3
      - kind: evaluated
        match: PATTERN
        type: regexp
        value: "^v\\d+"
        flags: gi
`)
	result, err := m.Create(context.Background(), "main.js")
	require.NoError(t, err)
	require.Len(t, result.Module.Dependencies, 3)

	codes := []string{}
	for _, dep := range result.Module.Dependencies {
		d, ok := dep.(*dependency.Const)
		require.True(t, ok)
		codes = append(codes, d.Code())
	}
	assert.Equal(t, []string{"false", `"1.2.3"`, `/^v\d+/gi`}, codes)
	span, ok := result.Module.Dependencies[1].Span()
	require.True(t, ok)
	assert.Equal(t, graph.Span{Start: 15, End: 22}, span)
}

func TestRefRange(t *testing.T) {
	m := parse(t, `
modules:
  main.js:
    source: "const x = require('./a.js');\n"
    deps:
      - kind: cjs-require
        request: ./a.js
        match: "require('./a.js')"
    refs:
      - kind: import
        local: x
        imported: x
        dep: 0
`)
	result, err := m.Create(context.Background(), "main.js")
	require.NoError(t, err)
	ref, ok := result.SymbolRefs[0].(treeshaking.Indirect)
	require.True(t, ok)
	assert.Equal(t, logger.Range{Loc: logger.Loc{Start: 10}, Len: 17}, ref.Range)
}

func TestErrors(t *testing.T) {
	cases := []struct {
		name     string
		module   string
		expected string
	}{
		{"unknown kind", "deps: [{kind: magic}]", `unknown dependency kind "magic"`},
		{"missing kind", "deps: [{request: ./a.js}]", `missing "kind"`},
		{"missing match", "deps: [{kind: url, request: ./a.js}]", `missing "match"`},
		{"match not found", "deps: [{kind: url, request: ./a.js, match: nope}]", `occurrence 1 of "nope" not found`},
		{"nth not found", "deps: [{kind: url, request: ./a.js, match: x, nth: 3}]", `occurrence 3 of "x" not found`},
		{"unknown global", "deps: [{kind: runtime-requirements, globals: [window]}]", `unknown runtime global "window"`},
		{"bad context", "deps: [{kind: import-context, request: ./dir, match: x, callee: import}]", `must start with the callee`},
		{"bad exports kind", "exportsKind: amd", `unknown exports kind "amd"`},
		{"ref without dep", "refs: [{kind: import, local: x}]", `needs "dep"`},
		{"ref out of range", "refs: [{kind: import, local: x, dep: 2}]", `dependency 2 does not exist`},
		{"unknown ref", "refs: [{kind: magic}]", `needs "dep"`},
		{"missing value type", "deps: [{kind: evaluated, match: x}]", `missing "type"`},
		{"bad number", "deps: [{kind: evaluated, match: x, type: number, value: ten}]", `invalid number "ten"`},
		{"bad regexp flags", "deps: [{kind: evaluated, match: x, type: regexp, value: a, flags: gg}]", `is not a compile-time value`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := parse(t, "modules:\n  main.js:\n    source: \"x;\\n\"\n    "+c.module+"\n")
			_, err := m.Create(context.Background(), "main.js")
			assert.ErrorContains(t, err, c.expected)
		})
	}

	m := parse(t, importExample)
	_, err := m.Create(context.Background(), "missing.js")
	assert.ErrorContains(t, err, "not in the manifest")
}

func TestParseErrors(t *testing.T) {
	_, err := manifest.Parse(manifest.Options{}, []byte("modules: ["), ".")
	assert.ErrorContains(t, err, "failed to parse manifest")

	_, err = manifest.Parse(manifest.Options{}, []byte("modules:\n  a.js:\n"), ".")
	assert.ErrorContains(t, err, `module "a.js" is empty`)

	_, err = manifest.Parse(manifest.Options{}, []byte("modules:\n  a.js:\n    source: x\n    file: a.js\n"), ".")
	assert.ErrorContains(t, err, "both a source and a file")
}
