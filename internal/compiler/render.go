package compiler

import (
	"strings"

	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/helpers"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/template"
)

// Renders a chunk as a self-starting bootstrap: the module factory table,
// the module cache with the require function, the runtime modules and the
// call that starts the entry module.
func renderChunk(comp *Compilation, chunk *graph.Chunk, globals runtime.Globals, modules []runtime.RuntimeModule) []byte {
	cg := comp.ChunkGraph
	j := helpers.Joiner{}

	j.AddString("(() => { // webpackBootstrap\n")
	j.AddString("\"use strict\";\n")
	j.AddString("var __webpack_modules__ = ({\n")
	for i, id := range chunk.Modules {
		if i > 0 {
			j.AddString(",\n")
		}
		j.AddString(template.Quote(cg.MustModuleID(id)))
		j.AddString(":\n/*!")
		j.AddString(strings.Repeat("*", len(id)+4))
		j.AddString("!*\\\n  !*** ")
		j.AddString(strings.ReplaceAll(string(id), "*/", "*\\/"))
		j.AddString(" ***!\n  \\")
		j.AddString(strings.Repeat("*", len(id)+4))
		j.AddString("*/\n")
		j.AddString("(function (module, __webpack_exports__, __webpack_require__) {\n")
		j.AddString(comp.CodeGenResults[id].Source)
		j.EnsureNewlineAtEnd()
		j.AddString("})")
	}
	j.AddString("\n});\n")

	j.AddString(`// The module cache
var __webpack_module_cache__ = {};

// The require function
function __webpack_require__(moduleId) {
	// Check if module is in cache
	var cachedModule = __webpack_module_cache__[moduleId];
	if (cachedModule !== undefined) {
		return cachedModule.exports;
	}
	// Create a new module (and put it into the cache)
	var module = __webpack_module_cache__[moduleId] = {
		exports: {}
	};

	// Execute the module function
	__webpack_modules__[moduleId](module, module.exports, __webpack_require__);

	// Return the exports of the module
	return module.exports;
}
`)

	if globals.Has(runtime.ModuleCache) {
		j.AddString("\n// expose the module cache\n")
		j.AddString(runtime.ModuleCache.String())
		j.AddString(" = __webpack_module_cache__;\n")
	}

	for _, module := range modules {
		j.AddString("\n/* ")
		j.AddString(module.Name())
		j.AddString(" */\n(() => {\n")
		j.AddString(indent(module.Generate(cg), "\t"))
		j.AddString("})();\n")
	}

	j.AddString("\n// startup\n// Load entry module and return exports\n")
	j.AddString("var __webpack_exports__ = __webpack_require__(")
	j.AddString(template.Quote(cg.MustModuleID(chunk.EntryModule)))
	j.AddString(");\n})()\n;\n")

	return j.Done()
}

func indent(text string, prefix string) string {
	sb := strings.Builder{}
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if line != "\n" {
			sb.WriteString(prefix)
		}
		sb.WriteString(line)
	}
	if !strings.HasSuffix(text, "\n") {
		sb.WriteByte('\n')
	}
	return sb.String()
}
