package manifest

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/evanw/packcore/internal/dependency"
	"github.com/evanw/packcore/internal/eval"
	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/logger"
	"github.com/evanw/packcore/internal/runtime"
	"github.com/evanw/packcore/internal/treeshaking"
)

// Turns the specs of one module into dependencies and symbol references
type builder struct {
	manifest *Manifest
	module   *graph.Module
}

func (b *builder) span(dep DepSpec) (graph.Span, error) {
	if dep.Match == "" {
		return graph.Span{}, errors.New("missing \"match\"")
	}
	nth := dep.Nth
	if nth == 0 {
		nth = 1
	}
	contents := b.module.Source.Contents
	offset := 0
	for i := 0; i < nth; i++ {
		index := strings.Index(contents[offset:], dep.Match)
		if index < 0 {
			return graph.Span{}, fmt.Errorf("occurrence %d of %q not found", nth, dep.Match)
		}
		offset += index
		if i+1 < nth {
			offset += len(dep.Match)
		}
	}
	return graph.Span{Start: uint32(offset), End: uint32(offset + len(dep.Match))}, nil
}

func (b *builder) dependency(index uint32, dep DepSpec) (graph.Dependency, error) {
	id := graph.MakeDependencyID(b.module.Identifier, index)

	switch dep.Kind {
	case "esm-compatibility":
		return dependency.NewCompatibility(id), nil

	case "esm-import":
		return dependency.NewImportSideEffect(id, dep.Request, dep.SourceOrder), nil

	case "esm-import-specifier":
		span, err := b.span(dep)
		if err != nil {
			return nil, err
		}
		return dependency.NewImportSpecifier(id, span, dep.Request, dep.SourceOrder, dep.IDs, dep.Call), nil

	case "esm-export-specifier":
		return dependency.NewExportSpecifier(id, dep.Name, dep.Value), nil

	case "esm-export-expression":
		span, err := b.span(dep)
		if err != nil {
			return nil, err
		}
		return dependency.NewExportExpression(id, span, dep.Decl), nil

	case "esm-export-imported-specifier":
		return dependency.NewExportImportedSpecifier(id, dep.Request, dep.SourceOrder, dep.Name, dep.IDs), nil

	case "esm-export-star":
		return dependency.NewExportStar(id, dep.Request, dep.SourceOrder), nil

	case "cjs-require":
		span, err := b.span(dep)
		if err != nil {
			return nil, err
		}
		return dependency.NewCommonJSRequire(id, span, dep.Request), nil

	case "import-context":
		span, err := b.span(dep)
		if err != nil {
			return nil, err
		}
		if dep.Callee == "" || !strings.HasPrefix(dep.Match, dep.Callee) || !strings.HasSuffix(dep.Match, ")") {
			return nil, fmt.Errorf("%q must start with the callee and end with \")\"", dep.Match)
		}
		calleeEnd := span.Start + uint32(len(dep.Callee))
		return dependency.NewImportContext(id, span, span.Start, calleeEnd, span.End-1, dep.Request), nil

	case "url":
		span, err := b.span(dep)
		if err != nil {
			return nil, err
		}
		return dependency.NewURL(id, span, dep.Request), nil

	case "worker":
		span, err := b.span(dep)
		if err != nil {
			return nil, err
		}
		callee := dep.Callee
		if callee == "" {
			callee = "Worker"
		}
		imported := callee
		if dep.From != "" && dep.Name != "" {
			imported = dep.Name
		}
		constructor, ok := b.manifest.workerSyntax.Matches(callee, dep.From, imported)
		if !ok {
			return nil, fmt.Errorf("%q is not a supported worker constructor", callee)
		}
		return dependency.NewWorker(id, span, dep.Request, constructor.String()), nil

	case "const":
		span, err := b.span(dep)
		if err != nil {
			return nil, err
		}
		globals, err := parseGlobals(dep.Globals)
		if err != nil {
			return nil, err
		}
		return dependency.NewConst(id, span, dep.Code, globals), nil

	case "evaluated":
		span, err := b.span(dep)
		if err != nil {
			return nil, err
		}
		value, err := evaluated(span, dep)
		if err != nil {
			return nil, err
		}
		d, ok := dependency.NewConstFromEvaluated(id, value)
		if !ok {
			return nil, fmt.Errorf("%s %q is not a compile-time value", dep.Type, dep.Value)
		}
		return d, nil

	case "runtime-requirements":
		globals, err := parseGlobals(dep.Globals)
		if err != nil {
			return nil, err
		}
		return dependency.NewRuntimeRequirements(id, globals), nil

	case "static-exports":
		if dep.Unknown {
			return dependency.NewUnknownExports(id), nil
		}
		return dependency.NewStaticExports(id, dep.Names, dep.CanMangle), nil

	case "":
		return nil, errors.New("missing \"kind\"")

	default:
		return nil, fmt.Errorf("unknown dependency kind %q", dep.Kind)
	}
}

// The value a parser would have evaluated the matched expression to
func evaluated(span graph.Span, dep DepSpec) (*eval.BasicEvaluatedExpression, error) {
	e := eval.WithRange(span.Start, span.End)
	switch dep.Type {
	case "string":
		e.SetString(dep.Value)
	case "number":
		number, err := strconv.ParseFloat(dep.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", dep.Value)
		}
		e.SetNumber(number)
	case "bigint":
		bigint, ok := new(big.Int).SetString(dep.Value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid bigint %q", dep.Value)
		}
		e.SetBigInt(bigint)
	case "boolean":
		boolean, err := strconv.ParseBool(dep.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", dep.Value)
		}
		e.SetBool(boolean)
	case "null":
		e.SetNull()
	case "undefined":
		e.SetUndefined()
	case "regexp":
		e.SetRegExp(dep.Value, dep.Flags)
	case "":
		return nil, errors.New("missing \"type\"")
	default:
		return nil, fmt.Errorf("unknown value type %q", dep.Type)
	}
	return e, nil
}

func parseGlobals(names []string) (runtime.Globals, error) {
	var globals runtime.Globals
	for _, name := range names {
		flag, ok := runtime.GlobalByName(name)
		if !ok {
			return 0, fmt.Errorf("unknown runtime global %q", name)
		}
		globals.Insert(flag)
	}
	return globals, nil
}

func (b *builder) symbolRefs(specs []RefSpec) ([]treeshaking.SymbolRef, error) {
	refs := make([]treeshaking.SymbolRef, 0, len(specs))
	for i, spec := range specs {
		ref, err := b.symbolRef(spec)
		if err != nil {
			return nil, fmt.Errorf("reference %d: %w", i, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (b *builder) symbolRef(spec RefSpec) (treeshaking.SymbolRef, error) {
	module := b.module.Identifier

	switch spec.Kind {
	case "declaration":
		return treeshaking.Declaration{Module: module, Local: spec.Local, Exported: spec.Exported}, nil

	case "usage":
		return treeshaking.Usage{Module: module, Local: spec.Local, Member: spec.Member, From: spec.From}, nil
	}

	// Everything else goes through a dependency
	if spec.Dep == nil {
		if spec.Kind == "" {
			return nil, errors.New("missing \"kind\"")
		}
		return nil, fmt.Errorf("reference of kind %q needs \"dep\"", spec.Kind)
	}
	index := *spec.Dep
	if index < 0 || index >= len(b.module.Dependencies) {
		return nil, fmt.Errorf("dependency %d does not exist", index)
	}
	dep := b.module.Dependencies[index]
	request := ""
	if md, ok := dep.(graph.ModuleDependency); ok {
		request = md.Request()
	}
	var r logger.Range
	if span, ok := dep.Span(); ok {
		r = logger.Range{Loc: logger.Loc{Start: int32(span.Start)}, Len: int32(span.End - span.Start)}
	}

	switch spec.Kind {
	case "import", "import-default", "reexport":
		kind := treeshaking.IndirectImport
		if spec.Kind == "import-default" {
			kind = treeshaking.IndirectImportDefault
		} else if spec.Kind == "reexport" {
			kind = treeshaking.IndirectReExport
		}
		return treeshaking.Indirect{
			Kind:         kind,
			Importer:     module,
			Source:       request,
			Imported:     spec.Imported,
			Local:        spec.Local,
			DependencyID: dep.ID(),
			Range:        r,
		}, nil

	case "import-star", "reexport-star-as", "reexport-star":
		kind := treeshaking.StarImportAllAs
		if spec.Kind == "reexport-star-as" {
			kind = treeshaking.StarReExportAllAs
		} else if spec.Kind == "reexport-star" {
			kind = treeshaking.StarReExportAll
		}
		return treeshaking.Star{
			Kind:         kind,
			Owner:        module,
			Source:       request,
			Binding:      spec.Binding,
			DependencyID: dep.ID(),
		}, nil

	case "url":
		return treeshaking.URL{Importer: module, Source: request, DependencyID: dep.ID()}, nil

	case "worker":
		return treeshaking.Worker{Importer: module, Source: request, DependencyID: dep.ID()}, nil

	default:
		return nil, fmt.Errorf("unknown reference kind %q", spec.Kind)
	}
}
