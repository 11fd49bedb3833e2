package dependency

import (
	"fmt"
	"regexp"
	"strings"
)

// One configured worker constructor. The forms are "Worker" (a global),
// "Worker from worker_threads" (a named import) and "default from
// web-worker" (a default import). A trailing "()" means the constructor is
// called without "new".
type WorkerConstructor struct {
	Name   string
	Source string
	Call   bool
}

type WorkerSyntaxList struct {
	globals []WorkerConstructor
	imports []WorkerConstructor
}

var workerSyntaxRegExp = regexp.MustCompile(`^(.+?)(\(\))?\s+from\s+(.+)$`)

func ParseWorkerSyntax(list []string) (WorkerSyntaxList, error) {
	var result WorkerSyntaxList
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			return WorkerSyntaxList{}, fmt.Errorf("empty worker syntax entry")
		}
		if match := workerSyntaxRegExp.FindStringSubmatch(item); match != nil {
			result.imports = append(result.imports, WorkerConstructor{
				Name:   match[1],
				Source: match[3],
				Call:   match[2] != "",
			})
			continue
		}
		call := strings.HasSuffix(item, "()")
		result.globals = append(result.globals, WorkerConstructor{
			Name: strings.TrimSuffix(item, "()"),
			Call: call,
		})
	}
	return result, nil
}

func (l WorkerSyntaxList) Globals() []WorkerConstructor { return l.globals }
func (l WorkerSyntaxList) Imports() []WorkerConstructor { return l.imports }

func (l WorkerSyntaxList) MatchGlobal(name string) (WorkerConstructor, bool) {
	for _, c := range l.globals {
		if c.Name == name {
			return c, true
		}
	}
	return WorkerConstructor{}, false
}

func (l WorkerSyntaxList) MatchImport(source string, imported string) (WorkerConstructor, bool) {
	for _, c := range l.imports {
		if c.Source == source && c.Name == imported {
			return c, true
		}
	}
	return WorkerConstructor{}, false
}

// Checks a "new" expression callee. If the callee is an imported binding
// "importSource" is the module it came from and "importedName" is the name
// it was imported as ("default" for default imports). Otherwise the callee
// is looked up as a global.
func (l WorkerSyntaxList) Matches(callee string, importSource string, importedName string) (WorkerConstructor, bool) {
	if importSource != "" {
		return l.MatchImport(importSource, importedName)
	}
	return l.MatchGlobal(callee)
}

func (c WorkerConstructor) String() string {
	text := c.Name
	if c.Call {
		text += "()"
	}
	if c.Source != "" {
		text += " from " + c.Source
	}
	return text
}
