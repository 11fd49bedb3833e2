package ast

import "testing"

func assertEqual(t *testing.T, a interface{}, b interface{}) {
	t.Helper()
	if a != b {
		t.Fatalf("%s != %s", a, b)
	}
}

func TestGenerateNonUniqueNameFromPath(t *testing.T) {
	assertEqual(t, GenerateNonUniqueNameFromPath("<stdin>"), "stdin")
	assertEqual(t, GenerateNonUniqueNameFromPath("foo/bar"), "bar")
	assertEqual(t, GenerateNonUniqueNameFromPath("./foo/bar.js"), "bar")
	assertEqual(t, GenerateNonUniqueNameFromPath("foo/bar.min.js"), "bar_min")
	assertEqual(t, GenerateNonUniqueNameFromPath("trailing//slashes//"), "slashes")
	assertEqual(t, GenerateNonUniqueNameFromPath("path/with/spaces in name.js"), "spaces_in_name")
	assertEqual(t, GenerateNonUniqueNameFromPath("path\\on\\windows.js"), "windows")
	assertEqual(t, GenerateNonUniqueNameFromPath("node_modules/demo-pkg/index.js"), "demo_pkg")
	assertEqual(t, GenerateNonUniqueNameFromPath("123_invalid_identifier.js"), "invalid_identifier")
	assertEqual(t, GenerateNonUniqueNameFromPath("./util.js?raw"), "util")
}

func TestIndex32(t *testing.T) {
	var zero Index32
	assertEqual(t, zero.IsValid(), false)

	index := MakeIndex32(0)
	assertEqual(t, index.IsValid(), true)
	assertEqual(t, index.GetIndex(), uint32(0))
	assertEqual(t, MakeIndex32(42).GetIndex(), uint32(42))
}
