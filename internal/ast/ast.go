package ast

import "strings"

// This stores a 32-bit index where the zero value is an invalid index. This is
// a better alternative to storing the index as a pointer since that has the
// same properties but takes up more space and costs an extra pointer traversal.
type Index32 struct {
	flippedBits uint32
}

func MakeIndex32(index uint32) Index32 {
	return Index32{flippedBits: ^index}
}

func (i Index32) IsValid() bool {
	return i.flippedBits != 0
}

func (i Index32) GetIndex() uint32 {
	return ^i.flippedBits
}

// Turns a module request or identifier into a readable ASCII identifier. This
// is mixed in to automatically-generated variable names. It's not unique, so
// callers must add their own suffix.
func GenerateNonUniqueNameFromPath(text string) string {
	// Strip any query or fragment since those aren't part of the file name
	if i := strings.IndexAny(text, "?#"); i != -1 {
		text = text[:i]
	}

	// Get the file name without the extension
	dir, base, _ := platformIndependentPathDirBaseExt(text)

	// If the name is "index", use the directory name instead. This is because
	// many packages in npm use the file name "index.js" because it triggers
	// node's implicit module resolution rules that allows you to import it by
	// just naming the directory.
	if base == "index" {
		_, dirBase, _ := platformIndependentPathDirBaseExt(dir)
		if dirBase != "" {
			base = dirBase
		}
	}

	// Convert it to an ASCII identifier
	bytes := []byte{}
	needsGap := false
	for _, c := range base {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (len(bytes) > 0 && c >= '0' && c <= '9') {
			if needsGap {
				bytes = append(bytes, '_')
				needsGap = false
			}
			bytes = append(bytes, byte(c))
		} else if len(bytes) > 0 {
			needsGap = true
		}
	}

	// Make sure the name isn't empty
	if len(bytes) == 0 {
		return "_"
	}
	return string(bytes)
}

func platformIndependentPathDirBaseExt(text string) (dir string, base string, ext string) {
	text = strings.ReplaceAll(text, "\\", "/")
	for strings.HasSuffix(text, "/") {
		text = text[:len(text)-1]
	}
	if slash := strings.LastIndexByte(text, '/'); slash != -1 {
		dir, base = text[:slash], text[slash+1:]
	} else {
		base = text
	}
	if dot := strings.LastIndexByte(base, '.'); dot > 0 {
		base, ext = base[:dot], base[dot:]
	}
	return
}
