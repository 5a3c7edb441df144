// Package dna loads application definitions written in CUE.
//
// A definition file declares a top-level dna struct:
//
//	dna: {
//		name:    "blog"
//		version: "1.0.0"
//		zomes: posts: {
//			code_file:        "posts.wasm"
//			functions:        ["create", "list"]
//			public_functions: ["list"]
//		}
//	}
//
// The struct is closed against an embedded schema, so misspelled fields
// are rejected with a position.
package dna

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/chaincore/internal/ir"
)

const schema = `
#Zome: {
	code?:             bytes
	code_file?:        string
	functions:         [...string]
	public_functions?: [...string]
}

#DNA: {
	name:        string & !=""
	version?:    string
	properties?: {[string]: string}
	zomes:       {[string]: #Zome}
}

dna: #DNA
`

// LoadError reports a malformed definition.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads the definition at path. code_file entries are resolved
// relative to the directory holding path.
func Load(path string) (ir.DNA, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return ir.DNA{}, fmt.Errorf("load dna: %w", err)
	}
	return Compile(src, path)
}

// Compile parses src. filename is used for error positions and to
// resolve code_file entries.
func Compile(src []byte, filename string) (ir.DNA, error) {
	ctx := cuecontext.New()
	s := ctx.CompileString(schema, cue.Filename("schema.cue"))
	if err := s.Err(); err != nil {
		return ir.DNA{}, fmt.Errorf("dna schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return ir.DNA{}, formatCUEError(err)
	}
	if !v.LookupPath(cue.ParsePath("dna")).Exists() {
		return ir.DNA{}, &LoadError{Field: "dna", Message: "dna is required", Pos: v.Pos()}
	}

	v = s.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return ir.DNA{}, formatCUEError(err)
	}
	return decode(v.LookupPath(cue.ParsePath("dna")), filepath.Dir(filename))
}

func decode(v cue.Value, baseDir string) (ir.DNA, error) {
	var d ir.DNA
	var err error

	if d.Name, err = v.LookupPath(cue.ParsePath("name")).String(); err != nil {
		return ir.DNA{}, formatCUEError(err)
	}
	if ver := v.LookupPath(cue.ParsePath("version")); ver.Exists() {
		if d.Version, err = ver.String(); err != nil {
			return ir.DNA{}, formatCUEError(err)
		}
	}

	if props := v.LookupPath(cue.ParsePath("properties")); props.Exists() {
		d.Properties = map[string]string{}
		iter, err := props.Fields()
		if err != nil {
			return ir.DNA{}, formatCUEError(err)
		}
		for iter.Next() {
			val, err := iter.Value().String()
			if err != nil {
				return ir.DNA{}, formatCUEError(err)
			}
			d.Properties[iter.Label()] = val
		}
	}

	d.Zomes = map[string]ir.Zome{}
	iter, err := v.LookupPath(cue.ParsePath("zomes")).Fields()
	if err != nil {
		return ir.DNA{}, formatCUEError(err)
	}
	for iter.Next() {
		z, err := decodeZome(iter.Value(), baseDir)
		if err != nil {
			return ir.DNA{}, fmt.Errorf("zome %s: %w", iter.Label(), err)
		}
		d.Zomes[iter.Label()] = z
	}
	return d, nil
}

func decodeZome(v cue.Value, baseDir string) (ir.Zome, error) {
	var z ir.Zome

	if err := v.LookupPath(cue.ParsePath("functions")).Decode(&z.Functions); err != nil {
		return ir.Zome{}, formatCUEError(err)
	}
	if pub := v.LookupPath(cue.ParsePath("public_functions")); pub.Exists() {
		if err := pub.Decode(&z.PublicFunctions); err != nil {
			return ir.Zome{}, formatCUEError(err)
		}
	}
	for _, fn := range z.PublicFunctions {
		if !slices.Contains(z.Functions, fn) {
			return ir.Zome{}, &LoadError{
				Field:   "public_functions",
				Message: fmt.Sprintf("%q is not a declared function", fn),
				Pos:     v.Pos(),
			}
		}
	}

	code := v.LookupPath(cue.ParsePath("code"))
	file := v.LookupPath(cue.ParsePath("code_file"))
	switch {
	case code.Exists() && file.Exists():
		return ir.Zome{}, &LoadError{Field: "code", Message: "code and code_file are mutually exclusive", Pos: v.Pos()}
	case code.Exists():
		b, err := code.Bytes()
		if err != nil {
			return ir.Zome{}, formatCUEError(err)
		}
		z.Code = b
	case file.Exists():
		name, err := file.String()
		if err != nil {
			return ir.Zome{}, formatCUEError(err)
		}
		if !filepath.IsAbs(name) {
			name = filepath.Join(baseDir, name)
		}
		b, err := os.ReadFile(name)
		if err != nil {
			return ir.Zome{}, fmt.Errorf("read code: %w", err)
		}
		z.Code = b
	}
	return z, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if pos := errors.Positions(first); len(pos) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: pos[0]}
	}
	return err
}
