package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadDir loads the CUE package in dir and compiles the definitions
// found under the top-level "epic" struct, in CUE field order. Files in
// subdirectories are not loaded.
func LoadDir(dir string) ([]*Definition, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileAll(v)
}

// LoadFiles compiles standalone CUE definition files, one instance per
// file, and concatenates their definitions in argument order.
func LoadFiles(paths ...string) ([]*Definition, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no definition files given")
	}
	ctx := cuecontext.New()
	var defs []*Definition
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("definition file: %w", err)
		}
		v := ctx.CompileBytes(data, cue.Filename(p))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		fileDefs, err := CompileAll(v)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

// CompileAll compiles every definition under the top-level "epic"
// struct of a built CUE value.
func CompileAll(v cue.Value) ([]*Definition, error) {
	epicsVal := v.LookupPath(cue.ParsePath("epic"))
	if !epicsVal.Exists() {
		return nil, &CompileError{Field: "epic", Message: "no epic definitions found"}
	}
	iter, err := epicsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var defs []*Definition
	for iter.Next() {
		def, err := CompileDefinition(iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &CompileError{Field: "epic", Message: "no epic definitions found"}
	}
	return defs, nil
}

// FindCUEFiles walks dir and returns every .cue file path.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
