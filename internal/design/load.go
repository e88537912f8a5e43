package design

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Load compiles the CUE design in dir.
func Load(dir string, stimuli Stimuli) (*Design, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &CompileError{Field: "design", Message: fmt.Sprintf("design directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &CompileError{Field: "design", Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &CompileError{Field: "design", Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &CompileError{Field: "design", Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &CompileError{Field: "design", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError("design", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError("design", err)
	}
	return Compile(value, stimuli)
}

// FindCUEFiles returns the .cue files directly in dir.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}
