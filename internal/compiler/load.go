package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/errors"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error codes shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
)

// Declarations are the namespaces and views found in a directory.
type Declarations struct {
	Namespaces map[string]string `json:"namespaces,omitempty"`
	Views      []ViewSpec        `json:"views"`
	FileCount  int               `json:"-"`
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDir loads and compiles the CUE files of dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*Declarations, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	decls, errs := Compile(value, mode)
	if decls != nil {
		decls.FileCount = len(cueFiles)
	}
	return decls, errs
}

// LoadSource compiles CUE source text. filename is used in positions.
func LoadSource(filename, src string, mode LoadMode) (*Declarations, []error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	decls, errs := Compile(value, mode)
	if decls != nil {
		decls.FileCount = 1
	}
	return decls, errs
}

// Compile extracts the namespaces and views of a built CUE value.
func Compile(value cue.Value, mode LoadMode) (*Declarations, []error) {
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	var errs []error
	decls := &Declarations{Namespaces: map[string]string{}}

	nsVal := value.LookupPath(cue.ParsePath("namespaces"))
	if nsVal.Exists() {
		ns, err := CompileNamespaces(nsVal)
		if err != nil {
			errs = append(errs, convertCompileError(err, "namespaces"))
			if mode == LoadModeFailFast {
				return decls, errs
			}
		}
		for prefix, uri := range ns {
			decls.Namespaces[prefix] = uri
		}
	}

	viewsVal := value.LookupPath(cue.ParsePath("view"))
	if viewsVal.Exists() {
		iter, err := viewsVal.Fields()
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating views: %v", err)})
			return decls, errs
		}
		for iter.Next() {
			spec, err := CompileView(iter.Value())
			if err != nil {
				errs = append(errs, convertCompileError(err, "view."+iter.Label()))
				if mode == LoadModeFailFast {
					return decls, errs
				}
				continue
			}
			decls.Views = append(decls.Views, *spec)
		}
	}
	sort.SliceStable(decls.Views, func(i, j int) bool { return decls.Views[i].Name < decls.Views[j].Name })

	if len(decls.Views) == 0 && len(decls.Namespaces) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no namespaces or views found in specs"})
	}
	return decls, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
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

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeGeneric,
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
