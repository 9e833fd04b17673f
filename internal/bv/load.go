package bv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/build"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadError reports a failure to load or decode a business view file.
type LoadError struct {
	Code    string
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load error codes.
const (
	ErrCodeNotFound     = "VIEW_NOT_FOUND"
	ErrCodeLoadFailed   = "VIEW_LOAD_FAILED"
	ErrCodeBuildFailed  = "VIEW_BUILD_FAILED"
	ErrCodeDecodeFailed = "VIEW_DECODE_FAILED"
)

// Load reads a business view from a single CUE file.
//
// The file must evaluate to a struct matching the BusinessView shape, e.g.
//
//	name: "Sales"
//	tables: [{name: "sales_fact", columns: [{name: "revenue", type: "float"}]}]
//	measures: [{name: "Revenue", expression: "SUM(sales_fact.revenue)"}]
//	...
//
// Missing calendar rules default to a calendar year with Monday week start.
func Load(path string) (*BusinessView, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: err.Error()}
	}
	dir := filepath.Dir(path)
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{filepath.Base(path)}, cfg)
	return buildView(path, instances)
}

// LoadDir reads a business view from all CUE files in a directory,
// unified into a single value.
func LoadDir(dir string) (*BusinessView, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: dir, Message: err.Error()}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: dir, Message: "not a directory"}
	}
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	return buildView(dir, instances)
}

func buildView(path string, instances []*build.Instance) (*BusinessView, error) {
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: inst.Err.Error()}
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Path: path, Message: err.Error()}
	}

	return Decode(value, path)
}

// Decode converts an evaluated CUE value into a BusinessView and applies
// defaults for omitted calendar rules and time granularity.
func Decode(value cue.Value, path string) (*BusinessView, error) {
	var view BusinessView
	if err := value.Decode(&view); err != nil {
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Path: path, Message: err.Error()}
	}

	if view.Calendar.FiscalYearStart == 0 {
		view.Calendar.FiscalYearStart = 1
	}
	if view.Calendar.WeekStart == "" {
		view.Calendar.WeekStart = WeekStartMonday
	}
	if view.TimeDimension.Granularity == "" {
		view.TimeDimension.Granularity = "day"
	}
	for i := range view.Joins {
		if view.Joins[i].Type == "" {
			view.Joins[i].Type = JoinInner
		}
	}
	return &view, nil
}

// FindCUEFiles returns the CUE files in dir, non-recursive, sorted by name.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".cue") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}
