package deck

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadMode controls how errors are handled during layout loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading a layout directory.
type LoadResult struct {
	Layout    *Layout
	CUEValue  cue.Value // the raw CUE value for additional processing
	FileCount int       // number of CUE files found
}

// Load reads a deck layout from a directory of CUE files.
//
// The expected shape is:
//
//	layout: {
//		name: "LSK109_v0.9.2"
//		slots: {
//			HSP_Pipette: kind: "plate96"
//			RGT_01:      kind: "reservoir60"
//		}
//	}
//
// If mode is LoadModeFailFast, returns on first error. If mode is
// LoadModeCollectAll, collects all slot errors before returning.
func Load(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("layout directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing layout directory: %v", err)}}
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
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	layoutVal := value.LookupPath(cue.ParsePath("layout"))
	if !layoutVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeBuildFailed, Message: "no layout declaration found"}}
	}

	name, err := layoutVal.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("layout.name: %v", err)})
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	slots := make(map[string]Kind)
	slotsVal := layoutVal.LookupPath(cue.ParsePath("slots"))
	if slotsVal.Exists() {
		iter, iterErr := slotsVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("iterating slots: %v", iterErr)})
			if mode == LoadModeFailFast {
				return result, errs
			}
		} else {
			for iter.Next() {
				slotName := iter.Selector().Unquoted()
				kindStr, kindErr := iter.Value().LookupPath(cue.ParsePath("kind")).String()
				if kindErr != nil {
					errs = append(errs, &LoadError{
						Code:    ErrCodeBadSlot,
						Message: fmt.Sprintf("slot %q: missing kind: %v", slotName, kindErr),
						Pos:     iter.Value().Pos(),
					})
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				kind, parseErr := ParseKind(kindStr)
				if parseErr != nil {
					errs = append(errs, &LoadError{
						Code:    ErrCodeBadSlot,
						Message: fmt.Sprintf("slot %q: %v", slotName, parseErr),
						Pos:     iter.Value().Pos(),
					})
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				if _, dup := slots[slotName]; dup {
					errs = append(errs, &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("slot %q declared twice", slotName)})
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				slots[slotName] = kind
			}
		}
	}

	if len(slots) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoFiles, Message: "layout declares no slots"})
	}
	if len(errs) > 0 {
		return result, errs
	}

	layout, err := NewLayout(name, slots)
	if err != nil {
		return result, []error{err}
	}
	result.Layout = layout
	return result, nil
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
