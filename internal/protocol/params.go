package protocol

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"prepdeck/internal/deck"
)

// Params are the per-run knobs a protocol reads. Zero values fall
// back to defaults at Normalize.
type Params struct {
	Samples          int     // wells processed, column-aligned
	SampleVolumeUL   float64 // starting volume per sample
	DeviceSimulation bool    // skip wall-clock timers
	InputMassNG      float64 // library input mass, drives cycle count
	PCRCycles        int     // explicit cycle override, 0 = derive from mass
}

const (
	DefaultSamples        = 96
	DefaultSampleVolumeUL = 50.0
)

// Normalize fills defaults and validates ranges.
func (p *Params) Normalize() error {
	if p.Samples == 0 {
		p.Samples = DefaultSamples
	}
	if p.SampleVolumeUL == 0 {
		p.SampleVolumeUL = DefaultSampleVolumeUL
	}
	if p.Samples < 1 || p.Samples > 96 {
		return deck.NewConfigurationError(deck.CodeIndexOutOfRange,
			"samples %d outside 1..96", p.Samples)
	}
	if p.SampleVolumeUL < 0 {
		return deck.NewConfigurationError(deck.CodeVolumeExceeded,
			"sample volume %.2f is negative", p.SampleVolumeUL)
	}
	return nil
}

// LoadParams reads run parameter overrides from a CUE file with the
// shape:
//
//	params: {
//		samples:           24
//		sample_volume_ul:  47.5
//		device_simulation: true
//	}
//
// Missing fields keep their defaults.
func LoadParams(path string) (Params, error) {
	var p Params

	src, err := os.ReadFile(path)
	if err != nil {
		return p, &deck.LoadError{Code: deck.ErrCodeNotFound, Message: fmt.Sprintf("params file: %v", err)}
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(path))
	if err := value.Err(); err != nil {
		return p, &deck.LoadError{Code: deck.ErrCodeBuildFailed, Message: fmt.Sprintf("compiling params: %v", err)}
	}

	paramsVal := value.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return p, &deck.LoadError{Code: deck.ErrCodeBuildFailed, Message: "no params declaration found", Pos: value.Pos()}
	}

	if v := paramsVal.LookupPath(cue.ParsePath("samples")); v.Exists() {
		n, err := v.Int64()
		if err != nil {
			return p, &deck.LoadError{Code: deck.ErrCodeBuildFailed, Message: fmt.Sprintf("params.samples: %v", err), Pos: v.Pos()}
		}
		p.Samples = int(n)
	}
	if v := paramsVal.LookupPath(cue.ParsePath("sample_volume_ul")); v.Exists() {
		f, err := v.Float64()
		if err != nil {
			return p, &deck.LoadError{Code: deck.ErrCodeBuildFailed, Message: fmt.Sprintf("params.sample_volume_ul: %v", err), Pos: v.Pos()}
		}
		p.SampleVolumeUL = f
	}
	if v := paramsVal.LookupPath(cue.ParsePath("device_simulation")); v.Exists() {
		b, err := v.Bool()
		if err != nil {
			return p, &deck.LoadError{Code: deck.ErrCodeBuildFailed, Message: fmt.Sprintf("params.device_simulation: %v", err), Pos: v.Pos()}
		}
		p.DeviceSimulation = b
	}
	if v := paramsVal.LookupPath(cue.ParsePath("input_mass_ng")); v.Exists() {
		f, err := v.Float64()
		if err != nil {
			return p, &deck.LoadError{Code: deck.ErrCodeBuildFailed, Message: fmt.Sprintf("params.input_mass_ng: %v", err), Pos: v.Pos()}
		}
		p.InputMassNG = f
	}
	if v := paramsVal.LookupPath(cue.ParsePath("pcr_cycles")); v.Exists() {
		n, err := v.Int64()
		if err != nil {
			return p, &deck.LoadError{Code: deck.ErrCodeBuildFailed, Message: fmt.Sprintf("params.pcr_cycles: %v", err), Pos: v.Pos()}
		}
		p.PCRCycles = int(n)
	}

	if err := p.Normalize(); err != nil {
		return p, err
	}
	return p, nil
}
