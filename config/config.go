// Package config loads run files for the collapse CLI.
//
// A run file is YAML (or JSON, which YAML accepts) naming the pipeline inputs
// and where to write outputs:
//
//	family: spine
//	profile: code_safe
//	nmax: 20
//	dmax: 20
//	snapshot: gates/expected.json
//	trace_dir: logs
//	storage:
//	  backends:
//	    - name: localfs
//	      config: {dir: .cas}
//
// Unset numeric and tag fields fall back to the family's defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"xdao.co/collapse/asc7"
	"xdao.co/collapse/spine"
	"xdao.co/collapse/storage/casconfig"
)

// Test families.
const (
	FamilySpine   = "spine"
	FamilyBuckets = "buckets"
)

// DefaultTraceDir is where trace logs go when TraceDir is unset.
const DefaultTraceDir = "logs"

// Run is a parsed run file.
type Run struct {
	Family   string            `yaml:"family,omitempty"`
	Profile  string            `yaml:"profile,omitempty"`
	NMax     *int64            `yaml:"nmax,omitempty"`
	DMax     *int64            `yaml:"dmax,omitempty"`
	ImplTag  string            `yaml:"impl_tag,omitempty"`
	Snapshot string            `yaml:"snapshot,omitempty"`
	TraceDir string            `yaml:"trace_dir,omitempty"`
	Storage  *casconfig.Config `yaml:"storage,omitempty"`
}

// Default is the frozen spine run with default output locations.
func Default() Run {
	return Run{
		Family:   FamilySpine,
		Profile:  asc7.NameCodeSafe,
		Snapshot: spine.DefaultSnapshotPath,
		TraceDir: DefaultTraceDir,
	}
}

// LoadFile reads path over Default and validates the result.
func LoadFile(path string) (Run, error) {
	if path == "" {
		return Run{}, errors.New("config: empty config path")
	}
	f, err := os.Open(path)
	if err != nil {
		return Run{}, err
	}
	defer f.Close()
	r, err := Load(f)
	if err != nil {
		return Run{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return r, nil
}

// Load decodes a run file over Default. Unknown keys are rejected.
func Load(rd io.Reader) (Run, error) {
	r := Default()
	b, err := io.ReadAll(rd)
	if err != nil {
		return r, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return r, fmt.Errorf("config: decode: %w", err)
	}
	return r, r.Validate()
}

func (r Run) Validate() error {
	var errs []error
	switch r.Family {
	case FamilySpine, FamilyBuckets:
	default:
		errs = append(errs, fmt.Errorf("unknown family %q", r.Family))
	}
	if _, err := asc7.ByName(r.Profile); err != nil {
		errs = append(errs, err)
	}
	if r.NMax != nil && *r.NMax < 0 {
		errs = append(errs, fmt.Errorf("nmax must be >= 0 (got %d)", *r.NMax))
	}
	if r.DMax != nil && *r.DMax < 1 {
		errs = append(errs, fmt.Errorf("dmax must be >= 1 (got %d)", *r.DMax))
	}
	if r.Storage != nil {
		if err := r.Storage.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: invalid run: %w", errors.Join(errs...))
}

// Spine returns the pipeline configuration for r.
func (r Run) Spine() spine.Config {
	cfg := spine.DefaultConfig()
	if r.Family == FamilyBuckets {
		cfg = spine.BucketsConfig()
	}
	if r.Profile != "" {
		cfg.Profile = r.Profile
	}
	if r.NMax != nil {
		cfg.NMax = *r.NMax
	}
	if r.DMax != nil {
		cfg.DMax = *r.DMax
	}
	if r.ImplTag != "" {
		cfg.ImplTag = r.ImplTag
	}
	return cfg
}
