package main

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"xdao.co/collapse/config"
	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/casconfig"
	"xdao.co/collapse/storage/casregistry"
)

// runFlags select the pipeline inputs. Flags override the run file.
type runFlags struct {
	fs         *pflag.FlagSet
	configPath string
	family     string
	profile    string
	nmax       int64
	dmax       int64
	implTag    string
}

func addRunFlags(fs *pflag.FlagSet) *runFlags {
	f := &runFlags{fs: fs}
	fs.StringVar(&f.configPath, "config", "", "Run file (YAML or JSON)")
	fs.StringVar(&f.family, "family", config.FamilySpine, "Test family: spine or buckets")
	fs.StringVar(&f.profile, "profile", "", "ASC7 profile (code_safe, auth_safe)")
	fs.Int64Var(&f.nmax, "nmax", 0, "QE numerator bound")
	fs.Int64Var(&f.dmax, "dmax", 0, "QE denominator bound")
	fs.StringVar(&f.implTag, "impl-tag", "", "Implementation tag mixed into the tests hash")
	return f
}

func (f *runFlags) load() (config.Run, error) {
	r := config.Default()
	if f.configPath != "" {
		var err error
		if r, err = config.LoadFile(f.configPath); err != nil {
			return r, err
		}
	}
	if f.fs.Changed("family") {
		r.Family = f.family
	}
	if f.fs.Changed("profile") {
		r.Profile = f.profile
	}
	if f.fs.Changed("nmax") {
		n := f.nmax
		r.NMax = &n
	}
	if f.fs.Changed("dmax") {
		d := f.dmax
		r.DMax = &d
	}
	if f.fs.Changed("impl-tag") {
		r.ImplTag = f.implTag
	}
	return r, r.Validate()
}

// storeFlags select a CAS. At most one of --backend and --cas-config may be
// set; otherwise the run file's storage section is used.
type storeFlags struct {
	backend   string
	opts      map[string]string
	casConfig string
	prefer    string
}

var errNoStorage = errors.New("no storage configured: use --backend, --cas-config, or a run file storage section")

func addStoreFlags(fs *pflag.FlagSet) *storeFlags {
	f := &storeFlags{}
	fs.StringVar(&f.backend, "backend", "", "CAS backend name")
	fs.StringToStringVar(&f.opts, "backend-opt", nil, "Backend option key=value (repeatable)")
	fs.StringVar(&f.casConfig, "cas-config", "", "CAS config file (YAML or JSON)")
	fs.StringVar(&f.prefer, "prefer", "", "With --cas-config: backend to write to first")
	return f
}

func (f *storeFlags) open(run *config.Run) (storage.CAS, func() error, error) {
	if f.backend != "" && f.casConfig != "" {
		return nil, nil, fmt.Errorf("conflicting storage flags: --backend cannot be combined with --cas-config")
	}
	var (
		cas     storage.CAS
		closeFn func() error
		err     error
	)
	switch {
	case f.casConfig != "":
		cfg, lerr := casconfig.LoadFile(f.casConfig)
		if lerr != nil {
			return nil, nil, lerr
		}
		cas, closeFn, err = cfg.Open(casregistry.UsageCLI, f.prefer)
	case f.backend != "":
		cas, closeFn, err = casregistry.Open(f.backend, casregistry.UsageCLI, casregistry.Options(f.opts))
	case run != nil && run.Storage != nil:
		cas, closeFn, err = run.Storage.Open(casregistry.UsageCLI, f.prefer)
	default:
		return nil, nil, errNoStorage
	}
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return cas, closeFn, nil
}
