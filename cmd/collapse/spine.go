package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"xdao.co/collapse/asc7"
	"xdao.co/collapse/cert"
	"xdao.co/collapse/config"
	"xdao.co/collapse/spine"
	"xdao.co/collapse/trace"
)

// now is the trace clock.
var now = time.Now

func newFlagSet(name string, errOut io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	return fs
}

func compute(rf *runFlags, sink trace.Sink, errOut io.Writer) (config.Run, *spine.Result, bool) {
	r, err := rf.load()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return r, nil, false
	}
	res, err := spine.Compute(r.Spine(), sink)
	if err != nil {
		fmt.Fprintf(errOut, "compute: %v\n", err)
		return r, nil, false
	}
	return r, res, true
}

func cmdSpine(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("spine", errOut)
	rf := addRunFlags(fs)
	var snapshot string
	var freeze bool
	fs.StringVar(&snapshot, "snapshot", "", "Snapshot path (default from run file, else "+spine.DefaultSnapshotPath+")")
	fs.BoolVar(&freeze, "freeze", false, "Write the snapshot instead of verifying against it")
	var sample string
	fs.StringVar(&sample, "sample", spine.SampleText, "Text to normalize and check against the witness alphabet")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: collapse spine [run flags] [--snapshot <path>] [--freeze] [--sample <text>]")
		return 2
	}

	run, res, ok := compute(rf, nil, errOut)
	if !ok {
		return 1
	}
	if snapshot == "" {
		snapshot = run.Snapshot
	}

	norm, terminal, err := spine.Sample(res.Profile, sample)
	if err != nil {
		fmt.Fprintf(errOut, "sample: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "sample: %s\n", sample)
	fmt.Fprintf(out, "normalized: %s\n", norm)
	fmt.Fprintf(out, "terminal(W*): %t\n", terminal)

	digests := res.Digests()
	for _, k := range digests.Keys() {
		fmt.Fprintf(out, "%s: %s\n", k, digests[k])
	}

	if freeze {
		if err := spine.WriteSnapshot(snapshot, digests); err != nil {
			fmt.Fprintf(errOut, "freeze: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "froze %s\n", snapshot)
		return 0
	}
	if err := spine.Verify(snapshot, res); err != nil {
		var mm *spine.RegressionMismatchError
		if errors.As(err, &mm) {
			fmt.Fprintf(errOut, "REGRESSION: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "OK")
	return 0
}

func cmdTrace(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("trace", errOut)
	rf := addRunFlags(fs)
	var dir string
	var logJSON bool
	var neMax uint64
	var zeMax int64
	fs.StringVar(&dir, "out", "", "Trace directory (default from run file, else "+config.DefaultTraceDir+")")
	fs.BoolVar(&logJSON, "log-json", false, "Echo events to stdout as JSON log lines instead of text")
	fs.Uint64Var(&neMax, "ne-max", spine.DefaultNEMax, "Upper bound of the N_E domain in the structural trace")
	fs.Int64Var(&zeMax, "ze-max", spine.DefaultZEMax, "Bound of the Z_E domain in the structural trace")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: collapse trace [run flags] [--out <dir>] [--log-json] [--ne-max <n>] [--ze-max <n>]")
		return 2
	}
	run, err := rf.load()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	if dir == "" {
		dir = run.TraceDir
	}

	var tee []io.Writer
	if !logJSON {
		tee = append(tee, out)
	}
	stamp := trace.RunStamp(now)
	f, err := trace.OpenFile(dir, stamp, run.Family, tee...)
	if err != nil {
		fmt.Fprintf(errOut, "trace: %v\n", err)
		return 1
	}
	sf, err := trace.OpenFile(dir, stamp, "structural")
	if err != nil {
		_ = f.Close()
		fmt.Fprintf(errOut, "trace: %v\n", err)
		return 1
	}
	var sink, ssink trace.Sink = f, sf
	var logger *zap.Logger
	if logJSON {
		logger = newJSONLogger(out)
		sink = trace.Tee{f, trace.NewZap(logger, run.Family)}
		ssink = trace.Tee{sf, trace.NewZap(logger, "structural")}
	}

	sink.Banner("collapse " + run.Family + " run")
	ssink.Banner("structural numbers (QE, N_E, Z_E)")
	res, err := spine.Compute(run.Spine(), sink)
	if err == nil {
		st := spine.TraceStructural(res, neMax, zeMax, ssink)
		err = spine.WriteSummary(sink, res.Summary(st))
		sink.Section("OUTPUT FILES")
		sink.KV("structural_log", sf.Path())
		sink.KV(run.Family+"_log", f.Path())
	}
	if logger != nil {
		_ = logger.Sync()
	}
	for _, c := range []*trace.File{sf, f} {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintf(errOut, "trace: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "trace: %s\n", f.Path())
	fmt.Fprintf(errOut, "trace: %s\n", sf.Path())
	fmt.Fprintf(errOut, "chain_hash: %s\n", res.Chain.HashHex())
	return 0
}

// newJSONLogger writes info-level JSON lines to w without timestamps, so equal
// runs log equal bytes.
func newJSONLogger(w io.Writer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zapcore.InfoLevel)
	return zap.New(core)
}

func cmdCertCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("cert-cid", errOut)
	rf := addRunFlags(fs)
	var kernel string
	fs.StringVar(&kernel, "kernel", "", "Only print this kernel (asc7, asc7_confusables, sembit, chain)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: collapse cert-cid [run flags] [--kernel <name>]")
		return 2
	}
	_, res, ok := compute(rf, nil, errOut)
	if !ok {
		return 1
	}

	found := false
	for _, c := range res.Certificates() {
		if kernel == "" || kernel == c.Name() {
			fmt.Fprintf(out, "%s\t%s\n", c.Name(), c.CID())
			found = true
		}
	}
	if kernel == "" || kernel == "chain" {
		fmt.Fprintf(out, "chain\t%s\n", res.Chain.Hash.CID())
		found = true
	}
	if !found {
		fmt.Fprintf(errOut, "unknown kernel: %s\n", kernel)
		return 2
	}
	return 0
}

func cmdNormalize(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("normalize", errOut)
	var profile string
	var strict bool
	fs.StringVar(&profile, "profile", asc7.NameCodeSafe, "ASC7 profile")
	var unconfuse bool
	fs.BoolVar(&strict, "strict", false, "Fail on characters outside the profile")
	fs.BoolVar(&unconfuse, "unconfuse", false, "Map known Greek/Cyrillic lookalikes to ASCII first")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: collapse normalize [--profile <name>] [--strict] [--unconfuse] <text> [<text> ...]")
		return 2
	}
	p, err := asc7.ByName(profile)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	for _, s := range fs.Args() {
		if unconfuse {
			s = asc7.Unconfuse(s)
		}
		n, err := asc7.Normalize(p, s, strict)
		if err != nil {
			fmt.Fprintf(errOut, "normalize %q: %v\n", s, err)
			return 1
		}
		fmt.Fprintln(out, n)
	}
	return 0
}

// chainWith extends res's chain with an extra certificate.
func chainWith(res *spine.Result, c *cert.Certificate) *cert.Chain {
	items := append([]cert.Item(nil), res.Chain.Items...)
	return cert.BuildChain(append(items, cert.ItemOf(c)))
}
