package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ipfs/go-cid"

	"xdao.co/collapse/cert"
	"xdao.co/collapse/storage/bundle"
	"xdao.co/collapse/storage/certstore"
	"xdao.co/collapse/storage/memory"
)

func cmdStore(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: collapse store <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get, verify")
		return 2
	}
	switch args[0] {
	case "put":
		return cmdStorePut(args[1:], out, errOut)
	case "get":
		return cmdStoreGet(args[1:], out, errOut)
	case "verify":
		return cmdStoreVerify(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown store subcommand: %s\n", args[0])
		return 2
	}
}

func cmdStorePut(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("store put", errOut)
	rf := addRunFlags(fs)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	run, res, ok := compute(rf, nil, errOut)
	if !ok {
		return 1
	}
	cas, closeFn, err := sf.open(&run)
	if err != nil {
		fmt.Fprintf(errOut, "storage: %v\n", err)
		return 2
	}
	defer closeFn()

	m, err := certstore.New(cas).PutRun(res.Certificates(), res.Chain)
	if err != nil {
		fmt.Fprintf(errOut, "store: %v\n", err)
		return 1
	}
	for _, e := range m.Entries {
		fmt.Fprintf(out, "%s\t%s\t%s\n", e.Name, e.Payload, e.Record)
	}
	fmt.Fprintf(out, "chain\t%s\n", m.Chain)
	return 0
}

func cmdStoreGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("store get", errOut)
	sf := addStoreFlags(fs)
	var idStr, path string
	fs.StringVar(&idStr, "cid", "", "Block CID")
	fs.StringVar(&path, "out", "", "Write the block to a file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if idStr == "" {
		fmt.Fprintln(errOut, "usage: collapse store get [storage flags] --cid <cid> [--out <file>]")
		return 2
	}
	id, err := cid.Decode(idStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --cid: %v\n", err)
		return 2
	}
	cas, closeFn, err := sf.open(nil)
	if err != nil {
		fmt.Fprintf(errOut, "storage: %v\n", err)
		return 2
	}
	defer closeFn()

	b, err := certstore.New(cas).Load(id)
	if err != nil {
		fmt.Fprintf(errOut, "get: %v\n", err)
		return 1
	}
	if path != "" {
		if err := os.WriteFile(path, b, 0o644); err != nil {
			fmt.Fprintf(errOut, "write %s: %v\n", path, err)
			return 1
		}
		return 0
	}
	_, _ = out.Write(b)
	return 0
}

// chainVerifier is a backend that verifies chains itself, such as a
// collapse-casd client.
type chainVerifier interface {
	VerifyChain(ctx context.Context, id cid.Cid) (*certstore.ChainReport, error)
}

func cmdStoreVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("store verify", errOut)
	sf := addStoreFlags(fs)
	var idStr string
	fs.StringVar(&idStr, "chain", "", "Chain block CID")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if idStr == "" {
		fmt.Fprintln(errOut, "usage: collapse store verify [storage flags] --chain <cid>")
		return 2
	}
	id, err := cid.Decode(idStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --chain: %v\n", err)
		return 2
	}
	cas, closeFn, err := sf.open(nil)
	if err != nil {
		fmt.Fprintf(errOut, "storage: %v\n", err)
		return 2
	}
	defer closeFn()

	var rep *certstore.ChainReport
	where := "local"
	if v, ok := cas.(chainVerifier); ok {
		where = "remote"
		rep, err = v.VerifyChain(context.Background(), id)
	} else {
		rep, err = certstore.New(cas).VerifyChain(id)
	}
	if err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "chain_hash: %s (%s)\n", rep.Chain.HashHex(), where)
	missing := make(map[cert.Item]bool, len(rep.Missing))
	for _, it := range rep.Missing {
		missing[it] = true
	}
	for _, it := range rep.Chain.Items {
		state := "ok"
		if missing[it] {
			state = "missing"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", it.Name, it.HashHex, state)
	}
	if !rep.Complete() {
		fmt.Fprintf(errOut, "verify: %d payload(s) missing\n", len(rep.Missing))
		return 1
	}
	return 0
}

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: collapse bundle <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: export, import")
		return 2
	}
	switch args[0] {
	case "export":
		return cmdBundleExport(args[1:], out, errOut)
	case "import":
		return cmdBundleImport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n", args[0])
		return 2
	}
}

func cmdBundleExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("bundle export", errOut)
	rf := addRunFlags(fs)
	sf := addStoreFlags(fs)
	var path string
	var compress bool
	fs.StringVar(&path, "out", "", "Bundle file, or - for stdout")
	fs.BoolVar(&compress, "zstd", false, "Compress the bundle with zstd")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if path == "" {
		fmt.Fprintln(errOut, "usage: collapse bundle export [run flags] [storage flags] --out <file|-> [--zstd]")
		return 2
	}
	run, res, ok := compute(rf, nil, errOut)
	if !ok {
		return 1
	}
	cas, closeFn, err := sf.open(&run)
	if err == errNoStorage {
		cas, closeFn, err = memory.New(), func() error { return nil }, nil
	}
	if err != nil {
		fmt.Fprintf(errOut, "storage: %v\n", err)
		return 2
	}
	defer closeFn()

	m, err := certstore.New(cas).PutRun(res.Certificates(), res.Chain)
	if err != nil {
		fmt.Fprintf(errOut, "store: %v\n", err)
		return 1
	}

	w := out
	var f *os.File
	if path != "-" {
		if f, err = os.Create(path); err != nil {
			fmt.Fprintf(errOut, "create %s: %v\n", path, err)
			return 1
		}
		w = f
	}
	bw := bufio.NewWriter(w)
	err = bundle.Export(bw, cas, m.CIDs(), bundle.ExportOptions{
		Labels:       m.Labels(),
		IncludeIndex: true,
		Compress:     compress,
	})
	if err == nil {
		err = bw.Flush()
	}
	if f != nil {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "exported %d blocks (chain %s)\n", len(m.CIDs()), m.Chain)
	return 0
}

func cmdBundleImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("bundle import", errOut)
	sf := addStoreFlags(fs)
	var path string
	var ignoreUnknown bool
	fs.StringVar(&path, "in", "", "Bundle file, or - for stdin")
	fs.BoolVar(&ignoreUnknown, "ignore-unknown", false, "Skip unknown bundle entries")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if path == "" {
		fmt.Fprintln(errOut, "usage: collapse bundle import [storage flags] --in <file|->")
		return 2
	}
	cas, closeFn, err := sf.open(nil)
	if err != nil {
		fmt.Fprintf(errOut, "storage: %v\n", err)
		return 2
	}
	defer closeFn()

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(errOut, "open %s: %v\n", path, err)
			return 1
		}
		defer f.Close()
		r = f
	}
	idx, err := bundle.ImportWithOptions(r, cas, bundle.ImportOptions{IgnoreUnknown: ignoreUnknown})
	if err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}
	if idx == nil {
		fmt.Fprintln(out, "OK (no index)")
		return 0
	}
	labels := make([]string, 0, len(idx.Labels))
	for _, l := range idx.Labels {
		labels = append(labels, l.Name+"\t"+l.CID)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintln(out, l)
	}
	fmt.Fprintf(out, "OK (%d blocks)\n", len(idx.Blocks))
	return 0
}
