package main

import (
	"fmt"
	"io"
	"os"

	_ "xdao.co/collapse/storage/badgercas"
	_ "xdao.co/collapse/storage/grpccas"
	_ "xdao.co/collapse/storage/ipfs"
	_ "xdao.co/collapse/storage/localfs"
	_ "xdao.co/collapse/storage/memory"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "spine":
		return cmdSpine(args[1:], out, errOut)
	case "trace":
		return cmdTrace(args[1:], out, errOut)
	case "normalize":
		return cmdNormalize(args[1:], out, errOut)
	case "cert-cid":
		return cmdCertCID(args[1:], out, errOut)
	case "store":
		return cmdStore(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "attest":
		return cmdAttest(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "collapse: deterministic certification pipeline")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  collapse spine [run flags] [--snapshot <path>] [--freeze] [--sample <text>]")
	fmt.Fprintln(w, "  collapse trace [run flags] [--out <dir>] [--log-json] [--ne-max <n>] [--ze-max <n>]")
	fmt.Fprintln(w, "  collapse normalize [--profile <name>] [--strict] [--unconfuse] <text> [<text> ...]")
	fmt.Fprintln(w, "  collapse cert-cid [run flags] [--kernel <name>]")
	fmt.Fprintln(w, "  collapse store put [run flags] [storage flags]")
	fmt.Fprintln(w, "  collapse store get [storage flags] --cid <cid> [--out <file>]")
	fmt.Fprintln(w, "  collapse store verify [storage flags] --chain <cid>")
	fmt.Fprintln(w, "  collapse bundle export [run flags] [storage flags] --out <file|-> [--zstd]")
	fmt.Fprintln(w, "  collapse bundle import [storage flags] --in <file|->")
	fmt.Fprintln(w, "  collapse attest [run flags] (--seed-hex <64hex> | --key-file <path> | --signer <name> [--signer-role <r>]) [--role <r>] [--alg ed25519|dilithium3] [--hash-alg <h>]")
	fmt.Fprintln(w, "  collapse key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  collapse key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  collapse key list")
	fmt.Fprintln(w, "  collapse key export --name <name> [--role <role>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run flags:")
	fmt.Fprintln(w, "  --config <run.yaml> --family spine|buckets --profile code_safe|auth_safe --nmax <n> --dmax <n> --impl-tag <tag>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Storage flags:")
	fmt.Fprintln(w, "  --backend <name> [--backend-opt key=value ...] | --cas-config <file> [--prefer <id>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - spine verifies against the snapshot; --freeze rewrites it instead")
	fmt.Fprintln(w, "  - trace writes run_<stamp>_<family>.log and echoes it to stdout")
	fmt.Fprintln(w, "  - keys live under ~/.collapse/keys/<name> (0600 seed files)")
	fmt.Fprintln(w, "  - attest writes the canonical attestation payload to stdout (no trailing newline)")
}
