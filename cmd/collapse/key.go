package main

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"xdao.co/collapse/attest"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: collapse key <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: init, derive, list, export")
		return 2
	}
	fs := newFlagSet("key "+args[0], errOut)
	var keyDir, name, role, seedHex string
	var force bool
	fs.StringVar(&keyDir, "key-dir", "", "Key store directory (default ~/.collapse/keys)")

	switch args[0] {
	case "init":
		fs.StringVar(&name, "name", "", "Key name")
		fs.StringVar(&seedHex, "seed-hex", "", "Seed as 64 hex chars (random when empty)")
		fs.BoolVar(&force, "force", false, "Overwrite an existing key")
	case "derive":
		fs.StringVar(&name, "from", "", "Root key name")
		fs.StringVar(&role, "role", "", "Role to derive")
		fs.BoolVar(&force, "force", false, "Overwrite an existing role key")
	case "export":
		fs.StringVar(&name, "name", "", "Key name")
		fs.StringVar(&role, "role", "", "Stored role (optional)")
	case "list":
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	ks, err := attest.OpenKeyStore(keyDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	switch args[0] {
	case "init":
		if name == "" {
			fmt.Fprintln(errOut, "usage: collapse key init --name <name> [--seed-hex <64hex>] [--force]")
			return 2
		}
		seed := make([]byte, 32)
		if seedHex != "" {
			if seed, err = attest.ParseSeedHex(seedHex); err != nil {
				fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
				return 2
			}
		} else if _, err := io.ReadFull(rand.Reader, seed); err != nil {
			fmt.Fprintf(errOut, "random seed: %v\n", err)
			return 1
		}
		issuer, path, err := ks.InitRoot(name, seed, force)
		if err != nil {
			fmt.Fprintf(errOut, "key init: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "wrote %s\n", path)
		fmt.Fprintln(out, issuer)
	case "derive":
		if name == "" || role == "" {
			fmt.Fprintln(errOut, "usage: collapse key derive --from <name> --role <role> [--force]")
			return 2
		}
		issuer, path, err := ks.DeriveRole(name, role, force)
		if err != nil {
			fmt.Fprintf(errOut, "key derive: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "wrote %s\n", path)
		fmt.Fprintln(out, issuer)
	case "export":
		if name == "" {
			fmt.Fprintln(errOut, "usage: collapse key export --name <name> [--role <role>]")
			return 2
		}
		issuer, err := ks.IssuerKey(name, role)
		if err != nil {
			fmt.Fprintf(errOut, "key export: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, issuer)
	case "list":
		entries, err := ks.List()
		if err != nil {
			fmt.Fprintf(errOut, "key list: %v\n", err)
			return 1
		}
		for _, e := range entries {
			if len(e.Roles) == 0 {
				fmt.Fprintln(out, e.Name)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", e.Name, strings.Join(e.Roles, ","))
		}
	}
	return 0
}
