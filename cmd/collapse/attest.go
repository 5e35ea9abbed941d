package main

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"os"

	"xdao.co/collapse/attest"
	"xdao.co/collapse/canon"
)

func cmdAttest(args []string, out io.Writer, errOut io.Writer) int {
	fs := newFlagSet("attest", errOut)
	rf := addRunFlags(fs)
	var seedHex, keyFile, signer, signerRole, keyDir, role, alg, hashAlg string
	fs.StringVar(&seedHex, "seed-hex", "", "Root seed as 64 hex chars")
	fs.StringVar(&keyFile, "key-file", "", "Path to a file holding the root seed (hex)")
	fs.StringVar(&signer, "signer", "", "Use a stored key by name (from 'collapse key init')")
	fs.StringVar(&signerRole, "signer-role", "", "With --signer, use a stored role key")
	fs.StringVar(&keyDir, "key-dir", "", "Key store directory (default ~/.collapse/keys)")
	fs.StringVar(&role, "role", "", "Derive a role key from the seed")
	fs.StringVar(&alg, "alg", attest.AlgEd25519, "Signature algorithm: ed25519 or dilithium3")
	fs.StringVar(&hashAlg, "hash-alg", attest.HashSHA256, "Hash algorithm: sha256, sha512, sha3-256, blake3")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	set := 0
	for _, v := range []string{seedHex, keyFile, signer} {
		if v != "" {
			set++
		}
	}
	if set == 0 {
		fmt.Fprintln(errOut, "missing signer: use --seed-hex, --key-file, or --signer")
		return 2
	}
	if set > 1 {
		fmt.Fprintln(errOut, "conflicting signer flags: use only one of --seed-hex, --key-file, --signer")
		return 2
	}

	var seed []byte
	var err error
	switch {
	case signer != "":
		ks, kerr := attest.OpenKeyStore(keyDir)
		if kerr != nil {
			fmt.Fprintf(errOut, "keys: %v\n", kerr)
			return 1
		}
		seed, err = ks.Seed(signer, signerRole)
	case keyFile != "":
		b, rerr := os.ReadFile(keyFile)
		if rerr != nil {
			fmt.Fprintf(errOut, "read --key-file: %v\n", rerr)
			return 1
		}
		seed, err = attest.ParseSeedHex(string(b))
	default:
		seed, err = attest.ParseSeedHex(seedHex)
	}
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return 2
	}
	if role != "" {
		if seed, err = attest.DeriveRoleSeed(seed, role); err != nil {
			fmt.Fprintf(errOut, "invalid signer: %v\n", err)
			return 2
		}
	}

	_, res, ok := compute(rf, nil, errOut)
	if !ok {
		return 1
	}

	var a *attest.Attestation
	switch alg {
	case attest.AlgEd25519:
		a, err = attest.SignEd25519(res.Chain.Hash, hashAlg, ed25519.NewKeyFromSeed(seed))
	case attest.AlgDilithium3:
		priv, kerr := attest.Dilithium3FromSeed(seed)
		if kerr != nil {
			err = kerr
			break
		}
		a, err = attest.SignDilithium3(res.Chain.Hash, hashAlg, priv)
	default:
		fmt.Fprintf(errOut, "unsupported --alg %q\n", alg)
		return 2
	}
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	if err := a.Verify(); err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}

	c := a.Certificate()
	fmt.Fprintf(errOut, "Issuer-Key: %s\n", a.IssuerKey)
	fmt.Fprintf(errOut, "Attestation-CID: %s\n", c.CID())
	fmt.Fprintf(errOut, "Attested-Chain: %s\n", chainWith(res, c).HashHex())
	_, _ = out.Write(canon.Encode(c.Payload()))
	return 0
}
