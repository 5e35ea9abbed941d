// Package bundle moves CAS blocks between stores as a deterministic TAR
// archive, optionally zstd-compressed.
//
// Layout: blocks/<cid> for every block (sorted by CID string) followed by an
// optional index.json. The index is metadata; Import trusts only the blocks.
package bundle

import (
	"archive/tar"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"

	"xdao.co/collapse/digest"
	"xdao.co/collapse/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

const indexName = "index.json"

var (
	epoch0    = time.Unix(0, 0).UTC()
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels maps human names (e.g. certificate kernel names) to CIDs. They
	// are written to the index only.
	Labels map[string]cid.Cid
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
	// Compress wraps the archive in a zstd frame.
	Compress bool
}

// Export writes a bundle containing the blocks for ids. Duplicate ids are
// written once; every block is checked against its CID before writing.
// Equal inputs always produce equal bytes.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) (err error) {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}
	if opts.Compress {
		enc, zerr := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
		if zerr != nil {
			return fmt.Errorf("bundle: zstd: %w", zerr)
		}
		defer func() {
			if cerr := enc.Close(); err == nil {
				err = cerr
			}
		}()
		w = enc
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	cidStrings := make([]string, 0, len(uniq))
	for s := range uniq {
		cidStrings = append(cidStrings, s)
	}
	sort.Strings(cidStrings)

	tw := tar.NewWriter(w)
	blocks := make([]indexBlock, 0, len(cidStrings))
	for _, s := range cidStrings {
		id := uniq[s]
		b, err := cas.Get(id)
		if err != nil {
			_ = tw.Close()
			return fmt.Errorf("bundle: get %s: %w", s, err)
		}
		got, err := digest.CIDOf(b)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if got != id {
			_ = tw.Close()
			return storage.ErrCIDMismatch
		}
		if err := writeFile(tw, "blocks/"+s, b); err != nil {
			_ = tw.Close()
			return err
		}
		blocks = append(blocks, indexBlock{CID: s, Size: len(b)})
	}

	if opts.IncludeIndex {
		idx := Index{
			Version:   FormatVersion,
			CIDCodec:  "raw",
			Multihash: "sha2-256",
			Blocks:    blocks,
		}
		labels, err := sortedLabels(opts.Labels)
		if err != nil {
			_ = tw.Close()
			return err
		}
		idx.Labels = labels
		b, err := json.Marshal(idx)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeFile(tw, indexName, append(b, '\n')); err != nil {
			_ = tw.Close()
			return err
		}
	}
	return tw.Close()
}

func sortedLabels(m map[string]cid.Cid) ([]indexLabel, error) {
	if len(m) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]indexLabel, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("bundle: empty label key")
		}
		v := m[k]
		if !v.Defined() {
			return nil, storage.ErrInvalidCID
		}
		out = append(out, indexLabel{Name: k, CID: v.String()})
	}
	return out, nil
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown skips unknown TAR entries instead of failing.
	IgnoreUnknown bool
}

// Import reads a bundle from r into cas, failing closed on unknown entries.
func Import(r io.Reader, cas storage.CAS) (*Index, error) {
	return ImportWithOptions(r, cas, ImportOptions{})
}

// ImportWithOptions reads a bundle from r into cas. Compressed bundles are
// detected by the zstd frame magic. Each block must match both its entry name
// and its computed CID. The returned Index is nil when the bundle has none.
func ImportWithOptions(r io.Reader, cas storage.CAS, opts ImportOptions) (*Index, error) {
	if cas == nil {
		return nil, fmt.Errorf("bundle: nil CAS")
	}
	br := bufio.NewReader(r)
	if head, _ := br.Peek(len(zstdMagic)); bytes.Equal(head, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("bundle: zstd: %w", err)
		}
		defer dec.Close()
		return importTar(dec, cas, opts)
	}
	return importTar(br, cas, opts)
}

func importTar(r io.Reader, cas storage.CAS, opts ImportOptions) (*Index, error) {
	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var idx *Index

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return idx, nil
		}
		if err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		if name == indexName {
			var parsed Index
			if err := json.NewDecoder(tr).Decode(&parsed); err != nil {
				return nil, fmt.Errorf("bundle: decode index: %w", err)
			}
			idx = &parsed
			continue
		}
		if !strings.HasPrefix(name, "blocks/") {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, derr := cid.Decode(strings.TrimPrefix(name, "blocks/"))
		if derr != nil || !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		payload, rerr := io.ReadAll(tr)
		if rerr != nil {
			return nil, rerr
		}
		got, herr := digest.CIDOf(payload)
		if herr != nil {
			return nil, herr
		}
		if got != id {
			return nil, storage.ErrCIDMismatch
		}
		key := id.String()
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("bundle: duplicate block entry: %s", key)
		}
		seen[key] = struct{}{}

		putID, perr := cas.Put(payload)
		if perr != nil {
			return nil, perr
		}
		if putID != id {
			return nil, storage.ErrCIDMismatch
		}
	}
}

// Index is the optional bundle manifest.
type Index struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

// Label returns the CID recorded for name.
func (idx *Index) Label(name string) (cid.Cid, bool) {
	if idx == nil {
		return cid.Undef, false
	}
	for _, l := range idx.Labels {
		if l.Name == name {
			id, err := cid.Decode(l.CID)
			return id, err == nil
		}
	}
	return cid.Undef, false
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	parts := strings.Split(name, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
