package attest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps hex-encoded 32-byte seeds on disk:
//
//	<dir>/<name>/root.key
//	<dir>/<name>/roles/<role>.key
//
// Role seeds are derived with DeriveRoleSeed. Files are 0600.
type KeyStore struct {
	Dir string
}

// KeyEntry lists a root key and the roles derived from it.
type KeyEntry struct {
	Name  string
	Roles []string
}

// DefaultKeyDir is ~/.collapse/keys.
func DefaultKeyDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".collapse", "keys"), nil
}

// OpenKeyStore returns a store rooted at dir, or at DefaultKeyDir when dir is
// empty. Nothing is created until a key is written.
func OpenKeyStore(dir string) (*KeyStore, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultKeyDir(); err != nil {
			return nil, err
		}
	}
	return &KeyStore{Dir: dir}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Dir, name, "root.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Dir, name, "roles", role+".key")
}

// CheckKeyName accepts the same alphabet as CheckRole.
func CheckKeyName(name string) error {
	if name == "" {
		return newError(KindKey, "ATTEST-KEY-020", "key name cannot be empty")
	}
	if err := CheckRole(name); err != nil {
		return newError(KindKey, "ATTEST-KEY-021", "invalid key name "+name)
	}
	return nil
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readSeed(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(b))
}

// InitRoot stores seed as the root key for name and returns its Ed25519
// issuer key. An existing key is kept unless overwrite is set.
func (ks *KeyStore) InitRoot(name string, seed []byte, overwrite bool) (issuerKey, path string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	if issuerKey, err = IssuerKeyFromSeed(seed); err != nil {
		return "", "", err
	}
	path = ks.rootPath(name)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	return issuerKey, path, nil
}

// DeriveRole derives and stores the role seed for name.
func (ks *KeyStore) DeriveRole(name, role string, overwrite bool) (issuerKey, path string, err error) {
	root, err := ks.Seed(name, "")
	if err != nil {
		return "", "", err
	}
	seed, err := DeriveRoleSeed(root, role)
	if err != nil {
		return "", "", err
	}
	path = ks.rolePath(name, role)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	issuerKey, err = IssuerKeyFromSeed(seed)
	return issuerKey, path, err
}

// Seed loads the root seed for name, or the stored role seed when role is set.
func (ks *KeyStore) Seed(name, role string) ([]byte, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	if role == "" {
		return readSeed(ks.rootPath(name))
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	return readSeed(ks.rolePath(name, role))
}

// IssuerKey returns the Ed25519 issuer key of a stored seed.
func (ks *KeyStore) IssuerKey(name, role string) (string, error) {
	seed, err := ks.Seed(name, role)
	if err != nil {
		return "", err
	}
	return IssuerKeyFromSeed(seed)
}

// List returns every root key and its stored roles, sorted.
func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []KeyEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var roles []string
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Dir, e.Name(), "roles"))
		if rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			return nil, fmt.Errorf("attest: list roles of %s: %w", e.Name(), rerr)
		}
		for _, r := range roleEntries {
			if !r.IsDir() && strings.HasSuffix(r.Name(), ".key") {
				roles = append(roles, strings.TrimSuffix(r.Name(), ".key"))
			}
		}
		sort.Strings(roles)
		out = append(out, KeyEntry{Name: e.Name(), Roles: roles})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
