package numbers

import (
	"sort"
	"strconv"

	"xdao.co/collapse/canon"
	"xdao.co/collapse/digest"
)

// NE is a natural number element.
type NE uint64

// ZE is an integer element.
type ZE int64

// DomainNE returns 0..nmax ascending.
func DomainNE(nmax uint64) []NE {
	out := make([]NE, 0, nmax+1)
	for n := uint64(0); ; n++ {
		out = append(out, NE(n))
		if n == nmax {
			break
		}
	}
	return out
}

// DomainZE returns -zmax..zmax ascending. A negative zmax yields an empty domain.
func DomainZE(zmax int64) []ZE {
	if zmax < 0 {
		return nil
	}
	out := make([]ZE, 0, 2*zmax+1)
	for z := -zmax; ; z++ {
		out = append(out, ZE(z))
		if z == zmax {
			break
		}
	}
	return out
}

// DigestNE hashes the canonical array of unsigned integers in domain order.
func DigestNE(domain []NE) digest.Digest {
	elems := make([]canon.Value, len(domain))
	for i, n := range domain {
		elems[i] = canon.Uint64(uint64(n))
	}
	return digest.SumValue(canon.Array(elems...))
}

// DigestZE hashes the canonical array of signed integers in domain order.
func DigestZE(domain []ZE) digest.Digest {
	elems := make([]canon.Value, len(domain))
	for i, z := range domain {
		elems[i] = canon.Int64(int64(z))
	}
	return digest.SumValue(canon.Array(elems...))
}

// View is a human-legible projection of a domain.
type View struct {
	Kind  string
	Size  int
	First string
	Last  string
}

// Map renders v as the sorted key/value view used in traces. First and Last
// are omitted for an empty domain.
func (v View) Map() map[string]string {
	m := map[string]string{"kind": v.Kind, "size": strconv.Itoa(v.Size)}
	if v.Size > 0 {
		m["first"] = v.First
		m["last"] = v.Last
	}
	return m
}

// Keys returns the keys of Map in sorted order.
func (v View) Keys() []string {
	m := v.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ViewNE(domain []NE) View {
	v := View{Kind: "N_E", Size: len(domain)}
	if len(domain) > 0 {
		v.First = strconv.FormatUint(uint64(domain[0]), 10)
		v.Last = strconv.FormatUint(uint64(domain[len(domain)-1]), 10)
	}
	return v
}

func ViewZE(domain []ZE) View {
	v := View{Kind: "Z_E", Size: len(domain)}
	if len(domain) > 0 {
		v.First = strconv.FormatInt(int64(domain[0]), 10)
		v.Last = strconv.FormatInt(int64(domain[len(domain)-1]), 10)
	}
	return v
}
