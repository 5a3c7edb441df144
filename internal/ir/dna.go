package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// DNA is the loaded application definition.
type DNA struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Properties map[string]string `json:"properties,omitempty"`
	Zomes      map[string]Zome   `json:"zomes"`
}

// Zome is one module of the application. Code is opaque WASM bytes.
type Zome struct {
	Code            []byte   `json:"code"`
	Functions       []string `json:"functions"`
	PublicFunctions []string `json:"public_functions,omitempty"`
}

// Address returns the content address of the definition. Zome code is
// folded in by digest.
func (d DNA) Address() Address {
	zomes := make(map[string]any, len(d.Zomes))
	for name, z := range d.Zomes {
		sum := sha256.Sum256(z.Code)
		fns := z.Functions
		if fns == nil {
			fns = []string{}
		}
		pub := z.PublicFunctions
		if pub == nil {
			pub = []string{}
		}
		zomes[name] = map[string]any{
			"code_sha256":      hex.EncodeToString(sum[:]),
			"functions":        fns,
			"public_functions": pub,
		}
	}
	props := make(map[string]any, len(d.Properties))
	for k, v := range d.Properties {
		props[k] = v
	}
	return mustAddress(DomainEntry, map[string]any{
		"name":       d.Name,
		"version":    d.Version,
		"properties": props,
		"zomes":      zomes,
	})
}

// Wasm returns the code of zome, or false if the zome is unknown or has
// no code.
func (d DNA) Wasm(zome string) ([]byte, bool) {
	z, ok := d.Zomes[zome]
	if !ok || len(z.Code) == 0 {
		return nil, false
	}
	return z.Code, true
}

// PublicFunctions lists "zome/function" for every public function, sorted.
func (d DNA) PublicFunctions() []string {
	var out []string
	for name, z := range d.Zomes {
		for _, fn := range z.PublicFunctions {
			out = append(out, name+"/"+fn)
		}
	}
	slices.Sort(out)
	return out
}
