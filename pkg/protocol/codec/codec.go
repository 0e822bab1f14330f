// Package codec provides the self-describing encodings used for status
// snapshots and diagnostics. The session wire protocol does not use it; that
// format is fixed by package protocol.
package codec

import (
	"fmt"
	"sort"
	"strings"
)

// Content types of the built-in codecs.
const (
	ContentJSON    = "application/json"
	ContentCBOR    = "application/cbor"
	ContentMsgpack = "application/msgpack"
	ContentProto   = "application/x-protobuf"
)

// Codec marshals typed values. Implementations should be deterministic.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content types and short format names to codecs.
type Registry struct {
	byType map[string]Codec
	byName map[string]Codec
}

// NewRegistry returns a registry preloaded with json, msgpack, proto and cbor.
func NewRegistry() (*Registry, error) {
	r := &Registry{byType: make(map[string]Codec), byName: make(map[string]Codec)}
	r.Register("json", JSON())
	r.Register("msgpack", Msgpack())
	r.Register("proto", Proto())
	c, err := CBOR()
	if err != nil {
		return nil, fmt.Errorf("init cbor: %w", err)
	}
	r.Register("cbor", c)
	return r, nil
}

// Register adds c under its content type and the short name.
func (r *Registry) Register(name string, c Codec) {
	r.byType[c.ContentType()] = c
	if name != "" {
		r.byName[strings.ToLower(name)] = c
	}
}

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// ByName returns a codec by short name (json, cbor, msgpack, proto).
func (r *Registry) ByName(name string) (Codec, error) {
	if c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("unknown format %q (have %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists the registered short names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
