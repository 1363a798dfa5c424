package codec

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"mime"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Format names understood by DefaultFormats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCBOR = "cbor"
	FormatXML  = "xml"
)

// Format serializes request and response bodies.
type Format interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Formats maps format names and media types to Format implementations.
type Formats struct {
	mu     sync.RWMutex
	byName map[string]Format
	byType map[string]Format
}

// NewFormats returns a set holding the given formats.
func NewFormats(formats ...Format) *Formats {
	f := &Formats{
		byName: make(map[string]Format),
		byType: make(map[string]Format),
	}
	for _, format := range formats {
		f.Register(format)
	}
	return f
}

// DefaultFormats wires up the built-in json, yaml, cbor and xml formats.
func DefaultFormats() *Formats {
	return NewFormats(JSON(), YAML(), CBOR(), XML())
}

// Register adds a format, replacing any format with the same name.
func (f *Formats) Register(format Format, aliases ...string) {
	if format == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(format.Name()))
	if name == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.byName[name] = format
	for _, ct := range append([]string{format.ContentType()}, aliases...) {
		if mt := mediaType(ct); mt != "" {
			f.byType[mt] = format
		}
	}
	for _, ct := range extraMediaTypes[name] {
		f.byType[ct] = format
	}
}

// Lookup returns the format registered under name.
func (f *Formats) Lookup(name string) (Format, bool) {
	if f == nil {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	format, ok := f.byName[strings.ToLower(strings.TrimSpace(name))]
	return format, ok
}

// ForContentType resolves a Content-Type header value. Structured suffixes
// such as application/problem+json resolve to their base format.
func (f *Formats) ForContentType(contentType string) (Format, bool) {
	if f == nil {
		return nil, false
	}
	mt := mediaType(contentType)
	if mt == "" {
		return nil, false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if format, ok := f.byType[mt]; ok {
		return format, true
	}
	if i := strings.LastIndexByte(mt, '+'); i >= 0 {
		format, ok := f.byName[mt[i+1:]]
		return format, ok
	}
	return nil, false
}

// Names returns the registered format names in sorted order.
func (f *Formats) Names() []string {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.byName))
	for name := range f.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var extraMediaTypes = map[string][]string{
	FormatYAML: {"application/x-yaml", "text/yaml", "text/x-yaml"},
	FormatXML:  {"text/xml"},
}

func mediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// funcFormat is a Format built from marshal/unmarshal functions.
type funcFormat struct {
	name        string
	contentType string
	marshal     func(any) ([]byte, error)
	unmarshal   func([]byte, any) error
}

func (f funcFormat) Name() string                       { return f.name }
func (f funcFormat) ContentType() string                { return f.contentType }
func (f funcFormat) Marshal(v any) ([]byte, error)      { return f.marshal(v) }
func (f funcFormat) Unmarshal(data []byte, v any) error { return f.unmarshal(data, v) }

// NewFormat builds a Format from plain marshal/unmarshal functions.
func NewFormat(name, contentType string, marshal func(any) ([]byte, error), unmarshal func([]byte, any) error) Format {
	return funcFormat{name: name, contentType: contentType, marshal: marshal, unmarshal: unmarshal}
}

// JSON is the default structured text exchange format.
func JSON() Format {
	return NewFormat(FormatJSON, "application/json", json.Marshal, json.Unmarshal)
}

// YAML encodes bodies with gopkg.in/yaml.v3.
func YAML() Format {
	return NewFormat(FormatYAML, "application/yaml", yaml.Marshal, yaml.Unmarshal)
}

// XML encodes bodies with encoding/xml.
func XML() Format {
	return NewFormat(FormatXML, "application/xml", xml.Marshal, xml.Unmarshal)
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor encoder: %v", err))
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor decoder: %v", err))
	}
}

// CBOR encodes bodies with deterministic CBOR (RFC 8949 core encoding).
func CBOR() Format {
	return NewFormat(FormatCBOR, "application/cbor", cborEnc.Marshal, cborDec.Unmarshal)
}
