// Package codec converts typed call arguments into requests and responses back
// into typed values.
package codec

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/contract"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/httpclient"
)

const (
	contentTypeOctet = "application/octet-stream"
	contentTypeText  = "text/plain; charset=utf-8"
)

var (
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	bytesType    = reflect.TypeOf([]byte(nil))
)

// reservedEscaper percent-encodes the sub-delimiters url.PathEscape keeps.
var reservedEscaper = strings.NewReplacer(
	"$", "%24",
	"&", "%26",
	"+", "%2B",
	":", "%3A",
	"=", "%3D",
	"@", "%40",
)

// Request is an encoded call, relative to the client's base URL.
type Request struct {
	Method string
	Path   string // escaped
	Query  url.Values
	Header http.Header
	Body   []byte
}

// URL joins the request path and query onto base.
func (r *Request) URL(base string) string {
	u := strings.TrimRight(base, "/") + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	return u
}

// Codec encodes and decodes calls for one client.
type Codec struct {
	formats  *Formats
	fallback Format
}

// New builds a codec whose bodies default to the named format.
func New(formats *Formats, defaultFormat string) (*Codec, error) {
	if formats == nil {
		formats = DefaultFormats()
	}
	if strings.TrimSpace(defaultFormat) == "" {
		defaultFormat = FormatJSON
	}
	fallback, ok := formats.Lookup(defaultFormat)
	if !ok {
		return nil, fmt.Errorf("unknown body format %q (known: %s)", defaultFormat, strings.Join(formats.Names(), ", "))
	}
	return &Codec{formats: formats, fallback: fallback}, nil
}

// Default returns the codec's fallback format.
func (c *Codec) Default() Format { return c.fallback }

// FormatFor returns the body format of the operation.
func (c *Codec) FormatFor(d contract.Descriptor) (Format, error) {
	if d.Format == "" {
		return c.fallback, nil
	}
	format, ok := c.formats.Lookup(d.Format)
	if !ok {
		return nil, fmt.Errorf("unknown body format %q", d.Format)
	}
	return format, nil
}

// Encode builds the request for one call. args excludes the context.
func (c *Codec) Encode(d contract.Descriptor, args []any) (*Request, error) {
	if len(args) != len(d.Params) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", clienterr.ErrArgument, d.Name, len(d.Params), len(args))
	}
	format, err := c.FormatFor(d)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method: d.Method,
		Query:  url.Values{},
		Header: http.Header{},
	}

	pathValues := make(map[string]string, len(d.Placeholders))
	for _, b := range d.Bindings {
		arg := args[b.Param]
		switch b.Kind {
		case contract.BindPath:
			s, ok := scalarString(reflect.ValueOf(arg))
			if !ok {
				return nil, fmt.Errorf("%w: path parameter {%s} of %s is nil", clienterr.ErrArgument, b.Name, d.Name)
			}
			pathValues[b.Name] = escapePathSegment(s)
		case contract.BindQuery:
			for _, s := range queryStrings(reflect.ValueOf(arg)) {
				req.Query.Add(b.Name, s)
			}
		case contract.BindHeader:
			if s, ok := scalarString(reflect.ValueOf(arg)); ok {
				req.Header.Set(b.Name, s)
			}
		case contract.BindBody:
			body, contentType, err := encodeBody(format, arg)
			if err != nil {
				return nil, err
			}
			if body != nil {
				req.Body = body
				req.Header.Set("Content-Type", contentType)
			}
		}
	}

	req.Path = expandPath(d.Path, pathValues)
	if d.HasResult() && !isRaw(d.Result) {
		req.Header.Set("Accept", format.ContentType())
	}
	return req, nil
}

// Decode maps a response onto the operation's result. Non-2xx statuses yield a
// *clienterr.RemoteError. For operations without a result the returned value is
// invalid.
func (c *Codec) Decode(d contract.Descriptor, resp httpclient.Response) (reflect.Value, error) {
	status := resp.StatusCode()
	body := resp.Body()
	if status < 200 || status > 299 {
		return reflect.Value{}, &clienterr.RemoteError{
			Method: d.Method,
			Status: status,
			Body:   append([]byte(nil), body...),
		}
	}
	if !d.HasResult() {
		return reflect.Value{}, nil
	}

	rt := d.Result
	if len(body) == 0 || status == http.StatusNoContent {
		return reflect.Zero(rt), nil
	}
	if isRaw(rt) {
		if rt.Kind() == reflect.String {
			return reflect.ValueOf(string(body)).Convert(rt), nil
		}
		return reflect.ValueOf(append([]byte(nil), body...)).Convert(rt), nil
	}

	format, ok := c.formats.ForContentType(resp.Header().Get("Content-Type"))
	if !ok {
		var err error
		if format, err = c.FormatFor(d); err != nil {
			return reflect.Value{}, &clienterr.CodecError{Op: "decode", Err: err}
		}
	}

	out := reflect.New(rt)
	if err := format.Unmarshal(body, out.Interface()); err != nil {
		return reflect.Value{}, &clienterr.CodecError{Op: "decode", Format: format.Name(), Err: err}
	}
	return out.Elem(), nil
}

func encodeBody(format Format, arg any) ([]byte, string, error) {
	rv := reflect.ValueOf(arg)
	if !rv.IsValid() || (isNillable(rv.Kind()) && rv.IsNil()) {
		return nil, "", nil
	}
	if isRaw(rv.Type()) {
		if rv.Kind() == reflect.String {
			return []byte(rv.String()), contentTypeText, nil
		}
		return append([]byte(nil), rv.Convert(bytesType).Bytes()...), contentTypeOctet, nil
	}
	data, err := format.Marshal(arg)
	if err != nil {
		return nil, "", &clienterr.CodecError{Op: "encode", Format: format.Name(), Err: err}
	}
	return data, format.ContentType(), nil
}

// escapePathSegment encodes s so that every reserved character, including
// "/", reaches the server as data.
func escapePathSegment(s string) string {
	return reservedEscaper.Replace(url.PathEscape(s))
}

// expandPath replaces each {name} with its already-escaped value.
func expandPath(template string, values map[string]string) string {
	if len(values) == 0 {
		return template
	}
	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); i++ {
		if template[i] == '{' {
			if end := strings.IndexByte(template[i+1:], '}'); end >= 0 {
				name := template[i+1 : i+1+end]
				if v, ok := values[name]; ok {
					b.WriteString(v)
					i += end + 1
					continue
				}
			}
		}
		b.WriteByte(template[i])
	}
	return b.String()
}

func queryStrings(rv reflect.Value) []string {
	if !rv.IsValid() {
		return nil
	}
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && !rv.Type().Implements(stringerType) {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if s, ok := scalarString(rv.Index(i)); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := scalarString(rv); ok {
		return []string{s}
	}
	return nil
}

// scalarString formats a scalar value; ok is false for nil pointers.
func scalarString(rv reflect.Value) (string, bool) {
	if !rv.IsValid() {
		return "", false
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "", false
	}
	if rv.Type().Implements(stringerType) {
		return rv.Interface().(fmt.Stringer).String(), true
	}
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if reflect.PointerTo(rv.Type()).Implements(stringerType) {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		return ptr.Interface().(fmt.Stringer).String(), true
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), true
	}
	return fmt.Sprint(rv.Interface()), true
}

// isRaw reports whether t is a string or a byte slice type that converts
// to and from []byte. Other slices of byte-kinded elements go through the
// format like any other value.
func isRaw(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.String {
		return true
	}
	return t.Kind() == reflect.Slice && t.ConvertibleTo(bytesType) && bytesType.ConvertibleTo(t)
}

func isNillable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
