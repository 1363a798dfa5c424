package codec

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"testing"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/contract"
)

type message struct {
	ID    int               `json:"id" yaml:"id" cbor:"id" xml:"id"`
	Text  string            `json:"text" yaml:"text" cbor:"text" xml:"text"`
	Tags  []string          `json:"tags" yaml:"tags" cbor:"tags" xml:"tags"`
	Attrs map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty" cbor:"attrs,omitempty" xml:"-"`
}

type region string

func (r region) String() string { return "region-" + string(r) }

type echoClient struct {
	Echo   func(ctx context.Context, room string, m message) (message, error)                `feign:"POST /rooms/{room}/echo" bind:"path=room,body"`
	List   func(ctx context.Context, tags []string, limit *int, r region) ([]message, error) `feign:"GET /messages" bind:"query=tag,query=limit,header=X-Region"`
	Raw    func(ctx context.Context, data []byte) (string, error)                            `feign:"PUT /raw" bind:"body"`
	Remove func(ctx context.Context, id int) error                                           `feign:"DELETE /messages/{id}"`
}

type octets []byte

type blobByte uint8

type blob []blobByte

type blobClient struct {
	Octets func(ctx context.Context, data octets) (octets, error) `feign:"PUT /octets" bind:"body"`
	Blob   func(ctx context.Context, data blob) (blob, error)     `feign:"PUT /blob" bind:"body"`
}

// fakeResponse implements httpclient.Response.
type fakeResponse struct {
	status int
	body   []byte
	header http.Header
}

func (f *fakeResponse) StatusCode() int     { return f.status }
func (f *fakeResponse) Body() []byte        { return f.body }
func (f *fakeResponse) Header() http.Header { return f.header }

func descriptors(t *testing.T) map[string]contract.Descriptor {
	t.Helper()
	ext, err := contract.NewExtractor(0)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	descs, err := ext.Extract(reflect.TypeOf(echoClient{}))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	out := make(map[string]contract.Descriptor, len(descs))
	for _, d := range descs {
		out[d.Name] = d
	}
	return out
}

func TestEncodeDecodeRoundTripAllFormats(t *testing.T) {
	d := descriptors(t)["Echo"]
	in := message{ID: 7, Text: "héllo wörld", Tags: []string{"a", "b"}}

	for _, name := range []string{FormatJSON, FormatYAML, FormatCBOR, FormatXML} {
		t.Run(name, func(t *testing.T) {
			c, err := New(DefaultFormats(), name)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			req, err := c.Encode(d, []any{"lobby", in})
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if req.Path != "/rooms/lobby/echo" {
				t.Fatalf("path = %q", req.Path)
			}

			// Echo the request body back as the response.
			resp := &fakeResponse{
				status: http.StatusOK,
				body:   req.Body,
				header: http.Header{"Content-Type": []string{req.Header.Get("Content-Type")}},
			}
			out, err := c.Decode(d, resp)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got := out.Interface().(message); !reflect.DeepEqual(got, in) {
				t.Fatalf("round trip mismatch: got %+v want %+v", got, in)
			}
		})
	}
}

func TestEncodeEscapesReservedPathCharacters(t *testing.T) {
	d := descriptors(t)["Echo"]
	c, err := New(nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		room string
		want string
	}{
		{room: "a/b c?d#e%f", want: "/rooms/a%2Fb%20c%3Fd%23e%25f/echo"},
		{room: "a+b:c@d&e=f$g", want: "/rooms/a%2Bb%3Ac%40d%26e%3Df%24g/echo"},
		{room: "x;y,z!*'()", want: "/rooms/x%3By%2Cz%21%2A%27%28%29/echo"},
	}
	for _, tc := range cases {
		req, err := c.Encode(d, []any{tc.room, message{}})
		if err != nil {
			t.Fatalf("Encode(%q): %v", tc.room, err)
		}
		if req.Path != tc.want {
			t.Fatalf("path for %q = %q, want %q", tc.room, req.Path, tc.want)
		}

		u, err := url.Parse(req.URL("http://svc.local/api/"))
		if err != nil {
			t.Fatalf("parse url: %v", err)
		}
		if u.Path != "/api/rooms/"+tc.room+"/echo" {
			t.Fatalf("decoded path = %q", u.Path)
		}
	}
}

func TestEncodeQueryAndHeaders(t *testing.T) {
	d := descriptors(t)["List"]
	c, err := New(nil, FormatJSON)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	limit := 25
	req, err := c.Encode(d, []any{[]string{"x", "y z"}, &limit, region("eu")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := req.URL("http://svc"); got != "http://svc/messages?limit=25&tag=x&tag=y+z" {
		t.Fatalf("url = %q", got)
	}
	if got := req.Header.Get("X-Region"); got != "region-eu" {
		t.Fatalf("X-Region = %q", got)
	}
	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Fatalf("Accept = %q", got)
	}
	if req.Body != nil {
		t.Fatalf("GET must not carry a body")
	}

	req, err = c.Encode(d, []any{nil, (*int)(nil), region("us")})
	if err != nil {
		t.Fatalf("Encode with nil values: %v", err)
	}
	if len(req.Query) != 0 {
		t.Fatalf("nil query values should be omitted, got %v", req.Query)
	}
}

func TestEncodeRejectsWrongArgumentCount(t *testing.T) {
	d := descriptors(t)["Remove"]
	c, _ := New(nil, "")
	if _, err := c.Encode(d, nil); !errors.Is(err, clienterr.ErrArgument) {
		t.Fatalf("expected ErrArgument, got %v", err)
	}
}

func TestRawBodiesPassThrough(t *testing.T) {
	d := descriptors(t)["Raw"]
	c, _ := New(nil, "")

	req, err := c.Encode(d, []any{[]byte{0x01, 0x02}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if req.Header.Get("Content-Type") != contentTypeOctet || len(req.Body) != 2 {
		t.Fatalf("unexpected raw request %+v", req)
	}

	out, err := c.Decode(d, &fakeResponse{status: 200, body: []byte("ok"), header: http.Header{}})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.String() != "ok" {
		t.Fatalf("raw decode = %q", out.String())
	}
}

func TestByteKindedSlicesDoNotPanic(t *testing.T) {
	ext, err := contract.NewExtractor(0)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	descs, err := ext.Extract(reflect.TypeOf(blobClient{}))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	c, err := New(nil, FormatJSON)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	octetsOp, blobOp := descs[0], descs[1]

	req, err := c.Encode(octetsOp, []any{octets("abc")})
	if err != nil {
		t.Fatalf("Encode octets: %v", err)
	}
	if string(req.Body) != "abc" || req.Header.Get("Content-Type") != contentTypeOctet {
		t.Fatalf("octets body = %q (%s)", req.Body, req.Header.Get("Content-Type"))
	}
	out, err := c.Decode(octetsOp, &fakeResponse{status: http.StatusOK, body: []byte("xyz")})
	if err != nil {
		t.Fatalf("Decode octets: %v", err)
	}
	if got := out.Interface().(octets); string(got) != "xyz" {
		t.Fatalf("octets result = %q", got)
	}

	req, err = c.Encode(blobOp, []any{blob{1, 2}})
	if err != nil {
		t.Fatalf("Encode blob: %v", err)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("blob should be encoded by the format, got %q", req.Header.Get("Content-Type"))
	}
	out, err = c.Decode(blobOp, &fakeResponse{
		status: http.StatusOK,
		body:   []byte(`[1,2,3]`),
		header: http.Header{"Content-Type": []string{"application/json"}},
	})
	if err != nil {
		t.Fatalf("Decode blob: %v", err)
	}
	if got := out.Interface().(blob); !reflect.DeepEqual(got, blob{1, 2, 3}) {
		t.Fatalf("blob result = %v", got)
	}
}

func TestDecodeNon2xxReturnsRemoteError(t *testing.T) {
	d := descriptors(t)["Echo"]
	c, _ := New(nil, "")

	_, err := c.Decode(d, &fakeResponse{status: http.StatusNotFound, body: []byte(`{"error":"missing"}`), header: http.Header{}})
	var remote *clienterr.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Status != http.StatusNotFound || string(remote.Body) != `{"error":"missing"}` {
		t.Fatalf("unexpected remote error %+v", remote)
	}
}

func TestDecodeMalformedPayloadReturnsCodecError(t *testing.T) {
	d := descriptors(t)["Echo"]
	c, _ := New(nil, "")

	_, err := c.Decode(d, &fakeResponse{
		status: http.StatusOK,
		body:   []byte(`{"id": "not-a-number"`),
		header: http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
	})
	var codecErr *clienterr.CodecError
	if !errors.As(err, &codecErr) || codecErr.Format != FormatJSON {
		t.Fatalf("expected json CodecError, got %v", err)
	}
}

func TestDecodeEmptyBodyYieldsZeroValue(t *testing.T) {
	d := descriptors(t)["List"]
	c, _ := New(nil, "")

	out, err := c.Decode(d, &fakeResponse{status: http.StatusNoContent, header: http.Header{}})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out.IsNil() {
		t.Fatalf("expected nil slice, got %v", out.Interface())
	}
}

func TestFormatsResolveContentTypes(t *testing.T) {
	formats := DefaultFormats()
	cases := map[string]string{
		"application/json":              FormatJSON,
		"application/problem+json":      FormatJSON,
		"text/yaml; charset=utf-8":      FormatYAML,
		"application/cbor":              FormatCBOR,
		"text/xml":                      FormatXML,
		"application/vnd.api+json; v=1": FormatJSON,
	}
	for ct, want := range cases {
		f, ok := formats.ForContentType(ct)
		if !ok || f.Name() != want {
			t.Fatalf("ForContentType(%q) = %v, want %s", ct, f, want)
		}
	}
	if _, ok := formats.ForContentType("text/html"); ok {
		t.Fatalf("text/html should not resolve")
	}
	if _, err := New(formats, "protobuf"); err == nil {
		t.Fatalf("expected error for unknown default format")
	}
}
