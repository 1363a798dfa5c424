package contract

import (
	"fmt"
	"net/http"
	"net/textproto"
	"strings"
)

var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodOptions: {},
}

type bindSpec struct {
	kind BindingKind
	name string
}

// parseRoute splits a `feign` tag into method and path template.
func parseRoute(tag string) (string, string, error) {
	fields := strings.Fields(tag)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("route %q must be \"METHOD /path\"", tag)
	}
	method := strings.ToUpper(fields[0])
	if _, ok := allowedMethods[method]; !ok {
		return "", "", fmt.Errorf("unsupported http method %q", fields[0])
	}
	path := fields[1]
	if !strings.HasPrefix(path, "/") {
		return "", "", fmt.Errorf("path %q must start with /", path)
	}
	return method, path, nil
}

// parsePlaceholders returns the {name} placeholders of a path template in order.
func parsePlaceholders(path string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '}':
			return nil, fmt.Errorf("path %q has unmatched '}' at %d", path, i)
		case '{':
			end := strings.IndexByte(path[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("path %q has unterminated placeholder at %d", path, i)
			}
			name := path[i+1 : i+1+end]
			if !validPlaceholder(name) {
				return nil, fmt.Errorf("path %q has invalid placeholder %q", path, name)
			}
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("path %q repeats placeholder {%s}", path, name)
			}
			seen[name] = struct{}{}
			out = append(out, name)
			i += end + 1
		}
	}
	return out, nil
}

func validPlaceholder(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}

// parseBindings parses a `bind` tag: "path=id,query=limit,header=X-Token,body".
func parseBindings(tag string) ([]bindSpec, error) {
	parts := strings.Split(tag, ",")
	out := make([]bindSpec, 0, len(parts))
	for i, raw := range parts {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			return nil, fmt.Errorf("binding %d is empty", i)
		}
		if strings.EqualFold(entry, string(BindBody)) {
			out = append(out, bindSpec{kind: BindBody})
			continue
		}
		kind, name, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("binding %q must be kind=name or body", entry)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("binding %q has no name", entry)
		}
		switch BindingKind(strings.ToLower(strings.TrimSpace(kind))) {
		case BindPath:
			out = append(out, bindSpec{kind: BindPath, name: name})
		case BindQuery:
			out = append(out, bindSpec{kind: BindQuery, name: name})
		case BindHeader:
			out = append(out, bindSpec{kind: BindHeader, name: textproto.CanonicalMIMEHeaderKey(name)})
		default:
			return nil, fmt.Errorf("binding %q has unknown kind %q", entry, kind)
		}
	}
	return out, nil
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}
