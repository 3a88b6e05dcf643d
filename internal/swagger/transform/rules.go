package transform

import (
	"strings"

	"github.com/wudi/docgateway/internal/swagger"
)

// catchAll marks a downstream template that forwards every sub-path.
const catchAll = "{everything}"

// rule is a route compiled for matching document paths.
type rule struct {
	downstream []string
	upstream   string
	prefix     bool
	method     string
}

func compileRules(routes []swagger.RouteEntry) []rule {
	rules := make([]rule, 0, len(routes))
	for _, r := range routes {
		rules = append(rules, compileRule(r))
	}
	return rules
}

func compileRule(r swagger.RouteEntry) rule {
	down := stripVirtualDirectory(r.DownstreamPathTemplate, r.VirtualDirectory)
	up := r.UpstreamPathTemplate

	ru := rule{method: strings.ToUpper(r.UpstreamMethod)}
	if strings.EqualFold(lastSegment(down), catchAll) {
		ru.prefix = true
		down = trimLastSegment(down)
		if strings.EqualFold(lastSegment(up), catchAll) {
			up = trimLastSegment(up)
		}
	}
	ru.downstream = segments(down)
	ru.upstream = up
	return ru
}

// rewrite maps a full downstream document path onto the upstream surface.
func (r rule) rewrite(path string) (string, bool) {
	segs := segments(path)
	if r.prefix {
		if len(segs) < len(r.downstream) || !segmentsMatch(segs[:len(r.downstream)], r.downstream) {
			return "", false
		}
		return joinPath(r.upstream, segs[len(r.downstream):]), true
	}
	if len(segs) != len(r.downstream) || !segmentsMatch(segs, r.downstream) {
		return "", false
	}
	return joinPath(r.upstream, nil), true
}

func (r rule) allows(method string) bool {
	return r.method == "" || r.method == method
}

func stripVirtualDirectory(path, vd string) string {
	vd = strings.TrimSuffix(vd, "/")
	if vd == "" || len(path) < len(vd) || !strings.EqualFold(path[:len(vd)], vd) {
		return path
	}
	rest := path[len(vd):]
	if rest != "" && rest[0] != '/' {
		return path
	}
	if rest == "" {
		return "/"
	}
	return rest
}

func segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// segmentsMatch compares case-insensitively; any two path parameters match
// regardless of their names.
func segmentsMatch(a, b []string) bool {
	for i := range a {
		if isParam(a[i]) && isParam(b[i]) {
			continue
		}
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func isParam(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func trimLastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

func joinPath(base string, rest []string) string {
	base = strings.TrimSuffix(base, "/")
	if len(rest) > 0 {
		base += "/" + strings.Join(rest, "/")
	}
	if base == "" {
		return "/"
	}
	return base
}

func joinBase(basePath, path string) string {
	basePath = strings.TrimSuffix(basePath, "/")
	if basePath == "" {
		return path
	}
	return basePath + "/" + strings.TrimPrefix(path, "/")
}
