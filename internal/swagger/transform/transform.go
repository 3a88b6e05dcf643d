// Package transform rewrites downstream Swagger 2.0 and OpenAPI 3.x documents
// so they describe the gateway's upstream routes.
package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/goccy/go-yaml"
	"github.com/tidwall/gjson"
	"github.com/wudi/docgateway/internal/swagger"
)

// Options configures a Transformer.
type Options struct {
	// Scheme applies when the host carries none. Empty leaves Swagger 2.0
	// schemes untouched and yields a protocol-relative OpenAPI 3 server URL.
	Scheme string
}

// Transformer implements swagger.Transformer with kin-openapi.
type Transformer struct {
	scheme string
}

// New creates a Transformer.
func New(opts Options) *Transformer {
	return &Transformer{scheme: strings.TrimSuffix(opts.Scheme, "://")}
}

// Transform keeps the document paths reachable through routes, renames them
// to their upstream form, drops operations the routes do not expose and
// points the document at host.
func (t *Transformer) Transform(ctx context.Context, doc []byte, routes []swagger.RouteEntry, host string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := toJSON(doc)
	if err != nil {
		return nil, err
	}

	rules := compileRules(routes)

	switch {
	case gjson.GetBytes(data, "swagger").Exists():
		return t.transformV2(data, rules, host)
	case gjson.GetBytes(data, "openapi").Exists():
		return t.transformV3(ctx, data, rules, host)
	default:
		return nil, fmt.Errorf("document is neither swagger 2.0 nor openapi 3.x")
	}
}

func toJSON(doc []byte) ([]byte, error) {
	if json.Valid(doc) {
		return doc, nil
	}
	data, err := yaml.YAMLToJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("document is neither JSON nor YAML: %w", err)
	}
	return data, nil
}

func (t *Transformer) transformV2(data []byte, rules []rule, host string) ([]byte, error) {
	var doc openapi2.T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse swagger 2.0 document: %w", err)
	}

	paths := make(map[string]*openapi2.PathItem)
	for path, item := range doc.Paths {
		full := joinBase(doc.BasePath, path)
		for _, r := range rules {
			upstream, ok := r.rewrite(full)
			if !ok {
				continue
			}
			for method, op := range item.Operations() {
				if !r.allows(method) {
					continue
				}
				target, ok := paths[upstream]
				if !ok {
					target = &openapi2.PathItem{
						Extensions: item.Extensions,
						Ref:        item.Ref,
						Parameters: item.Parameters,
					}
					paths[upstream] = target
				}
				target.SetOperation(method, op)
			}
		}
	}

	doc.Paths = paths
	doc.BasePath = ""
	if scheme, h := splitHost(host); h != "" {
		doc.Host = h
		if scheme == "" {
			scheme = t.scheme
		}
		if scheme != "" {
			doc.Schemes = []string{scheme}
		}
	}

	return json.Marshal(&doc)
}

func (t *Transformer) transformV3(ctx context.Context, data []byte, rules []rule, host string) ([]byte, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse openapi 3 document: %w", err)
	}

	basePath := serverBasePath(doc.Servers)
	paths := openapi3.NewPaths()
	if doc.Paths != nil {
		for path, item := range doc.Paths.Map() {
			full := joinBase(basePath, path)
			for _, r := range rules {
				upstream, ok := r.rewrite(full)
				if !ok {
					continue
				}
				for method, op := range item.Operations() {
					if !r.allows(method) {
						continue
					}
					target := paths.Value(upstream)
					if target == nil {
						target = &openapi3.PathItem{
							Extensions:  item.Extensions,
							Ref:         item.Ref,
							Summary:     item.Summary,
							Description: item.Description,
							Parameters:  item.Parameters,
						}
						paths.Set(upstream, target)
					}
					target.SetOperation(method, op)
				}
			}
		}
	}

	doc.Paths = paths
	doc.Servers = openapi3.Servers{{URL: t.serverURL(host)}}

	return json.Marshal(doc)
}

func (t *Transformer) serverURL(host string) string {
	switch {
	case host == "":
		return "/"
	case strings.Contains(host, "://"):
		return host
	case t.scheme != "":
		return t.scheme + "://" + host
	default:
		return "//" + host
	}
}

// serverBasePath returns the path component of the first server URL; the
// document's paths are relative to it.
func serverBasePath(servers openapi3.Servers) string {
	if len(servers) == 0 || servers[0] == nil {
		return ""
	}
	u, err := url.Parse(servers[0].URL)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(u.Path, "/")
}

func splitHost(host string) (scheme, hostport string) {
	if !strings.Contains(host, "://") {
		return "", host
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", host
	}
	return u.Scheme, u.Host
}
