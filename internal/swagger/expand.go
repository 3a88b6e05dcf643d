package swagger

import "strings"

// Expand returns the routes to annotate for the endpoint. Routes whose
// templates contain the endpoint's version placeholder are repeated once per
// registered version with the placeholder substituted; every other route for
// the key is returned once, unchanged.
//
// Static routes come first, then expanded routes grouped by original route
// and ordered by version registration. The input slice is never modified.
func Expand(endpoint *Endpoint, routes []RouteEntry) []RouteEntry {
	var owned []RouteEntry
	for _, r := range routes {
		if r.ServiceKey == endpoint.Key {
			owned = append(owned, r)
		}
	}

	placeholder := endpoint.VersionPlaceholder
	if placeholder == "" {
		return owned
	}

	var static, versioned []RouteEntry
	for _, r := range owned {
		if strings.Contains(r.UpstreamPathTemplate, placeholder) ||
			strings.Contains(r.DownstreamPathTemplate, placeholder) {
			versioned = append(versioned, r)
		} else {
			static = append(static, r)
		}
	}

	out := make([]RouteEntry, 0, len(static)+len(versioned)*len(endpoint.Versions))
	out = append(out, static...)
	for _, r := range versioned {
		for _, doc := range endpoint.Versions {
			out = append(out, substitute(r, placeholder, doc.Version))
		}
	}
	return out
}

// substitute is plain text replacement: a placeholder that happens to occur
// inside unrelated text is replaced as well.
func substitute(r RouteEntry, placeholder, version string) RouteEntry {
	r.UpstreamPathTemplate = strings.ReplaceAll(r.UpstreamPathTemplate, placeholder, version)
	r.DownstreamPathTemplate = strings.ReplaceAll(r.DownstreamPathTemplate, placeholder, version)
	return r
}
