package tarsconf

import "strings"

// GetDomain resolves a domain path ("/a/b/c"; "/" addresses the root) under
// d, returning an error if any segment is missing.
func (d *Domain) GetDomain(path string) (*Domain, error) {
	segs, err := splitDomainPath(path)
	if err != nil {
		return nil, err
	}
	cur := d
	for _, seg := range segs {
		next, ok := cur.GetSubdomain(seg)
		if !ok {
			return nil, newPathError(path, "no such domain")
		}
		cur = next
	}
	return cur, nil
}

// Get resolves a parameter path ("/a/b<k>") under d. It is strict: any
// missing domain segment or missing key raises an error.
func (d *Domain) Get(path string) (string, error) {
	domainPath, key, err := splitParamPath(path)
	if err != nil {
		return "", err
	}
	dom, err := d.GetDomain(domainPath)
	if err != nil {
		return "", err
	}
	v, ok := dom.Param(key)
	if !ok {
		return "", newPathError(path, "no such parameter")
	}
	return v, nil
}

// GetDefault resolves a parameter path, returning def if the domain exists
// but the key is absent. A missing domain is still an error: only the
// "no such parameter" case is caught, per spec §4.1.
func (d *Domain) GetDefault(path, def string) (string, error) {
	domainPath, key, err := splitParamPath(path)
	if err != nil {
		return "", err
	}
	dom, err := d.GetDomain(domainPath)
	if err != nil {
		return "", err
	}
	v, ok := dom.Param(key)
	if !ok {
		return def, nil
	}
	return v, nil
}

func splitDomainPath(path string) ([]string, error) {
	if path == "/" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, newPathError(path, "domain path must start with '/'")
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "/"), nil
}

// splitParamPath splits "/seg1/seg2<name>" into ("/seg1/seg2", "name").
func splitParamPath(path string) (domainPath, key string, err error) {
	if !strings.HasPrefix(path, "/") {
		return "", "", newPathError(path, "parameter path must start with '/'")
	}
	lt := strings.IndexByte(path, '<')
	gt := strings.LastIndexByte(path, '>')
	if lt < 0 || gt < 0 || gt < lt {
		return "", "", newPathError(path, "parameter path must contain '<name>'")
	}
	domainPath = path[:lt]
	if domainPath == "" {
		domainPath = "/"
	}
	key = path[lt+1 : gt]
	return domainPath, key, nil
}

// Join merges src into d. In update mode src's parameters override d's on
// conflict; otherwise d's own values win. Implemented, per spec, by
// reserializing both and reparsing the concatenation so subdomain merging
// gets the same override semantics for free.
func Join(d, src *Domain, update bool) (*Domain, error) {
	first, second := src, d
	if update {
		first, second = d, src
	}
	text := Serialize(first) + Serialize(second)
	wrapped := "<root>\n" + text + "</root>\n"
	parsed, err := Parse(wrapped)
	if err != nil {
		return nil, err
	}
	merged, _ := parsed.GetSubdomain("root")
	return merged, nil
}
