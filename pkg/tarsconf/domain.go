// Package tarsconf implements the hierarchical, braced configuration
// dialect used to bootstrap a Tars server or client: nested <name>...</name>
// sections, key=value parameters, and dotted domain/parameter path lookups.
package tarsconf

// Domain is one braced section of a configuration tree. Parameter and
// subdomain insertion order is preserved so Serialize writes a parsed
// document back in its original order; comments are not kept.
type Domain struct {
	Name string

	params     map[string]string
	paramOrder []string
	subdomains map[string]*Domain
	subOrder   []string
}

// newDomain allocates an empty, named domain.
func newDomain(name string) *Domain {
	return &Domain{
		Name:       name,
		params:     make(map[string]string),
		subdomains: make(map[string]*Domain),
	}
}

// SetParam assigns key=value. Re-assignment moves the key to the end of the
// insertion order, matching the original config tool's round-trip behaviour.
func (d *Domain) SetParam(key, value string) {
	if _, exists := d.params[key]; exists {
		d.removeFromOrder(key)
	}
	d.params[key] = value
	d.paramOrder = append(d.paramOrder, key)
}

func (d *Domain) removeFromOrder(key string) {
	for i, k := range d.paramOrder {
		if k == key {
			d.paramOrder = append(d.paramOrder[:i], d.paramOrder[i+1:]...)
			return
		}
	}
}

// Param returns the raw value for key and whether it was present.
func (d *Domain) Param(key string) (string, bool) {
	v, ok := d.params[key]
	return v, ok
}

// ParamOrder returns the keys of this domain's parameters in insertion order.
func (d *Domain) ParamOrder() []string {
	out := make([]string, len(d.paramOrder))
	copy(out, d.paramOrder)
	return out
}

// Subdomain returns the named child domain, creating it if absent, and
// records it at the end of the subdomain insertion order.
func (d *Domain) Subdomain(name string) *Domain {
	if sub, ok := d.subdomains[name]; ok {
		return sub
	}
	sub := newDomain(name)
	d.subdomains[name] = sub
	d.subOrder = append(d.subOrder, name)
	return sub
}

// GetSubdomain returns the named child domain without creating it.
func (d *Domain) GetSubdomain(name string) (*Domain, bool) {
	sub, ok := d.subdomains[name]
	return sub, ok
}

// Subdomains returns the child domains in insertion order.
func (d *Domain) Subdomains() []*Domain {
	out := make([]*Domain, 0, len(d.subOrder))
	for _, name := range d.subOrder {
		out = append(out, d.subdomains[name])
	}
	return out
}
