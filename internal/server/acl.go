package server

import "net"

// Order selects whether the allow list or the deny list is consulted
// first when both would otherwise match (spec §3 BindAdapter.order).
type Order int

const (
	AllowDeny Order = iota
	DenyAllow
)

// ACL is an adapter's IP allow/deny filter, built once at bind time from
// the `allow`/`deny`/`order` config keys (spec §6).
type ACL struct {
	order Order
	allow []*net.IPNet
	deny  []*net.IPNet
}

// NewACL parses comma-separated CIDR or bare-IP lists into an ACL. A bare
// IP is treated as a /32 (or /128) network.
func NewACL(order Order, allowList, denyList []string) (*ACL, error) {
	allow, err := parseIPList(allowList)
	if err != nil {
		return nil, err
	}
	deny, err := parseIPList(denyList)
	if err != nil {
		return nil, err
	}
	return &ACL{order: order, allow: allow, deny: deny}, nil
}

func parseIPList(entries []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		if e == "" {
			continue
		}
		n, err := parseIPOrCIDR(e)
		if err != nil {
			return nil, wrapf("acl: invalid address %q: %w", e, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseIPOrCIDR(s string) (*net.IPNet, error) {
	if _, n, err := net.ParseCIDR(s); err == nil {
		return n, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, wrapf("not an IP or CIDR")
	}
	bits := 32
	if ip4 := ip.To4(); ip4 == nil {
		bits = 128
	} else {
		ip = ip4
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

func (a *ACL) matches(list []*net.IPNet, ip net.IP) bool {
	for _, n := range list {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Allowed reports whether ip may connect, per the configured order:
// AllowDeny checks allow first (empty allow list means "allow everything
// not denied"); DenyAllow checks deny first: an address that matches no
// deny entry is allowed, and one that matches a deny entry is allowed
// only if it also matches the allow list.
func (a *ACL) Allowed(ip net.IP) bool {
	if a == nil {
		return true
	}
	switch a.order {
	case DenyAllow:
		if a.matches(a.deny, ip) {
			return len(a.allow) > 0 && a.matches(a.allow, ip)
		}
		return true
	default: // AllowDeny
		if len(a.allow) > 0 && !a.matches(a.allow, ip) {
			return false
		}
		return !a.matches(a.deny, ip)
	}
}
