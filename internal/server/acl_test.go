package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestACLAllowDenyOrder(t *testing.T) {
	acl, err := NewACL(AllowDeny, []string{"10.0.0.0/8"}, []string{"10.0.0.5"})
	require.NoError(t, err)

	require.True(t, acl.Allowed(net.ParseIP("10.0.0.1")))
	require.False(t, acl.Allowed(net.ParseIP("10.0.0.5")))
	require.False(t, acl.Allowed(net.ParseIP("192.168.1.1")))
}

func TestACLDenyAllowOrder(t *testing.T) {
	acl, err := NewACL(DenyAllow, []string{"172.16.0.1"}, []string{"172.16.0.0/16"})
	require.NoError(t, err)

	require.True(t, acl.Allowed(net.ParseIP("172.16.0.1")))
	require.False(t, acl.Allowed(net.ParseIP("172.16.0.2")))
	require.True(t, acl.Allowed(net.ParseIP("8.8.8.8")))
}

func TestNilACLAllowsEverything(t *testing.T) {
	var acl *ACL
	require.True(t, acl.Allowed(net.ParseIP("1.2.3.4")))
}

func TestNewACLRejectsGarbage(t *testing.T) {
	_, err := NewACL(AllowDeny, []string{"not-an-ip"}, nil)
	require.Error(t, err)
}
