package identity

import (
	"context"
	"crypto/x509"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
)

func testCert() *x509.Certificate {
	return &x509.Certificate{
		DNSNames:    []string{"givc-chromium-vm", "admin-vm"},
		IPAddresses: []net.IP{net.ParseIP("192.168.101.10"), net.ParseIP("fd00::10")},
	}
}

func TestFromPeerCertificate(t *testing.T) {
	info := FromPeerCertificate(testCert())
	assert.True(t, info.Enabled)
	assert.Equal(t, []string{"givc-chromium-vm", "admin-vm"}, info.DNSNames)
	require.Len(t, info.IPAddrs, 2)
}

func TestBindCheck(t *testing.T) {
	info := FromPeerCertificate(testCert())

	assert.NoError(t, BindCheck(info, net.ParseIP("192.168.101.10")))
	assert.NoError(t, BindCheck(info, net.ParseIP("fd00::10")))

	err := BindCheck(info, net.ParseIP("10.0.0.1"))
	require.Error(t, err)
	assert.True(t, givcerrors.IsKind(err, givcerrors.PermissionDenied))
}

func TestEnsureHost(t *testing.T) {
	info := FromPeerCertificate(testCert())

	assert.NoError(t, EnsureHost(info, "admin-vm"))

	err := EnsureHost(info, "ghaf-host")
	require.Error(t, err)
	assert.True(t, givcerrors.IsKind(err, givcerrors.PermissionDenied))
}

func TestNoAuthPassesEverything(t *testing.T) {
	info := NoAuth()
	assert.False(t, info.Enabled)
	assert.NoError(t, BindCheck(info, net.ParseIP("10.0.0.1")))
	assert.NoError(t, EnsureHost(info, "anything"))
}

func TestContextRoundtrip(t *testing.T) {
	info := FromPeerCertificate(testCert())
	ctx := WithContext(context.Background(), info)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, info.DNSNames, got.DNSNames)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
