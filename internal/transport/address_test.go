package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressString(t *testing.T) {
	assert.Equal(t, "tcp://192.168.101.2:9000", TCP("192.168.101.2", 9000).String())
	assert.Equal(t, "unix:///run/givc/admin.sock", Unix("/run/givc/admin.sock").String())
	assert.Equal(t, "abstract://givc-admin", Abstract("givc-admin").String())
	assert.Equal(t, "vsock://3:9000", Vsock(3, 9000).String())
}

func TestAuthority(t *testing.T) {
	assert.Equal(t, "192.168.101.2:9000", TCP("192.168.101.2", 9000).Authority())
	assert.Equal(t, "local", Unix("/run/givc/admin.sock").Authority())
	assert.Equal(t, "local", Abstract("givc-admin").Authority())
	assert.Equal(t, "vsock-3", Vsock(3, 9000).Authority())
}

func TestScheme(t *testing.T) {
	assert.Equal(t, "https", Scheme(true))
	assert.Equal(t, "http", Scheme(false))
}
