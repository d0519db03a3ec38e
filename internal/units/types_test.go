package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBijection(t *testing.T) {
	for vm := Host; vm <= AppVM; vm++ {
		for svc := Mgr; svc <= VM; svc++ {
			ty := UnitType{VM: vm, Service: svc}
			code, err := Encode(ty)
			if vm == Host && svc == VM {
				require.Error(t, err)
				assert.Equal(t, IllegalSentinel, code)
				continue
			}
			require.NoError(t, err)
			decoded, err := Decode(code)
			require.NoError(t, err)
			assert.Equal(t, ty, decoded, "code %d", code)
		}
	}
}

func TestDecodeSentinelFails(t *testing.T) {
	_, err := Decode(IllegalSentinel)
	require.Error(t, err)
}

func TestDecodeHostVMCodeFails(t *testing.T) {
	// Host*10 + VM == 3 is the code the sentinel rule forbids.
	code, _ := Encode(UnitType{VM: Host, Service: VM})
	assert.Equal(t, IllegalSentinel, code)

	_, err := Decode(3)
	require.Error(t, err)
}

func TestDecodeOutOfRange(t *testing.T) {
	for _, code := range []uint32{4, 9, 44, 99, 1000} {
		_, err := Decode(code)
		assert.Error(t, err, "code %d", code)
	}
}
