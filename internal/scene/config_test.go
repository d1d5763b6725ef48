package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ungerik/go3d/float64/vec3"

	"cadverse/internal/shared/types"
)

func TestParseVec(t *testing.T) {
	v, err := ParseVec(" 1, -2.5 ,3")
	require.NoError(t, err)
	assert.Equal(t, vec3.T{1, -2.5, 3}, v)

	for _, bad := range []string{"", "1,2", "1,2,3,4", "a,b,c"} {
		_, err := ParseVec(bad)
		assert.Error(t, err, bad)
	}
}

func TestOptionsFromConf_Camera(t *testing.T) {
	opts, err := OptionsFromConf(types.MeshConf{Scale: 0.5, Camera: "4,5,6"})
	require.NoError(t, err)
	m := NewManager(opts...)
	assert.Equal(t, Camera{Position: vec3.T{4, 5, 6}, Target: DefaultPosition}, m.Camera())
	assert.Equal(t, 0.5, m.scale)

	opts, err = OptionsFromConf(types.MeshConf{})
	require.NoError(t, err)
	m = NewManager(opts...)
	assert.Equal(t, DefaultCameraPosition, m.Camera().Position)
	assert.Equal(t, DefaultScale, m.scale)

	_, err = OptionsFromConf(types.MeshConf{Camera: "1,2"})
	assert.Error(t, err)
}

func TestWithCameraPosition(t *testing.T) {
	m := NewManager(WithCameraPosition(vec3.T{0, 10, 0}))
	cam := m.Camera()
	assert.Equal(t, vec3.T{0, 10, 0}, cam.Position)
	assert.Equal(t, DefaultPosition, cam.Target)
	f := cam.Forward()
	assert.InDelta(t, 1.0, f.Length(), 1e-9)
}
