package scene

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ungerik/go3d/float64/vec3"

	"cadverse/internal/shared/types"
)

// ParseVec parses "x,y,z".
func ParseVec(s string) (vec3.T, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return vec3.T{}, fmt.Errorf("vector %q: want x,y,z", s)
	}
	var v vec3.T
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return vec3.T{}, fmt.Errorf("vector %q: %w", s, err)
		}
		v[i] = f
	}
	return v, nil
}

// OptionsFromConf translates the placement keys of the [mesh] ini section.
func OptionsFromConf(c types.MeshConf) ([]Option, error) {
	opts := []Option{WithPlacement(DefaultPosition, c.Scale)}
	if strings.TrimSpace(c.Camera) != "" {
		p, err := ParseVec(c.Camera)
		if err != nil {
			return nil, fmt.Errorf("mesh.camera: %w", err)
		}
		opts = append(opts, WithCameraPosition(p))
	}
	return opts, nil
}
