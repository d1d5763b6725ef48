package mesh

import (
	"fmt"
	"strings"

	"cadverse/internal/shared/types"
)

// ParseFaceMode accepts "first" (or "") and "fan".
func ParseFaceMode(s string) (FaceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return FaceFirstTriangle, nil
	case "fan":
		return FaceFan, nil
	default:
		return 0, fmt.Errorf("unknown face mode %q", s)
	}
}

// OptionsFromConf translates the [mesh] ini section into parser options.
func OptionsFromConf(c types.MeshConf) ([]Option, error) {
	mode, err := ParseFaceMode(c.FaceMode)
	if err != nil {
		return nil, err
	}
	axis := AxisSwapYZ
	if !c.SwapYZ {
		axis = AxisIdentity
	}
	return []Option{WithAxis(axis), WithFaceMode(mode), WithStrictIndices(c.StrictIndices)}, nil
}
