package mesh

import (
	"fmt"
	"strconv"
	"strings"
)

// MillimetersToMeters is the factor CAD exports in millimetres need before
// they are served to clients that work in metres.
const MillimetersToMeters = 0.001

// RescaleOBJ multiplies the coordinates of every "v " line by scale. Other
// lines, and v lines that are too short or not numeric, are kept verbatim.
func RescaleOBJ(text string, scale float64) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, line := range strings.SplitAfter(text, "\n") {
		if !strings.HasPrefix(line, "v ") {
			sb.WriteString(line)
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			sb.WriteString(line)
			continue
		}
		var xyz [3]float64
		ok := true
		for i := 0; i < 3; i++ {
			f, err := strconv.ParseFloat(parts[i+1], 64)
			if err != nil {
				ok = false
				break
			}
			xyz[i] = f * scale
		}
		if !ok {
			sb.WriteString(line)
			continue
		}
		fmt.Fprintf(&sb, "v %.6f %.6f %.6f\n", xyz[0], xyz[1], xyz[2])
	}
	return sb.String()
}
