package layout

import (
	"math"

	"github.com/DoyleJ11/opsboard-relay/internal/graph"
)

var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// FibonacciSphere spreads n points near-uniformly over a sphere. The first
// point always sits at the top of the sphere, directly above center.
func FibonacciSphere(n int, radius float64, center graph.Vec3) []graph.Vec3 {
	if n <= 0 {
		return nil
	}
	span := float64(max(n-1, 1))
	out := make([]graph.Vec3, n)
	for i := 0; i < n; i++ {
		y := 1 - 2*float64(i)/span
		ry := math.Sqrt(max(0, 1-y*y))
		theta := float64(i) * goldenAngle
		out[i] = graph.Vec3{
			center[0] + math.Cos(theta)*ry*radius,
			center[1] + y*radius,
			center[2] + math.Sin(theta)*ry*radius,
		}
	}
	return out
}
