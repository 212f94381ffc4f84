package imaging

import (
	"math"
	"sort"
)

// Line is a Hough line in normal form: x·cos(Theta) + y·sin(Theta) = Rho.
// Theta is in radians within [0, π).
type Line struct {
	Rho   float64
	Theta float64
	Votes int
}

// ThetaDegrees returns the line normal angle in degrees.
func (l Line) ThetaDegrees() float64 {
	return l.Theta * 180 / math.Pi
}

// HoughLines runs a standard Hough transform with one pixel rho resolution
// and one degree theta resolution. Accumulator cells with more than
// threshold votes that are local maxima are returned strongest first.
func HoughLines(edges *EdgeMap, threshold int) []Line {
	if edges == nil || edges.Width == 0 || edges.Height == 0 {
		return nil
	}

	const numTheta = 180
	maxRho := int(math.Ceil(math.Hypot(float64(edges.Width), float64(edges.Height))))
	numRho := 2*maxRho + 1

	cosT := make([]float64, numTheta)
	sinT := make([]float64, numTheta)
	for t := 0; t < numTheta; t++ {
		rad := float64(t) * math.Pi / numTheta
		cosT[t] = math.Cos(rad)
		sinT[t] = math.Sin(rad)
	}

	acc := make([]int32, numTheta*numRho)
	for y := 0; y < edges.Height; y++ {
		for x := 0; x < edges.Width; x++ {
			if !edges.Pix[y*edges.Width+x] {
				continue
			}
			for t := 0; t < numTheta; t++ {
				r := int(math.Round(float64(x)*cosT[t]+float64(y)*sinT[t])) + maxRho
				acc[t*numRho+r]++
			}
		}
	}

	cell := func(t, r int) int32 {
		if t < 0 || t >= numTheta || r < 0 || r >= numRho {
			return 0
		}
		return acc[t*numRho+r]
	}

	var lines []Line
	for t := 0; t < numTheta; t++ {
		for r := 0; r < numRho; r++ {
			v := acc[t*numRho+r]
			if int(v) <= threshold {
				continue
			}
			if v > cell(t, r-1) && v >= cell(t, r+1) && v > cell(t-1, r) && v >= cell(t+1, r) {
				lines = append(lines, Line{
					Rho:   float64(r - maxRho),
					Theta: float64(t) * math.Pi / numTheta,
					Votes: int(v),
				})
			}
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Votes > lines[j].Votes
	})
	return lines
}
