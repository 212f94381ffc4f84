package imaging

import "math"

// EdgeMap marks edge pixels in row-major order.
type EdgeMap struct {
	Pix    []bool
	Width  int
	Height int
}

// Density is the fraction of pixels marked as edges.
func (e *EdgeMap) Density() float64 {
	if e == nil || len(e.Pix) == 0 {
		return 0
	}
	count := 0
	for _, v := range e.Pix {
		if v {
			count++
		}
	}
	return float64(count) / float64(len(e.Pix))
}

// Canny runs 3x3 Sobel gradients with an L1 magnitude, non-maximum
// suppression along the quantised gradient direction and hysteresis
// thresholding with 8-connectivity.
func Canny(g *Gray, low, high float64) *EdgeMap {
	w, h := g.Width, g.Height
	edges := &EdgeMap{Pix: make([]bool, w*h), Width: w, Height: h}
	if w < 3 || h < 3 {
		return edges
	}

	mag := make([]float64, w*h)
	dir := make([]uint8, w*h)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := float64(-g.at(x-1, y-1) - 2*g.at(x-1, y) - g.at(x-1, y+1) +
				g.at(x+1, y-1) + 2*g.at(x+1, y) + g.at(x+1, y+1))
			gy := float64(-g.at(x-1, y-1) - 2*g.at(x, y-1) - g.at(x+1, y-1) +
				g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1))

			i := y*w + x
			mag[i] = math.Abs(gx) + math.Abs(gy)
			dir[i] = quantiseDirection(gx, gy)
		}
	}

	// 0 none, 1 weak, 2 strong
	class := make([]uint8, w*h)
	stack := make([]int, 0, 1024)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}

			var before, after float64
			switch dir[i] {
			case 0:
				before, after = mag[i-1], mag[i+1]
			case 45:
				before, after = mag[i-w-1], mag[i+w+1]
			case 90:
				before, after = mag[i-w], mag[i+w]
			default:
				before, after = mag[i-w+1], mag[i+w-1]
			}
			if m <= before || m < after {
				continue
			}

			if m > high {
				class[i] = 2
				stack = append(stack, i)
			} else {
				class[i] = 1
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if edges.Pix[i] {
			continue
		}
		edges.Pix[i] = true

		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] > 0 && !edges.Pix[j] {
					stack = append(stack, j)
				}
			}
		}
	}

	return edges
}

func quantiseDirection(gx, gy float64) uint8 {
	angle := math.Atan2(gy, gx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return 0
	case angle < 67.5:
		return 45
	case angle < 112.5:
		return 90
	default:
		return 135
	}
}
