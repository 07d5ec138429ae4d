package analyzer

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// ContrastDetector finds focus using Sobel edges on a downscaled copy
type ContrastDetector struct {
	SampleWidth   int     // Analysis width in pixels; height keeps aspect
	EdgeThreshold float64 // Gradient magnitude threshold
	MinShare      float64 // Smallest accepted region, share of sample area
	MaxShare      float64 // Largest accepted region; bigger means no focus
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		SampleWidth:   192,
		EdgeThreshold: 60.0,
		MinShare:      0.01,
		MaxShare:      0.8,
	}
}

// Detect picks the largest connected edge region and reports its center
func (d *ContrastDetector) Detect(img image.Image) (Focus, bool) {
	b := img.Bounds()
	if b.Empty() {
		return Focus{}, false
	}

	gray := downscaleGray(img, d.SampleWidth)
	sb := gray.Bounds()
	edges := sobelEdgeDetection(gray, d.EdgeThreshold)
	dilated := dilate(edges, 3, 2)

	total := float64(sb.Dx() * sb.Dy())
	var best image.Rectangle
	for _, rect := range findContours(dilated) {
		share := float64(rect.Dx()*rect.Dy()) / total
		if share < d.MinShare || share > d.MaxShare {
			continue
		}
		if rect.Dx()*rect.Dy() > best.Dx()*best.Dy() {
			best = rect
		}
	}
	if best.Empty() {
		return Focus{}, false
	}

	sx := float64(b.Dx()) / float64(sb.Dx())
	sy := float64(b.Dy()) / float64(sb.Dy())
	region := image.Rect(
		b.Min.X+int(float64(best.Min.X)*sx),
		b.Min.Y+int(float64(best.Min.Y)*sy),
		b.Min.X+int(math.Ceil(float64(best.Max.X)*sx)),
		b.Min.Y+int(math.Ceil(float64(best.Max.Y)*sy)),
	).Intersect(b)

	return Focus{
		Region: region,
		X:      (float64(best.Min.X+best.Max.X) / 2) / float64(sb.Dx()),
		Y:      (float64(best.Min.Y+best.Max.Y) / 2) / float64(sb.Dy()),
	}, true
}

// downscaleGray converts an image to grayscale no wider than width
func downscaleGray(img image.Image, width int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if width > 0 && w > width {
		h = max(1, h*width/w)
		w = width
	}

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(small, small.Rect, img, b, xdraw.Src, nil)

	gray := image.NewGray(small.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(small.RGBAAt(x, y)).(color.Gray))
		}
	}
	return gray
}

// sobelEdgeDetection applies Sobel operator to detect edges
func sobelEdgeDetection(gray *image.Gray, threshold float64) *image.Gray {
	bounds := gray.Bounds()
	edges := image.NewGray(bounds)

	gx := [3][3]int{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	gy := [3][3]int{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var sumX, sumY float64

			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					pixel := float64(gray.GrayAt(x+kx, y+ky).Y)
					sumX += pixel * float64(gx[ky+1][kx+1])
					sumY += pixel * float64(gy[ky+1][kx+1])
				}
			}

			if math.Sqrt(sumX*sumX+sumY*sumY) > threshold {
				edges.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return edges
}

// dilate performs morphological dilation to connect nearby edges
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	bounds := img.Bounds()
	result := image.NewGray(bounds)
	copy(result.Pix, img.Pix)

	half := kernelSize / 2

	for iter := 0; iter < iterations; iter++ {
		temp := image.NewGray(bounds)

		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				maxVal := uint8(0)
				for ky := -half; ky <= half; ky++ {
					for kx := -half; kx <= half; kx++ {
						p := image.Pt(x+kx, y+ky)
						if !p.In(bounds) {
							continue
						}
						if v := result.GrayAt(p.X, p.Y).Y; v > maxVal {
							maxVal = v
						}
					}
				}
				temp.SetGray(x, y, color.Gray{Y: maxVal})
			}
		}

		result = temp
	}

	return result
}

// findContours finds bounding rectangles of connected white regions
func findContours(img *image.Gray) []image.Rectangle {
	bounds := img.Bounds()
	visited := make([]bool, bounds.Dx()*bounds.Dy())

	var contours []image.Rectangle
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := (y-bounds.Min.Y)*bounds.Dx() + (x - bounds.Min.X)
			if img.GrayAt(x, y).Y > 128 && !visited[i] {
				contours = append(contours, floodFill(img, visited, x, y))
			}
		}
	}

	return contours
}

// floodFill performs flood fill and returns bounding rectangle
func floodFill(img *image.Gray, visited []bool, startX, startY int) image.Rectangle {
	bounds := img.Bounds()
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !p.In(bounds) {
			continue
		}
		i := (p.Y-bounds.Min.Y)*bounds.Dx() + (p.X - bounds.Min.X)
		if visited[i] || img.GrayAt(p.X, p.Y).Y <= 128 {
			continue
		}
		visited[i] = true

		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)

		stack = append(stack,
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y + 1},
			image.Point{X: p.X, Y: p.Y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}
