package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// ImageNet channel statistics; both classifier stages were trained with
// them.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Tensor is a normalized, channel-first, batch-of-one image ready for a
// forward pass. It is built per inference call and released right after.
type Tensor struct {
	Data   []float32
	Width  int
	Height int
}

// Shape returns the NCHW shape of the tensor.
func (t *Tensor) Shape() []int64 {
	return []int64{1, 3, int64(t.Height), int64(t.Width)}
}

// Release drops the pixel buffer so it can be reclaimed before the
// surrounding prediction finishes. Concurrent predictions on a
// memory-constrained host are the reason this is explicit.
func (t *Tensor) Release() {
	t.Data = nil
}

// toTensor decodes raw image bytes, resizes to exactly width x height with
// Lanczos resampling, scales to [0,1], normalizes per channel and lays the
// result out as CHW.
func toTensor(data []byte, width, height int) (*Tensor, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	resized := resize.Resize(uint(width), uint(height), img, resize.Lanczos3)

	plane := width * height
	out := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			i := y*width + x
			out[i] = (float32(r)/65535.0 - imagenetMean[0]) / imagenetStd[0]
			out[plane+i] = (float32(g)/65535.0 - imagenetMean[1]) / imagenetStd[1]
			out[2*plane+i] = (float32(b)/65535.0 - imagenetMean[2]) / imagenetStd[2]
		}
	}

	return &Tensor{Data: out, Width: width, Height: height}, nil
}
