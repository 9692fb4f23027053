// Package imagedrop prepares dropped image files for placement on the canvas.
// The natural pixel size drives the placement math; the pixels themselves are
// downscaled to a bounded preview and inlined as a data URL so an annotation
// stays a self-contained record.
package imagedrop

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

// maxPreviewDim bounds the longest edge of the inlined preview.
const maxPreviewDim = 1024

// jpegQuality for re-encoded previews.
const jpegQuality = 85

// Decoded is a dropped image ready for placement.
type Decoded struct {
	NaturalWidth  int
	NaturalHeight int
	DataURL       string
}

// Decode parses a dropped image file. PNG and GIF keep their alpha channel
// through a PNG re-encode; everything else becomes JPEG.
func Decode(data []byte) (Decoded, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("decoding dropped image: %w", err)
	}

	bounds := img.Bounds()
	natural := Decoded{
		NaturalWidth:  bounds.Dx(),
		NaturalHeight: bounds.Dy(),
	}
	if natural.NaturalWidth == 0 || natural.NaturalHeight == 0 {
		return Decoded{}, fmt.Errorf("dropped image has no pixels")
	}

	preview := img
	if natural.NaturalWidth > maxPreviewDim || natural.NaturalHeight > maxPreviewDim {
		preview = resize.Thumbnail(maxPreviewDim, maxPreviewDim, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	mime := "image/jpeg"
	switch format {
	case "png", "gif":
		mime = "image/png"
		err = png.Encode(&buf, preview)
	default:
		err = jpeg.Encode(&buf, preview, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return Decoded{}, fmt.Errorf("encoding preview: %w", err)
	}

	natural.DataURL = fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(buf.Bytes()))
	return natural, nil
}
