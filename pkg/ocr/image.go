package ocr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// Image is a single OCR input: a file on disk, raw encoded bytes with an
// optional media type, or a decoded in-memory image. Construct one with
// FromFile, FromBytes or FromImage.
type Image struct {
	path      string
	data      []byte
	mediaType string
	img       image.Image
}

// FromFile makes an input that reads the image from path at request time.
// The media type is resolved from the file extension.
func FromFile(path string) Image {
	return Image{path: path}
}

// FromBytes makes an input from already-encoded image bytes. An empty
// mediaType defaults to image/png.
func FromBytes(data []byte, mediaType string) Image {
	return Image{data: data, mediaType: mediaType}
}

// FromImage makes an input from a decoded image. The image is encoded as
// PNG before it is sent.
func FromImage(img image.Image) Image {
	return Image{img: img}
}

var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// mediaTypeForPath maps a file extension to its media type. Unknown or
// missing extensions map to image/png by policy, not as a detection
// failure.
func mediaTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := mediaTypes[ext]; ok {
		return mt
	}
	return "image/png"
}

// encode returns the raw image bytes and their media type.
func (in Image) encode() ([]byte, string, error) {
	switch {
	case in.path != "":
		data, err := os.ReadFile(in.path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read image: %w", err)
		}
		return data, mediaTypeForPath(in.path), nil
	case in.img != nil:
		var buf bytes.Buffer
		if err := png.Encode(&buf, in.img); err != nil {
			return nil, "", fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		mt := in.mediaType
		if mt == "" {
			mt = "image/png"
		}
		return in.data, mt, nil
	}
}

// dataURL base64-encodes the input and embeds it as a data URL of the
// form data:<mediaType>;base64,<data>.
func (in Image) dataURL() (string, error) {
	data, mediaType, err := in.encode()
	if err != nil {
		return "", err
	}
	b64 := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("data:%s;base64,%s", mediaType, b64), nil
}
