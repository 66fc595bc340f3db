package frontend

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func checkerPixels(width, height uint32) []byte {
	data := make([]byte, width*height*captureBytesPerPixel)
	for i := 0; i < len(data); i += captureBytesPerPixel {
		pixel := i / captureBytesPerPixel
		data[i] = byte(pixel * 10)
		data[i+1] = 0x60
		data[i+2] = 0x20
		data[i+3] = 0xFF
	}
	return data
}

func TestPixelsToImage(t *testing.T) {
	img, err := pixelsToImage(checkerPixels(3, 2), 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("bounds %v", img.Bounds())
	}
	// Pixel (1, 1) is the fifth one in row-major order.
	if got := img.RGBAAt(1, 1); got != (color.RGBA{R: 40, G: 0x60, B: 0x20, A: 0xFF}) {
		t.Fatalf("pixel (1,1) is %v", got)
	}

	if _, err := pixelsToImage(make([]byte, 10), 3, 2); err == nil {
		t.Fatal("expected a size mismatch error")
	}
}

func TestEncodeImage(t *testing.T) {
	img, err := pixelsToImage(checkerPixels(4, 4), 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		ext    string
		decode func(*bytes.Reader) (image.Image, error)
	}{
		{ext: ".png", decode: func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) }},
		{ext: ".PNG", decode: func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) }},
		{ext: ".bmp", decode: func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) }},
		{ext: ".tiff", decode: func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) }},
		{ext: ".tif", decode: func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) }},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			var buf bytes.Buffer
			if err := encodeImage(&buf, tt.ext, img); err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := tt.decode(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			want := img.RGBAAt(2, 3)
			r, g, b, a := decoded.At(2, 3).RGBA()
			got := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
			if got != want {
				t.Fatalf("pixel (2,3) is %v, want %v", got, want)
			}
		})
	}
}

func TestWriteImageRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := writeImage(path, image.NewRGBA(image.Rect(0, 0, 1, 1))); err == nil {
		t.Fatal("expected an error for .jpg")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file created for an unsupported format")
	}
}

func TestWriteImage(t *testing.T) {
	img, err := pixelsToImage(checkerPixels(2, 2), 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := writeImage(path, img); err != nil {
		t.Fatal(err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	decoded, err := png.Decode(file)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("bounds %v", decoded.Bounds())
	}
}

func TestSyncIndexMask(t *testing.T) {
	tests := []struct {
		images uint32
		want   uint32
	}{
		{1, 0b1},
		{3, 0b111},
		{4, 0b1111},
		{31, 0x7FFFFFFF},
		{32, 0xFFFFFFFF},
	}
	for _, tt := range tests {
		if got := syncIndexMask(tt.images); got != tt.want {
			t.Errorf("syncIndexMask(%d) = %#x, want %#x", tt.images, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ value, lo, hi, want uint32 }{
		{5, 1, 10, 5},
		{0, 1, 10, 1},
		{11, 1, 10, 10},
	}
	for _, tt := range tests {
		if got := clamp(tt.value, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d", tt.value, tt.lo, tt.hi, got)
		}
	}
}
