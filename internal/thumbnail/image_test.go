package thumbnail

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"testing"
)

func TestConstrain(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"within limits", 1920, 1080, 1920, 1080},
		{"wide", 8192, 4096, 4096, 2048},
		{"tall", 3000, 6000, 2048, 4096},
		{"square at limit", 4096, 4096, 4096, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := constrain(tt.width, tt.height, MaxImageDimension, MaxImagePixels)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("constrain(%d, %d) = %dx%d, want %dx%d", tt.width, tt.height, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestConstrainPixelBudget(t *testing.T) {
	w, h := constrain(1000, 1000, 4096, 250_000)
	if w*h > 250_000 {
		t.Errorf("Expected at most 250000 pixels, got %dx%d", w, h)
	}
	if w != h {
		t.Errorf("Expected aspect ratio to be preserved, got %dx%d", w, h)
	}
}

func TestDecodeConstrained(t *testing.T) {
	img, err := decodeConstrained(testPNG(t, 320, 200), "ok.png")
	if err != nil {
		t.Fatalf("decodeConstrained failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 200 {
		t.Errorf("Expected 320x200, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := decodeConstrained([]byte{0x00, 0x01, 0x02}, "bad.png"); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage, got %v", err)
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring an RGBA
// image of the given size, with no pixel data.
func pngHeader(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, width)
	chunk = binary.BigEndian.AppendUint32(chunk, height)
	chunk = append(chunk, 8, 6, 0, 0, 0)

	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsOversizedSource(t *testing.T) {
	huge := pngHeader(20000, 20000)
	if dims, err := GetImageDimensions(huge); err != nil || dims.Width != 20000 {
		t.Fatalf("Expected a readable 20000x20000 header, got %+v, %v", dims, err)
	}
	if _, err := decodeConstrained(huge, "huge.png"); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Expected ErrImageTooLarge, got %v", err)
	}

	small := testPNG(t, 320, 200)
	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{"below limit", 320*200 - 1, true},
		{"at limit", 320 * 200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeWithLimit(small, "small.png", tt.limit)
			if tt.wantErr && !errors.Is(err, ErrImageTooLarge) {
				t.Errorf("Expected ErrImageTooLarge, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestResizeToFitNeverUpscales(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 50))

	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"larger box", 400, 400, 100, 50},
		{"narrower box", 50, 50, 50, 25},
		{"unbounded height", 20, 0, 20, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := resizeToFit(src, tt.w, tt.h).Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("resizeToFit(%d, %d) = %dx%d, want %dx%d", tt.w, tt.h, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDefaultEncoderFormats(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16))

	for _, format := range []string{"jpeg", "png"} {
		t.Run(format, func(t *testing.T) {
			data, err := DefaultEncoder.Encode(src, format, 0)
			if err != nil {
				t.Fatalf("Encode(%s) failed: %v", format, err)
			}
			_, got, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Failed to decode output: %v", err)
			}
			if got != format {
				t.Errorf("Expected %s output, got %s", format, got)
			}
		})
	}

	if _, err := DefaultEncoder.Encode(src, "gif", 80); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
