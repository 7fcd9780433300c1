package media

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/haivivi/mediaseal/pkg/watermark"
)

// Type is the kind of media a file holds.
type Type string

const (
	TypeImage Type = "image"
	TypeAudio Type = "audio"
	TypeVideo Type = "video"
)

var extTypes = map[string]Type{
	".png":  TypeImage,
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".gif":  TypeImage,
	".bmp":  TypeImage,
	".tif":  TypeImage,
	".tiff": TypeImage,
	".webp": TypeImage,

	".wav":  TypeAudio,
	".flac": TypeAudio,
	".mp3":  TypeAudio,
	".ogg":  TypeAudio,
	".m4a":  TypeAudio,
	".aac":  TypeAudio,
	".opus": TypeAudio,

	".mp4":  TypeVideo,
	".mov":  TypeVideo,
	".mkv":  TypeVideo,
	".avi":  TypeVideo,
	".webm": TypeVideo,
	".m4v":  TypeVideo,
}

// Extensions returns the file extensions recognized for t.
func Extensions(t Type) []string {
	var out []string
	for ext, et := range extTypes {
		if et == t {
			out = append(out, ext)
		}
	}
	return out
}

// DetectType classifies path by its extension.
func DetectType(path string) (Type, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extTypes[ext]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", watermark.ErrUnsupportedFormat, filepath.Base(path))
}

// Sniff classifies content by its leading magic bytes and returns the type
// and container name. It returns "" for unknown content.
func Sniff(head []byte) (Type, string) {
	has := func(off int, magic string) bool {
		return len(head) >= off+len(magic) && bytes.Equal(head[off:off+len(magic)], []byte(magic))
	}
	switch {
	case has(0, "\x89PNG\r\n\x1a\n"):
		return TypeImage, "png"
	case has(0, "\xff\xd8\xff"):
		return TypeImage, "jpeg"
	case has(0, "GIF87a"), has(0, "GIF89a"):
		return TypeImage, "gif"
	case has(0, "BM"):
		return TypeImage, "bmp"
	case has(0, "II*\x00"), has(0, "MM\x00*"):
		return TypeImage, "tiff"
	case has(0, "RIFF") && has(8, "WEBP"):
		return TypeImage, "webp"
	case has(0, "RIFF") && has(8, "WAVE"):
		return TypeAudio, "wav"
	case has(0, "RIFF") && has(8, "AVI "):
		return TypeVideo, "avi"
	case has(0, "fLaC"):
		return TypeAudio, "flac"
	case has(0, "ID3"), has(0, "\xff\xfb"), has(0, "\xff\xf3"), has(0, "\xff\xf2"):
		return TypeAudio, "mp3"
	case has(0, "OggS"):
		return TypeAudio, "ogg"
	case has(4, "ftypM4A"):
		return TypeAudio, "m4a"
	case has(4, "ftyp"):
		return TypeVideo, "mp4"
	case has(0, "\x1a\x45\xdf\xa3"):
		return TypeVideo, "matroska"
	}
	return "", ""
}

// DetectFile classifies a file by extension, falling back to its content
// when the extension is unknown.
func DetectFile(path string) (Type, error) {
	if t, err := DetectType(path); err == nil {
		return t, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 16)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if t, _ := Sniff(head[:n]); t != "" {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", watermark.ErrUnsupportedFormat, filepath.Base(path))
}
