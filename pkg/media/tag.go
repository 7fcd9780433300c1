package media

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	id3 "github.com/bogem/id3v2/v2"

	"github.com/haivivi/mediaseal/pkg/watermark"
)

// provenanceDescription marks the ID3v2 comment written by WriteProvenance.
const provenanceDescription = "mediaseal"

// Tool names the embedder in provenance comments.
const Tool = "mediaseal"

// Provenance is stored in an ID3v2 comment of watermarked MP3 files. It
// records how the payload was embedded, never the payload itself.
type Provenance struct {
	Tool      string         `json:"tool" yaml:"tool"`
	Tag       string         `json:"tag,omitempty" yaml:"tag,omitempty"`
	Algorithm watermark.Kind `json:"algorithm" yaml:"algorithm"`
	Strength  float64        `json:"strength" yaml:"strength"`
	Bits      int            `json:"bits" yaml:"bits"`
}

// WriteProvenance adds a provenance comment to the MP3 file at path. An
// empty Tool is recorded as Tool.
func WriteProvenance(path string, p Provenance) error {
	if p.Tool == "" {
		p.Tool = Tool
	}
	text, err := json.Marshal(p)
	if err != nil {
		return err
	}
	tag, err := id3.Open(path, id3.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("%w: open id3 tag: %v", watermark.ErrProcessing, err)
	}
	defer tag.Close()

	tag.AddCommentFrame(id3.CommentFrame{
		Encoding:    id3.EncodingUTF8,
		Language:    "eng",
		Description: provenanceDescription,
		Text:        string(text),
	})
	if err := tag.Save(); err != nil {
		return fmt.Errorf("%w: save id3 tag: %v", watermark.ErrProcessing, err)
	}
	return nil
}

// ReadProvenance returns the provenance comment of an MP3 stream, or nil
// when there is none.
func ReadProvenance(r io.Reader) (*Provenance, error) {
	tag, err := id3.ParseReader(r, id3.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("%w: parse id3 tag: %v", watermark.ErrProcessing, err)
	}
	for _, f := range tag.GetFrames(tag.CommonID("Comments")) {
		comment, ok := f.(id3.CommentFrame)
		if !ok || comment.Description != provenanceDescription {
			continue
		}
		var p Provenance
		if err := json.Unmarshal([]byte(comment.Text), &p); err != nil {
			return nil, fmt.Errorf("%w: provenance comment: %v", watermark.ErrInvalidWatermark, err)
		}
		return &p, nil
	}
	return nil, nil
}

// ReadProvenanceFile is ReadProvenance on a file.
func ReadProvenanceFile(path string) (*Provenance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadProvenance(f)
}
