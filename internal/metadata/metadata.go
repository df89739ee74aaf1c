package metadata

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

// Info is what can be learned about a local audio file without decoding it.
type Info struct {
	Title    string
	Artist   string
	Duration int // seconds, 0 when unknown
}

// Reader extracts Info from a file on disk.
type Reader interface {
	Read(path string) (Info, error)
}

// TagReader reads ID3/MP4/FLAC/OGG tags and walks MP3 frames for duration.
type TagReader struct{}

func (TagReader) Read(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	var info Info
	meta, err := tag.ReadFrom(f)
	switch {
	case err == nil:
		info.Title = strings.TrimSpace(meta.Title())
		info.Artist = strings.TrimSpace(meta.Artist())
	case errors.Is(err, tag.ErrNoTagsFound):
	default:
		return Info{}, fmt.Errorf("read tags %s: %w", path, err)
	}

	if info.Title == "" {
		info.Title = filepath.Base(path)
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if _, err := f.Seek(0, io.SeekStart); err == nil {
			if d, err := mp3Duration(f); err == nil {
				info.Duration = int(math.Round(d))
			}
		}
	}
	return info, nil
}

func mp3Duration(r io.Reader) (float64, error) {
	decoder := mp3.NewDecoder(r)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
	return total, nil
}
