package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/crowd/profile"
)

// SaveProfiles writes every root room's sequence keyed by "row_col".
func SaveProfiles(w io.Writer, f *profile.Field) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.Export()); err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}
	return nil
}

// LoadProfiles replaces root room sequences from a SaveProfiles document.
// Keys outside the grid are logged and skipped.
func LoadProfiles(r io.Reader, f *profile.Field) error {
	var data map[string][][4]float64
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("decoding profiles: %w", err)
	}
	apply(f, data)
	return nil
}

func apply(f *profile.Field, data map[string][][4]float64) {
	for _, k := range f.Import(data) {
		slog.Warn("profile_key_skipped", "key", k)
	}
	f.RecomputeEdgeBlends()
}

// WriteSnapshot stores the field's profiles zstd-compressed at path.
func WriteSnapshot(path string, f *profile.Field) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("creating encoder: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	if err := json.NewEncoder(bw).Encode(f.Export()); err != nil {
		enc.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}
	return out.Close()
}

// ReadSnapshot loads a WriteSnapshot file into f.
func ReadSnapshot(path string, f *profile.Field) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	defer dec.Close()

	var data map[string][][4]float64
	if err := json.NewDecoder(bufio.NewReaderSize(dec, 64*1024)).Decode(&data); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	apply(f, data)
	return nil
}
