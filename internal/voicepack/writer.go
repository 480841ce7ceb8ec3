package voicepack

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// Entry is a single named style tensor to serialize into a KVP1 pack.
type Entry struct {
	Name  string
	Style []float32 // must have len == styleRows*styleCols
}

// WriteFile serializes entries into a KVP1 pack at path, sorted by name
// for deterministic, idempotent output.
func WriteFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create voice pack %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)

	if err := Write(w, entries); err != nil {
		return err
	}

	return w.Flush()
}

// Write serializes entries into the KVP1 binary format: magic, version,
// count, a directory of name/offset/size entries, then the concatenated
// float32 style tensors.
func Write(w io.Writer, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, supportedVer); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(sorted))); err != nil {
		return err
	}

	offset := uint64(0)

	for _, e := range sorted {
		if len(e.Style) != styleRows*styleCols {
			return fmt.Errorf("entry %q has %d floats, want %d", e.Name, len(e.Style), styleRows*styleCols)
		}

		if err := binary.Write(w, binary.LittleEndian, uint16(len(e.Name))); err != nil {
			return err
		}

		if _, err := w.Write([]byte(e.Name)); err != nil {
			return err
		}

		if err := binary.Write(w, binary.LittleEndian, offset); err != nil {
			return err
		}

		if err := binary.Write(w, binary.LittleEndian, uint64(tensorByteSize)); err != nil {
			return err
		}

		offset += tensorByteSize
	}

	for _, e := range sorted {
		for _, v := range e.Style {
			if err := binary.Write(w, binary.LittleEndian, math.Float32bits(v)); err != nil {
				return err
			}
		}
	}

	return nil
}
