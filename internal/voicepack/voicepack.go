// Package voicepack loads and serves the binary KVP1 voice-style pack:
// a directory of named 510×1×256 float32 style tensors, one row per
// target token count.
package voicepack

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/byteowlz/kokorox/internal/ttserr"
)

const (
	magic          = "KVP1"
	supportedVer   = uint16(1)
	styleRows      = 510
	styleCols      = 256
	floatBytes     = 4
	tensorByteSize = styleRows * 1 * styleCols * floatBytes // 522240
)

// Voice is a named style pack entry: an immutable 510×1×256 embedding,
// indexed by (target token count - 1).
type Voice struct {
	ID          string
	LanguageTag string
	GenderHint  string
	// Style is styleRows rows of styleCols float32 values, row-major:
	// Style[row*styleCols : row*styleCols+styleCols] is the embedding for
	// inputs of row+1 tokens.
	Style []float32
}

// Row returns the style row for a token count n (1 ≤ n ≤ 510). The row
// index used is exactly n-1 — this coupling to sequence length is a
// model-level convention and must be preserved; a future model variant
// with a different token window would need this formula revisited.
func (v Voice) Row(n int) ([]float32, error) {
	if n < 1 || n > styleRows {
		return nil, ttserr.Newf(ttserr.InternalInvariant, "voicepack.Voice.Row",
			"token count %d out of range [1,%d]", n, styleRows)
	}

	start := (n - 1) * styleCols

	return v.Style[start : start+styleCols], nil
}

// Pack is an immutable, shared mapping from voice id to Voice, loaded
// once from a KVP1 file. No component mutates it after Load returns.
type Pack struct {
	voices map[string]Voice
	order  []string
}

type direntry struct {
	name   string
	offset uint64
	length uint64
}

// Load reads a KVP1-format voice pack file into memory.
func Load(path string) (*Pack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ttserr.New(ttserr.ResourceMissing, "voicepack.Load", err)
	}
	defer func() { _ = f.Close() }()

	return LoadReader(bufio.NewReader(f))
}

// LoadReader parses a KVP1 pack from an arbitrary reader. Exposed
// separately so embedded/packed assets can be loaded without touching
// the filesystem.
func LoadReader(r io.Reader) (*Pack, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, ttserr.New(ttserr.PackCorrupt, "voicepack.Load", fmt.Errorf("read magic: %w", err))
	}

	if string(hdr[:]) != magic {
		return nil, ttserr.Newf(ttserr.PackCorrupt, "voicepack.Load", "bad magic %q, want %q", hdr[:], magic)
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, ttserr.New(ttserr.PackCorrupt, "voicepack.Load", fmt.Errorf("read version: %w", err))
	}

	if version != supportedVer {
		return nil, ttserr.Newf(ttserr.PackUnknownVersion, "voicepack.Load", "unsupported pack version %d", version)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, ttserr.New(ttserr.PackCorrupt, "voicepack.Load", fmt.Errorf("read count: %w", err))
	}

	entries := make([]direntry, 0, count)

	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, ttserr.New(ttserr.PackCorrupt, "voicepack.Load", fmt.Errorf("entry %d: read name_len: %w", i, err))
		}

		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, ttserr.New(ttserr.PackCorrupt, "voicepack.Load", fmt.Errorf("entry %d: read name: %w", i, err))
		}

		var offset, length uint64
		if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
			return nil, ttserr.New(ttserr.PackCorrupt, "voicepack.Load", fmt.Errorf("entry %d: read offset: %w", i, err))
		}

		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, ttserr.New(ttserr.PackCorrupt, "voicepack.Load", fmt.Errorf("entry %d: read length: %w", i, err))
		}

		if length != tensorByteSize {
			return nil, ttserr.Newf(ttserr.PackCorrupt, "voicepack.Load",
				"entry %q has length %d, want %d (510x1x256 float32)", nameBytes, length, tensorByteSize)
		}

		entries = append(entries, direntry{name: string(nameBytes), offset: offset, length: length})
	}

	// Blob section: read sequentially and slice by recorded offsets. The
	// directory's offsets are relative to the start of the blob, and in
	// this loader the blob immediately follows the directory. Entries
	// are sorted by offset here, so the directory may list them in any
	// order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })

	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, ttserr.New(ttserr.PackCorrupt, "voicepack.Load", fmt.Errorf("read blob: %w", err))
	}

	p := &Pack{
		voices: make(map[string]Voice, len(entries)),
		order:  make([]string, 0, len(entries)),
	}

	for _, e := range entries {
		end := e.offset + e.length
		if end > uint64(len(blob)) {
			return nil, ttserr.Newf(ttserr.PackCorrupt, "voicepack.Load",
				"entry %q blob range [%d,%d) exceeds blob size %d", e.name, e.offset, end, len(blob))
		}

		raw := blob[e.offset:end]

		style := make([]float32, styleRows*styleCols)
		for i := range style {
			style[i] = decodeFloat32LE(raw[i*floatBytes : i*floatBytes+floatBytes])
		}

		id, lang, gender := splitVoiceName(e.name)

		if _, exists := p.voices[id]; exists {
			return nil, ttserr.Newf(ttserr.PackCorrupt, "voicepack.Load", "duplicate voice id %q", id)
		}

		p.voices[id] = Voice{ID: id, LanguageTag: lang, GenderHint: gender, Style: style}
		p.order = append(p.order, id)
	}

	return p, nil
}

// splitVoiceName derives language tag and gender hint from Kokoro's
// voice-id convention, e.g. "af_heart" -> lang "en-us", gender "female".
// Ids that don't match the two-letter-prefix convention are returned
// with empty language/gender hints — not an error, since these are
// advisory metadata only.
func splitVoiceName(name string) (id, lang, gender string) {
	id = name

	prefix, _, ok := strings.Cut(name, "_")
	if !ok || len(prefix) < 2 {
		return id, "", ""
	}

	langByPrefix := map[byte]string{
		'a': "en-us",
		'b': "en-gb",
		'e': "es",
		'f': "fr",
		'i': "it",
		'p': "pt",
		'h': "hi",
		'j': "ja",
		'z': "zh",
	}

	genderByPrefix := map[byte]string{
		'f': "female",
		'm': "male",
	}

	lang = langByPrefix[prefix[0]]
	gender = genderByPrefix[prefix[1]]

	return id, lang, gender
}

func decodeFloat32LE(b []byte) float32 {
	bits := binary.LittleEndian.Uint32(b)

	return math.Float32frombits(bits)
}

// Get returns the named voice and whether it exists.
func (p *Pack) Get(id string) (Voice, bool) {
	v, ok := p.voices[id]

	return v, ok
}

// List returns all voice ids in the pack's load order.
func (p *Pack) List() []string {
	return append([]string(nil), p.order...)
}

// Len reports the number of voices in the pack.
func (p *Pack) Len() int { return len(p.order) }
