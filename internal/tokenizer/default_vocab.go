package tokenizer

// DefaultVocab is the bundled phoneme symbol vocabulary: every symbol
// the phonemize package's backends can emit, plus the IPA inventory
// espeak-ng commonly produces for the supported Latin-script
// languages. Id 0 is reserved for the boundary marker; all other ids
// are assigned in a stable, deterministic order so a rebuilt table
// from the same symbol set always produces the same ids.
var DefaultVocab = buildDefaultVocab()

func buildDefaultVocab() map[string]int64 {
	symbols := []string{
		"_", // boundary marker, forced to id 0 below
		// Vowels
		"a", "ɐ", "ɑ", "ɒ", "æ", "ɛ", "ə", "ɚ", "ɜ", "ɝ",
		"e", "i", "ɪ", "o", "ɔ", "u", "ʊ", "ʌ", "y", "ɨ",
		// Diphthongs (as written by espeak/pinyin/kana layers)
		"aɪ", "aʊ", "eɪ", "oʊ", "ɔɪ", "ai", "au", "ei", "ou",
		// Consonants
		"p", "b", "t", "d", "k", "g", "f", "v", "θ", "ð",
		"s", "z", "ʃ", "ʒ", "h", "m", "n", "ŋ", "l", "r",
		"ɹ", "ɾ", "w", "j", "tʃ", "dʒ", "ʔ", "ɴ",
		// Aspirated / affricate variants (Mandarin)
		"pʰ", "tʰ", "kʰ", "tsʰ", "tʂʰ", "tɕʰ", "ts", "tʂ", "tɕ",
		"ʂ", "ʐ", "ʐ̩", "ʂ̩", "tʂ̩", "z̩", "x", "ɤ",
		// Mandarin finals (glide+vowel+coda units emitted by the pinyin
		// table as single symbols)
		"an", "aŋ", "ən", "əŋ", "in", "iŋ", "yn", "ʊŋ",
		"wa", "wai", "wan", "waŋ", "wei", "wən", "wəŋ", "wo",
		"ja", "jaŋ", "jau", "jo", "jou", "jɛ", "jɛn", "jʊŋ",
		"ɥɛ", "ɥɛn",
		// Palatalized onsets (Japanese)
		"ɕ", "dʑ", "ɲ", "ç", "ɸ", "ɥ",
		// Nasal/retroflex/centering extras
		"aɚ", "ɯ",
		// Mandarin tone contour markers
		"˥", "˧˥", "˨˩˦", "˥˩", "˧",
		// Stress and length marks (espeak-ng IPA output)
		"ˈ", "ˌ", "ː",
		// Punctuation-as-prosody symbols some backends pass through
		".", ",", "!", "?", ";", ":",
	}

	table := make(map[string]int64, len(symbols))

	nextID := int64(1)

	for _, s := range symbols {
		if s == "_" {
			table[s] = boundaryID

			continue
		}

		if _, exists := table[s]; exists {
			continue
		}

		table[s] = nextID
		nextID++
	}

	return table
}
