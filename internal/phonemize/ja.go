package phonemize

import (
	"context"
	"fmt"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/byteowlz/kokorox/internal/ttserr"
)

// JaBackend phonemizes Japanese text: kagome's IPA-dictionary
// morphological analyzer produces a katakana reading per token, which
// a static kana→IPA table then converts to phonemes.
type JaBackend struct {
	tok *tokenizer.Tokenizer
}

// NewJaBackend builds the kagome tokenizer against the bundled IPA
// dictionary. Construction loads the dictionary into memory once; the
// returned backend is safe for concurrent use across sentences.
func NewJaBackend() (*JaBackend, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, ttserr.New(ttserr.PhonemizerUnavailable, "phonemize.NewJaBackend", fmt.Errorf("load kagome ipa dict: %w", err))
	}

	return &JaBackend{tok: t}, nil
}

func (j *JaBackend) Phonemize(_ context.Context, text string) ([]string, error) {
	morphemes := j.tok.Tokenize(text)

	var out []string

	for _, m := range morphemes {
		reading := morphemeReading(m)
		out = append(out, kanaToIPA(reading)...)
	}

	return out, nil
}

// morphemeReading extracts the katakana reading for a kagome morpheme.
// IPA-dictionary features are ordered
// [pos, pos1, pos2, pos3, conjType, conjForm, baseForm, reading, pronunciation];
// reading is index 7. Unknown-word morphemes (proper nouns, loanwords
// not in the dictionary) carry no reading and fall back to surface
// form, which kanaToIPA passes through untranslated.
func morphemeReading(m tokenizer.Token) string {
	features := m.Features()
	if len(features) > 7 && features[7] != "" {
		return features[7]
	}

	return m.Surface
}

// kanaToIPA converts a katakana reading, one rune at a time, to IPA
// phoneme symbols via a static mora table. Multi-rune combinations
// (small ゃ/ゅ/ょ forming palatalized moras, long-vowel mark ー) are
// handled by peeking at the following rune.
func kanaToIPA(reading string) []string {
	runes := []rune(reading)

	var out []string

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == 'ー' {
			if len(out) > 0 {
				out = append(out, out[len(out)-1])
			}

			continue
		}

		if i+1 < len(runes) && isSmallYoon(runes[i+1]) {
			combo := string(r) + string(runes[i+1])
			if ipaSyms, ok := kanaPalatalized[combo]; ok {
				out = append(out, ipaSyms...)
				i++

				continue
			}
		}

		if ipaSyms, ok := kanaMora[r]; ok {
			out = append(out, ipaSyms...)

			continue
		}

		out = append(out, string(r))
	}

	return out
}

func isSmallYoon(r rune) bool {
	switch r {
	case 'ゃ', 'ゅ', 'ょ', 'ャ', 'ュ', 'ョ':
		return true
	default:
		return false
	}
}

var kanaMora = map[rune][]string{
	'ア': {"a"}, 'イ': {"i"}, 'ウ': {"ɯ"}, 'エ': {"e"}, 'オ': {"o"},
	'カ': {"k", "a"}, 'キ': {"k", "i"}, 'ク': {"k", "ɯ"}, 'ケ': {"k", "e"}, 'コ': {"k", "o"},
	'ガ': {"g", "a"}, 'ギ': {"g", "i"}, 'グ': {"g", "ɯ"}, 'ゲ': {"g", "e"}, 'ゴ': {"g", "o"},
	'サ': {"s", "a"}, 'シ': {"ɕ", "i"}, 'ス': {"s", "ɯ"}, 'セ': {"s", "e"}, 'ソ': {"s", "o"},
	'ザ': {"z", "a"}, 'ジ': {"dʑ", "i"}, 'ズ': {"z", "ɯ"}, 'ゼ': {"z", "e"}, 'ゾ': {"z", "o"},
	'タ': {"t", "a"}, 'チ': {"tɕ", "i"}, 'ツ': {"ts", "ɯ"}, 'テ': {"t", "e"}, 'ト': {"t", "o"},
	'ダ': {"d", "a"}, 'ヂ': {"dʑ", "i"}, 'ヅ': {"z", "ɯ"}, 'デ': {"d", "e"}, 'ド': {"d", "o"},
	'ナ': {"n", "a"}, 'ニ': {"ɲ", "i"}, 'ヌ': {"n", "ɯ"}, 'ネ': {"n", "e"}, 'ノ': {"n", "o"},
	'ハ': {"h", "a"}, 'ヒ': {"ç", "i"}, 'フ': {"ɸ", "ɯ"}, 'ヘ': {"h", "e"}, 'ホ': {"h", "o"},
	'バ': {"b", "a"}, 'ビ': {"b", "i"}, 'ブ': {"b", "ɯ"}, 'ベ': {"b", "e"}, 'ボ': {"b", "o"},
	'パ': {"p", "a"}, 'ピ': {"p", "i"}, 'プ': {"p", "ɯ"}, 'ペ': {"p", "e"}, 'ポ': {"p", "o"},
	'マ': {"m", "a"}, 'ミ': {"m", "i"}, 'ム': {"m", "ɯ"}, 'メ': {"m", "e"}, 'モ': {"m", "o"},
	'ヤ': {"j", "a"}, 'ユ': {"j", "ɯ"}, 'ヨ': {"j", "o"},
	'ラ': {"ɾ", "a"}, 'リ': {"ɾ", "i"}, 'ル': {"ɾ", "ɯ"}, 'レ': {"ɾ", "e"}, 'ロ': {"ɾ", "o"},
	'ワ': {"w", "a"}, 'ヲ': {"o"}, 'ン': {"ɴ"}, 'ッ': {"ʔ"},
}

var kanaPalatalized = map[string][]string{
	"キャ": {"k", "j", "a"}, "キュ": {"k", "j", "ɯ"}, "キョ": {"k", "j", "o"},
	"ギャ": {"g", "j", "a"}, "ギュ": {"g", "j", "ɯ"}, "ギョ": {"g", "j", "o"},
	"シャ": {"ɕ", "a"}, "シュ": {"ɕ", "ɯ"}, "ショ": {"ɕ", "o"},
	"ジャ": {"dʑ", "a"}, "ジュ": {"dʑ", "ɯ"}, "ジョ": {"dʑ", "o"},
	"チャ": {"tɕ", "a"}, "チュ": {"tɕ", "ɯ"}, "チョ": {"tɕ", "o"},
	"ニャ": {"ɲ", "a"}, "ニュ": {"ɲ", "ɯ"}, "ニョ": {"ɲ", "o"},
	"ヒャ": {"ç", "a"}, "ヒュ": {"ç", "ɯ"}, "ヒョ": {"ç", "o"},
	"ビャ": {"b", "j", "a"}, "ビュ": {"b", "j", "ɯ"}, "ビョ": {"b", "j", "o"},
	"ピャ": {"p", "j", "a"}, "ピュ": {"p", "j", "ɯ"}, "ピョ": {"p", "j", "o"},
	"ミャ": {"m", "j", "a"}, "ミュ": {"m", "j", "ɯ"}, "ミョ": {"m", "j", "o"},
	"リャ": {"ɾ", "j", "a"}, "リュ": {"ɾ", "j", "ɯ"}, "リョ": {"ɾ", "j", "o"},
}
