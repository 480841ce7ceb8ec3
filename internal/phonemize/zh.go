package phonemize

import (
	"context"
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// ZhBackend phonemizes Mandarin Chinese text: word-segment (coarse,
// per-rune since go-pinyin already operates rune-by-rune), convert each
// Han character to pinyin with a numeral tone, apply tone-sandhi rules,
// then map pinyin syllables to IPA via a static table. Non-Han runs
// (digits, Latin) fall through to their literal form split on
// whitespace, since Kokoro's Chinese voices are trained primarily on
// Han text and mixed-script input is uncommon in practice.
type ZhBackend struct {
	args pinyin.Args
}

// NewZhBackend constructs a ZhBackend using go-pinyin with Tone3 style
// (numeral tone suffix, e.g. "ni3"), which tone-sandhi post-processing
// operates on directly.
func NewZhBackend() *ZhBackend {
	args := pinyin.NewArgs()
	args.Style = pinyin.Tone3
	args.Heteronym = false

	return &ZhBackend{args: args}
}

func (z *ZhBackend) Phonemize(_ context.Context, text string) ([]string, error) {
	text = rewriteChineseNumerals(text)

	syllables := pinyinSyllables(text, z.args)
	syllables = applyToneSandhi(syllables)

	var out []string

	for _, syl := range syllables {
		base, tone := splitTone(syl)

		ipa, ok := pinyinToIPA[base]
		if !ok {
			// Non-pinyin token (punctuation, latin run, digit) passes
			// through literally; the tokenizer drops unrecognized
			// symbols rather than erroring.
			out = append(out, syl)

			continue
		}

		out = append(out, ipa...)
		out = append(out, toneMarker(tone))
	}

	return out, nil
}

// pinyinSyllables walks text rune by rune, converting Han runes via
// go-pinyin and passing non-Han runs through as single tokens split on
// whitespace.
func pinyinSyllables(text string, args pinyin.Args) []string {
	var out []string

	var nonHan strings.Builder

	flushNonHan := func() {
		for _, tok := range strings.Fields(nonHan.String()) {
			out = append(out, tok)
		}

		nonHan.Reset()
	}

	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			flushNonHan()

			result := pinyin.Pinyin(string(r), args)
			if len(result) > 0 && len(result[0]) > 0 {
				out = append(out, result[0][0])
			}

			continue
		}

		nonHan.WriteRune(r)
	}

	flushNonHan()

	return out
}

// applyToneSandhi rewrites adjacent third-tone ("3") syllables: the
// first of a pair becomes second tone ("2"), per Mandarin sandhi rules.
// "不" (bu4) before a fourth-tone syllable becomes second tone, and "一"
// (yi1) shifts tone depending on the following syllable's tone — both
// handled via their pinyin base spelling since Han-character context
// isn't retained past the go-pinyin conversion step.
func applyToneSandhi(syllables []string) []string {
	out := append([]string(nil), syllables...)

	for i := 0; i < len(out)-1; i++ {
		base, tone := splitTone(out[i])
		_, nextTone := splitTone(out[i+1])

		switch {
		case base == "bu" && tone == "4" && nextTone == "4":
			out[i] = "bu2"
		case base == "yi" && tone == "1" && nextTone == "4":
			out[i] = "yi2"
		case base == "yi" && tone == "1" && nextTone != "4" && nextTone != "":
			out[i] = "yi4"
		case tone == "3" && nextTone == "3":
			out[i] = base + "2"
		}
	}

	return out
}

func splitTone(syl string) (base, tone string) {
	if syl == "" {
		return "", ""
	}

	last := syl[len(syl)-1]
	if last >= '0' && last <= '5' {
		return syl[:len(syl)-1], string(last)
	}

	return syl, ""
}

func toneMarker(tone string) string {
	switch tone {
	case "1":
		return "˥"
	case "2":
		return "˧˥"
	case "3":
		return "˨˩˦"
	case "4":
		return "˥˩"
	default:
		return "˧"
	}
}

var chineseNumerals = map[rune]string{
	'0': "零", '1': "一", '2': "二", '3': "三", '4': "四",
	'5': "五", '6': "六", '7': "七", '8': "八", '9': "九",
}

// rewriteChineseNumerals rewrites bare ASCII digit runs into Chinese
// numeral characters before pinyin conversion.
func rewriteChineseNumerals(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteString(chineseNumerals[r])

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// pinyinToIPA maps pinyin syllable bases (tone stripped) to their IPA
// approximation. Coverage is the common Mandarin syllabary; syllables
// missing from this table pass through as their raw pinyin spelling
// rather than failing synthesis outright.
var pinyinToIPA = map[string][]string{
	"a": {"a"}, "ai": {"ai"}, "an": {"an"}, "ang": {"aŋ"}, "ao": {"au"},
	"ba": {"p", "a"}, "bai": {"p", "ai"}, "ban": {"p", "an"}, "bang": {"p", "aŋ"},
	"bao": {"p", "au"}, "bei": {"p", "ei"}, "ben": {"p", "ən"}, "beng": {"p", "əŋ"},
	"bi": {"p", "i"}, "bian": {"p", "jɛn"}, "biao": {"p", "jau"}, "bie": {"p", "jɛ"},
	"bin": {"p", "in"}, "bing": {"p", "iŋ"}, "bo": {"p", "wo"}, "bu": {"p", "u"},
	"ca": {"tsʰ", "a"}, "cai": {"tsʰ", "ai"}, "can": {"tsʰ", "an"}, "cang": {"tsʰ", "aŋ"},
	"cao": {"tsʰ", "au"}, "ce": {"tsʰ", "ɤ"}, "cen": {"tsʰ", "ən"}, "ceng": {"tsʰ", "əŋ"},
	"cha": {"tʂʰ", "a"}, "chai": {"tʂʰ", "ai"}, "chan": {"tʂʰ", "an"}, "chang": {"tʂʰ", "aŋ"},
	"chao": {"tʂʰ", "au"}, "che": {"tʂʰ", "ɤ"}, "chen": {"tʂʰ", "ən"}, "cheng": {"tʂʰ", "əŋ"},
	"chi": {"tʂʰ", "ʐ̩"}, "chong": {"tʂʰ", "ʊŋ"}, "chou": {"tʂʰ", "ou"}, "chu": {"tʂʰ", "u"},
	"chuai": {"tʂʰ", "wai"}, "chuan": {"tʂʰ", "wan"}, "chuang": {"tʂʰ", "waŋ"}, "chui": {"tʂʰ", "wei"},
	"chun": {"tʂʰ", "wən"}, "chuo": {"tʂʰ", "wo"},
	"ci": {"tsʰ", "z̩"}, "cong": {"tsʰ", "ʊŋ"}, "cou": {"tsʰ", "ou"}, "cu": {"tsʰ", "u"},
	"cuan": {"tsʰ", "wan"}, "cui": {"tsʰ", "wei"}, "cun": {"tsʰ", "wən"}, "cuo": {"tsʰ", "wo"},
	"da": {"t", "a"}, "dai": {"t", "ai"}, "dan": {"t", "an"}, "dang": {"t", "aŋ"},
	"dao": {"t", "au"}, "de": {"t", "ɤ"}, "dei": {"t", "ei"}, "deng": {"t", "əŋ"},
	"di": {"t", "i"}, "dian": {"t", "jɛn"}, "diao": {"t", "jau"}, "die": {"t", "jɛ"},
	"ding": {"t", "iŋ"}, "diu": {"t", "jou"}, "dong": {"t", "ʊŋ"}, "dou": {"t", "ou"},
	"du": {"t", "u"}, "duan": {"t", "wan"}, "dui": {"t", "wei"}, "dun": {"t", "wən"}, "duo": {"t", "wo"},
	"e": {"ɤ"}, "ei": {"ei"}, "en": {"ən"}, "eng": {"əŋ"}, "er": {"aɚ"},
	"fa": {"f", "a"}, "fan": {"f", "an"}, "fang": {"f", "aŋ"}, "fei": {"f", "ei"},
	"fen": {"f", "ən"}, "feng": {"f", "əŋ"}, "fo": {"f", "wo"}, "fou": {"f", "ou"}, "fu": {"f", "u"},
	"ga": {"k", "a"}, "gai": {"k", "ai"}, "gan": {"k", "an"}, "gang": {"k", "aŋ"},
	"gao": {"k", "au"}, "ge": {"k", "ɤ"}, "gei": {"k", "ei"}, "gen": {"k", "ən"}, "geng": {"k", "əŋ"},
	"gong": {"k", "ʊŋ"}, "gou": {"k", "ou"}, "gu": {"k", "u"}, "gua": {"k", "wa"},
	"guai": {"k", "wai"}, "guan": {"k", "wan"}, "guang": {"k", "waŋ"}, "gui": {"k", "wei"},
	"gun": {"k", "wən"}, "guo": {"k", "wo"},
	"ha": {"x", "a"}, "hai": {"x", "ai"}, "han": {"x", "an"}, "hang": {"x", "aŋ"},
	"hao": {"x", "au"}, "he": {"x", "ɤ"}, "hei": {"x", "ei"}, "hen": {"x", "ən"}, "heng": {"x", "əŋ"},
	"hong": {"x", "ʊŋ"}, "hou": {"x", "ou"}, "hu": {"x", "u"}, "hua": {"x", "wa"},
	"huai": {"x", "wai"}, "huan": {"x", "wan"}, "huang": {"x", "waŋ"}, "hui": {"x", "wei"},
	"hun": {"x", "wən"}, "huo": {"x", "wo"},
	"ji": {"tɕ", "i"}, "jia": {"tɕ", "ja"}, "jian": {"tɕ", "jɛn"}, "jiang": {"tɕ", "jaŋ"},
	"jiao": {"tɕ", "jau"}, "jie": {"tɕ", "jɛ"}, "jin": {"tɕ", "in"}, "jing": {"tɕ", "iŋ"},
	"jiong": {"tɕ", "jʊŋ"}, "jiu": {"tɕ", "jou"}, "ju": {"tɕ", "y"}, "juan": {"tɕ", "ɥɛn"},
	"jue": {"tɕ", "ɥɛ"}, "jun": {"tɕ", "yn"},
	"ka": {"kʰ", "a"}, "kai": {"kʰ", "ai"}, "kan": {"kʰ", "an"}, "kang": {"kʰ", "aŋ"},
	"kao": {"kʰ", "au"}, "ke": {"kʰ", "ɤ"}, "ken": {"kʰ", "ən"}, "keng": {"kʰ", "əŋ"},
	"kong": {"kʰ", "ʊŋ"}, "kou": {"kʰ", "ou"}, "ku": {"kʰ", "u"}, "kua": {"kʰ", "wa"},
	"kuai": {"kʰ", "wai"}, "kuan": {"kʰ", "wan"}, "kuang": {"kʰ", "waŋ"}, "kui": {"kʰ", "wei"},
	"kun": {"kʰ", "wən"}, "kuo": {"kʰ", "wo"},
	"la": {"l", "a"}, "lai": {"l", "ai"}, "lan": {"l", "an"}, "lang": {"l", "aŋ"},
	"lao": {"l", "au"}, "le": {"l", "ɤ"}, "lei": {"l", "ei"}, "leng": {"l", "əŋ"},
	"li": {"l", "i"}, "lian": {"l", "jɛn"}, "liang": {"l", "jaŋ"}, "liao": {"l", "jau"},
	"lie": {"l", "jɛ"}, "lin": {"l", "in"}, "ling": {"l", "iŋ"}, "liu": {"l", "jou"},
	"long": {"l", "ʊŋ"}, "lou": {"l", "ou"}, "lu": {"l", "u"}, "lv": {"l", "y"},
	"luan": {"l", "wan"}, "lve": {"l", "ɥɛ"}, "lun": {"l", "wən"}, "luo": {"l", "wo"},
	"ma": {"m", "a"}, "mai": {"m", "ai"}, "man": {"m", "an"}, "mang": {"m", "aŋ"},
	"mao": {"m", "au"}, "me": {"m", "ɤ"}, "mei": {"m", "ei"}, "men": {"m", "ən"}, "meng": {"m", "əŋ"},
	"mi": {"m", "i"}, "mian": {"m", "jɛn"}, "miao": {"m", "jau"}, "mie": {"m", "jɛ"},
	"min": {"m", "in"}, "ming": {"m", "iŋ"}, "miu": {"m", "jou"}, "mo": {"m", "wo"},
	"mou": {"m", "ou"}, "mu": {"m", "u"},
	"na": {"n", "a"}, "nai": {"n", "ai"}, "nan": {"n", "an"}, "nang": {"n", "aŋ"},
	"nao": {"n", "au"}, "ne": {"n", "ɤ"}, "nei": {"n", "ei"}, "nen": {"n", "ən"}, "neng": {"n", "əŋ"},
	"ni": {"n", "i"}, "nian": {"n", "jɛn"}, "niang": {"n", "jaŋ"}, "niao": {"n", "jau"},
	"nie": {"n", "jɛ"}, "nin": {"n", "in"}, "ning": {"n", "iŋ"}, "niu": {"n", "jou"},
	"nong": {"n", "ʊŋ"}, "nou": {"n", "ou"}, "nu": {"n", "u"}, "nv": {"n", "y"},
	"nuan": {"n", "wan"}, "nve": {"n", "ɥɛ"}, "nuo": {"n", "wo"},
	"o": {"o"}, "ou": {"ou"},
	"pa": {"pʰ", "a"}, "pai": {"pʰ", "ai"}, "pan": {"pʰ", "an"}, "pang": {"pʰ", "aŋ"},
	"pao": {"pʰ", "au"}, "pei": {"pʰ", "ei"}, "pen": {"pʰ", "ən"}, "peng": {"pʰ", "əŋ"},
	"pi": {"pʰ", "i"}, "pian": {"pʰ", "jɛn"}, "piao": {"pʰ", "jau"}, "pie": {"pʰ", "jɛ"},
	"pin": {"pʰ", "in"}, "ping": {"pʰ", "iŋ"}, "po": {"pʰ", "wo"}, "pou": {"pʰ", "ou"}, "pu": {"pʰ", "u"},
	"qi": {"tɕʰ", "i"}, "qia": {"tɕʰ", "ja"}, "qian": {"tɕʰ", "jɛn"}, "qiang": {"tɕʰ", "jaŋ"},
	"qiao": {"tɕʰ", "jau"}, "qie": {"tɕʰ", "jɛ"}, "qin": {"tɕʰ", "in"}, "qing": {"tɕʰ", "iŋ"},
	"qiong": {"tɕʰ", "jʊŋ"}, "qiu": {"tɕʰ", "jou"}, "qu": {"tɕʰ", "y"}, "quan": {"tɕʰ", "ɥɛn"},
	"que": {"tɕʰ", "ɥɛ"}, "qun": {"tɕʰ", "yn"},
	"ran": {"ʐ", "an"}, "rang": {"ʐ", "aŋ"}, "rao": {"ʐ", "au"}, "re": {"ʐ", "ɤ"},
	"ren": {"ʐ", "ən"}, "reng": {"ʐ", "əŋ"}, "ri": {"ʐ̩"}, "rong": {"ʐ", "ʊŋ"},
	"rou": {"ʐ", "ou"}, "ru": {"ʐ", "u"}, "ruan": {"ʐ", "wan"}, "rui": {"ʐ", "wei"},
	"run": {"ʐ", "wən"}, "ruo": {"ʐ", "wo"},
	"sa": {"s", "a"}, "sai": {"s", "ai"}, "san": {"s", "an"}, "sang": {"s", "aŋ"},
	"sao": {"s", "au"}, "se": {"s", "ɤ"}, "sen": {"s", "ən"}, "seng": {"s", "əŋ"},
	"sha": {"ʂ", "a"}, "shai": {"ʂ", "ai"}, "shan": {"ʂ", "an"}, "shang": {"ʂ", "aŋ"},
	"shao": {"ʂ", "au"}, "she": {"ʂ", "ɤ"}, "shei": {"ʂ", "ei"}, "shen": {"ʂ", "ən"}, "sheng": {"ʂ", "əŋ"},
	"shi": {"ʂ̩"}, "shou": {"ʂ", "ou"}, "shu": {"ʂ", "u"}, "shua": {"ʂ", "wa"},
	"shuai": {"ʂ", "wai"}, "shuan": {"ʂ", "wan"}, "shuang": {"ʂ", "waŋ"}, "shui": {"ʂ", "wei"},
	"shun": {"ʂ", "wən"}, "shuo": {"ʂ", "wo"},
	"si": {"s", "z̩"}, "song": {"s", "ʊŋ"}, "sou": {"s", "ou"}, "su": {"s", "u"},
	"suan": {"s", "wan"}, "sui": {"s", "wei"}, "sun": {"s", "wən"}, "suo": {"s", "wo"},
	"ta": {"tʰ", "a"}, "tai": {"tʰ", "ai"}, "tan": {"tʰ", "an"}, "tang": {"tʰ", "aŋ"},
	"tao": {"tʰ", "au"}, "te": {"tʰ", "ɤ"}, "teng": {"tʰ", "əŋ"}, "ti": {"tʰ", "i"},
	"tian": {"tʰ", "jɛn"}, "tiao": {"tʰ", "jau"}, "tie": {"tʰ", "jɛ"}, "ting": {"tʰ", "iŋ"},
	"tong": {"tʰ", "ʊŋ"}, "tou": {"tʰ", "ou"}, "tu": {"tʰ", "u"}, "tuan": {"tʰ", "wan"},
	"tui": {"tʰ", "wei"}, "tun": {"tʰ", "wən"}, "tuo": {"tʰ", "wo"},
	"wa": {"wa"}, "wai": {"wai"}, "wan": {"wan"}, "wang": {"waŋ"}, "wei": {"wei"},
	"wen": {"wən"}, "weng": {"wəŋ"}, "wo": {"wo"}, "wu": {"u"},
	"xi": {"ɕ", "i"}, "xia": {"ɕ", "ja"}, "xian": {"ɕ", "jɛn"}, "xiang": {"ɕ", "jaŋ"},
	"xiao": {"ɕ", "jau"}, "xie": {"ɕ", "jɛ"}, "xin": {"ɕ", "in"}, "xing": {"ɕ", "iŋ"},
	"xiong": {"ɕ", "jʊŋ"}, "xiu": {"ɕ", "jou"}, "xu": {"ɕ", "y"}, "xuan": {"ɕ", "ɥɛn"},
	"xue": {"ɕ", "ɥɛ"}, "xun": {"ɕ", "yn"},
	"ya": {"ja"}, "yan": {"jɛn"}, "yang": {"jaŋ"}, "yao": {"jau"}, "ye": {"jɛ"},
	"yi": {"i"}, "yin": {"in"}, "ying": {"iŋ"}, "yo": {"jo"}, "yong": {"jʊŋ"},
	"you": {"jou"}, "yu": {"y"}, "yuan": {"ɥɛn"}, "yue": {"ɥɛ"}, "yun": {"yn"},
	"za": {"ts", "a"}, "zai": {"ts", "ai"}, "zan": {"ts", "an"}, "zang": {"ts", "aŋ"},
	"zao": {"ts", "au"}, "ze": {"ts", "ɤ"}, "zei": {"ts", "ei"}, "zen": {"ts", "ən"}, "zeng": {"ts", "əŋ"},
	"zha": {"tʂ", "a"}, "zhai": {"tʂ", "ai"}, "zhan": {"tʂ", "an"}, "zhang": {"tʂ", "aŋ"},
	"zhao": {"tʂ", "au"}, "zhe": {"tʂ", "ɤ"}, "zhei": {"tʂ", "ei"}, "zhen": {"tʂ", "ən"}, "zheng": {"tʂ", "əŋ"},
	"zhi": {"tʂ̩"}, "zhong": {"tʂ", "ʊŋ"}, "zhou": {"tʂ", "ou"}, "zhu": {"tʂ", "u"},
	"zhua": {"tʂ", "wa"}, "zhuai": {"tʂ", "wai"}, "zhuan": {"tʂ", "wan"}, "zhuang": {"tʂ", "waŋ"},
	"zhui": {"tʂ", "wei"}, "zhun": {"tʂ", "wən"}, "zhuo": {"tʂ", "wo"},
	"zi": {"ts", "z̩"}, "zong": {"ts", "ʊŋ"}, "zou": {"ts", "ou"}, "zu": {"ts", "u"},
	"zuan": {"ts", "wan"}, "zui": {"ts", "wei"}, "zun": {"ts", "wən"}, "zuo": {"ts", "wo"},
}
