package phonemize

// BuildDefault wires the standard backend set: native zh and ja
// backends, with espeak-ng covering every other supported language tag
// (en-us, en-gb, es, fr, it, pt, hi). espeakPath may be empty to use
// "espeak-ng" from PATH.
func BuildDefault(espeakPath string) (*Dispatch, error) {
	ja, err := NewJaBackend()
	if err != nil {
		return nil, err
	}

	espeakVoices := map[string]string{
		"en-us": "en-us",
		"en-gb": "en-gb",
		"es":    "es",
		"fr":    "fr",
		"it":    "it",
		"pt":    "pt",
		"hi":    "hi",
	}

	backends := make(map[string]Backend, len(espeakVoices)+2)

	for tag, voice := range espeakVoices {
		backends[tag] = NewEspeakBackend(espeakPath, voice)
	}

	backends["zh"] = NewZhBackend()
	backends["ja"] = ja

	return NewDispatch(backends), nil
}
