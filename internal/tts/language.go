package tts

import "strings"

// DefaultLanguage is assumed when detection finds nothing to go on.
const DefaultLanguage = "zh"

// DefaultRate is the neutral speaking rate.
const DefaultRate = "+0%"

// EdgeVoices maps detected languages to the default Edge voice.
var EdgeVoices = map[string]string{
	"zh":  "zh-CN-XiaoyiNeural",
	"en":  "en-US-JennyNeural",
	"ja":  "ja-JP-NanamiNeural",
	"ko":  "ko-KR-SunHiNeural",
	"yue": "zh-HK-HiuGaaiNeural",
}

// VoiceForLanguage returns the default voice for a language, falling
// back to the default language's voice.
func VoiceForLanguage(language string) string {
	if voice, ok := EdgeVoices[language]; ok {
		return voice
	}
	return EdgeVoices[DefaultLanguage]
}

// DetectLanguage guesses the text's language from its script. Kana wins
// over shared CJK ideographs, then hangul, then a CJK majority reads as
// Chinese, then any Latin letters as English.
func DetectLanguage(text string) string {
	var cjkCount, jaSpecific, koSpecific, latinCount int

	for _, r := range text {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
			cjkCount++
		case r >= 0x3040 && r <= 0x30FF: // Hiragana/Katakana
			jaSpecific++
		case (r >= 0xAC00 && r <= 0xD7AF) || (r >= 0x1100 && r <= 0x11FF): // Hangul
			koSpecific++
		case r >= 0x0041 && r <= 0x007A: // Basic Latin letters
			latinCount++
		}
	}

	if len(strings.ReplaceAll(text, " ", "")) == 0 {
		return DefaultLanguage
	}

	switch {
	case jaSpecific > 0:
		return "ja"
	case koSpecific > 0:
		return "ko"
	case cjkCount > latinCount:
		return "zh"
	case latinCount > 0:
		return "en"
	}
	return DefaultLanguage
}

// resolveVoice fills the language and voice for a request: detect the
// language from the text when unset, then prefer the request's voice,
// then the provider's configured voice, then the language default.
func resolveVoice(req *SynthesizeRequest, configVoice string) (language, voice string) {
	language = req.Language
	if language == "" {
		language = DetectLanguage(req.Text)
	}
	voice = req.Voice
	if voice == "" {
		voice = configVoice
	}
	if voice == "" {
		voice = VoiceForLanguage(language)
	}
	return language, voice
}
