package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDetectLanguage covers the script-based rules, including the
// kana-over-ideograph and CJK-majority tie-breaks.
func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"chinese", "今天天气怎么样", "zh"},
		{"english", "hello there", "en"},
		{"japanese kana wins over kanji", "今日はいい天気ですね", "ja"},
		{"korean", "안녕하세요", "ko"},
		{"mixed cjk majority", "今天的weather真的很不错", "zh"},
		{"mixed latin outnumbers cjk", "今天weather不错", "en"},
		{"mixed latin majority", "check the 天气 for me please", "en"},
		{"digits and punctuation only", "123 456!", "zh"},
		{"empty", "", "zh"},
		{"spaces only", "   ", "zh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

// TestVoiceForLanguage maps every supported language and falls back for
// unknown codes.
func TestVoiceForLanguage(t *testing.T) {
	assert.Equal(t, "zh-CN-XiaoyiNeural", VoiceForLanguage("zh"))
	assert.Equal(t, "en-US-JennyNeural", VoiceForLanguage("en"))
	assert.Equal(t, "ja-JP-NanamiNeural", VoiceForLanguage("ja"))
	assert.Equal(t, "ko-KR-SunHiNeural", VoiceForLanguage("ko"))
	assert.Equal(t, "zh-HK-HiuGaaiNeural", VoiceForLanguage("yue"))
	assert.Equal(t, "zh-CN-XiaoyiNeural", VoiceForLanguage("fr"))
}

// TestResolveVoice checks the request > config > language-default
// precedence.
func TestResolveVoice(t *testing.T) {
	lang, voice := resolveVoice(&SynthesizeRequest{Text: "hello"}, "")
	assert.Equal(t, "en", lang)
	assert.Equal(t, "en-US-JennyNeural", voice)

	lang, voice = resolveVoice(&SynthesizeRequest{Text: "hello"}, "en-GB-SoniaNeural")
	assert.Equal(t, "en", lang)
	assert.Equal(t, "en-GB-SoniaNeural", voice)

	lang, voice = resolveVoice(&SynthesizeRequest{Text: "hello", Language: "ja", Voice: "ja-JP-KeitaNeural"}, "en-GB-SoniaNeural")
	assert.Equal(t, "ja", lang)
	assert.Equal(t, "ja-JP-KeitaNeural", voice)
}
