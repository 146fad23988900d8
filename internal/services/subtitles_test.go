package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

func TestFormatASSTime(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00:00.00"},
		{1.5, "0:00:01.50"},
		{65.25, "0:01:05.25"},
		{3661.25, "1:01:01.25"},
		{-5, "0:00:00.00"},
	}

	for _, tc := range cases {
		if got := formatASSTime(tc.seconds); got != tc.want {
			t.Errorf("formatASSTime(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestKaraokeDurationsSumToCueSpan(t *testing.T) {
	// Word timings tile the cue: the highlight durations must sum to the
	// cue's span so the highlight never outruns or lags the dialogue line.
	cue := models.CaptionCue{
		Start: 10.0,
		End:   12.0,
		Text:  "four words in here",
		Words: []models.WordTiming{
			{Word: "four", Start: 10.0, End: 10.4},
			{Word: "words", Start: 10.4, End: 11.0},
			{Word: "in", Start: 11.0, End: 11.2},
			{Word: "here", Start: 11.2, End: 12.0},
		},
	}

	text := karaokeText(cue)

	total := 0
	for _, part := range strings.Split(text, " ") {
		var k int
		var word string
		if _, err := fmt.Sscanf(part, "{\\k%d}%s", &k, &word); err != nil {
			t.Fatalf("unexpected karaoke segment %q: %v", part, err)
		}
		total += k
	}

	// 2.0 seconds = 200 centiseconds.
	if total != 200 {
		t.Errorf("karaoke durations sum to %d centiseconds, want 200", total)
	}
}

func TestKaraokeLeadingSilenceChargedToFirstWord(t *testing.T) {
	// The cursor starts at the cue's start, so silence before the first
	// word extends the first word's highlight window.
	cue := models.CaptionCue{
		Start: 0.0,
		End:   2.0,
		Words: []models.WordTiming{
			{Word: "late", Start: 1.0, End: 1.5},
			{Word: "words", Start: 1.5, End: 2.0},
		},
	}

	text := karaokeText(cue)
	if !strings.HasPrefix(text, "{\\k150}late") {
		t.Errorf("expected first word to absorb leading silence, got %q", text)
	}
}

func TestKaraokeBlankWordSpanFoldsIntoNextWord(t *testing.T) {
	// Transcription output sometimes contains whitespace-only entries. Their
	// span must be charged to the following word, or every later highlight
	// would start early by the skipped duration.
	cue := models.CaptionCue{
		Start: 0.0,
		End:   3.0,
		Words: []models.WordTiming{
			{Word: "first", Start: 0.0, End: 1.0},
			{Word: "  ", Start: 1.0, End: 2.0},
			{Word: "second", Start: 2.0, End: 3.0},
		},
	}

	text := karaokeText(cue)
	if text != "{\\k100}first {\\k200}second" {
		t.Errorf("expected blank span folded into second word, got %q", text)
	}
}

func TestKaraokeNegativeDeltaClamps(t *testing.T) {
	// Overlapping word timings must not produce negative durations.
	cue := models.CaptionCue{
		Start: 0.0,
		End:   1.0,
		Words: []models.WordTiming{
			{Word: "first", Start: 0.0, End: 0.8},
			{Word: "second", Start: 0.3, End: 0.5}, // ends before the cursor
		},
	}

	text := karaokeText(cue)
	if !strings.Contains(text, "{\\k0}second") {
		t.Errorf("expected clamped zero duration, got %q", text)
	}
}

func TestFontForLanguage(t *testing.T) {
	cases := []struct {
		lang string
		want string
	}{
		{"ja", "Noto Sans CJK JP"},
		{"ja-JP", "Noto Sans CJK JP"},
		{"ko", "Noto Sans CJK KR"},
		{"ar", "Noto Naskh Arabic"},
		{"en", "Noto Sans"},
		{"", "Noto Sans"},
		{"pt-BR", "Noto Sans"},
	}

	for _, tc := range cases {
		if got := FontForLanguage(tc.lang); got != tc.want {
			t.Errorf("FontForLanguage(%q) = %q, want %q", tc.lang, got, tc.want)
		}
	}

	if NeedsBundledFonts("en") {
		t.Error("default script should not need bundled fonts")
	}
	if !NeedsBundledFonts("ja") {
		t.Error("Japanese should need bundled fonts")
	}
}

func TestGenerateASSStructure(t *testing.T) {
	cues := []models.CaptionCue{
		{Start: 0, End: 2, Text: "plain cue"},
		{Start: 2, End: 4, Text: "line\nbreak"},
	}

	doc := GenerateASS(cues, models.CaptionPresetBoldStroke, models.CaptionPositionBottom, "en", 1080, 1920)

	for _, want := range []string{
		"[Script Info]",
		"PlayResX: 1080",
		"PlayResY: 1920",
		"[V4+ Styles]",
		"[Events]",
		"Dialogue: 0,0:00:00.00,0:00:02.00,Default,,0,0,0,,plain cue",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("missing %q in generated document", want)
		}
	}

	// Raw newlines inside a cue become ASS line breaks.
	if !strings.Contains(doc, "line\\Nbreak") {
		t.Error("newline in cue text was not sanitized")
	}

	// An unknown preset falls back to plain rather than failing.
	fallback := GenerateASS(cues, models.CaptionPreset("nope"), models.CaptionPositionBottom, "en", 1080, 1920)
	if !strings.Contains(fallback, "Dialogue:") {
		t.Error("unknown preset should still render dialogue lines")
	}
}

func TestGenerateASSEndBeforeStart(t *testing.T) {
	cues := []models.CaptionCue{{Start: 5, End: 3, Text: "inverted"}}

	doc := GenerateASS(cues, models.CaptionPresetPlain, models.CaptionPositionBottom, "en", 1080, 1920)
	if !strings.Contains(doc, "Dialogue: 0,0:00:05.00,0:00:05.00,") {
		t.Errorf("inverted cue should clamp end to start, got:\n%s", doc)
	}
}
