package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

// ---------------------------------------------------------------------------
// Karaoke-style ASS Subtitle Time-coder
//
// Produces an ASS (Advanced SubStation Alpha) document from an ordered cue
// list: script header, one style block resolved from a named preset, and a
// dialogue event per cue. Cues carrying word-level timings render with
// per-word {\k} highlight durations; cues without them render as plain text
// for their interval.
// ---------------------------------------------------------------------------

const (
	// ASS colors are in &HAABBGGRR format (hex, note: BGR not RGB)
	assColorWhite     = "&H00FFFFFF"
	assColorBlack     = "&H00000000"
	assColorRed       = "&H000000FF" // pure red in BGR
	assColorYellow    = "&H0000FFFF"
	assColorSemiBlack = "&H80000000" // 50% transparent black

	defaultFontFamily = "Noto Sans"
)

// captionStyle is one resolved entry of the fixed preset table.
type captionStyle struct {
	FontSize    int
	Primary     string // text color
	Secondary   string // karaoke pre-highlight color
	Outline     string
	Back        string
	Bold        int // -1 = bold, 0 = regular (ASS convention)
	BorderStyle int // 1 = outline+shadow, 3 = opaque box
	OutlineW    int
	Shadow      int
}

// presetTable maps named caption presets to fixed style parameters.
var presetTable = map[models.CaptionPreset]captionStyle{
	models.CaptionPresetBoldStroke: {
		FontSize: 72, Primary: assColorWhite, Secondary: assColorWhite,
		Outline: assColorBlack, Back: assColorSemiBlack,
		Bold: -1, BorderStyle: 1, OutlineW: 5, Shadow: 0,
	},
	models.CaptionPresetRedHighlight: {
		FontSize: 72, Primary: assColorYellow, Secondary: assColorWhite,
		Outline: assColorRed, Back: assColorSemiBlack,
		Bold: -1, BorderStyle: 1, OutlineW: 4, Shadow: 0,
	},
	models.CaptionPresetCardStyle: {
		FontSize: 64, Primary: assColorWhite, Secondary: assColorWhite,
		Outline: assColorBlack, Back: assColorSemiBlack,
		Bold: 0, BorderStyle: 3, OutlineW: 2, Shadow: 1,
	},
	models.CaptionPresetPlain: {
		FontSize: 56, Primary: assColorWhite, Secondary: assColorWhite,
		Outline: assColorBlack, Back: assColorSemiBlack,
		Bold: 0, BorderStyle: 1, OutlineW: 2, Shadow: 0,
	},
}

// alignmentFor maps a vertical placement to the ASS numpad alignment code
// and vertical margin.
func alignmentFor(pos models.CaptionPosition) (alignment, marginV int) {
	switch pos {
	case models.CaptionPositionTop:
		return 8, 120
	case models.CaptionPositionCenter:
		return 5, 0
	default: // bottom
		return 2, 220
	}
}

// scriptFonts maps language-tag prefixes to script-specific font families.
// Matching on the primary subtag means regioned tags ("zh-TW", "ar-EG")
// resolve the same as bare ones.
var scriptFonts = map[string]string{
	"ja": "Noto Sans CJK JP",
	"ko": "Noto Sans CJK KR",
	"zh": "Noto Sans CJK SC",
	"ar": "Noto Naskh Arabic",
	"fa": "Noto Naskh Arabic",
	"ur": "Noto Naskh Arabic",
	"hi": "Noto Sans Devanagari",
	"mr": "Noto Sans Devanagari",
	"ne": "Noto Sans Devanagari",
	"bn": "Noto Sans Bengali",
	"ta": "Noto Sans Tamil",
	"th": "Noto Sans Thai",
	"he": "Noto Sans Hebrew",
	"ka": "Noto Sans Georgian",
}

// FontForLanguage selects a script-matching font family for the language
// tag, falling back to the default Latin-script family. Non-Latin scripts
// render correctly instead of producing missing-glyph boxes.
func FontForLanguage(lang string) string {
	primary := strings.ToLower(strings.SplitN(strings.TrimSpace(lang), "-", 2)[0])
	if font, ok := scriptFonts[primary]; ok {
		return font
	}
	return defaultFontFamily
}

// NeedsBundledFonts reports whether the language requires the bundled font
// directory to be passed to the renderer.
func NeedsBundledFonts(lang string) bool {
	return FontForLanguage(lang) != defaultFontFamily
}

// GenerateASS builds the full subtitle document for a cue list.
// playResX/playResY should match the output frame so margins and font sizes
// land where the preset intends.
func GenerateASS(cues []models.CaptionCue, preset models.CaptionPreset, pos models.CaptionPosition, lang string, playResX, playResY int) string {
	style, ok := presetTable[preset]
	if !ok {
		style = presetTable[models.CaptionPresetPlain]
	}

	font := FontForLanguage(lang)
	alignment, marginV := alignmentFor(pos)

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", playResX)
	fmt.Fprintf(&sb, "PlayResY: %d\n", playResY)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb,
		"Style: Default,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,%d,%d,%d,%d,40,40,%d,1\n",
		font, style.FontSize,
		style.Primary, style.Secondary, style.Outline, style.Back,
		style.Bold, style.BorderStyle, style.OutlineW, style.Shadow,
		alignment, marginV,
	)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, cue := range cues {
		start, end := cue.Start, cue.End
		if end < start {
			end = start
		}

		text := cue.Text
		if len(cue.Words) > 0 {
			text = karaokeText(cue)
		}

		fmt.Fprintf(&sb,
			"Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(start),
			formatASSTime(end),
			sanitizeCueText(text),
		)
	}

	return sb.String()
}

// karaokeText renders a cue's words with {\k} highlight durations.
//
// Each word's highlight duration is thisWordEnd - runningCursor, with the
// cursor starting at the cue's visual start and advancing to each word's end
// in turn. Highlighting therefore begins the moment the cue appears and
// finishes exactly when each word's audio ends, even if there is a silent
// gap before the first word. Negative deltas (clock skew between cue and
// word timings) clamp to zero.
func karaokeText(cue models.CaptionCue) string {
	var parts []string

	cursor := cue.Start
	for _, w := range cue.Words {
		word := strings.TrimSpace(w.Word)
		if word == "" {
			// Leave the cursor where it is so the blank entry's span is
			// counted in the next emitted word's duration.
			continue
		}

		dur := w.End - cursor
		if dur < 0 {
			dur = 0
		}
		cursor = w.End

		centi := int(math.Round(dur * 100))
		parts = append(parts, fmt.Sprintf("{\\k%d}%s", centi, word))
	}

	return strings.Join(parts, " ")
}

// sanitizeCueText strips newlines that would break the single-line
// Dialogue format.
func sanitizeCueText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "\\N")
}

// formatASSTime converts seconds to ASS timestamp format: H:MM:SS.CC (centiseconds)
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	centiseconds := int((seconds - float64(int(seconds))) * 100)

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centiseconds)
}
