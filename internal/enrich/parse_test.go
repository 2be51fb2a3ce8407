package enrich

import (
	"testing"
	"time"

	"github.com/lukman83/adscout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))

func TestParseResponseAnswerLines(t *testing.T) {
	text := `Memory: the ad says 32 GB.
Screen: 14 Zoll.

RAM_more = true
screen_small = true
screen_highres = unknown
full_info_obtained = false`
	p := ParseResponse(text)
	require.NotNil(t, p.RAMMore)
	assert.Equal(t, models.True, *p.RAMMore)
	assert.Equal(t, models.True, *p.ScreenSmall)
	assert.Equal(t, models.Unknown, *p.ScreenHighRes)
	require.NotNil(t, p.FullInfo)
	assert.False(t, *p.FullInfo)
	assert.True(t, p.Consistent())

	v := p.Verdict(fixedNow)
	assert.True(t, v.Processed)
	assert.False(t, v.FullInfo)
	assert.Equal(t, "2026-03-01T11:30:00Z", v.ProcessedTime)
}

func TestParseResponseMarkdownAndCase(t *testing.T) {
	text := "- **ram_more** = FALSE\n* `Screen_Small` = False\n  SCREEN_HIGHRES = True"
	p := ParseResponse(text)
	assert.Equal(t, models.False, *p.RAMMore)
	assert.Equal(t, models.False, *p.ScreenSmall)
	assert.Equal(t, models.True, *p.ScreenHighRes)
	assert.Nil(t, p.FullInfo)

	v := p.Verdict(fixedNow)
	assert.True(t, v.FullInfo, "derived when all three are determined")
}

func TestParseResponseFirstMatchWins(t *testing.T) {
	p := ParseResponse("RAM_more = unknown\nRAM_more = true")
	assert.Equal(t, models.Unknown, *p.RAMMore)
}

func TestParseResponseFirstLineDecidesEvenWithoutValue(t *testing.T) {
	p := ParseResponse("RAM_more = ?\nRAM_more = true\nscreen_small = true\nscreen_highres = true\nfull_info_obtained = n/a\nfull_info_obtained = true")
	assert.Nil(t, p.RAMMore, "a later line does not fill a key already seen")
	assert.Nil(t, p.FullInfo)

	v := p.Verdict(fixedNow)
	assert.Equal(t, models.Unknown, v.RAMMore)
	assert.False(t, v.FullInfo)
}

func TestParseResponseNumberedList(t *testing.T) {
	p := ParseResponse("1. RAM_more = true\n2) **screen_small** = false\n3. screen_highres = true\n10. full_info_obtained = true")
	require.False(t, p.Empty())
	assert.Equal(t, models.True, *p.RAMMore)
	assert.Equal(t, models.False, *p.ScreenSmall)
	assert.Equal(t, models.True, *p.ScreenHighRes)
	require.NotNil(t, p.FullInfo)
	assert.True(t, *p.FullInfo)
}

func TestParseResponseTrueBeforeFalseBeforeUnknown(t *testing.T) {
	p := ParseResponse("RAM_more = true or false, unknown\nscreen_small = false (unknown)\nscreen_highres = maybe")
	assert.Equal(t, models.True, *p.RAMMore)
	assert.Equal(t, models.False, *p.ScreenSmall)
	assert.Nil(t, p.ScreenHighRes, "no recognisable value leaves the key unset")
}

func TestParseResponseFullInfoOnlyBoolean(t *testing.T) {
	p := ParseResponse("full_info_obtained = unknown")
	assert.Nil(t, p.FullInfo)
	assert.True(t, p.Empty())
}

func TestVerdictUnparseable(t *testing.T) {
	p := ParseResponse("I cannot help with that.")
	require.True(t, p.Empty())

	v := p.Verdict(fixedNow)
	assert.True(t, v.Processed)
	assert.False(t, v.FullInfo)
	assert.Equal(t, models.Unknown, v.RAMMore)
	assert.Equal(t, models.Unknown, v.ScreenSmall)
	assert.Equal(t, models.Unknown, v.ScreenHighRes)
}

func TestVerdictFullInfoDerivedFromAttributes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"all determined", "RAM_more = true\nscreen_small = false\nscreen_highres = false", true},
		{"one unknown", "RAM_more = true\nscreen_small = unknown\nscreen_highres = false", false},
		{"one missing", "RAM_more = true\nscreen_highres = false", false},
		{"explicit true overruled", "RAM_more = unknown\nscreen_small = true\nscreen_highres = true\nfull_info_obtained = true", false},
		{"explicit false overruled", "RAM_more = false\nscreen_small = true\nscreen_highres = true\nfull_info_obtained = false", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseResponse(tt.text)
			v := p.Verdict(fixedNow)
			assert.Equal(t, tt.want, v.FullInfo)
			assert.Equal(t, v.FullInfo, v.RAMMore.Known() && v.ScreenSmall.Known() && v.ScreenHighRes.Known())
		})
	}
}

func TestParsedConsistent(t *testing.T) {
	assert.False(t, ParseResponse("RAM_more = unknown\nfull_info_obtained = true").Consistent())
	assert.True(t, ParseResponse("RAM_more = unknown").Consistent())
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("  ThinkPad X1  ", "32 GB RAM\n14 Zoll")
	assert.Contains(t, got, "Title: ThinkPad X1\n")
	assert.Contains(t, got, "Description: 32 GB RAM\n14 Zoll")
	for _, key := range []string{"RAM_more =", "screen_small =", "screen_highres =", "full_info_obtained ="} {
		assert.Contains(t, got, key)
	}
}
