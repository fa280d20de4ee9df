package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONWithFences(t *testing.T) {
	text := "Here you go:\n```json\n{\n  \"iab_category\": \"Sports\",\n  \"iab_code\": \"ROOT3\",\n  \"iab_subcategory\": null,\n  \"tone\": \"upbeat {not a brace}\",\n  \"keywords\": [\"golf\", \" swing \", \"\"],\n  \"buying_intent\": 7\n}\n```\nThanks"
	r, strategy, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, ParseJSON, strategy)
	assert.Equal(t, "Sports", r.IABCategory)
	assert.Equal(t, "ROOT3", r.IABCode)
	assert.Empty(t, r.IABSubcategory)
	assert.Equal(t, "upbeat {not a brace}", r.Tone)
	assert.Equal(t, []string{"golf", "swing"}, r.Keywords)
	assert.Equal(t, "7", r.BuyingIntent)
}

func TestParseJSONKeywordsAsString(t *testing.T) {
	r, _, err := Parse(`{"iab_code":"ROOT1","keywords":"a, b; c"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, r.Keywords)
}

func TestParseFallsBackToLines(t *testing.T) {
	text := `- IAB Category: [Sports (ROOT3)]
- IAB Subcategory: Golf (ROOT3-1)
- Secondary IAB Category: Travel
- Tone: Informative
- User Intent: informational
- Audience: golfers
- Keywords: golf, clubs, "swing"
- Buying Intent Score: medium
- Suggested Ad Campaign Types: [equipment, lessons]`
	r, strategy, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, ParseLines, strategy)
	assert.Equal(t, "Sports", r.IABCategory)
	assert.Equal(t, "ROOT3", r.IABCode)
	assert.Equal(t, "Golf", r.IABSubcategory)
	assert.Equal(t, "ROOT3-1", r.IABSubcode)
	assert.Equal(t, "Travel", r.IABSecondaryCategory)
	assert.Empty(t, r.IABSecondaryCode)
	assert.Equal(t, "informational", r.Intent)
	assert.Equal(t, []string{"golf", "clubs", "swing"}, r.Keywords)
	assert.Equal(t, "medium", r.BuyingIntent)
	assert.Equal(t, "equipment, lessons", r.AdSuggestions)
}

func TestParseJSONWithoutCategoriesFallsThrough(t *testing.T) {
	text := "{\"tone\": \"calm\"}\nIAB Category: News (ROOT9)"
	r, strategy, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, ParseLines, strategy)
	assert.Equal(t, "ROOT9", r.IABCode)
}

func TestParseUnparsable(t *testing.T) {
	_, _, err := Parse("I cannot classify this page.")
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestFirstObject(t *testing.T) {
	assert.Equal(t, `{"a":{"b":"}"}}`, firstObject(`x {"a":{"b":"}"}} y {"c":1}`))
	assert.Equal(t, `{"c":1}`, firstObject(`{ broken {"c":1}`))
	assert.Empty(t, firstObject("no braces"))
}
