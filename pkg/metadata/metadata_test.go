package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

const songDetail = `{
	"name": "晴天",
	"no": 3,
	"cd": "01",
	"ar": [{"name": "A", "alias": ["a1"]}, {"name": "B"}],
	"al": {"name": "叶惠美", "artists": [], "tns": ["Ye Hui Mei"], "picUrl": "http://p1/x.jpg"},
	"originSongSimpleData": null,
	"alia": 42
}`

func TestLookup(t *testing.T) {
	detail := gjson.Parse(songDetail)

	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{"top level string", "name", `"晴天"`, true},
		{"nested", "al.name", `"叶惠美"`, true},
		{"list name projection", "ar.name", `["A","B"]`, true},
		{"list other key", "ar.alias", "", false},
		{"missing leaf", "al.company", "", false},
		{"missing parent", "mv.id", "", false},
		{"null leaf", "originSongSimpleData", "", false},
		{"through null", "originSongSimpleData.name", "", false},
		{"through scalar", "alia.name", "", false},
		{"empty list is present", "al.artists", `[]`, true},
		{"through empty list", "al.artists.name", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(detail, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.JSONEq(t, tt.want, got.Raw)
			}
		})
	}
}

func TestLookupMalformedInput(t *testing.T) {
	for _, raw := range []string{``, `null`, `[]`, `"x"`, `{"name":`} {
		_, ok := Lookup(gjson.Parse(raw), "al.name")
		assert.False(t, ok, raw)
	}
}

func TestTruthy(t *testing.T) {
	falsy := []string{`null`, `false`, `0`, `""`, `[]`, `{}`}
	for _, raw := range falsy {
		assert.False(t, Truthy(gjson.Parse(raw)), raw)
	}
	truthy := []string{`true`, `1`, `-1`, `"0"`, `[0]`, `{"a":null}`}
	for _, raw := range truthy {
		assert.True(t, Truthy(gjson.Parse(raw)), raw)
	}
	assert.False(t, Truthy(gjson.Result{}))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "翻唱", CoverTypeLabel(gjson.Parse(`2`)))
	assert.Equal(t, "原创", CoverTypeLabel(gjson.Parse(`1`)))
	assert.Equal(t, "未知", CoverTypeLabel(gjson.Parse(`7`)))
	assert.Equal(t, "未知", CoverTypeLabel(gjson.Parse(`"2"`)))

	label, ok := FeeLabel(gjson.Parse(`8`))
	assert.True(t, ok)
	assert.Equal(t, "试听", label)
	_, ok = FeeLabel(gjson.Parse(`3`))
	assert.False(t, ok)
	_, ok = FeeLabel(gjson.Result{})
	assert.False(t, ok)
}

func TestParseOriginSong(t *testing.T) {
	song := ParseOriginSong(gjson.Parse(`{"name":"X","artists":[{"name":"Y"},{"id":3},{"name":"Z"}]}`))
	assert.Equal(t, OriginSong{Name: "X", Artists: []string{"Y", "Z"}}, song)
	assert.Equal(t, OriginSong{}, ParseOriginSong(gjson.Parse(`[1]`)))
}

func TestCoverURL(t *testing.T) {
	url, ok := CoverURL(gjson.Parse(songDetail))
	assert.True(t, ok)
	assert.Equal(t, "http://p1/x.jpg", url)
	_, ok = CoverURL(gjson.Parse(`{"al":{"picUrl":""}}`))
	assert.False(t, ok)
}
