package lk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroups(t *testing.T) {
	const fixture = `
<div id="groups_container">
  <div class="groups-btn">БИН2301</div>
  <div class="groups-btn">БИН2302</div>
  <div class="groups-btn">  </div>
</div>`

	groups, err := ParseGroups(fixture)
	require.NoError(t, err)
	assert.Equal(t, []string{"БИН2301", "БИН2302"}, groups)
}

func TestParseGroupsEmpty(t *testing.T) {
	groups, err := ParseGroups(`<div id="groups_container"></div>`)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestOptionXPath(t *testing.T) {
	assert.Equal(t,
		`//div[@id='levels']//div[contains(@class,'switch-btn') or contains(@class,'selector-btn')][normalize-space()="Бакалавриат"]`,
		optionXPath("levels", "Бакалавриат"))

	assert.Equal(t,
		`//div[@id='groups_container']/div[contains(@class,'groups-btn') and normalize-space()="БИН2301"]`,
		optionXPath("groups", "БИН2301"))

	// non-breaking spaces in portal labels are normalized before matching
	assert.Equal(t,
		`//div[@id='faculties']//div[contains(@class,'switch-btn') or contains(@class,'selector-btn')][normalize-space()="Кафедра СИТиС"]`,
		optionXPath("faculties", "Кафедра СИТиС"))
}
