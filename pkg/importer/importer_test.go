package importer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/planner/pkg/store"
)

func TestParseTaskwarriorArray(t *testing.T) {
	input := `[
		{
			"uuid": "f45a05b3-c12e-42e5-9c9c-333333333333",
			"description": "Buy milk",
			"status": "pending",
			"due": "20230101T120000Z",
			"project": "Groceries",
			"priority": "H",
			"tags": ["buy", "fun"],
			"annotations": [
				{"entry": "20230101T120500Z", "description": "Don't forget almond milk"},
				{"entry": "20230101T120600Z", "description": "and oats"}
			]
		},
		{"uuid": "2", "description": "Gone", "status": "deleted"},
		{"uuid": "3", "description": "Filed taxes", "status": "completed", "due": "20230105T000000Z", "priority": "L"}
	]`

	tasks, err := ParseTaskwarrior(strings.NewReader(input), time.UTC)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, store.NewTask{
		Name:     "Buy milk",
		DueDate:  "2023-01-01",
		Time:     "12:00",
		Category: "fun",
		Type:     "Groceries",
		Priority: 3,
		Notes:    "Don't forget almond milk\nand oats",
	}, tasks[0])

	assert.Equal(t, "Filed taxes", tasks[1].Name)
	assert.True(t, tasks[1].Completed)
	assert.Equal(t, "2023-01-05", tasks[1].DueDate)
	assert.Empty(t, tasks[1].Time, "midnight means date only")
	assert.Equal(t, 1, tasks[1].Priority)
}

func TestParseTaskwarriorStream(t *testing.T) {
	input := `{"uuid":"1","description":"a","status":"pending","scheduled":"20240310T150000Z"}
{"uuid":"2","description":"b","status":"waiting"}
`
	loc := time.FixedZone("UTC+2", 2*3600)
	tasks, err := ParseTaskwarrior(strings.NewReader(input), loc)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "2024-03-10", tasks[0].DueDate)
	assert.Equal(t, "17:00", tasks[0].Time)
	assert.Empty(t, tasks[1].DueDate)
	assert.Zero(t, tasks[1].Priority)
}

func TestParseTaskwarriorErrors(t *testing.T) {
	_, err := ParseTaskwarrior(strings.NewReader(`[{"due": "yesterday"}]`), nil)
	assert.Error(t, err)

	_, err = ParseTaskwarrior(strings.NewReader(`{"description": `), nil)
	assert.Error(t, err)

	tasks, err := ParseTaskwarrior(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestParseOrg(t *testing.T) {
	input := `#+TITLE: Semester
* TODO [#A] Finish lab report :courses:chem:
  DEADLINE: <2024-03-12 Tue 9:30>
  :PROPERTIES:
  :ID: 1234-abcd
  :END:
  Some body text.
* DONE Submit application :career:
  DEADLINE: <2024-03-01 Fri>
** TODO [#C] Read chapter 4
* Meeting notes
  DEADLINE: <2024-03-20 Wed>
* TODO
`
	tasks, err := ParseOrg(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, store.NewTask{
		Name:     "Finish lab report",
		DueDate:  "2024-03-12",
		Time:     "09:30",
		Category: "courses",
		Priority: 3,
	}, tasks[0])

	assert.Equal(t, "Submit application", tasks[1].Name)
	assert.True(t, tasks[1].Completed)
	assert.Equal(t, "2024-03-01", tasks[1].DueDate)
	assert.Empty(t, tasks[1].Time)
	assert.Equal(t, "career", tasks[1].Category)

	assert.Equal(t, "Read chapter 4", tasks[2].Name)
	assert.Equal(t, 1, tasks[2].Priority)
	assert.Empty(t, tasks[2].DueDate, "the deadline under a plain heading is not attached")
}
