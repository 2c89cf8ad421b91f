package preparer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmtuner/llm-tuner-platform/backend/models"
)

func TestPreparePlainText(t *testing.T) {
	content := "line one\nline two\nline three\nline four\nline five\n"
	records := Prepare([]FileContent{{Name: "notes.txt", Data: []byte(content)}})

	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, "Continue the following text:", r.Instruction)
		assert.Equal(t, strings.Split(strings.TrimSpace(content), "\n")[i], r.Input)
		assert.Empty(t, r.Output)
	}
}

func TestPrepareLongLineSplit(t *testing.T) {
	long := strings.Repeat("a", 150)
	records := Prepare([]FileContent{{Name: "long.txt", Data: []byte(long)}})

	require.Len(t, records, 1)
	assert.Equal(t, strings.Repeat("a", 100), records[0].Input)
	assert.Equal(t, strings.Repeat("a", 50), records[0].Output)
}

func TestPrepareSplitCountsRunes(t *testing.T) {
	long := strings.Repeat("ü", 120)
	records := Prepare([]FileContent{{Name: "unicode.txt", Data: []byte(long)}})

	require.Len(t, records, 1)
	assert.Equal(t, strings.Repeat("ü", 100), records[0].Input)
	assert.Equal(t, strings.Repeat("ü", 20), records[0].Output)
}

func TestPrepareJSONFieldPriority(t *testing.T) {
	data := `[{"text":"a"},{"content":"b"},{"unrelated":"c"}]`
	records := Prepare([]FileContent{{Name: "data.json", Data: []byte(data)}})

	require.Len(t, records, 3)
	assert.Equal(t, "a", records[0].Input)
	assert.Equal(t, "b", records[1].Input)
	assert.Equal(t, `{"unrelated":"c"}`, records[2].Input)
}

func TestPrepareJSONPrefersTextOverContent(t *testing.T) {
	data := `[{"content":"other","text":"primary","description":"last"}]`
	records := Prepare([]FileContent{{Name: "data.json", Data: []byte(data)}})

	require.Len(t, records, 1)
	assert.Equal(t, "primary", records[0].Input)
}

func TestPrepareInvalidJSONFallsBackToLines(t *testing.T) {
	data := "not json at all\nsecond line"
	records := Prepare([]FileContent{{Name: "broken.json", Data: []byte(data)}})

	require.Len(t, records, 2)
	assert.Equal(t, "not json at all", records[0].Input)
	assert.Equal(t, "second line", records[1].Input)
}

func TestPrepareJSONScalarElements(t *testing.T) {
	data := `["plain string", 42, 2.5, {"unrelated":true}]`
	records := Prepare([]FileContent{{Name: "data.json", Data: []byte(data)}})

	require.Len(t, records, 4)
	assert.Equal(t, "plain string", records[0].Input)
	assert.Equal(t, "42", records[1].Input)
	assert.Equal(t, "2.5", records[2].Input)
	assert.Equal(t, `{"unrelated":true}`, records[3].Input)
}

func TestPrepareNonListJSON(t *testing.T) {
	data := `{"text":"solo"}`
	records := Prepare([]FileContent{{Name: "single.json", Data: []byte(data)}})

	require.Len(t, records, 1)
	assert.Equal(t, `{"text":"solo"}`, records[0].Input)
}

func TestPrepareJSONLKeepsBadLinesVerbatim(t *testing.T) {
	data := `{"text":"good"}` + "\nthis is not json\n" + `{"content":"also good"}`
	records := Prepare([]FileContent{{Name: "data.jsonl", Data: []byte(data)}})

	require.Len(t, records, 3)
	assert.Equal(t, "good", records[0].Input)
	assert.Equal(t, "this is not json", records[1].Input)
	assert.Equal(t, "also good", records[2].Input)
}

func TestPrepareCSVSkipsHeader(t *testing.T) {
	data := "id,sentence\n1,hello world\n\n2,goodbye world\n"
	records := Prepare([]FileContent{{Name: "rows.csv", Data: []byte(data)}})

	require.Len(t, records, 2)
	assert.Equal(t, "1,hello world", records[0].Input)
	assert.Equal(t, "2,goodbye world", records[1].Input)
}

func TestPrepareDropsBlankSources(t *testing.T) {
	data := "first\n\n   \n\t\nsecond\n"
	records := Prepare([]FileContent{{Name: "gaps.txt", Data: []byte(data)}})

	require.Len(t, records, 2)
}

func TestPrepareDeterministic(t *testing.T) {
	files := []FileContent{
		{Name: "a.txt", Data: []byte("alpha\nbeta\n")},
		{Name: "b.json", Data: []byte(`[{"text":"gamma"}]`)},
		{Name: "c.csv", Data: []byte("h\ndelta\n")},
	}

	first := Encode(Prepare(files))
	second := Encode(Prepare(files))
	assert.Equal(t, first, second)
}

func TestEncodeOneRecordPerLine(t *testing.T) {
	records := Prepare([]FileContent{{Name: "x.txt", Data: []byte("one\ntwo\n")}})
	encoded := Encode(records)

	lines := strings.Split(string(encoded), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var rec models.TrainingRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, "Continue the following text:", rec.Instruction)
	}
}
