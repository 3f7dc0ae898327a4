package converter

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

func TestConvert_CSVArray(t *testing.T) {
	result, err := Convert(`[{"id":1,"name":"A"},{"id":2,"name":"B"}]`, models.Options{
		Format:       models.FormatCSV,
		CSVDelimiter: ",",
	})
	require.NoError(t, err)

	assert.Equal(t, "id,name\n1,A\n2,B\n", result.Output)
	assert.Equal(t, models.FormatCSV, result.Format)
	assert.Equal(t, 4, result.LineCount)
	assert.Equal(t, models.Statistics{RowsProcessed: 2, HeadersDetected: 2}, result.Statistics)
}

func TestConvert_EnvelopeObject(t *testing.T) {
	result, err := Convert(`{"users":[{"id":1}],"meta":{"count":1}}`, models.Options{
		Format:        models.FormatCSV,
		FlattenNested: models.BoolPtr(true),
	})
	require.NoError(t, err)

	assert.Equal(t, "id\n1\n", result.Output)
	assert.Equal(t, 1, result.Statistics.RowsProcessed)
}

func TestConvert_SQLFlattenedObject(t *testing.T) {
	result, err := Convert(`{"a":{"b":1,"c":2}}`, models.Options{Format: models.FormatSQL})
	require.NoError(t, err)

	assert.Contains(t, result.Output, "CREATE TABLE \"data_table\" (\n  \"a_b\" INTEGER,\n  \"a_c\" INTEGER\n);")
	assert.Contains(t, result.Output, `INSERT INTO "data_table" ("a_b", "a_c") VALUES (1, 2);`)
	assert.Equal(t, models.Statistics{RowsProcessed: 1, TablesCreated: 1}, result.Statistics)
	assert.Equal(t, strings.Count(result.Output, "\n")+1, result.LineCount)
}

func TestConvert_EmptyArray(t *testing.T) {
	for _, format := range []models.Format{models.FormatSQL, models.FormatCSV} {
		_, err := Convert(`[]`, models.Options{Format: format})
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, errors.ErrNoData), "format %s", format)
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		opts   models.Options
		target error
	}{
		{"invalid json", `{"a":`, models.Options{}, errors.ErrInvalidJSON},
		{"empty input", "   ", models.Options{}, errors.ErrEmptyInput},
		{"scalars only", `[1,2,3]`, models.Options{}, errors.ErrNoColumns},
		{"bare string", `"hello"`, models.Options{Format: models.FormatCSV}, errors.ErrNoColumns},
		{"unknown format", `[{"a":1}]`, models.Options{Format: "xml"}, errors.ErrInvalidOptions},
		{"multi-character delimiter", `[{"a":1}]`, models.Options{Format: models.FormatCSV, CSVDelimiter: "::"}, errors.ErrInvalidOptions},
		{"bad select", `[{"a":1}]`, models.Options{Select: ".["}, errors.ErrInvalidOptions},
		{"empty select", `[{"a":1}]`, models.Options{Select: ".[] | select(.a > 5)"}, errors.ErrNoData},
		{"select runtime error", `[{"a":1}]`, models.Options{Select: ".[0].a[]"}, errors.ErrInvalidOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Convert(tt.input, tt.opts)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, stderrors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestConvert_Defaults(t *testing.T) {
	result, err := Convert(`[{"ok":true,"tags":[1]}]`, models.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.FormatSQL, result.Format)
	assert.True(t, strings.HasPrefix(result.Output, "-- Table: data_table\n"))
	assert.Contains(t, result.Output, `"tags" JSONB`)
	assert.Contains(t, result.Output, "VALUES (TRUE, '[1]');")
}

func TestConvert_NoFlatten(t *testing.T) {
	result, err := Convert(`{"a":{"b":1},"items":[1]}`, models.Options{
		Format:        models.FormatCSV,
		FlattenNested: models.BoolPtr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, "a,items\n\"{\"\"b\"\":1}\",[1]\n", result.Output)
	assert.Equal(t, 1, result.Statistics.RowsProcessed)
}

func TestConvert_UnknownDialectFallsBack(t *testing.T) {
	result, err := Convert(`[{"flag":false}]`, models.Options{SQLDialect: "oracle"})
	require.NoError(t, err)
	assert.Contains(t, result.Output, `INSERT INTO "data_table" ("flag") VALUES (0);`)
}

func TestConvert_Select(t *testing.T) {
	input := `{"page":{"n":1},"data":{"rows":[{"id":1,"keep":true},{"id":2,"keep":false}]}}`

	result, err := Convert(input, models.Options{
		Format: models.FormatCSV,
		Select: ".data.rows[] | select(.keep) | {id}",
	})
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", result.Output)
}

func TestConvert_IdentitySelectMatchesNoSelect(t *testing.T) {
	inputs := []string{
		`{"users":[{"name":"A","id":1}]}`,
		`[{"z":1,"m":{"y":true,"b":null}},{"a":"x","z":2}]`,
	}

	for _, input := range inputs {
		for _, format := range []models.Format{models.FormatCSV, models.FormatSQL} {
			t.Run(string(format)+"/"+input, func(t *testing.T) {
				plain, err := Convert(input, models.Options{Format: format})
				require.NoError(t, err)
				selected, err := Convert(input, models.Options{Format: format, Select: "."})
				require.NoError(t, err)
				assert.Equal(t, plain.Output, selected.Output)
			})
		}
	}

	result, err := Convert(`{"users":[{"name":"A","id":1}]}`, models.Options{Format: models.FormatCSV, Select: "."})
	require.NoError(t, err)
	assert.Equal(t, "name,id\nA,1\n", result.Output)
}

func TestConvert_SelectPathKeepsColumnOrder(t *testing.T) {
	input := `{"meta":{"n":2},"data":{"rows":[{"zeta":1,"alpha":"a"},{"zeta":2,"alpha":"b","mid":true}]}}`

	result, err := Convert(input, models.Options{Format: models.FormatCSV, Select: ".data.rows[] | select(.zeta > 0)"})
	require.NoError(t, err)
	assert.Equal(t, "zeta,alpha,mid\n1,a,\n2,b,true\n", result.Output)
}

func TestConvert_ResultJSONShape(t *testing.T) {
	result, err := Convert(`[{"a":1}]`, models.Options{Format: models.FormatCSV})
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"a\n1\n","format":"csv","lineCount":3,"statistics":{"rowsProcessed":1,"headersDetected":1}}`, string(data))
}

func TestConvert_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := fmt.Sprintf(`[{"id":%d,"nested":{"v":"x%d"}}]`, i, i)
			result, err := c.Convert(context.Background(), input, models.Options{Format: models.FormatCSV, Select: "."})
			if err != nil {
				errs <- err
				return
			}
			want := fmt.Sprintf("id,nested_v\n%d,x%d\n", i, i)
			if result.Output != want {
				errs <- fmt.Errorf("got %q, want %q", result.Output, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestLineCount(t *testing.T) {
	assert.Equal(t, 1, LineCount(""))
	assert.Equal(t, 1, LineCount("abc"))
	assert.Equal(t, 2, LineCount("abc\n"))
	assert.Equal(t, 3, LineCount("a\nb\n"))
}

func TestCountRecords(t *testing.T) {
	assert.Equal(t, 3, CountRecords(`[1,2,3]`))
	assert.Equal(t, 2, CountRecords(`{"a":[1],"b":[2],"c":"x"}`))
	assert.Equal(t, 1, CountRecords(`{"a":1}`))
	assert.Equal(t, 0, CountRecords(`{"a":`))
	assert.Equal(t, 0, CountRecords(``))
}
