package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/model"
	"github.com/sakif/usage-dashboard/internal/schema"
)

const header = "email,name,period_start,is_active,user_status,messages,gpts_messaged,tools_messaged,projects_created,last_day_active,model_to_messages,tool_to_messages\n"

func mustRead(t *testing.T, body string) *frame.Frame {
	t.Helper()
	f, err := ReadCSV(strings.NewReader(header + body))
	require.NoError(t, err)
	return f
}

func TestFlattenTwoEntries(t *testing.T) {
	raw := mustRead(t, `alice@x.com,Alice,2025-05-01,true,enabled,15,0,0,0,2025-05-03,"{""gpt-4"": 10, ""gpt-3.5"": 5}",0`+"\n")

	ds, err := Ingest(raw)
	require.NoError(t, err)

	may1 := model.NewDate(2025, 5, 1)
	assert.Equal(t, []model.ModelUsageRecord{
		{WeekStart: may1, Email: "alice@x.com", Name: "Alice", Model: "gpt-4", Messages: 10},
		{WeekStart: may1, Email: "alice@x.com", Name: "Alice", Model: "gpt-3.5", Messages: 5},
	}, ds.Models)
	assert.Empty(t, ds.Tools, "scalar 0 means no tool usage")
}

func TestFlattenDropsScalarsAndMissingIDs(t *testing.T) {
	in := frame.Strings([]string{"week_start", "email", "name", "usage"})
	in.Append("2025-05-01", "a@x.com", "A", "0")
	in.Append("2025-05-01", "b@x.com", nil, "{'x': 1}")
	in.Append("2025-05-01", "c@x.com", "C", nil)
	in.Append("2025-05-01", "d@x.com", "D", "  ")

	out, err := Flatten(in, []string{"week_start", "email", "name"}, "usage", "tool", "messages")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, []string{"week_start", "email", "name", "tool", "messages"}, out.ColumnNames())
}

func TestFlattenMissingSourceColumn(t *testing.T) {
	in := frame.Strings([]string{"week_start", "email", "name"})
	in.Append("2025-05-01", "a@x.com", "A")

	out, err := Flatten(in, []string{"week_start", "email", "name"}, "usage", "tool", "messages")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestFlattenMalformedIsIntegrityError(t *testing.T) {
	in := frame.Strings([]string{"week_start", "email", "name", "usage"})
	in.Append("2025-05-01", "a@x.com", "A", "{'x': 1}")
	in.Append("2025-05-01", "b@x.com", "B", "{'x': ")

	_, err := Flatten(in, []string{"week_start", "email", "name"}, "usage", "tool", "messages")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrDataIntegrity))
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "usage")
}

func TestIngestMalformedFailsWholeUpload(t *testing.T) {
	raw := mustRead(t, `a@x.com,A,2025-05-01,true,enabled,1,0,0,0,,"{'gpt-4o': 1",0`+"\n")

	ds, err := Ingest(raw)
	assert.True(t, errors.Is(err, apperror.ErrDataIntegrity))
	assert.Zero(t, ds.Len())
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12", 12},
		{"12.9", 12},
		{" 3 ", 3},
		{"abc", 0},
		{"", 0},
		{"-5", 0},
		{"NaN", 0},
		{"inf", 0},
		{"1e3", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCount(tt.in))
		})
	}
}

func TestParseDate(t *testing.T) {
	want := model.NewDate(2025, 5, 1)
	for _, in := range []string{"2025-05-01", "2025-05-01 13:45:00", "2025-05-01T13:45:00Z", "2025/05/01", "05/01/2025", "5/1/2025"} {
		assert.True(t, ParseDate(in).Equal(want), in)
	}
	assert.True(t, ParseDate("soon").IsZero())
	assert.True(t, ParseDate("").IsZero())
}

func TestParseBool(t *testing.T) {
	for _, in := range []string{"True", "t", "YES", "y", "1"} {
		assert.True(t, ParseBool(in), in)
	}
	for _, in := range []string{"False", "0", "", "nope"} {
		assert.False(t, ParseBool(in), in)
	}
}

func TestIngestCoercesAndDropsMissingEmail(t *testing.T) {
	raw := mustRead(t, strings.Join([]string{
		`a@x.com,A,2025-05-01,True,Enabled,abc,-5,2.7,,bad-date,"{'gpt-4o': 'x'}","{'canvas': 3}"`,
		`,Ghost,2025-05-01,True,enabled,9,0,0,0,,0,0`,
		`b@x.com,,not-a-date,false,weird,4,0,0,0,,"{'o3': 2}",0`,
	}, "\n") + "\n")

	ds, err := Ingest(raw)
	require.NoError(t, err)
	require.Len(t, ds.Users, 2)

	a := ds.Users[0]
	assert.Equal(t, "a@x.com", a.Email)
	assert.True(t, a.IsActive)
	assert.Equal(t, model.StatusEnabled, a.UserStatus)
	assert.Zero(t, a.Messages)
	assert.Zero(t, a.GPTsMessaged)
	assert.Equal(t, int64(2), a.ToolsMessaged)
	assert.Zero(t, a.ProjectsCreated)
	assert.True(t, a.LastDayActive.IsZero())

	b := ds.Users[1]
	assert.True(t, b.WeekStart.IsZero())
	assert.Equal(t, model.StatusUnknown, b.UserStatus)

	// b has a null week_start and no name, so the flattener drops its usage.
	require.Len(t, ds.Models, 1)
	assert.Equal(t, "gpt-4o", ds.Models[0].Model)
	assert.Zero(t, ds.Models[0].Messages)
	require.Len(t, ds.Tools, 1)
	assert.Equal(t, int64(3), ds.Tools[0].Messages)
}

func TestIngestReferentialConsistency(t *testing.T) {
	raw := mustRead(t, strings.Join([]string{
		`a@x.com,A,2025-05-01,true,enabled,3,0,0,0,,"{'gpt-4o': 2, 'o3': 1}","{'canvas': 1}"`,
		`b@x.com,B,2025-05-01,true,enabled,1,0,0,0,,"{'gpt-4o': 1}",0`,
		`c@x.com,C,2025-05-01,false,disabled,0,0,0,0,,0,0`,
	}, "\n") + "\n")

	ds, err := Ingest(raw)
	require.NoError(t, err)

	type key struct{ week, email string }
	users := map[key]bool{}
	for _, u := range ds.Users {
		users[key{u.WeekStart.String(), u.Email}] = true
	}
	for _, m := range ds.Models {
		assert.True(t, users[key{m.WeekStart.String(), m.Email}], "model row %+v has no user", m)
	}
	for _, tr := range ds.Tools {
		assert.True(t, users[key{tr.WeekStart.String(), tr.Email}], "tool row %+v has no user", tr)
	}
	assert.Len(t, ds.Models, 3)
	assert.Len(t, ds.Tools, 1)
}

func TestIngestMissingOptionalColumns(t *testing.T) {
	raw, err := ReadCSV(strings.NewReader("email,period_start\na@x.com,2025-05-01\n"))
	require.NoError(t, err)

	ds, err := Ingest(raw)
	require.NoError(t, err)
	require.Len(t, ds.Users, 1)
	assert.Equal(t, model.StatusUnknown, ds.Users[0].UserStatus)
	assert.False(t, ds.Users[0].IsActive)
	assert.Empty(t, ds.Models)

	f := ds.Frame(schema.Users)
	assert.Nil(t, f.Value(0, schema.ColLastDayActive))
}
