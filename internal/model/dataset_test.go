package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/usage-dashboard/internal/schema"
)

var (
	may1 = NewDate(2025, 5, 1)
	may8 = NewDate(2025, 5, 8)
)

func fixture() Dataset {
	return Dataset{
		Users: []UserWeekRecord{
			{WeekStart: may1, Email: "a@x.com", Name: "A", UserStatus: StatusEnabled, Messages: 4},
			{WeekStart: may8, Email: "a@x.com", Name: "A", UserStatus: StatusEnabled, Messages: 9},
			{WeekStart: may8, Email: "b@x.com", Name: "B", UserStatus: StatusPending, Messages: 1},
		},
		Models: []ModelUsageRecord{
			{WeekStart: may1, Email: "a@x.com", Name: "A", Model: "gpt-4o", Messages: 4},
			{WeekStart: may8, Email: "a@x.com", Name: "A", Model: "gpt-4o", Messages: 9},
		},
		Tools: []ToolUsageRecord{
			{WeekStart: may8, Email: "b@x.com", Name: "B", Tool: "canvas", Messages: 1},
		},
	}
}

func TestParseUserStatus(t *testing.T) {
	tests := []struct {
		in   string
		want UserStatus
	}{
		{"enabled", StatusEnabled},
		{"  Pending ", StatusPending},
		{"DISABLED", StatusDisabled},
		{"deleted", StatusDeleted},
		{"", StatusUnknown},
		{"suspended", StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseUserStatus(tt.in))
		})
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Date `json:"a"`
		B Date `json:"b"`
	}{A: may1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"2025-05-01","b":null}`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-05-08"`), &d))
	assert.True(t, d.Equal(may8))
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"May 8"`), &d))
}

func TestReportDatesNewestFirst(t *testing.T) {
	ds := fixture()
	ds.Users = append(ds.Users, UserWeekRecord{Email: "c@x.com"}) // null week_start

	got := ds.ReportDates()
	require.Len(t, got, 2)
	assert.Equal(t, "2025-05-08", got[0].String())
	assert.Equal(t, "2025-05-01", got[1].String())
	assert.True(t, ds.HasReport(may1))
	assert.False(t, ds.HasReport(NewDate(2025, 5, 15)))
}

func TestDeletePeriodRemovesAcrossTables(t *testing.T) {
	ds := fixture()
	out, res := ds.DeletePeriod(may8)

	assert.Equal(t, DeleteResult{Users: 2, Models: 1, Tools: 1}, res)
	assert.Equal(t, 4, res.Total())
	assert.Len(t, out.Users, 1)
	assert.Len(t, out.Models, 1)
	assert.Empty(t, out.Tools)
	assert.Len(t, ds.Users, 3, "receiver must not change")
}

func TestAppendDoesNotAlias(t *testing.T) {
	ds := fixture()
	merged := ds.Append(Dataset{Users: []UserWeekRecord{{Email: "z@x.com"}}})
	merged.Users[0].Email = "changed"

	assert.Len(t, merged.Users, 4)
	assert.Equal(t, "a@x.com", ds.Users[0].Email)
}

func TestViewFiltersAndSorts(t *testing.T) {
	ds := fixture()

	all := ds.View(Filter{})
	require.Len(t, all.Users, 3)
	assert.True(t, all.Users[0].WeekStart.Equal(may8))
	assert.Equal(t, "a@x.com", all.Users[0].Email, "ties keep stored order")
	assert.Equal(t, "b@x.com", all.Users[1].Email)

	pm := ds.View(Filter{Emails: []string{"B@x.com"}})
	require.Len(t, pm.Users, 1)
	assert.Equal(t, "b@x.com", pm.Users[0].Email)
	assert.Empty(t, pm.Models)

	ranged := ds.View(Filter{From: may1, To: may1})
	assert.Len(t, ranged.Users, 1)
	assert.Len(t, ranged.Models, 1)
	assert.Empty(t, ranged.Tools)

	none := ds.View(Filter{Emails: []string{}})
	assert.Empty(t, none.Users)
}

func TestFrameConversion(t *testing.T) {
	ds := fixture()
	ds.Users[0].LastDayActive = Date{}

	f := ds.Frame(schema.Users)
	assert.Equal(t, schema.ColumnNames(schema.Users), f.ColumnNames())
	require.Equal(t, 3, f.Len())
	assert.Equal(t, may1.Time(), f.Value(0, schema.ColWeekStart))
	assert.Nil(t, f.Value(0, schema.ColLastDayActive))
	assert.Equal(t, "enabled", f.Value(0, schema.ColUserStatus))
	assert.Equal(t, int64(4), f.Value(0, schema.ColMessages))

	tools := ds.Frame(schema.Tools)
	assert.Equal(t, "canvas", tools.Value(0, schema.ColTool))
}
