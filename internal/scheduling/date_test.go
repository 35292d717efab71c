package scheduling

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-09-14")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Year != 2026 || d.Month != time.September || d.Day != 14 {
		t.Fatalf("parsed %+v", d)
	}
	if d.String() != "2026-09-14" {
		t.Fatalf("String() = %q", d.String())
	}

	for _, bad := range []string{"", "14-09-2026", "2026/09/14", "2026-13-01", "2026-09-32", "Sep 14 2026", "2026-09-14T00:00:00Z"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) accepted, want error", bad)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	d := Date{Year: 2026, Month: time.December, Day: 31}
	next := d.AddDays(1)
	if next != (Date{Year: 2027, Month: time.January, Day: 1}) {
		t.Fatalf("AddDays(1) = %+v", next)
	}
	if !d.Before(next) || !next.After(d) {
		t.Fatal("ordering broken")
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := Date{Year: 2026, Month: time.September, Day: 14}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"2026-09-14"` {
		t.Fatalf("marshaled %s", data)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != d {
		t.Fatalf("round trip %+v != %+v", back, d)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	if err != nil {
		t.Fatalf("ParseTimeOfDay: %v", err)
	}
	if tod.Hour != 9 || tod.Minute != 30 {
		t.Fatalf("parsed %+v", tod)
	}
	if tod.String() != "09:30" {
		t.Fatalf("String() = %q", tod.String())
	}

	for _, bad := range []string{"", "9:30", "24:00", "09:60", "09:30:00", "0930", "9.30"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("ParseTimeOfDay(%q) accepted, want error", bad)
		}
	}

	early, _ := ParseTimeOfDay("08:15")
	if !early.Before(tod) || tod.Before(early) {
		t.Fatal("TimeOfDay ordering broken")
	}
}
