package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseDate(t *testing.T) {
    got, ok := ParseDate("2024-02-29")
    if !ok {
        t.Fatalf("expected ok")
    }
    if !got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
        t.Fatalf("unexpected date %v", got)
    }
}

func TestParseDateFromDatetime(t *testing.T) {
    got, ok := ParseDate("2024-10-10T23:10:10Z")
    if !ok {
        t.Fatalf("expected ok")
    }
    if FormatDate(got) != "2024-10-10" {
        t.Fatalf("unexpected date %v", got)
    }
}

func TestDaysBetween(t *testing.T) {
    a := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
    b := time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)
    if got := DaysBetween(a, b); got != 4 {
        t.Fatalf("expected 4, got %d", got)
    }
    if got := DaysBetween(b, a); got != -4 {
        t.Fatalf("expected -4, got %d", got)
    }
}

func TestAddDays(t *testing.T) {
    a := time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC)
    if got := FormatDate(AddDays(a, 1)); got != "2025-01-01" {
        t.Fatalf("unexpected %s", got)
    }
}
