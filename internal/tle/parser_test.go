package tle

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	goesLine1 = "1 41866U 16071A   22019.50000000 -.00000262  00000-0  00000-0 0  9990"
	goesLine2 = "2 41866   0.0500 270.0000 0001000   0.0000   0.0000  1.00270000 19237"
	issLine1  = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2  = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

func TestParse(t *testing.T) {
	data := "GOES 16\n" + goesLine1 + "\n" + goesLine2 + "\n\nISS (ZARYA)\r\n" + issLine1 + "\r\n" + issLine2 + "\r\n"

	entries, err := Parse(strings.NewReader(data), testLogger)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	goes := entries[0]
	if goes.NORADID != 41866 || goes.Name != "GOES 16" {
		t.Errorf("first entry = %d %q, want 41866 GOES 16", goes.NORADID, goes.Name)
	}
	wantEpoch := time.Date(2022, 1, 19, 12, 0, 0, 0, time.UTC)
	if !goes.Epoch.Equal(wantEpoch) {
		t.Errorf("epoch = %v, want %v", goes.Epoch, wantEpoch)
	}
	if entries[1].Name != "ISS (ZARYA)" {
		t.Errorf("second entry name = %q", entries[1].Name)
	}
}

func TestParse_TwoLineForm(t *testing.T) {
	entries, err := Parse(strings.NewReader(goesLine1+"\n"+goesLine2+"\n"), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Name != "41866" {
		t.Errorf("bare TLE name = %q, want catalog number", entries[0].Name)
	}
}

func TestParse_SkipsMalformed(t *testing.T) {
	data := "BROKEN\nnot a tle line\n" + "GOES 16\n" + goesLine1 + "\n" + goesLine2 + "\n"
	entries, err := Parse(strings.NewReader(data), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].NORADID != 41866 {
		t.Errorf("expected only the GOES entry, got %+v", entries)
	}
}

func TestFind(t *testing.T) {
	entries := []TLEEntry{
		{NORADID: 41866, Name: "GOES 16"},
		{NORADID: 43226, Name: "GOES 17"},
	}

	tests := []struct {
		query string
		want  int
		ok    bool
	}{
		{"41866", 41866, true},
		{"goes-17", 43226, true},
		{" GOES_16 ", 41866, true},
		{"GOES 18", 0, false},
		{"99999", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			e, err := Find(entries, tt.query)
			if tt.ok != (err == nil) {
				t.Fatalf("Find(%q) error = %v, want ok=%v", tt.query, err, tt.ok)
			}
			if tt.ok && e.NORADID != tt.want {
				t.Errorf("Find(%q) = %d, want %d", tt.query, e.NORADID, tt.want)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goes.tle")
	if err := os.WriteFile(path, []byte("GOES 16\n"+goesLine1+"\n"+goesLine2+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	entries, err := ParseFile(path, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.tle"), testLogger); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseEpoch(t *testing.T) {
	got, err := parseEpoch("99001.00000000")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseEpoch = %v", got)
	}
	if _, err := parseEpoch("1x"); err == nil {
		t.Error("expected error for short epoch")
	}
}
