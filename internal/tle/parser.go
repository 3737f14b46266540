package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseFile reads a TLE file from disk.
func ParseFile(path string, logger *slog.Logger) ([]TLEEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening TLE file: %w", err)
	}
	defer f.Close()
	return Parse(f, logger)
}

// Parse reads NORAD TLE data from r, in 3-line (name + elements) or bare 2-line form.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]TLEEntry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []TLEEntry
	for i := 0; i+1 < len(lines); {
		var name string
		if !strings.HasPrefix(lines[i], "1 ") {
			name = strings.TrimSpace(lines[i])
			i++
		}
		if i+1 >= len(lines) {
			break
		}
		line1, line2 := lines[i], lines[i+1]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resynchronize on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}
		i += 2

		entry, err := parseEntry(name, line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", name, "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseEntry(name, line1, line2 string) (TLEEntry, error) {
	if len(line1) < 32 {
		return TLEEntry{}, fmt.Errorf("line1 too short (%d chars)", len(line1))
	}

	// NORAD ID: line1 cols 3-7.
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return TLEEntry{}, fmt.Errorf("invalid NORAD ID %q", noradStr)
	}

	// Epoch: line1 cols 19-32.
	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return TLEEntry{}, err
	}

	if name == "" {
		name = noradStr
	}
	return TLEEntry{
		NORADID: noradID,
		Name:    name,
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 -> 2000s, 57-99 -> 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}

// Find returns the entry matching query: a NORAD catalog number, or a
// case-insensitive satellite name ("GOES 16", "goes-16").
func Find(entries []TLEEntry, query string) (TLEEntry, error) {
	query = strings.TrimSpace(query)
	if id, err := strconv.Atoi(query); err == nil {
		for _, e := range entries {
			if e.NORADID == id {
				return e, nil
			}
		}
		return TLEEntry{}, fmt.Errorf("no TLE for NORAD %d", id)
	}

	want := normalizeName(query)
	for _, e := range entries {
		if normalizeName(e.Name) == want {
			return e, nil
		}
	}
	return TLEEntry{}, fmt.Errorf("no TLE named %q", query)
}

func normalizeName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", " ", "_", " ").Replace(s)
}
