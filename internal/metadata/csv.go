package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Header aliases, compared case-insensitively.
var (
	titleColumns    = []string{"title", "name", "track", "track title"}
	genreColumns    = []string{"genre", "genres"}
	tagColumns      = []string{"tag", "tags"}
	proOnlyColumns  = []string{"pro_only", "pro only", "is_pro_only", "pro"}
	rotationColumns = []string{"rotation_week", "rotation week", "week"}
)

var ErrMissingColumn = errors.New("missing required column")

type columns struct {
	title, genres, tags, proOnly, rotation int
}

// LoadCSVFile reads candidates from a CSV export on disk.
func LoadCSVFile(path string) ([]Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata sheet: %w", err)
	}
	defer f.Close()

	return LoadCSV(f)
}

// LoadCSV reads candidates from a CSV stream whose first row is a header.
// Rows with an empty title are dropped.
func LoadCSV(r io.Reader) ([]Candidate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("metadata sheet is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		title := strings.TrimSpace(field(rec, cols.title))
		if title == "" {
			continue
		}

		c := Candidate{
			Title:   title,
			Genres:  SplitList(field(rec, cols.genres)),
			Tags:    SplitList(field(rec, cols.tags)),
			ProOnly: parseBool(field(rec, cols.proOnly)),
		}
		if raw := strings.TrimSpace(field(rec, cols.rotation)); raw != "" {
			week, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: rotation week %q: %w", line, raw, err)
			}
			c.RotationWeek = &week
		}
		out = append(out, c)
	}
	return out, nil
}

// SplitList splits a comma-separated cell, trimming entries and dropping
// empties and repeats. The result is never nil.
func SplitList(cell string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(cell, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k := strings.ToLower(part)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, part)
	}
	return out
}

func mapColumns(header []string) (columns, error) {
	cols := columns{title: -1, genres: -1, tags: -1, proOnly: -1, rotation: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case cols.title < 0 && contains(titleColumns, h):
			cols.title = i
		case cols.genres < 0 && contains(genreColumns, h):
			cols.genres = i
		case cols.tags < 0 && contains(tagColumns, h):
			cols.tags = i
		case cols.proOnly < 0 && contains(proOnlyColumns, h):
			cols.proOnly = i
		case cols.rotation < 0 && contains(rotationColumns, h):
			cols.rotation = i
		}
	}

	switch {
	case cols.title < 0:
		return cols, fmt.Errorf("%w: title", ErrMissingColumn)
	case cols.genres < 0:
		return cols, fmt.Errorf("%w: genre", ErrMissingColumn)
	case cols.tags < 0:
		return cols, fmt.Errorf("%w: tags", ErrMissingColumn)
	}
	return cols, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "x":
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
