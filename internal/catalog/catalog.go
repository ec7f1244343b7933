// Package catalog reads the stage catalog that maps pipeline stages to the
// evidence keys the dashboard writes.
//
// The dashboard caches each stage's output under its own local storage key.
// Those key names are a product decision, not part of the pipeline, so they
// are kept in a small CSV file instead of being hardcoded.
//
// CSV format:
//
//	stage,key,title
//	viability_assessment,viabilityData,Viability Assessment
//	swot,swotAnalysis,SWOT Analysis
//	bmc,businessModelCanvas,
//
// Stages may be given by canonical name or dashboard alias. Stages not listed
// keep their default key (the stage name) and title.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"stagegate/internal/evidence"
	"stagegate/internal/stage"
)

// Entry represents a single row of the catalog.
type Entry struct {
	// Stage is the pipeline stage the row configures.
	Stage stage.Stage

	// Key is the evidence store key holding the stage's output.
	Key string

	// Title overrides the display title. Empty keeps the default.
	Title string
}

// Catalog holds the parsed catalog rows in file order.
type Catalog struct {
	Entries []Entry
}

// ReadFromFile reads and parses a catalog CSV file.
func ReadFromFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return readFromReader(f)
}

// ReadFromString parses a catalog from a CSV string.
func ReadFromString(data string) (*Catalog, error) {
	return readFromReader(strings.NewReader(data))
}

func readFromReader(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	if err := validateColumns(colIndex); err != nil {
		return nil, err
	}

	var entries []Entry
	seen := make(map[stage.Stage]int)
	seenKeys := make(map[string]int)
	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog line %d: %w", lineNum, err)
		}

		s, err := stage.Parse(getField(record, colIndex, "stage"))
		if err != nil {
			return nil, fmt.Errorf("catalog line %d: %w", lineNum, err)
		}
		if prev, dup := seen[s]; dup {
			return nil, fmt.Errorf("catalog line %d: stage %s already defined on line %d", lineNum, s, prev)
		}
		seen[s] = lineNum

		entry := Entry{
			Stage: s,
			Key:   getField(record, colIndex, "key"),
			Title: getField(record, colIndex, "title"),
		}
		if entry.Key == "" {
			return nil, fmt.Errorf("catalog line %d: key is required", lineNum)
		}
		if err := evidence.ValidKey(entry.Key); err != nil {
			return nil, fmt.Errorf("catalog line %d: %w", lineNum, err)
		}
		if prev, dup := seenKeys[entry.Key]; dup {
			return nil, fmt.Errorf("catalog line %d: key %s already used on line %d", lineNum, entry.Key, prev)
		}
		seenKeys[entry.Key] = lineNum

		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog contains no entries")
	}

	// Unlisted stages keep their default key, so a listed key must not take it.
	defaults := evidence.DefaultKeys()
	for _, s := range stage.All() {
		if _, listed := seen[s]; listed {
			continue
		}
		if line, dup := seenKeys[defaults.Key(s)]; dup {
			return nil, fmt.Errorf("catalog line %d: key %s is the default key of stage %s", line, defaults.Key(s), s)
		}
	}

	return &Catalog{Entries: entries}, nil
}

// requiredColumns are the columns that must be present in the catalog CSV.
var requiredColumns = []string{"stage", "key"}

func buildColumnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return index
}

func validateColumns(colIndex map[string]int) error {
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return fmt.Errorf("catalog missing required column: %s", col)
		}
	}
	return nil
}

func getField(record []string, colIndex map[string]int, column string) string {
	idx, ok := colIndex[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Keys returns the evidence key mapping: [evidence.DefaultKeys] with the
// catalog's entries applied. A nil catalog yields the defaults.
func (c *Catalog) Keys() evidence.Keys {
	keys := evidence.DefaultKeys()
	if c == nil {
		return keys
	}
	for _, e := range c.Entries {
		keys[e.Stage] = e.Key
	}
	return keys
}

// Title returns the display title for s, preferring the catalog's override.
func (c *Catalog) Title(s stage.Stage) string {
	if c != nil {
		for _, e := range c.Entries {
			if e.Stage == s && e.Title != "" {
				return e.Title
			}
		}
	}
	return s.Title()
}

// StageForKey returns the stage whose evidence lives under key.
func (c *Catalog) StageForKey(key string) (stage.Stage, bool) {
	keys := c.Keys()
	for _, s := range stage.All() {
		if keys.Key(s) == key {
			return s, true
		}
	}
	return "", false
}
