// Package tabulator turns the intermediate "abbreviation;full name" file into
// the final tab separated abbreviation list.
package tabulator

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const separator = ";"

// Record is one parsed intermediate line
type Record struct {
	Abbreviation string
	FullName     string
}

// Row is one line of the final list, in output column order
type Row struct {
	FullName              string `csv:"full_name"`
	Abbreviation          string `csv:"abbreviation"`
	AbbreviationNoPeriods string `csv:"abbreviation_no_periods"`
	FullNameAmpersand     string `csv:"full_name_ampersand"`
}

// Stats describes one tabulation
type Stats struct {
	Lines      int
	EmptyLines int
	Malformed  int
	Duplicates int
	Rows       int
}

// Skipped reports whether any non-blank line was dropped
func (s Stats) Skipped() bool {
	return s.Malformed > 0 || s.Duplicates > 0
}

// ParseRecords reads semicolon separated records. Blank lines are ignored;
// lines that do not split into exactly two fields are skipped and counted.
func ParseRecords(r io.Reader) ([]Record, Stats, error) {
	var (
		records []Record
		stats   Stats
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		stats.Lines++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			stats.EmptyLines++
			continue
		}

		fields := strings.Split(line, separator)
		if len(fields) != 2 {
			stats.Malformed++
			continue
		}

		records = append(records, Record{Abbreviation: fields[0], FullName: fields[1]})
	}

	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("failed to read records: %w", err)
	}

	return records, stats, nil
}

// BuildRows trims Unicode spaces from both fields, drops exact duplicates
// (keeping the first occurrence), derives the two extra columns and sorts by
// full name, case-insensitively. Rows with equal keys keep their input order.
func BuildRows(records []Record) ([]Row, int) {
	seen := make(map[Record]struct{}, len(records))
	rows := make([]Row, 0, len(records))
	duplicates := 0

	for _, rec := range records {
		// A leading space would make the tab writer quote the cell
		rec.Abbreviation = strings.TrimSpace(rec.Abbreviation)
		rec.FullName = strings.TrimSpace(rec.FullName)

		if _, ok := seen[rec]; ok {
			duplicates++
			continue
		}
		seen[rec] = struct{}{}

		rows = append(rows, Row{
			FullName:              rec.FullName,
			Abbreviation:          rec.Abbreviation,
			AbbreviationNoPeriods: strings.ReplaceAll(rec.Abbreviation, ".", ""),
			FullNameAmpersand:     strings.ReplaceAll(rec.FullName, " and ", " & "),
		})
	}

	// Caser keeps state and is not safe for concurrent use
	lower := cases.Lower(language.Und)
	type keyed struct {
		key string
		row Row
	}
	sorted := make([]keyed, len(rows))
	for i, row := range rows {
		sorted[i] = keyed{key: lower.String(row.FullName), row: row}
	}
	slices.SortStableFunc(sorted, func(a, b keyed) int {
		return strings.Compare(a.key, b.key)
	})
	for i := range sorted {
		rows[i] = sorted[i].row
	}

	return rows, duplicates
}

// WriteRows writes rows tab separated, without header or index
func WriteRows(w io.Writer, rows []Row) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = '\t'

	if err := gocsv.MarshalCSVWithoutHeaders(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// Tabulate reads intermediatePath and writes the final list to outputPath,
// replacing any previous content. The written rows are returned.
func Tabulate(intermediatePath, outputPath string) ([]Row, Stats, error) {
	in, err := os.Open(intermediatePath)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open intermediate file: %w", err)
	}
	records, stats, err := ParseRecords(in)
	closeErr := in.Close()
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", intermediatePath, err)
	}
	if closeErr != nil {
		return nil, stats, fmt.Errorf("failed to close intermediate file: %w", closeErr)
	}

	rows, duplicates := BuildRows(records)
	stats.Duplicates = duplicates
	stats.Rows = len(rows)

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteRows(out, rows); err != nil {
		_ = out.Close()
		return nil, stats, fmt.Errorf("%s: %w", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return nil, stats, fmt.Errorf("failed to close output file: %w", err)
	}

	return rows, stats, nil
}

// ReadRows loads a previously written list
func ReadRows(path string) ([]Row, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	if info, err := in.Stat(); err == nil && info.Size() == 0 {
		return nil, nil
	}

	reader := csv.NewReader(in)
	reader.Comma = '\t'
	reader.FieldsPerRecord = 4

	var rows []Row
	if err := gocsv.UnmarshalCSVWithoutHeaders(reader, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rows from %s: %w", path, err)
	}
	return rows, nil
}
