package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one student enrollment line from an import file.
type Row struct {
	ExternalCode string
	DisplayName  string
	CourseID     string
}

// ParseCSV reads enrollment rows in the form: external_code,display_name,course_id.
// A header line starting with "external_code" is skipped. Blank lines and
// rows missing any field are rejected with the offending line number.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var rows []Row
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if line == 1 && strings.EqualFold(record[0], "external_code") {
			continue
		}

		row := Row{
			ExternalCode: strings.TrimSpace(record[0]),
			DisplayName:  strings.TrimSpace(record[1]),
			CourseID:     strings.TrimSpace(record[2]),
		}
		if row.ExternalCode == "" || row.DisplayName == "" || row.CourseID == "" {
			return nil, fmt.Errorf("line %d: empty field in %q", line, record)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
