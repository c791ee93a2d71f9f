// Package csvio reads business rows from CSV uploads and writes the
// enriched rows back out.
//
// Input headers are matched case-insensitively against a small alias list
// per field. Files previously written by Write can be read back: their owner
// columns are kept, so a resumed run skips rows that were already enriched.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/Sternrassler/owner-enricher/pkg/record"
)

var (
	// ErrNoRows is returned when the input holds a header but no data rows.
	ErrNoRows = errors.New("csv has no data rows")

	// ErrMissingName is returned when no header names the business.
	ErrMissingName = errors.New("csv has no business name column")
)

// Output column order.
var Columns = []string{
	"First Name", "Last Name", "Name", "Profile", "Website", "Phone", "Emails", "Source", "Confidence",
}

type field int

const (
	fieldName field = iota
	fieldWebsite
	fieldProfile
	fieldPhone
	fieldEmail
	fieldFirstName
	fieldLastName
	fieldSource
	fieldConfidence
	numFields
)

var aliases = map[string]field{
	"name":          fieldName,
	"business name": fieldName,
	"website":       fieldWebsite,
	"profile":       fieldProfile,
	"gmb":           fieldProfile,
	"phone":         fieldPhone,
	"emails":        fieldEmail,
	"email":         fieldEmail,
	"first name":    fieldFirstName,
	"last name":     fieldLastName,
	"source":        fieldSource,
	"confidence":    fieldConfidence,
}

// Parse reads records from CSV. Every record gets a fresh id.
func Parse(r io.Reader) ([]record.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var index [numFields]int
	for i := range index {
		index[i] = -1
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		f, ok := aliases[strings.ToLower(strings.TrimSpace(h))]
		if ok && index[f] < 0 {
			index[f] = i
		}
	}
	if index[fieldName] < 0 {
		return nil, ErrMissingName
	}

	var records []record.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		get := func(f field) string {
			i := index[f]
			if i < 0 || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := record.Record{
			ID:             uuid.NewString(),
			BusinessName:   get(fieldName),
			Website:        get(fieldWebsite),
			ProfileURL:     get(fieldProfile),
			Phone:          get(fieldPhone),
			Email:          get(fieldEmail),
			OwnerFirstName: get(fieldFirstName),
			OwnerLastName:  get(fieldLastName),
			Source:         get(fieldSource),
			Confidence:     get(fieldConfidence),
		}
		if blank(rec) {
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return records, nil
}

func blank(r record.Record) bool {
	return r.BusinessName == "" && r.Website == "" && r.ProfileURL == "" &&
		r.Phone == "" && r.Email == "" && r.OwnerFirstName == ""
}

// Write serializes records in the given order using Columns.
func Write(w io.Writer, records []record.Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.OwnerFirstName,
			r.OwnerLastName,
			r.BusinessName,
			r.ProfileURL,
			r.Website,
			r.Phone,
			r.Email,
			r.Source,
			r.Confidence,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", r.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
