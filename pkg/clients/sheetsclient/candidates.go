package sheetsclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jakechorley/promoter-slots/pkg/core/model"
)

// Required column names in the candidates sheet
var requiredCandidateFields = []string{
	"Nombre",
	"Apellidos",
	"Email",
}

// Optional column names, read when present
var optionalCandidateFields = []string{
	"Teléfono",
	"Edad",
	"Ciudad",
	"Código postal",
	"Experiencia",
	"Motivación",
	"Disponibilidad",
	"Idiomas",
}

// ListCandidates retrieves and parses candidate rows from a spreadsheet tab
func (c *Client) ListCandidates(ctx context.Context, spreadsheetID, tab string) ([]model.Candidate, error) {
	values, err := c.GetValues(ctx, spreadsheetID, tab)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate data: %w", err)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("spreadsheet is empty")
	}

	candidates, err := parseCandidates(values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse candidates: %w", err)
	}

	return candidates, nil
}

// parseCandidates converts raw spreadsheet data into Candidate structs
func parseCandidates(raw [][]interface{}) ([]model.Candidate, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("no header row found")
	}

	fieldIndexes := make(map[string]int)
	headerRow := raw[0]
	for i, cell := range headerRow {
		if cellStr, ok := cell.(string); ok {
			fieldIndexes[strings.TrimSpace(cellStr)] = i
		}
	}

	for _, field := range requiredCandidateFields {
		if _, ok := fieldIndexes[field]; !ok {
			return nil, fmt.Errorf("missing required field in header: %s", field)
		}
	}

	getField := func(field string, row []interface{}) string {
		index, ok := fieldIndexes[field]
		if !ok || index >= len(row) {
			return ""
		}
		switch v := row[index].(type) {
		case string:
			return strings.TrimSpace(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return ""
		}
	}

	candidates := make([]model.Candidate, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		row := raw[i]

		email := getField("Email", row)
		// Skip empty rows (rows with no email)
		if email == "" {
			continue
		}

		candidate := model.Candidate{
			Row:          i + 1,
			Name:         getField("Nombre", row),
			Surname:      getField("Apellidos", row),
			Email:        email,
			Phone:        getField("Teléfono", row),
			Age:          getField("Edad", row),
			City:         getField("Ciudad", row),
			ZipCode:      getField("Código postal", row),
			Experience:   getField("Experiencia", row),
			Motivation:   getField("Motivación", row),
			Availability: getField("Disponibilidad", row),
			Languages:    splitLanguages(getField("Idiomas", row)),
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

func splitLanguages(s string) []string {
	if s == "" {
		return nil
	}
	var langs []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			langs = append(langs, p)
		}
	}
	return langs
}
