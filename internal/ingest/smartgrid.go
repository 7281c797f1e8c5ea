package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"load_forecaster/internal/model"
)

// SmartGridParser parses the smart grid dataset CSV export.
//
// Expected columns (extra contextual columns are ignored):
//
//	Timestamp,Power Consumption (kW),Voltage (V),Current (A),Reactive Power (kVAR),Power Factor,...
type SmartGridParser struct{}

// Column names the forecaster needs. The dataset carries more (temperature,
// humidity, tariff flags) which are contextual only and skipped here.
const (
	colTimestamp   = "Timestamp"
	colPower       = "Power Consumption (kW)"
	colVoltage     = "Voltage (V)"
	colCurrent     = "Current (A)"
	colReactive    = "Reactive Power (kVAR)"
	colPowerFactor = "Power Factor"
)

var requiredColumns = []string{
	colTimestamp, colPower, colVoltage, colCurrent, colReactive, colPowerFactor,
}

func (p *SmartGridParser) Parse(r io.Reader) ([]model.Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var readings []model.Reading
	lineNum := 1 // header was line 1

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		reading, err := parseRecord(record, idx, lineNum)
		if err != nil {
			// Skip unparseable rows (sensor dropouts, partial exports)
			continue
		}

		readings = append(readings, reading)
	}

	// The lag/rolling pipeline requires ascending timestamps.
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})

	return readings, nil
}

// columnIndex maps each required column name to its position in the header.
func columnIndex(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, col := range header {
		pos[strings.TrimSpace(col)] = i
	}

	idx := make(map[string]int, len(requiredColumns))
	for _, col := range requiredColumns {
		i, ok := pos[col]
		if !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
		idx[col] = i
	}
	return idx, nil
}

func parseRecord(record []string, idx map[string]int, lineNum int) (model.Reading, error) {
	max := 0
	for _, i := range idx {
		if i > max {
			max = i
		}
	}
	if len(record) <= max {
		return model.Reading{}, fmt.Errorf("line %d: expected at least %d fields, got %d", lineNum, max+1, len(record))
	}

	ts, err := parseTimestamp(strings.TrimSpace(record[idx[colTimestamp]]))
	if err != nil {
		return model.Reading{}, fmt.Errorf("line %d: %w", lineNum, err)
	}

	fields := [5]float64{}
	for i, col := range []string{colPower, colVoltage, colCurrent, colReactive, colPowerFactor} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[idx[col]]), 64)
		if err != nil {
			return model.Reading{}, fmt.Errorf("line %d: parsing %s %q: %w", lineNum, col, record[idx[col]], err)
		}
		fields[i] = v
	}

	return model.Reading{
		Timestamp:     ts,
		PowerKW:       fields[0],
		Voltage:       fields[1],
		Current:       fields[2],
		ReactivePower: fields[3],
		PowerFactor:   fields[4],
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
	}
	for _, f := range formats {
		if ts, err := time.Parse(f, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q", s)
}
