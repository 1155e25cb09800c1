// Package export serializes telemetry ranges for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"aquadash/internal/models"
)

// utf8BOM keeps spreadsheet tools from misreading the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvHeader is the fixed export schema. Column order is part of the contract;
// downstream analysis notebooks index by position.
var csvHeader = []string{
	"Timestamp",
	"Control_Mode",
	"Temperature",
	"Temperature_Setpoint",
	"Temperature_Error",
	"Heater_PWM",
	"Turbidity_Percent",
	"Turbidity_Setpoint",
	"Turbidity_Error",
	"Pump_PWM",
	"Experiment_ID",
	"Elapsed_S",
}

const timestampLayout = "2006-01-02 15:04:05"

// WriteCSV writes a BOM, the header row and one row per record. Absent
// numeric fields render as 0, absent strings as "".
func WriteCSV(w io.Writer, records []*models.TelemetryRecord) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.Timestamp.Local().Format(timestampLayout),
			rec.ActiveMode,
			formatFloat(rec.Temperature),
			formatFloatPtr(rec.TemperatureSetpoint),
			formatFloatPtr(rec.TemperatureError),
			formatFloat(rec.HeaterPWM),
			formatFloat(rec.TurbidityPercent),
			formatFloatPtr(rec.TurbiditySetpoint),
			formatFloatPtr(rec.TurbidityError),
			formatFloat(rec.PumpPWM),
			rec.ExperimentID,
			formatFloatPtr(rec.ExperimentElapsedS),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return "0"
	}
	return formatFloat(*v)
}
