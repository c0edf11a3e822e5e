// Package tlc ties the reduction pipeline together: a Config describing one
// experiment case and a Case owning the derived results with dependency-aware
// invalidation.
package tlc

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/banshee-data/tlc.report/internal/tlc/filter"
	"github.com/banshee-data/tlc.report/internal/tlc/interp"
	"github.com/banshee-data/tlc.report/internal/tlc/solve"
)

// Thermocouple binds one DAQ channel to its position in video pixel space.
type Thermocouple struct {
	// Column is the channel's column index in the DAQ table.
	Column int `json:"column"`
	// Y, X is the sensor position in full-frame pixel coordinates.
	Y int `json:"y"`
	X int `json:"x"`
}

// Config describes one experiment case: input paths, the frame/row window
// linking video to DAQ time, region geometry, method selections, and the
// physical constants of the solve.
//
// Mutate through the setters; they maintain the derived metadata, the
// video/DAQ window alignment, and the regulator-length invariant.
type Config struct {
	CaseName  string `json:"case_name"`
	VideoPath string `json:"video_path"`
	DAQPath   string `json:"daq_path"`

	// Window linking video frames to DAQ rows.
	StartFrame int `json:"start_frame"`
	StartRow   int `json:"start_row"`
	FrameCount int `json:"frame_count"`

	// Derived video/DAQ metadata, refreshed when the paths change.
	FrameRate   float64 `json:"frame_rate"`
	TotalFrames int     `json:"total_frames"`
	TotalRows   int     `json:"total_rows"`
	VideoShape  [2]int  `json:"video_shape"` // height, width

	// Calculation region in full-frame pixel coordinates.
	TopLeft     [2]int `json:"top_left"`     // y, x
	RegionShape [2]int `json:"region_shape"` // height, width

	Thermocouples []Thermocouple `json:"thermocouples"`
	// Regulator scales each thermocouple's series for calibration. Its
	// length always equals len(Thermocouples).
	Regulator []float32 `json:"regulator"`

	Filter    filter.Method `json:"filter"`
	Interp    interp.Method `json:"interp"`
	Iteration solve.Method  `json:"iteration"`

	PeakTemp             float32 `json:"peak_temp"`
	SolidConductivity    float32 `json:"solid_thermal_conductivity"`
	SolidDiffusivity     float32 `json:"solid_thermal_diffusivity"`
	AirConductivity      float32 `json:"air_thermal_conductivity"`
	CharacteristicLength float32 `json:"characteristic_length"`
}

// LoadConfig reads a case configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlc: read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("tlc: parse config %s: %w", path, err)
	}
	cfg.syncRegulator()
	// frame_count is optional; derive the usable window from the recorded
	// input lengths when it is absent.
	if cfg.FrameCount == 0 && cfg.TotalFrames > 0 && cfg.TotalRows > 0 {
		cfg.syncFrameCount()
	}
	return &cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("tlc: encode config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("tlc: write config %s: %w", path, err)
	}
	return nil
}

// syncRegulator restores the regulator-length invariant, resetting to ones
// whenever the thermocouple count changed.
func (c *Config) syncRegulator() {
	if len(c.Regulator) != len(c.Thermocouples) {
		c.Regulator = make([]float32, len(c.Thermocouples))
		for i := range c.Regulator {
			c.Regulator[i] = 1
		}
	}
}

// syncFrameCount derives the usable window length from whichever input is
// shorter.
func (c *Config) syncFrameCount() {
	c.FrameCount = min(c.TotalFrames-c.StartFrame, c.TotalRows-c.StartRow)
}

// SetStartFrame moves the video start and shifts the DAQ start row by the
// same delta, keeping the two time axes aligned.
func (c *Config) SetStartFrame(startFrame int) error {
	if startFrame >= c.TotalFrames {
		return fmt.Errorf("tlc: start frame %d not below total frames %d", startFrame, c.TotalFrames)
	}
	startRow := c.StartRow + startFrame - c.StartFrame
	if startRow < 0 {
		return fmt.Errorf("tlc: start frame %d would move start row to %d", startFrame, startRow)
	}
	if startRow >= c.TotalRows {
		return fmt.Errorf("tlc: start frame %d would move start row to %d, not below total rows %d",
			startFrame, startRow, c.TotalRows)
	}
	c.StartFrame = startFrame
	c.StartRow = startRow
	c.syncFrameCount()
	return nil
}

// SetStartRow moves the DAQ start and shifts the video start frame by the
// same delta.
func (c *Config) SetStartRow(startRow int) error {
	if startRow >= c.TotalRows {
		return fmt.Errorf("tlc: start row %d not below total rows %d", startRow, c.TotalRows)
	}
	startFrame := c.StartFrame + startRow - c.StartRow
	if startFrame < 0 {
		return fmt.Errorf("tlc: start row %d would move start frame to %d", startRow, startFrame)
	}
	if startFrame >= c.TotalFrames {
		return fmt.Errorf("tlc: start row %d would move start frame to %d, not below total frames %d",
			startRow, startFrame, c.TotalFrames)
	}
	c.StartRow = startRow
	c.StartFrame = startFrame
	c.syncFrameCount()
	return nil
}

// Synchronize pins a video frame and a DAQ row to the same physical instant
// and rebases both windows so the earlier side starts at zero.
func (c *Config) Synchronize(frameIdx, rowIdx int) {
	if frameIdx < rowIdx {
		c.StartFrame = 0
		c.StartRow = rowIdx - frameIdx
	} else {
		c.StartRow = 0
		c.StartFrame = frameIdx - rowIdx
	}
	c.syncFrameCount()
}

// SetThermocouples replaces the sensor list and re-syncs the regulator.
func (c *Config) SetThermocouples(tcs []Thermocouple) {
	c.Thermocouples = tcs
	c.syncRegulator()
}

// TCPositions returns the thermocouple pixel positions as (y, x) pairs.
func (c *Config) TCPositions() [][2]int {
	out := make([][2]int, len(c.Thermocouples))
	for i, tc := range c.Thermocouples {
		out[i] = [2]int{tc.Y, tc.X}
	}
	return out
}
