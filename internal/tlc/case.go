package tlc

import (
	"fmt"
	"log"
	"sync"

	"github.com/banshee-data/tlc.report/internal/tlc/daq"
	"github.com/banshee-data/tlc.report/internal/tlc/export"
	"github.com/banshee-data/tlc.report/internal/tlc/filter"
	"github.com/banshee-data/tlc.report/internal/tlc/grid"
	"github.com/banshee-data/tlc.report/internal/tlc/interp"
	"github.com/banshee-data/tlc.report/internal/tlc/solve"
	"github.com/banshee-data/tlc.report/internal/tlc/video"
)

// entity names one cached derived result.
type entity int

const (
	entRaw entity = iota
	entFiltered
	entPeaks
	entT2D
	entField
	entNu
)

// downstream is the dependency edge list of the derived-result DAG. Evicting
// an entity evicts its transitive closure here; the Nu mean lives and dies
// with entNu.
var downstream = map[entity][]entity{
	entRaw:      {entFiltered},
	entFiltered: {entPeaks},
	entPeaks:    {entNu},
	entT2D:      {entField},
	entField:    {entNu},
	entNu:       nil,
}

// Case owns one experiment's configuration and every derived result. Getters
// compute missing results lazily, recursing into upstream stages; setters
// evict exactly the results whose inputs changed, plus everything downstream.
//
// Returned matrices are the cached values themselves; callers must treat
// them as read-only.
type Case struct {
	mu  sync.Mutex
	cfg Config

	// openVideo is swapped for a synthetic source in tests.
	openVideo func(path string) (video.Source, error)

	raw      *grid.ByteMatrix
	filtered *grid.ByteMatrix
	peaks    []int
	t2d      *grid.Matrix
	field    *interp.Field
	nu       *grid.Matrix
	nuMean   float32
	nuValid  bool
}

// NewCase wraps a configuration. The config is copied; mutate it through the
// Case setters afterwards.
func NewCase(cfg Config) *Case {
	c := &Case{cfg: cfg}
	c.cfg.syncRegulator()
	c.openVideo = func(path string) (video.Source, error) { return video.OpenFile(path) }
	return c
}

// LoadCase reads a config file and wraps it.
func LoadCase(configPath string) (*Case, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewCase(*cfg), nil
}

// Config returns a copy of the current configuration.
func (c *Case) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Case) evict(ents ...entity) {
	seen := make(map[entity]bool)
	var walk func(e entity)
	walk = func(e entity) {
		if seen[e] {
			return
		}
		seen[e] = true
		switch e {
		case entRaw:
			c.raw = nil
		case entFiltered:
			c.filtered = nil
		case entPeaks:
			c.peaks = nil
		case entT2D:
			c.t2d = nil
		case entField:
			c.field = nil
		case entNu:
			c.nu = nil
			c.nuValid = false
		}
		for _, d := range downstream[e] {
			walk(d)
		}
	}
	for _, e := range ents {
		walk(e)
	}
}

// Setters. Each one mutates its config field(s), then evicts the results
// that depend on them.

// SetVideoPath switches the recording, refreshing the stream metadata and
// the usable window length.
func (c *Case) SetVideoPath(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, err := c.openVideo(path)
	if err != nil {
		return err
	}
	desc := src.Desc()
	c.cfg.VideoPath = path
	c.cfg.FrameRate = desc.FrameRate
	c.cfg.TotalFrames = desc.TotalFrames
	c.cfg.VideoShape = [2]int{desc.Height, desc.Width}
	c.cfg.syncFrameCount()
	c.evict(entRaw)
	return nil
}

// SetDAQPath switches the temperature log, refreshing the row count and the
// usable window length.
func (c *Case) SetDAQPath(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	table, err := daq.Read(path)
	if err != nil {
		return err
	}
	c.cfg.DAQPath = path
	c.cfg.TotalRows = table.Rows
	c.cfg.syncFrameCount()
	c.evict(entT2D)
	return nil
}

func (c *Case) SetFilter(m filter.Method) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Filter = m
	c.evict(entFiltered)
}

func (c *Case) SetInterp(m interp.Method) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Interp = m
	c.evict(entField)
}

func (c *Case) SetIteration(m solve.Method) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Iteration = m
	c.evict(entNu)
}

// SetRegion moves the calculation region; everything derives from it.
func (c *Case) SetRegion(topLeft, regionShape [2]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.TopLeft = topLeft
	c.cfg.RegionShape = regionShape
	c.evict(entRaw, entT2D)
}

func (c *Case) SetThermocouples(tcs []Thermocouple) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetThermocouples(tcs)
	c.evict(entT2D)
}

func (c *Case) SetRegulator(reg []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Regulator = reg
	c.cfg.syncRegulator()
	c.evict(entT2D)
}

func (c *Case) SetPeakTemp(v float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.PeakTemp = v
	c.evict(entNu)
}

func (c *Case) SetSolidConductivity(v float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SolidConductivity = v
	c.evict(entNu)
}

func (c *Case) SetSolidDiffusivity(v float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SolidDiffusivity = v
	c.evict(entNu)
}

func (c *Case) SetAirConductivity(v float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.AirConductivity = v
	c.evict(entNu)
}

func (c *Case) SetCharacteristicLength(v float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.CharacteristicLength = v
	c.evict(entNu)
}

// SetStartFrame realigns the video/DAQ window; the whole pipeline restarts
// from scratch.
func (c *Case) SetStartFrame(startFrame int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.cfg.SetStartFrame(startFrame); err != nil {
		return err
	}
	c.evict(entRaw, entT2D)
	return nil
}

func (c *Case) SetStartRow(startRow int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.cfg.SetStartRow(startRow); err != nil {
		return err
	}
	c.evict(entRaw, entT2D)
	return nil
}

func (c *Case) Synchronize(frameIdx, rowIdx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Synchronize(frameIdx, rowIdx)
	c.evict(entRaw, entT2D)
}

// Lazy getters. ensure* methods expect the lock held and build missing
// upstream results recursively.

func (c *Case) ensureRaw() error {
	if c.raw != nil {
		return nil
	}
	src, err := c.openVideo(c.cfg.VideoPath)
	if err != nil {
		return err
	}
	log.Printf("extracting intensity: %d frames from %s", c.cfg.FrameCount, c.cfg.VideoPath)
	raw, err := video.NewSampler(src).ReadIntensity(c.cfg.StartFrame, c.cfg.FrameCount, c.cfg.TopLeft, c.cfg.RegionShape)
	if err != nil {
		return err
	}
	c.raw = raw
	return nil
}

func (c *Case) ensureFiltered() error {
	if c.filtered != nil {
		return nil
	}
	if err := c.ensureRaw(); err != nil {
		return err
	}
	filtered, err := filter.Apply(c.raw, c.cfg.Filter)
	if err != nil {
		return err
	}
	c.filtered = filtered
	return nil
}

func (c *Case) ensurePeaks() error {
	if c.peaks != nil {
		return nil
	}
	if err := c.ensureFiltered(); err != nil {
		return err
	}
	peaks, err := filter.DetectPeaks(c.filtered)
	if err != nil {
		return err
	}
	c.peaks = peaks
	return nil
}

func (c *Case) ensureT2D() error {
	if c.t2d != nil {
		return nil
	}
	table, err := daq.Read(c.cfg.DAQPath)
	if err != nil {
		return err
	}
	t2d, err := buildT2D(table, &c.cfg)
	if err != nil {
		return err
	}
	c.t2d = t2d
	return nil
}

func (c *Case) ensureField() error {
	if c.field != nil {
		return nil
	}
	if err := c.ensureT2D(); err != nil {
		return err
	}
	field, err := interp.New(c.t2d, c.cfg.Interp, c.cfg.TCPositions(), c.cfg.TopLeft, c.cfg.RegionShape)
	if err != nil {
		return err
	}
	c.field = field
	return nil
}

func (c *Case) ensureNu() error {
	if c.nuValid {
		return nil
	}
	if err := c.ensurePeaks(); err != nil {
		return err
	}
	if err := c.ensureField(); err != nil {
		return err
	}
	nu, mean, err := solve.NusseltMap(c.peaks, c.field, c.cfg.RegionShape, solve.Params{
		PeakTemp:             c.cfg.PeakTemp,
		SolidConductivity:    c.cfg.SolidConductivity,
		SolidDiffusivity:     c.cfg.SolidDiffusivity,
		CharacteristicLength: c.cfg.CharacteristicLength,
		AirConductivity:      c.cfg.AirConductivity,
		Dt:                   float32(1 / c.cfg.FrameRate),
		Method:               c.cfg.Iteration,
	})
	if err != nil {
		return err
	}
	c.nu, c.nuMean, c.nuValid = nu, mean, true
	log.Printf("solved nusselt map for %s: mean %.3f", c.cfg.CaseName, mean)
	return nil
}

// RawIntensity returns the frame x region-pixel green intensity matrix.
func (c *Case) RawIntensity() (*grid.ByteMatrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureRaw(); err != nil {
		return nil, err
	}
	return c.raw, nil
}

// FilteredIntensity returns the temporally filtered intensity matrix.
func (c *Case) FilteredIntensity() (*grid.ByteMatrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureFiltered(); err != nil {
		return nil, err
	}
	return c.filtered, nil
}

// PeakFrames returns the per-pixel color-change frame indexes.
func (c *Case) PeakFrames() ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensurePeaks(); err != nil {
		return nil, err
	}
	return c.peaks, nil
}

// TemperatureMatrix returns the calibrated thermocouple x frame matrix.
func (c *Case) TemperatureMatrix() (*grid.Matrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureT2D(); err != nil {
		return nil, err
	}
	return c.t2d, nil
}

// InterpField returns the interpolated reference temperature field.
func (c *Case) InterpField() (*interp.Field, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureField(); err != nil {
		return nil, err
	}
	return c.field, nil
}

// Nusselt returns the Nusselt map and its NaN-ignoring mean.
func (c *Case) Nusselt() (*grid.Matrix, float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureNu(); err != nil {
		return nil, 0, err
	}
	return c.nu, c.nuMean, nil
}

// FilterPixel filters a single region pixel's raw series, for inspecting
// filter behaviour without recomputing the whole matrix.
func (c *Case) FilterPixel(pos int) ([]uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureRaw(); err != nil {
		return nil, err
	}
	return filter.ApplyColumn(c.raw, pos, c.cfg.Filter)
}

// PreviewFrame decodes one frame and returns it as a downscaled JPEG.
func (c *Case) PreviewFrame(frame int) ([]byte, error) {
	c.mu.Lock()
	src, err := c.openVideo(c.cfg.VideoPath)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	payload, err := video.NewSampler(src).ReadPayload(frame)
	if err != nil {
		return nil, err
	}
	return video.EncodePreview(payload, src.Desc())
}

// InterpSingleFrame returns the block-averaged, flipped 2D temperature view
// of one frame.
func (c *Case) InterpSingleFrame(frame int) (*grid.Matrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureField(); err != nil {
		return nil, err
	}
	return c.field.SingleFrame(frame)
}

// NusseltImage renders the Nusselt map as a PNG heat map. Pass lo == hi for
// the conventional bounds.
func (c *Case) NusseltImage(lo, hi float64) ([]byte, error) {
	nu, _, err := c.Nusselt()
	if err != nil {
		return nil, err
	}
	title := c.cfg.CaseName
	if title == "" {
		title = "nusselt"
	}
	return export.HeatmapPNG(nu, title, lo, hi)
}

// TemperatureImage renders one frame's interpolated temperature field as a
// PNG heat map, scaled to [0.5*mean, 1.2*mean].
func (c *Case) TemperatureImage(frame int) ([]byte, error) {
	temps, err := c.InterpSingleFrame(frame)
	if err != nil {
		return nil, err
	}
	mean := float64(temps.NaNMean())
	return export.HeatmapPNG(temps, fmt.Sprintf("temperature, frame %d", frame), 0.5*mean, 1.2*mean)
}

// buildT2D picks each thermocouple's DAQ column over the configured row
// window and applies its calibration regulator.
func buildT2D(table *daq.Table, cfg *Config) (*grid.Matrix, error) {
	if len(cfg.Thermocouples) == 0 {
		return nil, fmt.Errorf("tlc: no thermocouples configured")
	}
	if cfg.StartRow+cfg.FrameCount > table.Rows {
		return nil, fmt.Errorf("tlc: need DAQ rows [%d, %d), log has %d",
			cfg.StartRow, cfg.StartRow+cfg.FrameCount, table.Rows)
	}
	t2d := grid.NewMatrix(len(cfg.Thermocouples), cfg.FrameCount)
	for i, tc := range cfg.Thermocouples {
		if tc.Column < 0 || tc.Column >= table.Cols {
			return nil, fmt.Errorf("tlc: thermocouple %d: DAQ column %d out of range [0, %d)", i, tc.Column, table.Cols)
		}
		row := t2d.Row(i)
		reg := cfg.Regulator[i]
		col := table.Column(tc.Column)
		for f := 0; f < cfg.FrameCount; f++ {
			row[f] = col[cfg.StartRow+f] * reg
		}
	}
	return t2d, nil
}
