// Command tlc runs one batch reduction: video + DAQ log in, Nusselt map
// (CSV, PNG, HTML) and a run-history record out.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/tlc.report/internal/tlc"
	"github.com/banshee-data/tlc.report/internal/tlc/export"
	"github.com/banshee-data/tlc.report/internal/tlc/monitor"
	"github.com/banshee-data/tlc.report/internal/tlc/store"
	"github.com/banshee-data/tlc.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to the case config JSON (required)")
	outDir      = flag.String("out", "results", "Output directory for CSV/PNG/HTML results")
	dbFile      = flag.String("db", "tlc_runs.db", "Path to the run-history SQLite database (empty to skip recording)")
	renderHTML  = flag.Bool("html", true, "Also render an interactive HTML heatmap")
	boundLow    = flag.Float64("bound-low", 0, "Lower color bound for heatmaps (equal bounds select the conventional ones)")
	boundHigh   = flag.Float64("bound-high", 0, "Upper color bound for heatmaps")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("tlc %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	c, err := tlc.LoadCase(*configPath)
	if err != nil {
		return err
	}
	cfg := c.Config()
	caseName := cfg.CaseName
	if caseName == "" {
		caseName = stem(cfg.VideoPath)
	}
	log.Printf("reducing case %s: %d frames from %s, DAQ %s",
		caseName, cfg.FrameCount, cfg.VideoPath, cfg.DAQPath)

	var s *store.Store
	var runID string
	if *dbFile != "" {
		if s, err = store.Open(*dbFile); err != nil {
			return err
		}
		defer s.Close()
		snapshot, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("snapshot config: %w", err)
		}
		runID, err = s.StartRun(store.RunRecord{
			CaseName:  caseName,
			VideoPath: cfg.VideoPath,
			DAQPath:   cfg.DAQPath,
			Config:    snapshot,
		})
		if err != nil {
			return err
		}
	}

	nu, _, err := c.Nusselt()
	if err != nil {
		if s != nil {
			if ferr := s.FailRun(runID, err.Error()); ferr != nil {
				log.Printf("record failure: %v", ferr)
			}
		}
		return err
	}

	summary := export.Summarize(nu)
	log.Printf("nusselt: mean %.3f stddev %.3f, %d/%d valid pixels",
		summary.Mean, summary.StdDev, summary.Valid, summary.Total)
	if s != nil {
		if err := s.CompleteRun(runID, summary.Mean, summary.StdDev, summary.Valid, summary.Total); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", *outDir, err)
	}
	csvPath := filepath.Join(*outDir, caseName+".csv")
	if err := export.SaveCSV(csvPath, nu); err != nil {
		return err
	}
	pngPath := filepath.Join(*outDir, caseName+".png")
	if err := export.SaveHeatmapPNG(pngPath, nu, caseName, *boundLow, *boundHigh); err != nil {
		return err
	}
	log.Printf("wrote %s and %s", csvPath, pngPath)

	if *renderHTML {
		htmlPath := filepath.Join(*outDir, caseName+".html")
		f, err := os.Create(htmlPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", htmlPath, err)
		}
		if err := monitor.RenderHeatmapHTML(f, nu, caseName, *boundLow, *boundHigh); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("wrote %s", htmlPath)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
