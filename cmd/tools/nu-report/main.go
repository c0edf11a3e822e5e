// Command nu-report renders a previously saved Nusselt CSV as an
// interactive HTML heatmap, for revisiting old runs without re-reducing.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/banshee-data/tlc.report/internal/tlc/export"
	"github.com/banshee-data/tlc.report/internal/tlc/monitor"
)

var (
	in        = flag.String("in", "", "Nusselt CSV to render (required)")
	out       = flag.String("out", "nu-report.html", "Output HTML path")
	title     = flag.String("title", "nusselt", "Report title")
	boundLow  = flag.Float64("bound-low", 0, "Lower color bound (0 0 = conventional bounds)")
	boundHigh = flag.Float64("bound-high", 0, "Upper color bound")
)

func main() {
	flag.Parse()
	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	nu, err := export.LoadCSV(*in)
	if err != nil {
		log.Fatal(err)
	}
	summary := export.Summarize(nu)
	log.Printf("%s: %dx%d, mean %.3f, %d/%d valid pixels",
		*in, nu.Rows, nu.Cols, summary.Mean, summary.Valid, summary.Total)

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	if err := monitor.RenderHeatmapHTML(f, nu, *title, *boundLow, *boundHigh); err != nil {
		f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", *out)
}
