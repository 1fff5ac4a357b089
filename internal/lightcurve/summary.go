package lightcurve

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
)

// Summary condenses a light curve for reporting.
type Summary struct {
	Points   int
	Detected int
	PeakMJD  float64
	PeakFlux float64
	PeakMag  float64
	// Residual statistics of measured minus true flux, in units of the flux
	// error, over points with a positive error.
	MeanPull float64
	RMSPull  float64
	Pulls    int
}

// Summarize scans lc for its brightest measured point and its pull distribution.
func Summarize(lc *Curve) Summary {
	s := Summary{Points: lc.Len(), PeakMJD: math.NaN(), PeakFlux: math.NaN(), PeakMag: math.NaN()}
	var sum, sumSq float64
	for _, p := range lc.Points {
		if p.Detected {
			s.Detected++
		}
		if !math.IsNaN(p.MeasuredFlux) && (math.IsNaN(s.PeakFlux) || p.MeasuredFlux > s.PeakFlux) {
			s.PeakFlux = p.MeasuredFlux
			s.PeakMJD = p.MJD
			s.PeakMag = p.Mag
		}
		if p.FluxErr > 0 && !math.IsNaN(p.MeasuredFlux) {
			pull := (p.MeasuredFlux - p.TrueFlux) / p.FluxErr
			sum += pull
			sumSq += pull * pull
			s.Pulls++
		}
	}
	if s.Pulls > 0 {
		s.MeanPull = sum / float64(s.Pulls)
		s.RMSPull = math.Sqrt(sumSq / float64(s.Pulls))
	}
	return s
}

// WriteTable prints lc as an aligned text table with residuals against truth.
func WriteTable(w io.Writer, lc *Curve) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "MJD\tTRUE\tMEASURED\tERR\tRESID\tMAG\tMAGERR\tDET\t\n")
	for _, p := range lc.Points {
		det := ""
		if p.Detected {
			det = "*"
		}
		fmt.Fprintf(tw, "%.3f\t%.2f\t%.2f\t%.2f\t%.2f\t%.3f\t%.3f\t%s\t\n",
			p.MJD, p.TrueFlux, p.MeasuredFlux, p.FluxErr, p.MeasuredFlux-p.TrueFlux, p.Mag, p.MagErr, det)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	s := Summarize(lc)
	_, err := fmt.Fprintf(w, "%d points, %d detected, peak %.2f at MJD %.3f, pull mean %.2f rms %.2f\n",
		s.Points, s.Detected, s.PeakFlux, s.PeakMJD, s.MeanPull, s.RMSPull)
	return err
}
