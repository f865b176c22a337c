package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
)

// Console prints a human-readable report.
type Console struct {
	Out     io.Writer
	NoColor bool
}

// NewConsole returns a console reporter writing to out.
func NewConsole(out io.Writer, noColor bool) *Console {
	return &Console{Out: out, NoColor: noColor}
}

type consoleStyles struct {
	title   lipgloss.Style
	dim     lipgloss.Style
	fastest lipgloss.Style
	slowest lipgloss.Style
	warn    lipgloss.Style
}

func (c *Console) styles() consoleStyles {
	r := lipgloss.NewRenderer(c.Out)
	if c.NoColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return consoleStyles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
		fastest: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		slowest: r.NewStyle().Foreground(lipgloss.Color("203")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

func (c *Console) Write(rep Report) error {
	st := c.styles()
	out := c.Out

	fmt.Fprintln(out, st.title.Render("Benchmark report"), st.dim.Render(rep.Timestamp.Format(time.RFC3339)))
	if s := rep.System; s != nil {
		fmt.Fprintf(out, "cpu %.1f%%  memory %.1f%% of %s  thermal %s",
			s.CPULoad, s.Memory.UsedPercent, humanize.IBytes(s.Memory.Total), s.Thermal.State)
		if s.Thermal.MaxCelsius > 0 {
			fmt.Fprintf(out, " (%.1f°C)", s.Thermal.MaxCelsius)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODE\tITERATIONS\tDURATION (ms)\tOPS/SEC\t±RME\tSAMPLES\tOUTLIERS\tHEAP Δ\tSTOP")
	for _, e := range rep.Entries {
		rme, samples, outliers := "-", "1", "-"
		duration := e.Result.Duration
		if e.Stats != nil {
			duration = e.Stats.Mean
			rme = fmt.Sprintf("%.2f%%", e.Stats.RelativeMarginOfError)
			samples = strconv.Itoa(e.Stats.SampleCount)
			outliers = fmt.Sprintf("%d/%d", len(e.Stats.Outliers.Mild), len(e.Stats.Outliers.Extreme))
		}
		stop := "-"
		if e.Calibration != nil {
			stop = string(e.Calibration.StopReason)
		}
		mode := e.Mode
		if mode == "" {
			mode = "single"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.4f\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Name, mode, e.Result.Iterations, duration,
			humanize.CommafWithDigits(e.Result.OpsPerSecond, 0),
			rme, samples, outliers, signedBytes(e.Result.Memory.HeapUsed), stop)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, e := range rep.Entries {
		if e.Calibration != nil && e.Calibration.BudgetExceeded {
			fmt.Fprintln(out, st.warn.Render(fmt.Sprintf(
				"warning: %s stopped on its time budget after %d samples at %.2f%% RSD",
				e.Name, e.Calibration.SampleCount, e.Calibration.RelativeStdDev)))
		}
	}

	if rk := rep.Ranking; rk != nil && len(rk.Comparisons) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, st.title.Render("Comparisons"))
		for _, cmp := range rk.Comparisons {
			fmt.Fprintf(out, "  %s  %s\n", cmp.String(), st.dim.Render(fmt.Sprintf("(time ratio %.3f)", cmp.TimeRatio)))
		}
		fmt.Fprintf(out, "Fastest: %s  Slowest: %s\n", st.fastest.Render(rk.Fastest), st.slowest.Render(rk.Slowest))
	}
	return nil
}

func signedBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
