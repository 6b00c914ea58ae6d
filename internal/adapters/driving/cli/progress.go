package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/summaryprobs/internal/adapters/driven/embedding/fasttext"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driving"
)

// progressView renders model acquisition and pipeline progress.
//
// On a terminal it redraws a single line with a progress bar. Otherwise it
// prints one plain line per change of stage so logs stay readable.
type progressView struct {
	mu    sync.Mutex
	out   io.Writer
	tty   bool
	bar   progress.Model
	label lipgloss.Style

	// last printed stage key, for plain output
	lastStage string
	lastLine  string
}

func newProgressView(out io.Writer) *progressView {
	renderer := lipgloss.NewRenderer(out)
	return &progressView{
		out:   out,
		tty:   isTerminal(out),
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		label: renderer.NewStyle().Bold(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Model reports fastText acquisition progress. It matches fasttext.ProgressFunc.
func (p *progressView) Model(lang string, stage fasttext.Stage, done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := lang + "/" + string(stage)
	if !p.tty {
		if key != p.lastStage {
			fmt.Fprintf(p.out, "Model %s: %s\n", lang, stage)
			p.lastStage = key
		}
		return
	}

	label := p.label.Render(fmt.Sprintf("%s %-10s", lang, stage))
	if total <= 0 {
		p.redraw(fmt.Sprintf("%s %s", label, formatBytes(done)))
	} else {
		p.redraw(fmt.Sprintf("%s %s %s / %s", label, p.bar.ViewAs(fraction(done, total)),
			formatBytes(done), formatBytes(total)))
	}
	if total > 0 && done >= total {
		fmt.Fprintln(p.out)
		p.lastLine = ""
	}
}

// Status reports pipeline progress polled from driving.Pipeline.Status.
func (p *progressView) Status(s driving.PipelineStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var line string
	switch {
	case s.Lang != "":
		line = fmt.Sprintf("%s: group %d/%d, %d scores written",
			s.Lang, s.GroupsDone, s.GroupsTotal, s.ScoresWritten)
	case s.MessagesWritten > 0:
		line = fmt.Sprintf("Ingested %d messages", s.MessagesWritten)
	default:
		return
	}

	if !p.tty {
		// Plain output only reports language changes.
		if s.Lang != "" && s.Lang != p.lastStage {
			fmt.Fprintf(p.out, "Scoring %s (%d groups)\n", s.Lang, s.GroupsTotal)
			p.lastStage = s.Lang
		}
		return
	}

	if s.GroupsTotal > 0 {
		line = p.bar.ViewAs(fraction(int64(s.GroupsDone), int64(s.GroupsTotal))) + " " + line
	}
	p.redraw(line)
}

// Done ends an in-place line.
func (p *progressView) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty && p.lastLine != "" {
		fmt.Fprintln(p.out)
	}
	p.lastLine = ""
	p.lastStage = ""
}

func (p *progressView) redraw(line string) {
	if line == p.lastLine {
		return
	}
	// Clear the rest of the previous line.
	fmt.Fprintf(p.out, "\r%s\x1b[K", line)
	p.lastLine = line
}

func fraction(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(done) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
