package widget

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/anime-shed/weld-inspector-go/internal/picker"
	"github.com/anime-shed/weld-inspector-go/internal/preview"
	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

const (
	Title          = "Predict Image"
	FileLabel      = "Select an image:"
	TriggerLabel   = "Inspect"
	InspectingText = "Inspecting image..."
	ResultsHeading = "Results:"
	PreviewHeading = "Uploaded Image:"
	AcceptedBadge  = "✔ Accepted"
	RejectedBadge  = "✘ Rejected"
)

// Screen is everything the widget displays for one state. Render builds it
// without side effects; View turns it into styled text.
type Screen struct {
	FileName        string
	TriggerDisabled bool

	// Exactly one of the fields below is set, or none in plain Idle.
	Alert  string
	Info   string
	Result *ResultPanel
}

// ResultPanel is the Succeeded section.
type ResultPanel struct {
	Accepted   bool
	Badge      string
	Confidence string
	PreviewURL string
	PreviewDim string
}

// Render maps state to a Screen.
func Render(status Status, file *picker.SelectedFile, ref *preview.Ref) Screen {
	s := Screen{}
	if file != nil {
		s.FileName = file.Name
	}

	switch st := status.(type) {
	case Idle:
		s.Alert = st.Notice
	case Submitting:
		s.TriggerDisabled = true
		s.Info = InspectingText
	case Succeeded:
		s.Result = resultPanel(st.Prediction, ref)
	case Failed:
		s.Alert = st.Message
	}
	return s
}

func resultPanel(p models.Prediction, ref *preview.Ref) *ResultPanel {
	panel := &ResultPanel{
		Accepted:   p.IsAccepted(),
		Badge:      RejectedBadge,
		Confidence: "Confidence: " + p.Details,
	}
	if panel.Accepted {
		panel.Badge = AcceptedBadge
	}
	if ref != nil {
		panel.PreviewURL = ref.URL()
		panel.PreviewDim = fmt.Sprintf("%dx%d", ref.Width, ref.Height)
	}
	return panel
}

// Screen renders the widget's current state.
func (w *Widget) Screen() Screen {
	return Render(w.status, w.file, w.preview)
}

// View renders the widget as terminal text.
func (w *Widget) View() string {
	return RenderView(w.Screen(), "")
}

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

const (
	colorRed      lipgloss.Color = "#f38ba8"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorText     lipgloss.Color = "#cdd6f4"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(colorText)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorOverlay1)
	triggerStyle  = lipgloss.NewStyle().Foreground(colorBlue).Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(colorBlue)
	disabledStyle = triggerStyle.Foreground(colorSurface1).BorderForeground(colorSurface1).Bold(false)
	alertStyle    = lipgloss.NewStyle().Foreground(colorRed).Padding(0, 1).Border(lipgloss.NormalBorder()).BorderForeground(colorRed)
	infoStyle     = alertStyle.Foreground(colorTeal).BorderForeground(colorTeal)
	acceptStyle   = alertStyle.Foreground(colorGreen).BorderForeground(colorGreen).Bold(true)
	rejectStyle   = alertStyle.Bold(true)
)

// RenderView draws a Screen. spinner is prefixed to the info notice when
// the host animates one.
func RenderView(s Screen, spinner string) string {
	var lines []string
	lines = append(lines, titleStyle.Render(Title), "")

	name := mutedStyle.Render("(none)")
	if s.FileName != "" {
		name = labelStyle.Render(s.FileName)
	}
	lines = append(lines, labelStyle.Render(FileLabel)+" "+name)

	trigger := triggerStyle
	if s.TriggerDisabled {
		trigger = disabledStyle
	}
	lines = append(lines, trigger.Render(TriggerLabel))

	switch {
	case s.Alert != "":
		lines = append(lines, alertStyle.Render(s.Alert))
	case s.Info != "":
		text := s.Info
		if spinner != "" {
			text = spinner + " " + text
		}
		lines = append(lines, infoStyle.Render(text))
	case s.Result != nil:
		lines = append(lines, "", titleStyle.Render(ResultsHeading))
		badge := rejectStyle
		if s.Result.Accepted {
			badge = acceptStyle
		}
		lines = append(lines, badge.Render(s.Result.Badge), labelStyle.Render(s.Result.Confidence))
		if s.Result.PreviewURL != "" {
			lines = append(lines,
				labelStyle.Render(PreviewHeading),
				mutedStyle.Render(s.Result.PreviewURL+" ("+s.Result.PreviewDim+")"))
		}
	}

	return strings.Join(lines, "\n")
}
