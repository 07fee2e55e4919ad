package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"dictate/pipeline"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type stateMsg struct{ State pipeline.State }
type levelMsg struct{ Level float64 }
type deliveredMsg struct{ Raw, Formatted string }
type abandonedMsg struct{ Reason pipeline.Reason }
type tickMsg time.Time

// tuiInfo is the static session description shown under the eye.
type tuiInfo struct {
	Mode     string
	Key      string
	Provider string
	Device   string
	Paste    bool
}

type tuiModel struct {
	info  tuiInfo
	stats *sessionStats

	state         pipeline.State
	recStart      time.Time
	recDuration   float64
	frame         int
	audioLevel    float64
	peakLevel     float64
	width, height int

	count      int
	lastRaw    string
	lastText   string
	lastReason pipeline.Reason
}

// Eye palettes, center to rim. Index 0 is empty.
var (
	eyeIdle       = []string{"", "231", "224", "217", "210", "160", "124", "88", "52", "236", "236"}
	eyeRecording  = []string{"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236"}
	eyeProcessing = []string{"", "231", "195", "159", "123", "87", "39", "33", "27", "17", "236"}

	eyeStyles = map[pipeline.State][]lipgloss.Style{
		pipeline.Idle:       paletteStyles(eyeIdle),
		pipeline.Recording:  paletteStyles(eyeRecording),
		pipeline.Processing: paletteStyles(eyeProcessing),
	}
)

func paletteStyles(colors []string) []lipgloss.Style {
	styles := make([]lipgloss.Style, len(colors))
	for i, c := range colors {
		if c != "" {
			styles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		}
	}
	return styles
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		if m.state == pipeline.Recording {
			m.recDuration = time.Time(msg).Sub(m.recStart).Seconds()
		}
		return m, tuiTick()

	case stateMsg:
		if msg.State == pipeline.Recording {
			m.recStart = time.Now()
			m.recDuration = 0
			m.peakLevel = 0
			m.lastReason = ""
		}
		if msg.State != pipeline.Recording {
			m.audioLevel = 0
		}
		m.state = msg.State

	case levelMsg:
		if m.state == pipeline.Recording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
			m.peakLevel = max(m.peakLevel, msg.Level)
		}

	case deliveredMsg:
		m.count++
		m.lastRaw = msg.Raw
		m.lastText = msg.Formatted
		m.lastReason = ""

	case abandonedMsg:
		m.lastReason = msg.Reason
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case pipeline.Recording:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).
			Render(fmt.Sprintf("● REC %.1fs", m.recDuration))
	case pipeline.Processing:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).
			Render("◌ PROCESSING" + strings.Repeat(".", m.frame/5%4))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("○ STANDBY")
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const eyeWidth = 36
	gray := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	var left []string
	left = append(left, strings.Split(renderEye(m.frame, m.audioLevel, m.state), "\n")...)
	left = append(left, m.statusLine())
	if m.state == pipeline.Recording && m.recDuration > 1.0 && m.peakLevel < 0.02 {
		left = append(left, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("  ⚠ no voice detected"))
	}
	paste := "copy only"
	if m.info.Paste {
		paste = "auto-paste"
	}
	left = append(left,
		lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(fmt.Sprintf("[%s | %s | %s]", m.info.Mode, m.info.Provider, paste)),
		gray.Render("mic: "+m.info.Device),
	)
	if table := renderLatencyTable(m.stats); table != "" {
		left = append(left, "")
		for _, line := range strings.Split(table, "\n") {
			left = append(left, gray.Render(line))
		}
	}
	left = append(left, "",
		lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true).Render(m.info.Key)+dim.Render(" hold to talk, q to quit"),
		dim.Render("dictate "+version),
	)

	logWidth := max(m.width-eyeWidth-1, 20)
	wrapWidth := max(logWidth-2, 10)

	var right strings.Builder
	if m.lastText != "" {
		right.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("246")).
			Render(fmt.Sprintf("Last delivery (#%d)", m.count)) + "\n\n")
		text := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
		for _, line := range wrapText(m.lastText, wrapWidth) {
			right.WriteString(text.Render(line) + "\n")
		}
		right.WriteString("\n")
		raw := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		for _, line := range wrapText("heard: "+m.lastRaw, wrapWidth) {
			right.WriteString(raw.Render(line) + "\n")
		}
	} else {
		right.WriteString(gray.Render("Nothing delivered yet"))
	}
	if m.lastReason != "" {
		color := "208"
		if m.lastReason.Failed() {
			color = "196"
		}
		right.WriteString("\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color(color)).
			Render("last utterance dropped: "+reasonText(m.lastReason)))
	}

	leftPanel := lipgloss.NewStyle().Width(eyeWidth - 1).Height(m.height).Render(strings.Join(left, "\n"))
	rightPanel := lipgloss.NewStyle().Width(logWidth).Height(m.height).PaddingLeft(1).Render(right.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func reasonText(r pipeline.Reason) string {
	switch r {
	case pipeline.ReasonNoAudio:
		return "too short"
	case pipeline.ReasonNoTranscript:
		return "no speech detected"
	case pipeline.ReasonShutdown:
		return "shutting down"
	default:
		return strings.ReplaceAll(string(r), "_", " ")
	}
}

// renderEye draws concentric rings with half-block characters. Rings swell
// with the input level while recording.
func renderEye(frame int, level float64, state pipeline.State) string {
	const charsW, charsH = 34, 12
	const pixH = charsH * 2
	styles := eyeStyles[state]

	var breathe float64
	switch state {
	case pipeline.Recording:
		breathe = math.Sin(float64(frame)*0.10)*0.03 + level*10.0 - 0.05
	case pipeline.Processing:
		breathe = math.Sin(float64(frame)*0.30) * 0.06
	default:
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	rings := []struct {
		radius, react float64
	}{
		{0.6, 0.10}, {1.3, 0.12}, {2.0, 0.15}, {2.8, 0.35}, {3.5, 0.40},
		{4.2, 0.38}, {5.0, 0.30}, {5.8, 0.15}, {6.5, 0.03}, {8.0, 0},
	}
	pixel := func(x, y int) int {
		dx := float64(x) - charsW/2
		dy := float64(y) - pixH/2
		dist := math.Sqrt(dx*dx + dy*dy)
		for i, r := range rings {
			if dist < min(r.radius+breathe*r.react*20, 8.0) {
				return i + 1
			}
		}
		return 0
	}

	var b strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			top, bot := pixel(cx, cy*2), pixel(cx, cy*2+1)
			switch {
			case top == 0 && bot == 0:
				b.WriteString(" ")
			case top == bot || bot == 0:
				ch := "█"
				if bot == 0 {
					ch = "▀"
				}
				b.WriteString(styles[top].Render(ch))
			case top == 0:
				b.WriteString(styles[bot].Render("▄"))
			default:
				b.WriteString(styles[top].Background(lipgloss.Color(colorAt(state, bot))).Render("▀"))
			}
		}
		if cy < charsH-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func colorAt(state pipeline.State, i int) string {
	switch state {
	case pipeline.Recording:
		return eyeRecording[i]
	case pipeline.Processing:
		return eyeProcessing[i]
	default:
		return eyeIdle[i]
	}
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

func renderLatencyTable(stats *sessionStats) string {
	if stats == nil {
		return ""
	}
	p, ok := stats.Latency()
	if !ok {
		return ""
	}
	return fmt.Sprintf(
		"        %5s %5s %5s %5s %5s\n"+
			"ms      %5.0f %5.0f %5.0f %5.0f %5.0f\n"+
			"sent %d, dropped %d",
		"min", "p50", "p90", "p95", "max",
		p[0], p[1], p[2], p[3], p[4],
		stats.Count(), stats.Abandons(),
	)
}

// tuiView runs the status screen and feeds it pipeline events.
type tuiView struct {
	program *tea.Program
}

func newTUIView(info tuiInfo, stats *sessionStats) *tuiView {
	m := tuiModel{info: info, stats: stats}
	return &tuiView{program: tea.NewProgram(m, tea.WithAltScreen())}
}

func (v *tuiView) Run() error {
	_, err := v.program.Run()
	return err
}

func (v *tuiView) Quit() { v.program.Quit() }

func (v *tuiView) Level(rms float64) { v.program.Send(levelMsg{Level: rms}) }

func (v *tuiView) StateChanged(s pipeline.State) { v.program.Send(stateMsg{State: s}) }

func (v *tuiView) Delivered(u pipeline.Utterance) {
	v.program.Send(deliveredMsg{Raw: u.RawTranscript, Formatted: u.FormattedText})
}

func (v *tuiView) Abandoned(_ pipeline.Utterance, reason pipeline.Reason) {
	v.program.Send(abandonedMsg{Reason: reason})
}
