package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/John-Robertt/ICCIDX/internal/input"
)

const (
	collectorTitle       = "Paste MSISDNs (one per line)"
	collectorPlaceholder = "717814328\n717519988"
)

// CollectorModel 是输入模态框：ctrl+s 提交，esc/ctrl+c 取消。
// 空输入或没有任何有效号码时只显示警告，模态框保持打开。
type CollectorModel struct {
	textarea textarea.Model
	opts     input.Options
	styles   styles

	warning  string
	parsed   input.Parsed
	done     bool
	canceled bool
	width    int
	height   int
}

func NewCollector(opts input.Options) CollectorModel {
	ta := textarea.New()
	ta.Placeholder = collectorPlaceholder
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetWidth(48)
	ta.SetHeight(12)
	ta.Focus()
	return CollectorModel{textarea: ta, opts: opts, styles: defaultStyles()}
}

func (m CollectorModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m CollectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			m.canceled = true
			return m, tea.Quit
		case "ctrl+s":
			parsed, err := input.Parse(m.textarea.Value(), m.opts)
			if err != nil {
				m.warning = err.Error()
				return m, nil
			}
			m.parsed = parsed
			m.done = true
			return m, tea.Quit
		}
		// 继续编辑时清掉上一次的警告。
		m.warning = ""
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w := msg.Width - 6
		if w > 80 {
			w = 80
		}
		if w > 20 {
			m.textarea.SetWidth(w)
		}
		if h := msg.Height - 8; h > 3 {
			m.textarea.SetHeight(h)
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m CollectorModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(collectorTitle))
	b.WriteString("\n\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	if m.warning != "" {
		b.WriteString(m.styles.Warning.Render(m.warning))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("ctrl+s submit • esc cancel"))
	return centered(m.width, m.height, m.styles.Box.Render(b.String()))
}

// Result 返回提交的解析结果；取消或未提交时 ok=false。
func (m CollectorModel) Result() (input.Parsed, bool) {
	if !m.done || m.canceled {
		return input.Parsed{}, false
	}
	return m.parsed, true
}

// Collect 在终端上打开输入模态框并阻塞到提交或取消。
// 界面输出写到 out（通常是 stderr），stdout 不受影响。
func Collect(ctx context.Context, in io.Reader, out io.Writer, opts input.Options) (input.Parsed, bool, error) {
	p := tea.NewProgram(NewCollector(opts),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return input.Parsed{}, false, fmt.Errorf("输入框异常退出: %w", err)
	}
	m, ok := final.(CollectorModel)
	if !ok {
		return input.Parsed{}, false, nil
	}
	parsed, ok := m.Result()
	return parsed, ok, nil
}
