package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/John-Robertt/ICCIDX/internal/export"
)

// Actions 是结果框里 c/d 两个按键的实际动作（由 cmd 层注入）。
type Actions struct {
	Copy     func(text string) export.Method
	Download func(text string) (string, error)
}

// PreviewModel 是只读的结果预览框：c 复制，d 下载，q/esc 关闭。
type PreviewModel struct {
	viewport viewport.Model
	title    string
	text     string
	actions  Actions
	styles   styles

	status  string
	failed  bool
	width   int
	height  int
	closed  bool
	copies  int
	written []string
}

func NewPreview(title, text string, actions Actions) PreviewModel {
	vp := viewport.New(72, 16)
	vp.SetContent(text)
	return PreviewModel{viewport: vp, title: title, text: text, actions: actions, styles: defaultStyles()}
}

func (m PreviewModel) Init() tea.Cmd { return nil }

func (m PreviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.closed = true
			return m, tea.Quit
		case "c":
			method := export.MethodOSC52
			if m.actions.Copy != nil {
				method = m.actions.Copy(m.text)
			}
			m.copies++
			m.failed = false
			m.status = fmt.Sprintf("Copied to clipboard (%s)", method)
			return m, nil
		case "d":
			if m.actions.Download == nil {
				return m, nil
			}
			path, err := m.actions.Download(m.text)
			if err != nil {
				m.failed = true
				m.status = "Download failed: " + err.Error()
				return m, nil
			}
			m.written = append(m.written, path)
			m.failed = false
			m.status = "Saved " + path
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if w := msg.Width - 6; w > 20 {
			m.viewport.Width = w
		}
		if h := msg.Height - 8; h > 3 {
			m.viewport.Height = h
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m PreviewModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.status != "" {
		if m.failed {
			b.WriteString(m.styles.Warning.Render(m.status))
		} else {
			b.WriteString(m.styles.Status.Render(m.status))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("c copy • d download • q close"))
	return centered(m.width, m.height, m.styles.Box.Render(b.String()))
}

// Written 返回在预览框中通过 d 写出的文件。
func (m PreviewModel) Written() []string {
	return append([]string(nil), m.written...)
}

// Preview 打开结果框并阻塞到关闭；返回期间下载的文件路径。
func Preview(ctx context.Context, in io.Reader, out io.Writer, title, text string, actions Actions) ([]string, error) {
	p := tea.NewProgram(NewPreview(title, text, actions),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("结果框异常退出: %w", err)
	}
	if m, ok := final.(PreviewModel); ok {
		return m.Written(), nil
	}
	return nil, nil
}
