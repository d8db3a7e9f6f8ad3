// Package tui 提供两个终端模态框：粘贴 MSISDN 的输入框与结果预览框。
// 两者都由 bubbletea 程序托管生命周期，任何退出路径都会恢复终端状态。
package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Box     lipgloss.Style
	Title   lipgloss.Style
	Warning lipgloss.Style
	Status  lipgloss.Style
	Help    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// centered 把模态框放在终端中央（尺寸未知时原样返回）。
func centered(width, height int, s string) string {
	if width <= 0 || height <= 0 {
		return s
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, s)
}
