package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/John-Robertt/ICCIDX/internal/export"
)

func TestPreview_CopyDownloadClose(t *testing.T) {
	var copied string
	var downloads int
	m := NewPreview("Results", "MSISDN,ICCID\n717814328,111", Actions{
		Copy: func(text string) export.Method { copied = text; return "clipboard" },
		Download: func(text string) (string, error) {
			downloads++
			if downloads == 2 {
				return "", errors.New("disk full")
			}
			return "/tmp/iccid_results_1.txt", nil
		},
	})

	next, cmd := m.Update(key("c"))
	m = next.(PreviewModel)
	if cmd != nil && isQuit(cmd) {
		t.Fatalf("c 不应关闭")
	}
	if copied != "MSISDN,ICCID\n717814328,111" || !strings.Contains(m.status, "clipboard") {
		t.Fatalf("copied=%q status=%q", copied, m.status)
	}

	next, _ = m.Update(key("d"))
	m = next.(PreviewModel)
	if m.failed || !strings.Contains(m.status, "/tmp/iccid_results_1.txt") {
		t.Fatalf("status=%q failed=%v", m.status, m.failed)
	}

	next, _ = m.Update(key("d"))
	m = next.(PreviewModel)
	if !m.failed || !strings.Contains(m.status, "disk full") {
		t.Fatalf("下载失败应提示：%q", m.status)
	}
	if got := m.Written(); len(got) != 1 {
		t.Fatalf("written=%v", got)
	}

	for _, k := range []string{"q", "esc"} {
		_, cmd := m.Update(key(k))
		if !isQuit(cmd) {
			t.Fatalf("%s 应关闭结果框", k)
		}
	}
}

func TestPreview_ViewShowsText(t *testing.T) {
	m := NewPreview("Results", "MSISDN,ICCID\n717814328,111", Actions{})
	v := m.View()
	for _, want := range []string{"Results", "717814328,111", "c copy"} {
		if !strings.Contains(v, want) {
			t.Fatalf("View 缺少 %q", want)
		}
	}
}
