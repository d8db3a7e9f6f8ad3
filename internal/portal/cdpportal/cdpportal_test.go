package cdpportal

import (
	"context"
	"strings"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ICCIDX/internal/portal"
)

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Driver{}.Open(context.Background(), portal.Options{DebuggerURL: "http://127.0.0.1:9222"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portal.url")
}

func TestJSString_EscapesSelectors(t *testing.T) {
	assert.Equal(t, `"button[title=\"go\"]"`, jsString(`button[title="go"]`))
	assert.Equal(t, `"a\u003cb"`, jsString("a<b"))
}

func TestSnippets_EmbedArguments(t *testing.T) {
	js := selectModeJS("select#idtype", "msisdn")
	assert.Contains(t, js, `document.querySelector("select#idtype")`)
	assert.Contains(t, js, `"msisdn".trim().toLowerCase()`)
	assert.Contains(t, js, `new Event("change"`)

	js = setValueJS("input#number", `71"; alert(1); "`)
	assert.Contains(t, js, `el.value = "71\"; alert(1); \"";`)
	assert.Contains(t, js, `new Event("input"`)

	js = clickLabeledJS("button.btn.btn-info", "search")
	assert.True(t, strings.HasPrefix(js, "(() => {"))
	assert.Contains(t, js, `querySelectorAll("button.btn.btn-info")`)
}

func TestExecOptions_FlagsAndBin(t *testing.T) {
	opts := portal.Options{Headless: true, Bin: "/usr/bin/chromium", Flags: []string{"no-sandbox", "window-size=1280,800", " "}}
	got := execOptions(opts)
	// 默认选项 + headless + ExecPath + 两个自定义 flag（空 flag 被忽略）
	assert.Len(t, got, len(chromedp.DefaultExecAllocatorOptions)+4)
}
