package input

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Sources 描述一次运行的输入来源；多个来源按“参数 -> 文件 -> 管道”顺序拼接为一段文本。
type Sources struct {
	Args []string
	// File 为 "-" 时读取 Stdin。
	File  string
	Stdin io.Reader
	// ReadStdin 表示 stdin 是管道/重定向（非终端），需要读取。
	ReadStdin bool
}

// Empty 表示没有任何非交互来源：上层据此决定是否弹出输入框。
func (s Sources) Empty() bool {
	return len(s.Args) == 0 && strings.TrimSpace(s.File) == "" && !s.ReadStdin
}

// Read 读取全部来源并拼接为原始文本（不做解析）。
func Read(s Sources) (string, error) {
	var parts []string
	if len(s.Args) > 0 {
		parts = append(parts, strings.Join(s.Args, "\n"))
	}

	stdinUsed := false
	switch f := strings.TrimSpace(s.File); f {
	case "":
	case "-":
		b, err := readAll(s.Stdin)
		if err != nil {
			return "", fmt.Errorf("读取 stdin 失败：%w", err)
		}
		stdinUsed = true
		parts = append(parts, b)
	default:
		b, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("读取输入文件失败：%w", err)
		}
		parts = append(parts, stripBOM(b))
	}

	if s.ReadStdin && !stdinUsed {
		b, err := readAll(s.Stdin)
		if err != nil {
			return "", fmt.Errorf("读取 stdin 失败：%w", err)
		}
		parts = append(parts, b)
	}
	return strings.Join(parts, "\n"), nil
}

func readAll(r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return stripBOM(b), nil
}

// stripBOM 去掉 UTF-8 BOM（常见于 Windows 记事本导出的列表）。
func stripBOM(b []byte) string {
	return strings.TrimPrefix(string(b), "\ufeff")
}
