// Package export 把一次运行的结果渲染成 TSV 文本，并提供下载（写文件）与复制到剪贴板两种出口。
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/John-Robertt/ICCIDX/internal/domain"
	"github.com/John-Robertt/ICCIDX/internal/infra/fsx"
)

const (
	Header     = "MSISDN\tICCID"
	copyMarker = "\n\n=== COPY BELOW ===\n"
	filePrefix = "iccid_results_"
	fileExt    = ".txt"
)

type Options struct {
	// CopyBlock 在表格后追加只含 ICCID 的一列，便于整列粘贴。
	CopyBlock bool
}

// Render 输出表头 + 每条结果一行（与输入同序），行间用 \n 分隔，末尾不带换行。
// 未找到的 ICCID 输出为空字符串。
func Render(results []domain.LookupResult, opts Options) string {
	var b strings.Builder
	b.WriteString(Header)
	for _, r := range results {
		b.WriteByte('\n')
		b.WriteString(string(r.Msisdn))
		b.WriteByte('\t')
		b.WriteString(r.Iccid)
	}
	if opts.CopyBlock {
		b.WriteString(copyMarker)
		for i, r := range results {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(r.Iccid)
		}
	}
	return b.String()
}

// FileName 返回 iccid_results_<unix 毫秒>.txt。
func FileName(now time.Time) string {
	return fmt.Sprintf("%s%d%s", filePrefix, now.UnixMilli(), fileExt)
}

// WriteFile 以 UTF-8 原子写入导出文件，绝不覆盖已有文件（重名时追加 -1、-2…）。返回完整路径。
func WriteFile(dir, text string, now time.Time) (string, error) {
	stem := fmt.Sprintf("%s%d", filePrefix, now.UnixMilli())
	path, err := fsx.WriteFileUnique(dir, stem, fileExt, []byte(text))
	if err != nil {
		return "", fmt.Errorf("写入导出文件失败: %w", err)
	}
	return path, nil
}
