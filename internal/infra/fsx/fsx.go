package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 可替换的函数指针，让测试能稳定模拟 link/rename 失败。
var (
	linkFunc   = os.Link
	renameFunc = os.Rename
)

// maxUnique 是 WriteFileUnique 尝试的后缀上限。
const maxUnique = 1000

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// WriteFileAtomicNoOverwrite 在 dir 下原子写入 name（临时文件 + link）。
//
// - 临时文件与目标同目录，link/rename 不会跨文件系统
// - 目标已存在时返回 os.ErrExist，绝不覆盖
// - 文件系统不支持硬链接时退化为“先检查再 rename”
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	dst := filepath.Join(filepath.Clean(dir), name)
	if err := checkAbsent(dst); err != nil {
		return err
	}
	return writeFileAtomic(dir, name, data, 0o644)
}

// WriteFileUnique 写入 <stem><ext>；已存在时依次尝试 <stem>-1<ext>、<stem>-2<ext>…
// 返回实际写入的完整路径。
func WriteFileUnique(dir, stem, ext string, data []byte) (string, error) {
	dir = filepath.Clean(dir)
	for i := 0; i < maxUnique; i++ {
		name := stem + ext
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		err := WriteFileAtomicNoOverwrite(dir, name, data)
		if err == nil {
			return filepath.Join(dir, name), nil
		}
		if errors.Is(err, os.ErrExist) || IsPathTypeConflict(err) {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("%s 下已存在过多同名文件：%s*%s", dir, stem, ext)
}

func checkAbsent(dst string) error {
	fi, err := os.Lstat(dst)
	if err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		if !fi.Mode().IsRegular() {
			return &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
		}
		return os.ErrExist
	}
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 临时文件以 '.' 开头，下载目录里不显眼。
	tmp, err := os.CreateTemp(dir, "."+strings.TrimPrefix(name, ".")+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil && runtime.GOOS != "windows" {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := linkFunc(tmpName, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return os.ErrExist
		}
		// 不支持硬链接（部分网络盘/FAT）：再检查一次后 rename。
		if err := checkAbsent(dst); err != nil {
			return err
		}
		if err := renameFunc(tmpName, dst); err != nil {
			return err
		}
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
