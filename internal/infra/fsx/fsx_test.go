package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomicNoOverwrite_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomicNoOverwrite(dir, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, dir)
}

func TestWriteFileAtomicNoOverwrite_ExistingIsKept(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	err := WriteFileAtomicNoOverwrite(dir, "a.txt", []byte("new"))
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 os.ErrExist，实际：%v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(b) != "old" {
		t.Fatalf("已存在的文件被覆盖：%q", string(b))
	}
}

func TestWriteFileAtomicNoOverwrite_LinkUnsupportedFallsBackToRename(t *testing.T) {
	dir := t.TempDir()

	old := linkFunc
	linkFunc = func(oldname, newname string) error { return errors.ErrUnsupported }
	defer func() { linkFunc = old }()

	if err := WriteFileAtomicNoOverwrite(dir, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(b) != "hello" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, dir)
}

func TestWriteFileAtomicNoOverwrite_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	oldLink, oldRename := linkFunc, renameFunc
	linkFunc = func(oldname, newname string) error { return errors.ErrUnsupported }
	renameFunc = func(oldpath, newpath string) error { return os.ErrPermission }
	defer func() { linkFunc, renameFunc = oldLink, oldRename }()

	if err := WriteFileAtomicNoOverwrite(dir, "a.txt", []byte("hello")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("不应写出最终文件：%v", err)
	}
	assertNoTemp(t, dir)
}

func TestWriteFileAtomicNoOverwrite_TargetConflictDir(t *testing.T) {
	dir := t.TempDir()

	// 目标路径是目录：应返回 PathTypeConflictError，而不是 os.ErrExist。
	if err := os.Mkdir(filepath.Join(dir, "a.txt"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	err := WriteFileAtomicNoOverwrite(dir, "a.txt", []byte("hello"))
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestWriteFileUnique_AddsSuffixOnCollision(t *testing.T) {
	dir := t.TempDir()

	p1, err := WriteFileUnique(dir, "iccid_results_1", ".txt", []byte("a"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	p2, err := WriteFileUnique(dir, "iccid_results_1", ".txt", []byte("b"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "iccid_results_1-2.txt"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	p3, err := WriteFileUnique(dir, "iccid_results_1", ".txt", []byte("c"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	want := []string{"iccid_results_1.txt", "iccid_results_1-1.txt", "iccid_results_1-3.txt"}
	for i, p := range []string{p1, p2, p3} {
		if filepath.Base(p) != want[i] {
			t.Fatalf("第 %d 次写入期望 %q，实际 %q", i+1, want[i], filepath.Base(p))
		}
	}
	b, _ := os.ReadFile(p1)
	if string(b) != "a" {
		t.Fatalf("首个文件被覆盖：%q", string(b))
	}
}

func TestWriteFileUnique_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports", "today")

	p, err := WriteFileUnique(dir, "x", ".txt", []byte("a"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if filepath.Dir(p) != dir {
		t.Fatalf("写入目录不符合预期：%q", p)
	}
}
