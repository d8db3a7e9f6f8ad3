package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig 对应 iccidx.yaml 的解析结构。
// 指针字段用于区分“未写”和“写了零值”（例如 headless: false）。
type FileConfig struct {
	Portal  PortalFile  `yaml:"portal"`
	Browser BrowserFile `yaml:"browser"`
	Input   InputFile   `yaml:"input"`
	ICCID   ICCIDFile   `yaml:"iccid"`
	Timing  TimingFile  `yaml:"timing"`
	Export  ExportFile  `yaml:"export"`
	Log     LogFile     `yaml:"log"`
	Metrics MetricsFile `yaml:"metrics"`
}

type PortalFile struct {
	URL       string        `yaml:"url"`
	Selectors SelectorsFile `yaml:"selectors"`
}

type SelectorsFile struct {
	Home          string   `yaml:"home"`
	ModeSelect    string   `yaml:"mode_select"`
	ModeOption    string   `yaml:"mode_option"`
	Query         string   `yaml:"query"`
	SubmitButton  string   `yaml:"submit_button"`
	SubmitLabel   string   `yaml:"submit_label"`
	Result        string   `yaml:"result"`
	Alert         string   `yaml:"alert"`
	NotFoundText  string   `yaml:"not_found_text"`
	AlertNotFound []string `yaml:"alert_not_found"`
}

type BrowserFile struct {
	Driver      string    `yaml:"driver"`
	DebuggerURL string    `yaml:"debugger_url"`
	Bin         string    `yaml:"bin"`
	Headless    *bool     `yaml:"headless"`
	Stealth     *bool     `yaml:"stealth"`
	Flags       []string  `yaml:"flags"`
	NavTimeout  *Duration `yaml:"nav_timeout"`
}

type InputFile struct {
	Mode   string `yaml:"mode"`
	Region string `yaml:"region"`
}

type ICCIDFile struct {
	StripPrefix *bool   `yaml:"strip_prefix"`
	Prefix      *string `yaml:"prefix"`
}

type TimingFile struct {
	HomeSettle   *Duration `yaml:"home_settle"`
	ModeSettle   *Duration `yaml:"mode_settle"`
	QuerySettle  *Duration `yaml:"query_settle"`
	SubmitSettle *Duration `yaml:"submit_settle"`
	PollInterval *Duration `yaml:"poll_interval"`
	PollTimeout  *Duration `yaml:"poll_timeout"`
	Cooldown     *Duration `yaml:"cooldown"`
}

type ExportFile struct {
	Dir       string `yaml:"dir"`
	CopyBlock bool   `yaml:"copy_block"`
	Clipboard *bool  `yaml:"clipboard"`
	Preview   *bool  `yaml:"preview"`
}

type LogFile struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type MetricsFile struct {
	Textfile string `yaml:"textfile"`
}

// Duration 接受 Go duration 字符串（"1.2s"、"300ms"）或整数毫秒。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("第 %d 行：时长必须是标量", n.Line)
	}
	v := strings.TrimSpace(n.Value)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("第 %d 行：无效时长 %q", n.Line, v)
	}
	*d = Duration(parsed)
	return nil
}

// Or 在未配置时返回 def。
func (d *Duration) Or(def time.Duration) time.Duration {
	if d == nil {
		return def
	}
	return time.Duration(*d)
}

// readFileConfig 读取并解析 YAML 配置文件；未知字段视为错误。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return FileConfig{}, true, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
