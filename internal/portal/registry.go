package portal

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Driver 负责打开一个门户会话（启动或附着浏览器、定位页面）。
type Driver interface {
	Name() string
	Open(ctx context.Context, opts Options) (Portal, error)
}

// Registry 是 driver 的只读注册表（按 name 索引，大小写不敏感）。
type Registry struct {
	byName map[string]Driver
}

func NewRegistry(drivers ...Driver) (Registry, error) {
	byName := make(map[string]Driver, len(drivers))
	for _, d := range drivers {
		if d == nil {
			return Registry{}, fmt.Errorf("driver 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(d.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("driver.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 driver：%q", name)
		}
		byName[name] = d
	}
	return Registry{byName: byName}, nil
}

func (r Registry) Get(name string) (Driver, bool) {
	if r.byName == nil {
		return nil, false
	}
	d, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// Names 按字典序返回已注册的 driver 名称（用于帮助信息与报错）。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
