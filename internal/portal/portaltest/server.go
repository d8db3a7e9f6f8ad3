// Package portaltest 提供一个最小的门户页面（httptest），供浏览器适配器的集成测试使用。
package portaltest

import (
	"net/http"
	"net/http/httptest"
	"strings"
)

// Known 是测试门户里“存在”的号码及其 ICCID。
var Known = map[string]string{
	"717814328": "8925263790000111111",
	"717519988": "8925263790000222222",
}

// NewServer 启动测试门户；mutate 可以改写页面（例如删掉某个控件来模拟改版）。
func NewServer(mutate func(page string) string) *httptest.Server {
	page := Page()
	if mutate != nil {
		page = mutate(page)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})
	return httptest.NewServer(mux)
}

// Page 返回测试门户 HTML：选择 msisdn、输入号码、点击 Search 后 150ms 渲染结果。
func Page() string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html><head><title>Customer Care</title></head>
<body>
<a href="#" id="home"><img class="logoImg" alt="home" width="20" height="20"></a>
<select id="idtype"><option value="0">choose</option><option value="1">MSISDN</option></select>
<input id="number" type="text">
<button class="btn btn-info" type="button" id="go">Search</button>
<div id="out"></div>
<script>
const known = {`)
	first := true
	for k, v := range Known {
		if !first {
			b.WriteString(",")
		}
		first = false
		b.WriteString(`"` + k + `":"` + v + `"`)
	}
	b.WriteString(`};
document.getElementById('home').addEventListener('click', (e) => {
  e.preventDefault();
  document.getElementById('out').innerHTML = '';
  document.getElementById('number').value = '';
});
document.getElementById('go').addEventListener('click', () => {
  const mode = document.getElementById('idtype').value;
  const n = document.getElementById('number').value.trim();
  setTimeout(() => {
    const out = document.getElementById('out');
    if (mode !== '1') { out.innerHTML = '<div class="alert alert-danger">Select a search type</div>'; return; }
    if (known[n]) {
      out.innerHTML = '<div class="customer-details-ans text-break">' + known[n] + '</div>';
    } else {
      out.innerHTML = '<p>Subscriber not found</p>';
    }
  }, 150);
});
</script>
</body></html>`)
	return b.String()
}
