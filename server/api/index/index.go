// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package index 提供服務主頁：一張靜態的 endpoint 導覽表。
// 不做 templating，也不依賴任何 runtime 狀態，純粹讓人打開 root 時不迷路。
package index

import "net/http"

const indexHTML = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <link rel="icon" type="image/svg+xml" href="/favicon.svg" />
  <title>ShuffleLab</title>
  <style>
    body { font-family: -apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif; background:#0f172a; color:#e2e8f0; margin:0; }
    .wrap { max-width: 720px; margin: 48px auto; padding: 20px 24px; background:#111827; border:1px solid #1f2937; border-radius:12px; }
    h1 { margin: 0 0 6px; font-size: 24px; }
    p  { margin: 0 0 18px; color:#94a3b8; font-size: 14px; }
    table { width:100%; border-collapse: collapse; font-size: 14px; }
    th, td { text-align:left; padding: 8px 10px; border-bottom: 1px solid #1f2937; }
    th { color:#94a3b8; font-weight: 500; }
    code { background:#0b1224; border:1px solid #1f2738; border-radius:6px; padding:2px 6px; font-size:13px; }
    a { color:#38bdf8; text-decoration: none; }
    a:hover { text-decoration: underline; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>ShuffleLab</h1>
    <p>elitist shuffle probability lab</p>
    <table>
      <tr><th>Endpoint</th><th>Method</th><th>用途</th></tr>
      <tr><td><a href="/dev">/dev</a></td><td>GET</td><td>Dev Panel（互動洗牌 / 模擬）</td></tr>
      <tr><td><code>/v1/shuffle</code></td><td>GET / POST</td><td>單次洗牌（feed 或 fid + n / inequality）</td></tr>
      <tr><td><code>/v1/sim</code></td><td>GET / POST</td><td>落點統計模擬（fid + trials）</td></tr>
      <tr><td><code>/v1/simseeds</code></td><td>GET / POST</td><td>多種子流離散度模擬（fid + streams + trials）</td></tr>
      <tr><td><code>/v1/simbycfg</code></td><td>POST</td><td>臨時設定檔模擬（cfg JSON + trials）</td></tr>
      <tr><td><code>/v1/stat</code></td><td>POST</td><td>離線排列資料統計（perm 陣列）</td></tr>
    </table>
  </div>
</body>
</html>`

// IndexHandlerFn 回傳服務主頁。
func IndexHandlerFn(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}
