// Package dev 提供 ShuffleLab 的「內部 Dev Panel」HTTP endpoints。
//
// 目的（ explain the why ）：
//   - 給數學家 / 後端在開發期快速驗證：指定 Feed、n / Inequality 覆寫、Seed / Snap，然後執行 Shuffle 或 Sim。
//   - 支援可回放（replay）：把 Snapshot（Snap）以字串形式在前端顯示，並可貼回後端做 Restore。
//
// 注意（ contract ）：
//   - 這不是 production API；它偏向 debug / tooling，行為允許更寬鬆，但仍需維持 deterministic concludes。
//   - 這裡的錯誤處理走 `httperr.Errs`（以 errs.Warn/errs.Fatal 對應 HTTP response）。
//   - Seed/Snap 的互斥與優先級由前端 + 後端共同保證（Snap takes precedence）。
package dev

import (
	"crypto/rand"
	"embed"
	"encoding/json"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/zintix-labs/shufflelab"
	"github.com/zintix-labs/shufflelab/catalog"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/server/httperr"
	"github.com/zintix-labs/shufflelab/server/netsvr"
	"github.com/zintix-labs/shufflelab/server/svrcfg"
)

// devRequest 是 Dev Panel 的「輸入 payload」。
//
// 兼容性（backward compatibility）：
//   - 同時保留 `n` 與舊欄位 `count`（NAlt）。
//   - 同時保留 `inequality` 與縮寫欄位 `q`（InequalityAlt）。
//   - 同時保留 `rounds` 與舊欄位 `round`。
//   - `fid` 與 `feed` 兩者擇一即可；若兩者同時存在，後端會優先使用 fid 做解析。
//
// Seed / Snap：
//   - Seed（int64 string）用於 deterministic 起始；若為空字串則自動生成（crypto/rand）。
//   - Snap（base64url string）代表 core snapshot；若提供 Snap，則後端以 Snap Restore 為準（Snap precedence）。
//
// 注意：
//   - 這個 struct 是 API 邊界用的 DTO；不要把它滲透到 shuffle logic / math domain。
type devRequest struct {
	FID           int64    `json:"fid"`
	Feed          string   `json:"feed"`
	N             *int     `json:"n"`
	NAlt          *int     `json:"count"`
	Inequality    *float64 `json:"inequality"`
	InequalityAlt *float64 `json:"q"`
	Rounds        int      `json:"rounds"`
	Round         int      `json:"round"`
	Seed          string   `json:"seed"`
	Snap          string   `json:"snap"`
}

// round() 將 rounds/round 做兼容合併：優先 rounds，其次 round；若都未提供則回 0。
func (r devRequest) round() int {
	if r.Rounds > 0 {
		return r.Rounds
	}
	if r.Round > 0 {
		return r.Round
	}
	return 0
}

// n() 將 n/count 做兼容合併：優先 n，其次 count；未提供時回 0，交由 Shuffler 採用設定檔清單長度。
func (r devRequest) n() int {
	if r.N != nil {
		return *r.N
	}
	if r.NAlt != nil {
		return *r.NAlt
	}
	return 0
}

// inequality() 將 inequality/q 做兼容合併：優先 inequality，其次 q。
// 第二個回傳值代表「是否有提供」；未提供時交由 Shuffler 解析設定檔值（含 tuned）。
func (r devRequest) inequality() (float64, bool) {
	if r.Inequality != nil {
		return *r.Inequality, true
	}
	if r.InequalityAlt != nil {
		return *r.InequalityAlt, true
	}
	return 0, false
}

// Register 註冊 Dev Panel 的 routes。
//
// Routes：
//   - GET  /dev          ：Dev Panel HTML（內嵌 JS）。
//   - GET  /dev/meta     ：回傳 Catalog summary（供前端下拉選單：Feed）。
//   - POST /dev/shuffle  ：執行 N 次 Shuffle 並回傳每回合結果（含 start_b64u/after_b64u）。
//   - POST /dev/sim      ：執行 N 次 Sim 並回傳統計報表（不回傳逐回合 results）。
//
// 依賴（dependency）：
//   - 需要 cfg.Lab 已被上層組裝完成並注入；否則會回 errs.Fatal。
func Register(svr netsvr.NetRouter, cfg *svrcfg.SvrCfg) {
	svr.Get("/dev", devPage)
	svr.Get("/favicon.svg", favicon)
	svr.Get("/dev/meta", devMeta(cfg))
	svr.Post("/dev/shuffle", devShuffle(cfg))
	svr.Post("/dev/sim", devSim(cfg))
}

// devPageHTML 是內嵌的 Dev Panel UI。
//
// UI 行為（contract）：
//   - Feed：由 /dev/meta 動態載入；Count / Inequality 留空時以設定檔值為準。
//   - Seed/Snap 互斥：
//   - Snap 非空 → Seed 會被清空並 disable。
//   - Seed 非空 → Snap 會被清空並 disable。
//   - Snap takes precedence（後端也會以 Snap 為準）。
//   - Rounds：
//   - Shuffle：前端會 cap 在 5,000 以避免回傳 payload 過大。
//   - Sim    ：前端會 cap 在 3,000,000 以避免長時間阻塞（仍屬 dev tooling）。
//
// 回傳呈現：
//   - Shuffle：Summary 區顯示整體統計；Shuffle Results 展開後可點選查看 raw ShuffleResult JSON。
//   - Sim    ：顯示統計（statistic/stats/stat），並把 Land.FirstDist 畫成首位落點 bar chart。
const devPageHTML = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <link rel="icon" type="image/svg+xml" href="/favicon.svg" />
  <title>ShuffleLab Dev</title>
  <style>
    body { font-family: -apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif; background:#0f172a; color:#e2e8f0; margin:0; }
    .wrap { max-width: 980px; margin: 24px auto; padding: 16px 20px; background:#111827; border:1px solid #1f2937; border-radius:12px; box-shadow:0 12px 50px rgba(0,0,0,0.35); }
    h1 { margin: 0 0 16px; font-size: 22px; letter-spacing: 0.3px; }
    .grid { display:grid; grid-template-columns: repeat(auto-fit, minmax(180px,1fr)); gap:12px; margin-bottom:12px; }
    label { display:flex; flex-direction:column; gap:6px; font-size: 13px; color:#cbd5e1; }
    input, select { background:#0b1224; color:#e2e8f0; border:1px solid #1f2738; border-radius:8px; padding:10px 12px; font-size:14px; }
    input:focus, select:focus { outline:1px solid #38bdf8; border-color:#38bdf8; }
    .actions { position:relative; display:flex; gap:10px; align-items:center; justify-content:flex-end; margin: 8px 0 14px; }
    button { cursor:pointer; border:none; border-radius:10px; padding:10px 14px; font-weight:600; letter-spacing:0.2px; }
    #btn-shuffle { background:#38bdf8; color:#0b1224; }
    #btn-sim { background:#22c55e; color:#0b1224; }
    #btn-clear { background:#1f2937; color:#e2e8f0; border:1px solid #334155; }
    button:disabled { opacity:0.6; cursor:not-allowed; }
    input:disabled, select:disabled {
      opacity: 0.55;
      cursor: not-allowed;
      filter: grayscale(0.25);
    }
    label.is-disabled { opacity: 0.55; }
    label.is-disabled input, label.is-disabled select { pointer-events: none; }
    .hint { font-size: 12px; color:#94a3b8; margin-top:4px; }
    .info { position:absolute; left:50%; transform:translateX(-50%); font-size:13px; color:#94a3b8; }
    .info.warn { color:#f87171; font-weight:600; }
    #summary { background:#0b1224; border:1px solid #1f2738; border-radius:12px; padding:14px; min-height:120px; overflow:auto; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; white-space:pre-wrap; margin-bottom:12px; }
    #chart { background:#0b1224; border:1px solid #1f2738; border-radius:12px; padding:14px; margin-bottom:12px; display:none; }
    #chart h2 { margin:0 0 10px; font-size:14px; color:#cbd5e1; font-weight:600; }
    .bar-row { display:grid; grid-template-columns: 4em 1fr 5em; align-items:center; column-gap:8px; padding:2px 0; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; font-size:12px; }
    .bar-label { color:#94a3b8; text-align:right; font-variant-numeric: tabular-nums; }
    .bar-track { background:#111827; border-radius:3px; height:14px; overflow:hidden; }
    .bar-fill { background:#38bdf8; height:100%; border-radius:3px; }
    .bar-row.top .bar-fill { background:#22c55e; }
    .bar-value { text-align:right; font-variant-numeric: tabular-nums; }
    #roundsBox { border:1px solid #1f2737; border-radius:12px; padding:10px; background:#0b1224; margin-bottom:12px; max-height: calc(60vh - 56px); overflow:auto; }
    #roundList { max-height: calc(60vh - 136px); overflow:auto; }
    .round-item { display:grid; grid-template-columns: minmax(3.5em, max-content) minmax(100px, max-content) max-content; align-items:center; column-gap:8px; width:100%; text-align:left; background:none; border:none; padding:6px 10px; color:#e2e8f0; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; cursor:pointer; border-left: 4px solid transparent; }
    .round-item:hover { background:#1f2937; border-left-color:#38bdf8; }
    .round-item.selected { background:#2563eb; border-left-color:#60a5fa; }
    .round-index { color:#94a3b8; text-align:right; justify-self:end; min-width:3.5em; font-variant-numeric: tabular-nums; }
    .round-first { text-align:right; justify-self:end; font-variant-numeric: tabular-nums; }
    .round-first.zero { color:#94a3b8; }
    .round-feature { text-align:right; justify-self:end; }
    .stay-true { color:#22c55e; font-weight:600; }
    #detail { background:#0b1224; border:1px solid #1f2738; border-radius:12px; padding:14px; min-height:220px; overflow:auto; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; white-space:pre-wrap; display:none; }
    .note { font-size:12px; color:#94a3b8; margin-top:4px; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>ShuffleLab Dev Panel</h1>
    <div class="grid">
      <label>Feed
        <select id="feed"></select>
      </label>
      <label>Seed (int64)
   <input id="seed" type="text" inputmode="numeric" placeholder="Empty = auto" />
      </label>
      <label>Snap(base64url)
        <input id="snap" type="text" placeholder="Paste snap (base64url)" />
      </label>
      <label>Count (n)
        <input id="count" type="number" min="1" placeholder="Empty = profile count" />
      </label>
      <label>Inequality
        <input id="inequality" type="number" min="0" step="any" placeholder="Empty = profile value" />
      </label>
      <label>Rounds
        <input id="rounds" type="number" min="1" max="3000000" value="1" />
      </label>
    </div>
    <div class="actions">
      <button id="btn-shuffle">Shuffle</button>
      <button id="btn-sim">Sim</button>
      <button id="btn-clear">Clear</button>
      <span class="info" id="info"></span>
    </div>

    <pre id="summary"></pre>

    <div id="chart">
      <h2>First-place landing by original rank</h2>
      <div id="chartBars"></div>
    </div>

    <details id="roundsBox" style="display:none;">
      <summary>Shuffle Results</summary>
      <div id="roundList"></div>
    </details>

    <pre id="detail" style="display:none;"></pre>
  </div>
<script>
const state = { meta: null, results: [] };
const feedSel = document.getElementById('feed');
const seedInput = document.getElementById('seed');
const snapInput = document.getElementById('snap');
const countInput = document.getElementById('count');
const ineqInput = document.getElementById('inequality');
const roundsInput = document.getElementById('rounds');
const summary = document.getElementById('summary');
const chart = document.getElementById('chart');
const chartBars = document.getElementById('chartBars');
const roundsBox = document.getElementById('roundsBox');
const roundList = document.getElementById('roundList');
const detail = document.getElementById('detail');
const infoEl = document.getElementById('info');
const btnRun = document.getElementById('btn-shuffle');
const btnSim = document.getElementById('btn-sim');
const btnClear = document.getElementById('btn-clear');
const percentFormatter = new Intl.NumberFormat('en-US', { style: 'percent', minimumFractionDigits: 2, maximumFractionDigits: 2 });

function setDisabled(el, disabled) {
  el.disabled = disabled;
  const label = el.closest('label');
  if (label) label.classList.toggle('is-disabled', disabled);
}

function syncInputLocks() {
  const seedValue = seedInput.value.trim();
  const snapValue = snapInput.value.trim();

  if (snapValue !== '') {
    seedInput.value = '';
    setDisabled(seedInput, true);
    setDisabled(snapInput, false);
    return;
  }
  if (seedValue !== '') {
    snapInput.value = '';
    setDisabled(snapInput, true);
    setDisabled(seedInput, false);
    return;
  }
  setDisabled(seedInput, false);
  setDisabled(snapInput, false);
}

async function loadMeta() {
  try {
    const res = await fetch('/dev/meta');
    if (!res.ok) throw new Error(await res.text());
    const data = await res.json();
    const feeds = Array.isArray(data) ? data : (data.feeds || data.summary || []);
    state.meta = { feeds };
    feedSel.innerHTML = '';
    state.meta.feeds.forEach((f) => {
      const opt = document.createElement('option');
      const fid = f.fid ?? f.id ?? f.FID;
      opt.value = fid != null ? String(fid) : (f.name || f.feed || '');
      opt.textContent = f.name || f.feed || String(opt.value);
      opt.dataset.name = f.name || f.feed || '';
      feedSel.appendChild(opt);
    });
    refreshFeedDefaults();
    summary.textContent = '';
    chart.style.display = 'none';
    roundsBox.style.display = 'none';
    detail.style.display = 'none';
    setInfo('', false);
  } catch (err) {
    summary.textContent = 'Failed to load meta: ' + err.message;
  }
}

function getSelectedFeed() {
  if (!state.meta || !state.meta.feeds) return null;
  const value = feedSel.value;
  return state.meta.feeds.find((f) => String(f.fid ?? f.id ?? f.FID) === value)
    || state.meta.feeds.find((f) => (f.name || f.feed || '') === value);
}

function refreshFeedDefaults() {
  const fd = getSelectedFeed();
  if (!fd) return;
  const count = fd.count ?? fd.n;
  const ineq = fd.inequality ?? fd.q;
  countInput.placeholder = count != null ? 'Empty = ' + count : 'Empty = profile count';
  ineqInput.placeholder = ineq != null ? 'Empty = ' + ineq : 'Empty = profile value';
}

feedSel.addEventListener('change', refreshFeedDefaults);

function setInfo(text, isWarn) {
  infoEl.textContent = text;
  if (isWarn) {
    infoEl.classList.add('warn');
  } else {
    infoEl.classList.remove('warn');
  }
}

function setLoading(isLoading) {
  btnRun.disabled = isLoading;
  btnSim.disabled = isLoading;
  if (isLoading) {
    setInfo('Running…', false);
  }
}

function clearSelection() {
  summary.textContent = '';
  chart.style.display = 'none';
  chartBars.innerHTML = '';
  roundsBox.style.display = 'none';
  detail.style.display = 'none';
  roundList.innerHTML = '';
  state.results = [];
}

function renderDetail(index) {
  if (!state.results || !state.results[index]) {
    detail.textContent = '';
    detail.style.display = 'none';
    return;
  }
  const result = state.results[index];
  detail.textContent = JSON.stringify(result, null, 2);
  detail.style.display = 'block';

  // highlight selected
  const buttons = roundList.querySelectorAll('.round-item');
  buttons.forEach((btn, idx) => {
    if (idx === index) {
      btn.classList.add('selected');
    } else {
      btn.classList.remove('selected');
    }
  });
}

function renderChart(firstDist) {
  chartBars.innerHTML = '';
  if (!Array.isArray(firstDist) || firstDist.length === 0) {
    chart.style.display = 'none';
    return;
  }
  const maxBars = 50;
  const shown = firstDist.slice(0, maxBars);
  const maxVal = Math.max(...shown, 1e-9);
  shown.forEach((v, idx) => {
    const row = document.createElement('div');
    row.className = 'bar-row' + (idx === 0 ? ' top' : '');
    const label = document.createElement('span');
    label.className = 'bar-label';
    label.textContent = '#' + (idx + 1);
    const track = document.createElement('div');
    track.className = 'bar-track';
    const fill = document.createElement('div');
    fill.className = 'bar-fill';
    fill.style.width = ((v / maxVal) * 100).toFixed(2) + '%';
    track.appendChild(fill);
    const value = document.createElement('span');
    value.className = 'bar-value';
    value.textContent = percentFormatter.format(v);
    row.appendChild(label);
    row.appendChild(track);
    row.appendChild(value);
    chartBars.appendChild(row);
  });
  if (firstDist.length > maxBars) {
    const note = document.createElement('div');
    note.className = 'note';
    note.textContent = 'Showing top ' + maxBars + ' of ' + firstDist.length + ' ranks.';
    chartBars.appendChild(note);
  }
  chart.style.display = 'block';
}

function buildPayload(safeRounds) {
  const payload = {
    rounds: safeRounds,
    round: safeRounds,
  };
  const fid = Number(feedSel.value);
  if (Number.isFinite(fid)) {
    payload.fid = fid;
  }
  const selectedFeed = getSelectedFeed();
  if (selectedFeed && selectedFeed.name) {
    payload.feed = selectedFeed.name;
  } else if (feedSel.value) {
    payload.feed = feedSel.value;
  }
  const count = countInput.value.trim();
  if (count !== '') {
    const n = Number(count);
    payload.n = n;
    payload.count = n;
  }
  const ineq = ineqInput.value.trim();
  if (ineq !== '') {
    const q = Number(ineq);
    payload.inequality = q;
    payload.q = q;
  }
  const seed = seedInput.value.trim();
  const snap = snapInput.value.trim();
  if (snap) {
    payload.snap = snap;
  } else if (seed) {
    payload.seed = seed;
  }
  return payload;
}

async function run() {
  setLoading(true);
  clearSelection();
  const inputRounds = Number(roundsInput.value) || 1;
  const safeRounds = Math.min(inputRounds, 5000);
  const payload = buildPayload(safeRounds);
  try {
    const res = await fetch('/dev/shuffle', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(payload),
    });
    if (!res.ok) throw new Error(await res.text());
    const data = await res.json();

    const summaryObj = { ...data };
    delete summaryObj.results;
    summary.textContent = JSON.stringify(summaryObj, null, 2);

    if (inputRounds > 5000) {
      setInfo('Shuffle records are capped at 5,000 rounds.', true);
    } else {
      setInfo('', false);
    }

    const results = Array.isArray(data.results) ? data.results : [];
    if (results.length > 0) {
      state.results = results;
      roundList.innerHTML = '';
      results.forEach((dto, idx) => {
        const perm = Array.isArray(dto && dto.perm) ? dto.perm : [];
        const first = perm.length > 0 ? perm[0] : -1;
        const stay = first === 0;
        const btn = document.createElement('button');
        btn.type = 'button';
        btn.className = 'round-item';
        btn.textContent = '';
        const idxSpan = document.createElement('span');
        idxSpan.className = 'round-index';
        idxSpan.textContent = '#' + (idx + 1);
        const firstSpan = document.createElement('span');
        firstSpan.className = 'round-first' + (stay ? ' zero' : '');
        firstSpan.textContent = first >= 0 ? 'first=#' + (first + 1) : 'first=?';
        const featureSpan = document.createElement('span');
        featureSpan.className = 'round-feature';
        const staySpan = document.createElement('span');
        staySpan.textContent = stay ? 'stay' : '';
        if (stay) {
          staySpan.className = 'stay-true';
        }
        featureSpan.appendChild(staySpan);
        btn.appendChild(idxSpan);
        btn.appendChild(firstSpan);
        btn.appendChild(featureSpan);
        btn.title = 'Round ' + (idx + 1) + ' | first=#' + (first + 1) + (stay ? ' | stay' : '');
        btn.addEventListener('click', () => {
          renderDetail(idx);
        });
        roundList.appendChild(btn);
      });
      roundsBox.style.display = 'block';
      renderDetail(0);
    } else {
      roundsBox.style.display = 'none';
      detail.style.display = 'none';
      state.results = [];
    }
  } catch (err) {
    summary.textContent = 'Request failed: ' + err.message;
    setInfo('', false);
  } finally {
    setLoading(false);
  }
}

async function runSim() {
  setLoading(true);
  clearSelection();
  const inputRounds = Number(roundsInput.value) || 1;
  const safeRounds = Math.min(inputRounds, 3000000);
  const payload = buildPayload(safeRounds);
  try {
    const res = await fetch('/dev/sim', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(payload),
    });
    if (!res.ok) throw new Error(await res.text());
    const data = await res.json();
    const summaryObj = data.statistic || data.stats || data.stat || data;
    summary.textContent = JSON.stringify(summaryObj, null, 2);
    const land = summaryObj && summaryObj.Land;
    renderChart(land && land.FirstDist);
    if (inputRounds > 3000000) {
      setInfo('Sim statistics are capped at 3,000,000 rounds.', true);
    } else {
      setInfo('', false);
    }
  } catch (err) {
    summary.textContent = 'Request failed: ' + err.message;
    setInfo('', false);
  } finally {
    setLoading(false);
  }
}

btnRun.addEventListener('click', run);
btnSim.addEventListener('click', runSim);
btnClear.addEventListener('click', () => {
  clearSelection();
  setInfo('', false);
});
seedInput.addEventListener('input', syncInputLocks);
snapInput.addEventListener('input', syncInputLocks);

syncInputLocks();
loadMeta();
</script>
</body>
</html>`

// devPage 回傳內嵌 HTML（single page）。這裡不做 templating，降低 dev tool 維護成本。
func devPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(devPageHTML))
}

// favicon 提供 Dev Panel 的 favicon.svg。
func favicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write([]byte(faviconSVG))
}

// devMeta 回傳 Catalog summary（JSON）。
//
// 前端依賴欄位：
//   - fid / id / FID
//   - name / feed
//   - count / inequality
func devMeta(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		lab, ok := getLab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("shufflelab is required"))
			return
		}
		sum, err := lab.Summary()
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sum)
	}
}

// devShuffle 執行「可回放」的 Shuffle。
//
// 流程（high level）：
//  1. decode devRequest（JSON body）
//  2. resolve feed（fid/name）→ catalog.Summary
//  3. resolve n / inequality 覆寫（未提供時交由 Shuffler 用設定檔值）
//  4. resolve seed（empty = auto）
//  5. 建立 DevSimulator → Shuffles() 或 RestoreShuffles()
//
// Snap precedence：若 snap 非空，會走 RestoreShuffles(snap, ...)。
func devShuffle(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req := new(devRequest)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
		lab, ok := getLab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("shufflelab is required"))
			return
		}
		sum, err := resolveSummary(lab, req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		round := req.round()
		if round < 1 {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}
		n := req.n()
		inequality, has := req.inequality()
		snap := strings.TrimSpace(req.Snap)
		seed, err := resolveSeed(req.Seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		sim, err := lab.NewDevSimulator(sum.FID, seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		var report shufflelab.DevShuffleReport
		if snap != "" {
			report, err = sim.RestoreShuffles(snap, n, inequality, has, round)
		} else {
			report, err = sim.Shuffles(n, inequality, has, round)
		}
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

// devSim 執行統計模擬（simulation）。
//
// 和 devShuffle 的差異：
//   - devSim 不回逐回合 results（降低 response size），僅回 DevSimReport（statistic）。
//   - 若提供 snap，會走 RestoreSim(snap, ...)。
func devSim(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req := new(devRequest)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
		lab, ok := getLab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("shufflelab is required"))
			return
		}
		sum, err := resolveSummary(lab, req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		round := req.round()
		if round < 1 {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}
		n := req.n()
		inequality, has := req.inequality()
		snap := strings.TrimSpace(req.Snap)
		seed, err := resolveSeed(req.Seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		sim, err := lab.NewDevSimulator(sum.FID, seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		var report shufflelab.DevSimReport
		if snap != "" {
			report, err = sim.RestoreSim(snap, n, inequality, has, round)
		} else {
			report, err = sim.Sim(n, inequality, has, round)
		}
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

// getLab 從 server config 取得已組裝的 ShuffleLab instance。
// Dev routes 不負責組裝（assembler），只負責使用（runtime entry）。
func getLab(cfg *svrcfg.SvrCfg) (*shufflelab.ShuffleLab, bool) {
	if cfg == nil || cfg.Lab == nil {
		return nil, false
	}
	return cfg.Lab, true
}

// resolveSummary 解析使用者指定的清單：
//   - 若 fid > 0：以 fid 精準匹配（fast path）。
//   - 否則若 feed(name) 非空：先做 case-insensitive name 匹配；若 remember 也允許把 feed 當作數字字串解析成 fid。
//
// 回傳 catalog.Summary 作為後續 n / inequality 覆寫的依據。
func resolveSummary(lab *shufflelab.ShuffleLab, req *devRequest) (catalog.Summary, error) {
	sums, err := lab.Summary()
	if err != nil {
		return catalog.Summary{}, err
	}
	if req.FID > 0 {
		fid := profile.PID(req.FID)
		for _, s := range sums {
			if s.FID == fid {
				return s, nil
			}
		}
		return catalog.Summary{}, errs.NewWarn("fid not found")
	}
	name := strings.TrimSpace(req.Feed)
	if name != "" {
		for _, s := range sums {
			if strings.EqualFold(s.Name, name) {
				return s, nil
			}
		}
		if fid, err := strconv.ParseUint(name, 10, 64); err == nil {
			sf := profile.PID(fid)
			for _, s := range sums {
				if s.FID == sf {
					return s, nil
				}
			}
		}
		return catalog.Summary{}, errs.NewWarn("feed not found")
	}
	return catalog.Summary{}, errs.NewWarn("feed is required")
}

// resolveSeed 解析 seed（int64 string）。
//   - 空字串：自動生成 seed（crypto/rand），方便快速測試。
//   - 非空：必須為合法 int64。
func resolveSeed(seed string) (int64, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return randomSeed()
	}
	v, err := strconv.ParseInt(seed, 10, 64)
	if err != nil {
		return 0, errs.NewWarn("seed must be int64")
	}
	return v, nil
}

// randomSeed 使用 crypto/rand 產生 [0, MaxInt64) 的種子。
// 目的：避免 math/rand 的 deterministic 來源造成 seed 品質偏差（dev tool 也要可依賴）。
func randomSeed() (int64, error) {
	rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.NewWarn("seed generate failed")
	}
	return rnd.Int64(), nil
}

//go:embed favicon.svg
var faviconSVG string

// keep embed imported even if only used for directives
var _ embed.FS
