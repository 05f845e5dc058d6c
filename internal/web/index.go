package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

// Status page: balances from /status, live updates from the SSE streams.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>cardfuel</title>
  <style>
    :root { --ink:#111111; --ink-mid:#4d4d4d; --panel:#f6f6f6; }
    * { box-sizing:border-box; }
    body { margin:0; padding:2rem; font-family:'Space Mono','JetBrains Mono',monospace; color:var(--ink); background:#fff; }
    #app { max-width:960px; margin:0 auto; display:grid; grid-template-columns:1fr 320px; gap:2rem; }
    .card { border:3px solid var(--ink); padding:1.2rem; background:var(--panel); box-shadow:6px 6px 0 rgba(0,0,0,.12); }
    .label { font-size:.62rem; text-transform:uppercase; letter-spacing:.2em; color:var(--ink-mid); }
    .value { font-size:1.6rem; font-weight:700; margin:.4rem 0 1rem; }
    form { display:flex; gap:.5rem; margin-top:1rem; }
    input, select, button { font:inherit; border:2px solid var(--ink); padding:.4rem .6rem; background:#fff; }
    #result { margin-top:1rem; font-size:.75rem; white-space:pre-wrap; }
    .entry { border-bottom:1px dashed #9c9c9c; padding:.5rem 0; font-size:.7rem; }
    .entry .kind { font-weight:700; text-transform:uppercase; }
    @media (max-width:640px) { #app { grid-template-columns:1fr; } }
  </style>
</head>
<body>
  <div id="app">
    <main class="card">
      <div class="label">Card balance</div>
      <div class="value" id="card">—</div>
      <div class="label">Wallet</div>
      <div class="value" id="wallet">—</div>
      <div class="label">ETH price / gas</div>
      <div class="value" id="market">—</div>
      <div class="label">Advice</div>
      <div id="advice">—</div>
      <form id="use-card">
        <input id="amount" type="number" step="0.01" min="0" placeholder="amount" required />
        <select id="currency"><option>USD</option><option>ETH</option></select>
        <button type="submit">Use card</button>
      </form>
      <div id="result"></div>
    </main>
    <aside class="card">
      <div class="label">Journal</div>
      <div id="journal"></div>
    </aside>
  </div>
<script>
const $ = (id) => document.getElementById(id);

async function refresh(){
  const res = await fetch('/status');
  if(!res.ok){ return; }
  const s = await res.json();
  $('card').textContent = '$' + s.card_balance.toFixed(2);
  $('wallet').textContent = s.eth_balance.toFixed(4) + ' ETH ($' + s.metamask_balance_usd.toFixed(2) + ')';
  $('market').textContent = '$' + s.eth_price.toFixed(2) + ' / ' + s.gas_price_gwei.toFixed(1) + ' gwei';
  $('advice').textContent = s.trading_suggestion.action.toUpperCase() + ' ' + s.trading_suggestion.amount + ' ETH: ' + s.trading_suggestion.reason;
}

$('use-card').addEventListener('submit', async (e) => {
  e.preventDefault();
  const res = await fetch('/use-card', {
    method: 'POST',
    headers: { 'Content-Type': 'application/json' },
    body: JSON.stringify({ amount: parseFloat($('amount').value), currency: $('currency').value })
  });
  const body = await res.json();
  $('result').textContent = res.ok ? body.status + ' ' + body.tx_hash : 'Error: ' + body.detail;
});

function connect(path, event, handler){
  const source = new EventSource(path);
  source.addEventListener(event, (e) => {
    try { handler(JSON.parse(e.data)); } catch(err) { console.error(event + ' parse', err); }
  });
  source.addEventListener('error', () => {
    source.close();
    setTimeout(() => connect(path, event, handler), 2000);
  });
}

connect('/balance/stream', 'balance', (b) => {
  $('card').textContent = '$' + b.card;
  $('wallet').textContent = parseFloat(b.wallet).toFixed(4) + ' ETH';
});

connect('/journal/stream', 'journal', (j) => {
  const row = document.createElement('div');
  row.className = 'entry';
  const kind = document.createElement('span');
  kind.className = 'kind';
  kind.textContent = j.kind + (j.outcome ? ' ' + j.outcome : '') + (j.action ? ' ' + j.action : '');
  const detail = document.createElement('div');
  detail.textContent = (j.amount || '') + ' ' + (j.reason || j.error || '');
  row.append(kind, detail);
  $('journal').prepend(row);
});

refresh();
</script>
</body>
</html>`
