package web

import "net/http"

func serveCSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(`body{font-family:system-ui,Segoe UI,Roboto,Arial,sans-serif;margin:0;background:#f5f7fa;color:#1f2933}
header{padding:12px 20px;border-bottom:1px solid #e4e7eb;background:#fff}
.container{max-width:640px;margin:0 auto;padding:20px}
.card{border:1px solid #e4e7eb;border-radius:10px;padding:20px;background:#fff}
.btn{display:inline-block;padding:8px 14px;border:1px solid #cbd2d9;background:#fff;color:#1f2933;border-radius:6px;cursor:pointer}
.btn-primary{background:#2563eb;border-color:#2563eb;color:#fff}
input{width:100%;box-sizing:border-box;padding:8px;border:1px solid #cbd2d9;border-radius:6px}
h1{margin:8px 0 12px;font-size:1.4rem}
.small{opacity:.7;font-size:.9rem} .mono{font-family:ui-monospace,Menlo,Consolas,monospace}
.ok{color:#047857} .err{color:#b91c1c}`))
}

// токен хранится SPA в localStorage под ключом dtr_token
func serveJS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(`async function postJSON(url, body, token){const h={'Content-Type':'application/json'};if(token)h['Authorization']='Bearer '+token;const r=await fetch(url,{method:'POST',headers:h,body:JSON.stringify(body||{})});let data={};try{data=await r.json()}catch(e){}return {ok:r.ok,status:r.status,data}}
document.addEventListener('DOMContentLoaded',()=>{const f=document.getElementById('accept');if(!f)return;const out=document.getElementById('result');
f.addEventListener('submit',async(ev)=>{ev.preventDefault();const typed=f.token.value.trim();const token=typed||localStorage.getItem('dtr_token');
if(!token){out.className='err';out.textContent='Sign in first or paste your access token.';return}
if(typed)localStorage.setItem('dtr_token',typed);
const res=await postJSON('/api/v1/invitations/'+encodeURIComponent(f.dataset.invitation)+'/accept',{},token);
if(res.ok){out.className='ok';out.textContent='You joined the organization.';f.remove()}else{out.className='err';out.textContent=(res.data&&res.data.detail)||('Request failed ('+res.status+')')}})})
`))
}
