package main

import (
	api "edgerelay/cmd/edgerelay"
	"os"
)

// 启动服务（监听webhook）

/*
测试

BODY='{"intent":"trade_decision","trade":{"action":"open_limit","symbol":"HYPE/USDT","side":"long","risk":{"risk_per_trade_pct":0.4},"limit_plan":{"orders":[{"price":44.64,"size_pct":100}],"stop_loss":44.1336,"take_profits":[{"price":45.1464,"size_pct":30},{"price":45.5516,"size_pct":40},{"price":45.9064,"size_pct":30}],"cancel_if":{"timeout_min":120}}}}'
SECRET="ab12cd34ef56abcdef1234567890abcdef1234567890abcdef1234567890"
SIGNATURE=$(echo -n $BODY | openssl dgst -sha256 -hmac $SECRET | sed 's/^.* //')

curl -X POST http://localhost:8080/webhook \
  -H "Content-Type: application/json" \
  -H "X-Signature: $SIGNATURE" \
  -d "$BODY"

*/

func main() {
	if err := api.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
