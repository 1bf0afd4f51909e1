package consts

const (
	// RequestId 请求id名称
	RequestId = "request_id"

	// webhook 签名头，hex(hmac_sha256(secret, body))
	Signature = "X-Signature"

	TimeLayout   = "2006-01-02 15:04:05"
	TimeLayoutMs = "2006-01-02 15:04:05.000"
)

// 交易所驱动
const (
	DriverBybit = "bybit"
	DriverOkx   = "okx"
	DriverPaper = "paper"
)

const ServiceName = "edgerelay webhook"
