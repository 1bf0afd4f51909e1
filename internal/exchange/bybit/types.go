package bybit

type createOrderReq struct {
	Category         string `json:"category"`
	Symbol           string `json:"symbol"`
	Side             string `json:"side"`
	OrderType        string `json:"orderType"`
	Qty              string `json:"qty"`
	Price            string `json:"price,omitempty"`
	TriggerPrice     string `json:"triggerPrice,omitempty"`
	TriggerDirection int    `json:"triggerDirection,omitempty"` // 1: 价格上涨触发 2: 价格下跌触发
	TriggerBy        string `json:"triggerBy,omitempty"`
	TimeInForce      string `json:"timeInForce,omitempty"`
	ReduceOnly       bool   `json:"reduceOnly"`
	OrderLinkId      string `json:"orderLinkId,omitempty"`
	PositionIdx      int    `json:"positionIdx"`
}

type cancelOrderReq struct {
	Category string `json:"category"`
	Symbol   string `json:"symbol"`
	OrderId  string `json:"orderId"`
}

type orderResult struct {
	OrderId     string `json:"orderId"`
	OrderLinkId string `json:"orderLinkId"`
}

type orderInfo struct {
	OrderId     string `json:"orderId"`
	OrderLinkId string `json:"orderLinkId"`
	OrderStatus string `json:"orderStatus"`
	Qty         string `json:"qty"`
	CumExecQty  string `json:"cumExecQty"`
	LeavesQty   string `json:"leavesQty"`
}

type orderListResult struct {
	List []orderInfo `json:"list"`
}

type instrumentInfo struct {
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	LotSizeFilter struct {
		MinOrderQty      string `json:"minOrderQty"`
		QtyStep          string `json:"qtyStep"`
		MinNotionalValue string `json:"minNotionalValue"`
	} `json:"lotSizeFilter"`
	PriceFilter struct {
		TickSize string `json:"tickSize"`
	} `json:"priceFilter"`
}

type instrumentListResult struct {
	List []instrumentInfo `json:"list"`
}
