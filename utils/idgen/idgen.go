package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	once sync.Once
	node *snowflake.Node
)

// SetNode 设置节点编号，需在第一次 NextID 之前调用
func SetNode(n int64) error {
	nd, err := snowflake.NewNode(n)
	if err != nil {
		return err
	}
	once.Do(func() {})
	node = nd
	return nil
}

// NextID 生成计划id，同时作为客户端订单id的前缀
func NextID() string {
	once.Do(func() {
		node, _ = snowflake.NewNode(1)
	})
	return node.Generate().String()
}
