package uuid

import (
	"strings"

	"github.com/google/uuid"
)

// GenUUID16 生成16位的请求id
func GenUUID16() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
