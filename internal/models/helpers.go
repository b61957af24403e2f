package models

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// ValidateURL 校验绝对的http(s)地址,用于配置中的搜索引擎地址等
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("%w: 只支持http/https地址: %s", ErrInvalidTarget, raw)
	case u.Host == "":
		return fmt.Errorf("%w: 缺少主机名: %s", ErrInvalidTarget, raw)
	}
	return nil
}

// NewBatchID 批次ID
func NewBatchID() string {
	return uuid.NewString()
}
