// Package utils 工具函数单元测试
package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderNo(t *testing.T) {
	no := GenerateOrderNo(NoPrefixReceipt)
	assert.True(t, strings.HasPrefix(no, "RC"))
	// 前缀 2 位 + 时间戳 14 位 + 随机数 6 位
	assert.Len(t, no, 22)
}

func TestGenerateOrderNo_Uniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		seen[GenerateOrderNo(NoPrefixDeposit)] = struct{}{}
	}
	// 同一秒内依赖 6 位随机数，允许极小概率碰撞
	assert.Greater(t, len(seen), 190)
}

func TestGenerateRandomNumber(t *testing.T) {
	n := GenerateRandomNumber(8)
	assert.Len(t, n, 8)
	for _, ch := range n {
		assert.True(t, ch >= '0' && ch <= '9')
	}
}

func TestStringPtrAndUnique(t *testing.T) {
	assert.Equal(t, "x", *StringPtr("x"))
	assert.Equal(t, []int64{3, 1, 2}, Unique([]int64{3, 1, 3, 2, 1}))
}

func TestPagination(t *testing.T) {
	p := Pagination{Page: 0, PageSize: 500}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.PageSize)

	p = Pagination{Page: 3, PageSize: 20}
	assert.Equal(t, 40, p.GetOffset())
	assert.Equal(t, 20, p.GetLimit())
}
