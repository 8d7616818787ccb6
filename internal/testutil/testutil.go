// Package testutil 提供测试辅助工具
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/tkshop-backend/internal/models"
)

// NewTestDB 创建每个测试独立的内存 sqlite 并建表
// 单连接保证同一测试内所有语句命中同一内存库
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, rand.Int63())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// NewMiniRedis 创建 miniredis 及对应客户端
func NewMiniRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		s.Close()
	})
	return s, client
}

// RandomPhone 生成随机手机号
func RandomPhone() string {
	return fmt.Sprintf("138%08d", rand.Intn(100000000))
}

// Dec 字符串转金额，测试中书写更简洁
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateAdmin 创建测试管理员
func CreateAdmin(t testing.TB, db *gorm.DB, role string) *models.Admin {
	t.Helper()
	admin := &models.Admin{
		Username:     fmt.Sprintf("admin_%d", rand.Int63()),
		PasswordHash: "x",
		Name:         "测试管理员",
		Role:         role,
		Status:       models.AdminStatusActive,
	}
	require.NoError(t, db.Create(admin).Error)
	return admin
}

// CreateSeller 创建测试卖家及钱包
func CreateSeller(t testing.TB, db *gorm.DB, referrer *int64, balance string) *models.Seller {
	t.Helper()
	seller := &models.Seller{
		ShopName:        "测试店铺",
		Phone:           RandomPhone(),
		PasswordHash:    "x",
		ReferrerAdminID: referrer,
		Status:          models.SellerStatusActive,
	}
	require.NoError(t, db.Create(seller).Error)
	wallet := &models.SellerWallet{SellerID: seller.ID, Balance: Dec(balance)}
	require.NoError(t, db.Create(wallet).Error)
	seller.Wallet = wallet
	return seller
}

// CreateEntry 直接写入一条押金记录，绕过业务校验（用于构造历史脏数据）
func CreateEntry(t testing.TB, db *gorm.DB, sellerID int64, status, cost, price string, listed, sold int) *models.DepositLedgerEntry {
	t.Helper()
	c, p := Dec(cost), Dec(price)
	q := decimal.NewFromInt(int64(sold))
	entry := &models.DepositLedgerEntry{
		DepositNo:            fmt.Sprintf("DPTEST%d", rand.Int63()),
		SellerID:             sellerID,
		OrderNo:              fmt.Sprintf("ORD%d", rand.Int63()),
		ProductName:          "测试商品",
		OriginalCostPerUnit:  c,
		ListingPrice:         p,
		SalePrice:            p,
		QuantityListed:       listed,
		QuantitySold:         sold,
		TotalDepositRequired: c.Mul(q),
		PendingProfitAmount:  p.Sub(c).Mul(q),
		Status:               status,
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

// Reload 重新读取押金记录
func Reload(t testing.TB, db *gorm.DB, id int64) *models.DepositLedgerEntry {
	t.Helper()
	var entry models.DepositLedgerEntry
	require.NoError(t, db.First(&entry, id).Error)
	return &entry
}

// WalletBalance 读取卖家钱包余额
func WalletBalance(t testing.TB, db *gorm.DB, sellerID int64) decimal.Decimal {
	t.Helper()
	var wallet models.SellerWallet
	require.NoError(t, db.Where("seller_id = ?", sellerID).First(&wallet).Error)
	return wallet.Balance
}
