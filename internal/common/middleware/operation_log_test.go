package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/jwt"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	"github.com/dumeirei/tkshop-backend/internal/testutil"
)

func waitForOperationLog(t *testing.T, db *gorm.DB, where string, args ...interface{}) *models.OperationLog {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var log models.OperationLog
		err := db.Where(where, args...).Order("id DESC").First(&log).Error
		if err == nil {
			return &log
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("operation log not created: %s", where)
	return nil
}

func setupRouter(db *gorm.DB, userType string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	op := NewOperationLogger(repository.NewOperationLogRepository(db))

	r := gin.New()
	admin := r.Group("/api/admin")
	admin.Use(func(c *gin.Context) {
		c.Set("user_id", int64(7))
		c.Set("user_type", userType)
		c.Next()
	})
	admin.Use(op.Log())
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"code": 0}) }
	admin.POST("/receipts/:id/reject", ok)
	admin.POST("/settlement/replay-events", ok)
	admin.GET("/receipts", ok)
	return r
}

func post(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOperationLogger_MapsReceiptActions(t *testing.T) {
	db := testutil.NewTestDB(t)
	r := setupRouter(db, jwt.UserTypeAdmin)

	w := post(r, "/api/admin/receipts/42/reject", map[string]interface{}{"reason": "金额不符", "token": "abc"})
	require.Equal(t, http.StatusOK, w.Code)

	log := waitForOperationLog(t, db, "module = ? AND action = ?", "receipt", "reject")
	assert.Equal(t, int64(7), log.AdminID)
	assert.Equal(t, http.StatusOK, log.StatusCode)
	require.NotNil(t, log.TargetType)
	assert.Equal(t, "receipt", *log.TargetType)
	require.NotNil(t, log.TargetID)
	assert.Equal(t, int64(42), *log.TargetID)
	assert.Equal(t, "金额不符", log.Request["reason"])
	assert.Equal(t, "***", log.Request["token"])

	post(r, "/api/admin/settlement/replay-events", map[string]interface{}{"limit": 10})
	replay := waitForOperationLog(t, db, "module = ? AND action = ?", "settlement", "replay")
	assert.Nil(t, replay.TargetID)
}

func TestOperationLogger_SkipsReadsAndNonAdmins(t *testing.T) {
	db := testutil.NewTestDB(t)

	r := setupRouter(db, jwt.UserTypeAdmin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/receipts", nil))
	require.Equal(t, http.StatusOK, w.Code)

	sellerRouter := setupRouter(db, jwt.UserTypeSeller)
	post(sellerRouter, "/api/admin/receipts/1/reject", map[string]interface{}{"reason": "x"})

	time.Sleep(100 * time.Millisecond)
	var count int64
	require.NoError(t, db.Model(&models.OperationLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFilterSensitiveData(t *testing.T) {
	got := filterSensitiveData(map[string]interface{}{
		"Password": "p",
		"nested":   []interface{}{map[string]interface{}{"api_key": "k", "note": "n"}},
	}).(map[string]interface{})

	assert.Equal(t, "***", got["Password"])
	nested := got["nested"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "***", nested["api_key"])
	assert.Equal(t, "n", nested["note"])
}

func TestLookupConfig_Fallback(t *testing.T) {
	cfg := lookupConfig(http.MethodPut, "/api/admin/commissions/rate")
	assert.Equal(t, "commission", cfg.Module)
	assert.Equal(t, "update", cfg.Action)
}
