package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/tkshop-backend/internal/common/errors"
	"github.com/dumeirei/tkshop-backend/internal/common/jwt"
	"github.com/dumeirei/tkshop-backend/internal/common/response"
	"github.com/dumeirei/tkshop-backend/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func createTestContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func withIdentity(c *gin.Context, userID int64, userType string) {
	c.Set(middleware.ContextKeyUserID, userID)
	c.Set(middleware.ContextKeyUserType, userType)
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		c, _ := createTestContext("/")
		assert.False(t, HandleError(c, nil))
	})

	t.Run("应用错误返回业务码", func(t *testing.T) {
		c, w := createTestContext("/")
		assert.True(t, HandleError(c, errors.ErrAmountMismatch))
		assert.Equal(t, http.StatusOK, w.Code)
		resp := parseResponse(t, w)
		assert.Equal(t, errors.ErrAmountMismatch.Code, resp.Code)
		assert.Equal(t, errors.ErrAmountMismatch.Message, resp.Message)
	})

	t.Run("包装的底层错误不暴露给客户端", func(t *testing.T) {
		c, w := createTestContext("/")
		assert.True(t, HandleError(c, errors.ErrDatabaseError.WithError(assert.AnError)))
		resp := parseResponse(t, w)
		assert.Equal(t, errors.ErrDatabaseError.Message, resp.Message)
	})

	t.Run("普通错误返回 500", func(t *testing.T) {
		c, w := createTestContext("/")
		assert.True(t, HandleError(c, assert.AnError))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	})
}

func TestMustSucceedPage(t *testing.T) {
	c, w := createTestContext("/")
	MustSucceedPage(c, nil, []string{"a", "b"}, 12, 2, 5)

	resp := parseResponse(t, w)
	assert.Equal(t, 0, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(12), data["total"])
	assert.Equal(t, float64(2), data["page"])
	assert.Equal(t, float64(5), data["page_size"])
}

func TestRequireSellerID(t *testing.T) {
	c, _ := createTestContext("/")
	withIdentity(c, 9, jwt.UserTypeSeller)
	id, ok := RequireSellerID(c)
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)

	// 管理员令牌不能当作卖家身份
	c, w := createTestContext("/")
	withIdentity(c, 9, jwt.UserTypeAdmin)
	_, ok = RequireSellerID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminAndParseID(t *testing.T) {
	c, _ := createTestContext("/")
	withIdentity(c, 3, jwt.UserTypeAdmin)
	c.Params = gin.Params{{Key: "id", Value: "77"}}

	adminID, id, ok := RequireAdminAndParseID(c, "凭证")
	require.True(t, ok)
	assert.Equal(t, int64(3), adminID)
	assert.Equal(t, int64(77), id)

	c, w := createTestContext("/")
	withIdentity(c, 3, jwt.UserTypeAdmin)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	_, _, ok = RequireAdminAndParseID(c, "凭证")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "无效的凭证ID", parseResponse(t, w).Message)
}

func TestParseQueryID(t *testing.T) {
	c, _ := createTestContext("/")
	id, ok := ParseQueryID(c, "seller_id", "卖家")
	assert.True(t, ok)
	assert.Nil(t, id)

	c, _ = createTestContext("/?seller_id=15")
	id, ok = ParseQueryID(c, "seller_id", "卖家")
	require.True(t, ok)
	assert.Equal(t, int64(15), *id)

	c, w := createTestContext("/?seller_id=x")
	_, ok = ParseQueryID(c, "seller_id", "卖家")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryDateRange(t *testing.T) {
	c, _ := createTestContext("/?start_date=2026-01-01&end_date=2026-01-31")
	start, end, ok := ParseQueryDateRange(c)
	require.True(t, ok)
	assert.Equal(t, "2026-01-01", start.Format(DateFormat))
	assert.Equal(t, 23, end.Hour())

	c, w := createTestContext("/?start_date=2026-02-01&end_date=2026-01-01")
	_, _, ok = ParseQueryDateRange(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBindPagination(t *testing.T) {
	c, _ := createTestContext("/")
	p := BindPagination(c)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PageSize)

	c, _ = createTestContext("/?page=3&page_size=500")
	p = BindPagination(c)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, 200, p.GetOffset())
}
