package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// localeFromRequest разбирает Accept-Language и возвращает явную локаль
// ответа: "ru" или "ky", по умолчанию "ru". Локаль дальше передаётся
// параметром — никакого процессного состояния «текущий язык».
func localeFromRequest(c *gin.Context) string {
	header := c.GetHeader("Accept-Language")
	if header == "" {
		return "ru"
	}
	primary := strings.ToLower(strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0]))
	if primary == "ky" || strings.HasPrefix(primary, "ky-") {
		return "ky"
	}
	return "ru"
}
