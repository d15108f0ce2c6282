package controller

import (
	"modula_lms_backend/internal/service"
	"modula_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// actorFrom 从 JWT claims 构造当前操作者，未认证时返回 false 并已写出 401
func actorFrom(c *gin.Context) (service.Actor, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role}, true
}
