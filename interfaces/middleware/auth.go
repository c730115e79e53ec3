package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"event-sync/domain/dto"
	"event-sync/domain/model"
	"event-sync/domain/repository"
	"event-sync/infrastructure/configuration"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// Auth verifies the application's own bearer tokens and stashes the resolved
// user id on the context for downstream handlers.
func Auth(userRepository repository.IUser) gin.HandlerFunc {
	unauthorized := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}

	return func(ctx *gin.Context) {
		authorization := ctx.Request.Header.Get("Authorization")
		if authorization == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized)
			return
		}
		parts := strings.Split(authorization, "Bearer ")
		if len(parts) != 2 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized)
			return
		}

		claims := &model.UserClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(configuration.C.App.SecretKey), nil
		})
		if err != nil || !token.Valid {
			res := unauthorized
			var ve *jwt.ValidationError
			if errors.As(err, &ve) && ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
				res.ResponseMessage = "Token expired"
			}
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		user, err := userRepository.GetByUserName(ctx.Request.Context(), claims.UserName)
		if err != nil || user == nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized)
			return
		}
		ctx.Set("user_id", user.ID)
		ctx.Next()
	}
}
