package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim is the identity issued by the accounts service.
type JwtCustomClaim struct {
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
	GroupId  string `json:"groupId"`
	OrgId    string `json:"orgId,omitempty"`
	YearId   string `json:"yearId,omitempty"`
	IsAdmin  bool   `json:"isAdmin,omitempty"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("AuditDesk-Secret")
	}
	return []byte(secret)
}

func JwtGenerate(claim JwtCustomClaim) (string, error) {
	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		tokenLifespan = 24
	}

	claim.StandardClaims = jwt.StandardClaims{
		ExpiresAt: time.Now().Add(time.Hour * time.Duration(tokenLifespan)).Unix(),
		IssuedAt:  time.Now().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &claim)

	return t.SignedString(getJwtSecret())
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}
