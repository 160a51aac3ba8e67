package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zlnvch/drawroom/models"
	"github.com/zlnvch/drawroom/store"
)

var (
	ErrTokenNotProvided = errors.New("token not provided")
	ErrInvalidToken     = errors.New("invalid token")
	ErrUserNotFound     = errors.New("user not found")
)

const tokenTTL = 24 * time.Hour

// CreateJWT signs a token for userId. The id travels in the "userid" claim
// that drawing clients already send, mirrored into "sub".
func (s *Service) CreateJWT(userId string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"userid": userId,
		"sub":    userId,
		"exp":    now.Add(tokenTTL).Unix(),
		"iat":    now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.JWTSecret)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

// VerifyJWT checks the signature and returns the user id and the expiry,
// which is zero for tokens without an exp claim.
func (s *Service) VerifyJWT(tokenString string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", time.Time{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}

	userId, _ := claims["userid"].(string)
	if userId == "" {
		userId, _ = claims["sub"].(string)
	}
	if userId == "" {
		return "", time.Time{}, fmt.Errorf("%w: missing userid claim", ErrInvalidToken)
	}

	var expiry time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
	}

	return userId, expiry, nil
}

// AuthenticateToken resolves a bearer token to a user id without touching the
// store. Connections are admitted on the signature alone.
func (s *Service) AuthenticateToken(token string) (string, error) {
	if len(token) == 0 {
		return "", ErrTokenNotProvided
	}

	userId, _, err := s.VerifyJWT(token)
	if err != nil {
		return "", err
	}
	return userId, nil
}

func (s *Service) FindUser(ctx context.Context, userId string) (models.User, error) {
	user, err := s.Store.GetUser(ctx, userId)
	if errors.Is(err, store.ErrItemNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// IssueToken makes sure the user record exists and returns a token for it.
func (s *Service) IssueToken(ctx context.Context, userId, name string) (models.User, string, error) {
	if userId == "" {
		return models.User{}, "", errors.New("user id is required")
	}

	user, err := s.Store.CreateUser(ctx, models.User{
		Id:      userId,
		Name:    name,
		Created: time.Now().UnixMilli(),
	})
	if err != nil {
		return models.User{}, "", fmt.Errorf("create user failed: %w", err)
	}

	token, err := s.CreateJWT(user.Id)
	if err != nil {
		return models.User{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return user, token, nil
}
