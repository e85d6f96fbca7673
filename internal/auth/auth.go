package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

// Service validates bearer tokens issued by the identity collaborator. This
// module never issues or refreshes tokens; it only verifies them to bind
// sessions and requests to a user.
type Service struct {
	jwtSecret string
}

// NewService creates a token validation service
func NewService(jwtSecret string) *Service {
	return &Service{jwtSecret: jwtSecret}
}

// ValidateToken validates a JWT token and returns the user ID if valid
func (s *Service) ValidateToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return 0, err
	}

	if !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}

	userIDFloat, ok := claims["sub"].(float64)
	if !ok {
		return 0, errors.New("invalid user ID in token")
	}

	return int(userIDFloat), nil
}
