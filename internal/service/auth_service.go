package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"mannypuntos/internal/config"
	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
)

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
}

type authService struct {
	repo repository.ClienteRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.ClienteRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	cli, err := s.repo.FindByTelefono(ctx, req.Telefono)
	if err != nil || cli.PinHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cli.PinHash), []byte(req.PIN)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(cli, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   s.cfg.JWTExpirationHours * 3600,
		Cliente:     clienteResponse(cli),
	}, nil
}

func (s *authService) generateToken(cli *model.Cliente, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  cli.ID.String(),
		"telefono": cli.Telefono,
		"rol":      cli.Rol,
		"exp":      time.Now().Add(ttl).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
