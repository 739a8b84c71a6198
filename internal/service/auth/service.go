// Package auth 提供客服账号认证
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/repository"
	"github.com/dredbirozsolt/livechat/internal/service/types"
)

// tokenTTL 访问令牌有效期
const tokenTTL = 24 * time.Hour

var (
	jwtSecretOnce sync.Once
	jwtSecret     string
)

// getJwtSecret 获取 JWT 密钥
func getJwtSecret() string {
	jwtSecretOnce.Do(func() {
		if envSecret := strings.TrimSpace(os.Getenv("JWT_SECRET")); envSecret != "" {
			jwtSecret = envSecret
			return
		}

		randomBytes := make([]byte, 32)
		if _, err := rand.Read(randomBytes); err != nil {
			panic(fmt.Sprintf("failed to generate JWT secret: %v", err))
		}
		jwtSecret = base64.StdEncoding.EncodeToString(randomBytes)
	})

	return jwtSecret
}

// Service 认证服务
type Service struct {
	operators repository.OperatorRepository
}

// NewService 创建认证服务
func NewService(operators repository.OperatorRepository) *Service {
	return &Service{operators: operators}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Operator *model.Operator `json:"operator"`
	Token    string          `json:"token"`
}

// Login 客服登录
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	op, err := s.operators.GetByEmail(req.Email)
	if err != nil {
		return nil, types.Unauthorized("invalid email or password")
	}
	if !op.IsActive {
		return nil, types.Unauthorized("account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, types.Unauthorized("invalid email or password")
	}

	token, err := s.generateToken(op)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{Operator: op, Token: token}, nil
}

// ValidateToken 验证令牌并返回客服账号
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*model.Operator, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(getJwtSecret()), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	operatorID, ok := claims["operator_id"].(string)
	if !ok {
		return nil, errors.New("invalid operator ID in token")
	}

	// 角色和激活状态以数据库当前值为准，不信任令牌里的快照
	op, err := s.operators.GetByID(operatorID)
	if err != nil {
		return nil, errors.New("operator not found")
	}
	if !op.IsActive {
		return nil, errors.New("account is disabled")
	}
	return op, nil
}

// CreateOperatorRequest 创建客服账号请求
type CreateOperatorRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// CreateOperator 创建客服账号
func (s *Service) CreateOperator(ctx context.Context, req *CreateOperatorRequest) (*model.Operator, error) {
	if req.Role == "" {
		req.Role = model.OperatorRoleOperator
	}
	if !model.ValidOperatorRole(req.Role) {
		return nil, types.Validation("invalid operator role: %s", req.Role)
	}

	if existing, err := s.operators.GetByEmail(req.Email); err == nil && existing != nil {
		return nil, types.Validation("operator with this email already exists")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing operator: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	op := &model.Operator{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		DisplayName:  req.DisplayName,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.operators.Create(op); err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}
	return op, nil
}

// ListOperators 列出客服账号
func (s *Service) ListOperators(ctx context.Context) ([]*model.Operator, error) {
	ops, _, err := s.operators.List(0, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	return ops, nil
}

// generateToken 签发访问令牌
func (s *Service) generateToken(op *model.Operator) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"operator_id": op.ID,
		"role":        op.Role,
		"iat":         now.Unix(),
		"exp":         now.Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(getJwtSecret()))
}
