// Package auth 提供认证服务单元测试
package auth

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/service/types"
	"github.com/dredbirozsolt/livechat/internal/testutil"
)

func newTestService() (*Service, *testutil.Store) {
	store := testutil.NewStore()
	return NewService(store.Repositories().Operator), store
}

func addOperator(t *testing.T, store *testutil.Store, email, password string, active bool) *model.Operator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error = %v", err)
	}
	op := &model.Operator{
		ID:           "op-" + email,
		Username:     email,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.OperatorRoleOperator,
		IsActive:     active,
	}
	store.Operators[op.ID] = op
	return op
}

func TestLogin(t *testing.T) {
	svc, store := newTestService()
	addOperator(t, store, "agent@example.com", "secret123", true)

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "agent@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token == "" {
		t.Error("Login() returned empty token")
	}

	// 令牌可以被验证并解析回同一个账号
	op, err := svc.ValidateToken(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if op.Email != "agent@example.com" {
		t.Errorf("ValidateToken() operator = %s, want agent@example.com", op.Email)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, store := newTestService()
	addOperator(t, store, "agent@example.com", "secret123", true)

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "agent@example.com",
		Password: "wrong",
	})
	if !types.IsKind(err, types.KindUnauthorized) {
		t.Fatalf("Login() error = %v, want Unauthorized", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "nobody@example.com",
		Password: "secret123",
	})
	if !types.IsKind(err, types.KindUnauthorized) {
		t.Fatalf("Login() error = %v, want Unauthorized", err)
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	svc, store := newTestService()
	addOperator(t, store, "gone@example.com", "secret123", false)

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "gone@example.com",
		Password: "secret123",
	})
	if !types.IsKind(err, types.KindUnauthorized) {
		t.Fatalf("Login() error = %v, want Unauthorized", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.ValidateToken(context.Background(), "not.a.token"); err == nil {
		t.Fatal("ValidateToken() accepted garbage")
	}
}

func TestValidateToken_DeactivatedAfterIssue(t *testing.T) {
	svc, store := newTestService()
	op := addOperator(t, store, "agent@example.com", "secret123", true)

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "agent@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// 签发后禁用账号：令牌立即失效
	op.IsActive = false
	if _, err := svc.ValidateToken(context.Background(), resp.Token); err == nil {
		t.Fatal("ValidateToken() accepted token of a disabled account")
	}
}

func TestCreateOperator(t *testing.T) {
	svc, store := newTestService()

	op, err := svc.CreateOperator(context.Background(), &CreateOperatorRequest{
		Username: "newbie",
		Email:    "newbie@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("CreateOperator() error = %v", err)
	}
	if op.Role != model.OperatorRoleOperator {
		t.Errorf("role = %s, want default operator", op.Role)
	}
	if op.PasswordHash == "secret123" {
		t.Error("password stored in plain text")
	}
	if _, ok := store.Operators[op.ID]; !ok {
		t.Error("operator not persisted")
	}
}

func TestCreateOperator_InvalidRole(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateOperator(context.Background(), &CreateOperatorRequest{
		Username: "x",
		Email:    "x@example.com",
		Password: "secret123",
		Role:     "superuser",
	})
	if !types.IsKind(err, types.KindValidation) {
		t.Fatalf("CreateOperator() error = %v, want Validation", err)
	}
}

func TestCreateOperator_DuplicateEmail(t *testing.T) {
	svc, store := newTestService()
	addOperator(t, store, "dup@example.com", "secret123", true)

	_, err := svc.CreateOperator(context.Background(), &CreateOperatorRequest{
		Username: "dup2",
		Email:    "dup@example.com",
		Password: "secret123",
	})
	if !types.IsKind(err, types.KindValidation) {
		t.Fatalf("CreateOperator() error = %v, want Validation", err)
	}
}
