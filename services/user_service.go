package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"roomchat/backend/apperr"
	"roomchat/backend/models"
	"roomchat/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const searchLimit = 10

var userMessages = map[string]string{
	"Name.required":     "Missing required fields",
	"Email.required":    "Missing required fields",
	"Password.required": "Missing required fields",
	"Email.email":       "Invalid email address",
	"Name.max":          "Name cannot exceed 100 characters",
	"Password.max":      "Password cannot exceed 72 bytes",
	"Avatar.max":        "Avatar cannot exceed 2048 characters",
}

type registerInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,max=72"`
}

type profileInput struct {
	Name   *string `validate:"omitnil,required,max=100"`
	Avatar *string `validate:"omitnil,max=2048"`
}

// ExternalProfile 外部登入（OAuth）取得的使用者資料
type ExternalProfile struct {
	Provider string
	Name     string
	Email    string
	Avatar   string
}

// AuthResult 登入成功回傳使用者與 session token
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// UserService 註冊、登入、個人資料與上線狀態
type UserService struct {
	gate      *AccessGate
	users     UserStore
	jwtSecret string
	tokenTTL  time.Duration
}

func NewUserService(gate *AccessGate, users UserStore, jwtSecret string, tokenTTL time.Duration) *UserService {
	return &UserService{gate: gate, users: users, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Register 以帳號密碼註冊，email 已存在時回傳 Conflict
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	input := registerInput{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	}
	if err := validateInput(input, userMessages); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	user := &models.User{Name: input.Name, Email: input.Email, Password: string(hashed)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 驗證密碼並簽發 token。帳號不存在與密碼錯誤回傳同樣的訊息。
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*AuthResult, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, err
	}
	if !user.HasPassword() {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	return s.issue(user)
}

// SignInExternal 外部登入：以 email 找到既有帳號，沒有就建立一個沒有密碼的帳號
func (s *UserService) SignInExternal(ctx context.Context, profile ExternalProfile) (*AuthResult, error) {
	if strings.TrimSpace(profile.Email) == "" {
		return nil, apperr.Unauthorized("External account has no email")
	}

	user, err := s.users.FindByEmail(ctx, profile.Email)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = "User"
	}
	user = &models.User{Name: name, Email: profile.Email, Avatar: profile.Avatar}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		// 同時建立時另一個請求已經先寫入
		if user, err = s.users.FindByEmail(ctx, profile.Email); err != nil {
			return nil, err
		}
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateJWT(user.ID, user.Name, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, apperr.Internal("sign token", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *UserService) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	if err := s.gate.Authenticate(userID); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, userID)
}

// UpdateMe 修改自己的名稱或頭像
func (s *UserService) UpdateMe(ctx context.Context, userID primitive.ObjectID, patch models.UpdateProfileRequest) (*models.User, error) {
	if err := s.gate.Authenticate(userID); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if err := validateInput(profileInput{Name: patch.Name, Avatar: patch.Avatar}, userMessages); err != nil {
		return nil, err
	}
	return s.users.Update(ctx, userID, patch)
}

// Search 以名稱或 email 搜尋其他使用者，最多 10 筆
func (s *UserService) Search(ctx context.Context, userID primitive.ObjectID, query string) ([]models.User, error) {
	if err := s.gate.Authenticate(userID); err != nil {
		return nil, err
	}
	return s.users.Search(ctx, query, userID, searchLimit)
}

func (s *UserService) Online(ctx context.Context, userID primitive.ObjectID) ([]models.User, error) {
	if err := s.gate.Authenticate(userID); err != nil {
		return nil, err
	}
	return s.users.ListOnline(ctx)
}

// SetPresence WebSocket 連線建立或中斷時更新上線狀態
func (s *UserService) SetPresence(ctx context.Context, userID primitive.ObjectID, online bool) error {
	return s.users.SetOnline(ctx, userID, online)
}
