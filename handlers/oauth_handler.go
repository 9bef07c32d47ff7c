package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"roomchat/backend/apperr"
	"roomchat/backend/config"
	"roomchat/backend/services"
	"roomchat/backend/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
	oauthTimeout     = 10 * time.Second
)

// OAuthProvider 外部登入提供者：OAuth 設定與取得使用者資料的方式
type OAuthProvider struct {
	Config      *oauth2.Config
	UserInfoURL string
	// fetchProfile 以授權後的 client 讀取使用者資料
	fetchProfile func(ctx context.Context, client *http.Client, p *OAuthProvider) (services.ExternalProfile, error)
}

// OAuthProviders 依設定建立 google 與 github，未設定 client id 的略過
func OAuthProviders(cfg *config.Config) map[string]*OAuthProvider {
	providers := map[string]*OAuthProvider{}
	callback := func(name string) string {
		return cfg.OAuthRedirectBase + "/auth/oauth/" + name + "/callback"
	}
	if cfg.GoogleClientID != "" {
		providers["google"] = &OAuthProvider{
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     endpoints.Google,
				RedirectURL:  callback("google"),
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
			fetchProfile: googleProfile,
		}
	}
	if cfg.GitHubClientID != "" {
		providers["github"] = &OAuthProvider{
			Config: &oauth2.Config{
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				Endpoint:     endpoints.GitHub,
				RedirectURL:  callback("github"),
				Scopes:       []string{"read:user", "user:email"},
			},
			UserInfoURL:  "https://api.github.com/user",
			fetchProfile: githubProfile,
		}
	}
	return providers
}

// OAuthHandler 處理外部登入的導向與回呼
type OAuthHandler struct {
	users     *services.UserService
	providers map[string]*OAuthProvider
}

func NewOAuthHandler(users *services.UserService, providers map[string]*OAuthProvider) *OAuthHandler {
	return &OAuthHandler{users: users, providers: providers}
}

func (h *OAuthHandler) provider(r *http.Request) (string, *OAuthProvider, error) {
	name := mux.Vars(r)["provider"]
	p, ok := h.providers[name]
	if !ok {
		return name, nil, apperr.NotFound("Unknown sign-in provider")
	}
	return name, p, nil
}

// Login GET /auth/oauth/{provider}/login，導向提供者的授權頁
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	name, p, err := h.provider(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/oauth/" + name,
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	http.Redirect(w, r, p.Config.AuthCodeURL(state), http.StatusFound)
}

// Callback GET /auth/oauth/{provider}/callback，交換 token 後登入或建立帳號
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	name, p, err := h.provider(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		utils.WriteError(w, r, apperr.Unauthorized("Invalid OAuth state"))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		utils.WriteError(w, r, apperr.Unauthorized("Missing authorization code"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), oauthTimeout)
	defer cancel()

	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		log.Printf("[OAUTH_ERROR] %s code exchange: %v", name, err)
		utils.WriteError(w, r, apperr.Unauthorized("OAuth sign-in failed"))
		return
	}
	profile, err := p.fetchProfile(ctx, p.Config.Client(ctx, token), p)
	if err != nil {
		log.Printf("[OAUTH_ERROR] %s profile: %v", name, err)
		utils.WriteError(w, r, apperr.Unauthorized("OAuth sign-in failed"))
		return
	}
	profile.Provider = name

	result, err := h.users.SignInExternal(r.Context(), profile)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/oauth/" + name, MaxAge: -1})
	utils.WriteJSON(w, http.StatusOK, result)
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", url, resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func googleProfile(ctx context.Context, client *http.Client, p *OAuthProvider) (services.ExternalProfile, error) {
	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &info); err != nil {
		return services.ExternalProfile{}, err
	}
	return services.ExternalProfile{Email: info.Email, Name: info.Name, Avatar: info.Picture}, nil
}

// githubProfile 使用者沒有公開 email 時改讀 /user/emails 的主要信箱
func githubProfile(ctx context.Context, client *http.Client, p *OAuthProvider) (services.ExternalProfile, error) {
	var info struct {
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &info); err != nil {
		return services.ExternalProfile{}, err
	}
	profile := services.ExternalProfile{Email: info.Email, Name: info.Name, Avatar: info.AvatarURL}
	if profile.Name == "" {
		profile.Name = info.Login
	}
	if profile.Email != "" {
		return profile, nil
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL+"/emails", &emails); err != nil {
		return services.ExternalProfile{}, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			profile.Email = e.Email
			break
		}
	}
	return profile, nil
}
