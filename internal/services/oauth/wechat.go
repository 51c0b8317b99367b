// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const (
	ProviderWeChat = "wechat"

	wechatAPIBase     = "https://api.weixin.qq.com"
	wechatConnectURL  = "https://open.weixin.qq.com/connect/qrconnect"
	wechatEmailDomain = "wechat.temp"
)

type wechatAdapter struct {
	appID       string
	appSecret   string
	redirectURL string
	httpClient  *http.Client
	apiBase     string
}

var _ Provider = (*wechatAdapter)(nil)

// NewWeChat creates the WeChat web login adapter. WeChat does not support
// PKCE so the verifier is ignored.
func NewWeChat(appID, appSecret, redirectURL string, opts ...Option) Provider {
	o := buildOptions(wechatAPIBase, opts)
	return &wechatAdapter{
		appID:       appID,
		appSecret:   appSecret,
		redirectURL: redirectURL,
		httpClient:  o.httpClient,
		apiBase:     o.apiBase,
	}
}

// WeChatEmail is the placeholder address for WeChat accounts, which never
// expose an email.
func WeChatEmail(openID string) string {
	return openID + "@" + wechatEmailDomain
}

func (a *wechatAdapter) Name() string { return ProviderWeChat }

func (a *wechatAdapter) AuthURL(state, _ string) string {
	q := url.Values{
		"appid":         {a.appID},
		"redirect_uri":  {a.redirectURL},
		"response_type": {"code"},
		"scope":         {"snsapi_login"},
		"state":         {state},
	}
	return wechatConnectURL + "?" + q.Encode() + "#wechat_redirect"
}

type wechatError struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (e wechatError) err() error {
	if e.ErrCode == 0 {
		return nil
	}
	return fmt.Errorf("wechat error %d: %s", e.ErrCode, e.ErrMsg)
}

func (a *wechatAdapter) Exchange(ctx context.Context, code, _ string) (*Profile, error) {
	var tok struct {
		wechatError
		AccessToken string `json:"access_token"`
		OpenID      string `json:"openid"`
		UnionID     string `json:"unionid"`
	}
	q := url.Values{
		"appid":      {a.appID},
		"secret":     {a.appSecret},
		"code":       {code},
		"grant_type": {"authorization_code"},
	}
	if err := getJSON(ctx, a.httpClient, a.apiBase+"/sns/oauth2/access_token?"+q.Encode(), nil, &tok); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	if err := tok.err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	if tok.AccessToken == "" || tok.OpenID == "" {
		return nil, fmt.Errorf("%w: empty token response", ErrExchange)
	}

	var info struct {
		wechatError
		OpenID     string `json:"openid"`
		Nickname   string `json:"nickname"`
		HeadImgURL string `json:"headimgurl"`
	}
	q = url.Values{"access_token": {tok.AccessToken}, "openid": {tok.OpenID}}
	if err := getJSON(ctx, a.httpClient, a.apiBase+"/sns/userinfo?"+q.Encode(), nil, &info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfile, err)
	}
	if err := info.err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfile, err)
	}

	return &Profile{
		Provider:      ProviderWeChat,
		ProviderID:    tok.OpenID,
		Email:         WeChatEmail(tok.OpenID),
		EmailVerified: true,
		Name:          info.Nickname,
		AvatarURL:     info.HeadImgURL,
	}, nil
}
