package prompts

import (
	"fmt"
	"strings"
)

// DefaultPlatform is used when a prompt has no platform.
const DefaultPlatform = "GPT"

// ClientKind identifies where a prompt is opened.
type ClientKind string

const (
	ClientWeb     ClientKind = "web"
	ClientIOS     ClientKind = "ios"
	ClientAndroid ClientKind = "android"
)

// ParseClientKind parses a client kind. The empty string selects ClientWeb.
func ParseClientKind(s string) (ClientKind, error) {
	switch k := ClientKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return ClientWeb, nil
	case ClientWeb, ClientIOS, ClientAndroid:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown client %q", ErrInvalidInput, s)
	}
}

// PlatformURLs holds launch URLs per client kind.
type PlatformURLs struct {
	Web     string `json:"web"`
	IOS     string `json:"ios"`
	Android string `json:"android"`
}

// Platform is an AI chat platform a prompt can target.
type Platform struct {
	Key  string       `json:"key"`
	Name string       `json:"name"`
	URLs PlatformURLs `json:"urls"`
}

// URL returns the launch URL for the given client kind.
func (p Platform) URL(kind ClientKind) string {
	switch kind {
	case ClientIOS:
		return p.URLs.IOS
	case ClientAndroid:
		return p.URLs.Android
	default:
		return p.URLs.Web
	}
}

var platforms = []Platform{
	{Key: "GPT", Name: "ChatGPT", URLs: PlatformURLs{
		Web: "https://chat.openai.com/", IOS: "chatgpt://", Android: "com.openai.chatgpt://"}},
	{Key: "GEMINI", Name: "Gemini", URLs: PlatformURLs{
		Web: "https://gemini.google.com/app", IOS: "gemini://", Android: "com.google.gemini://"}},
	{Key: "GROK", Name: "Grok", URLs: PlatformURLs{
		Web: "https://grok.x.ai", IOS: "grok://", Android: "com.x.grok://"}},
	{Key: "CLAUDE", Name: "Claude", URLs: PlatformURLs{
		Web: "https://claude.ai", IOS: "claude://", Android: "com.anthropic.claude://"}},
	{Key: "DEEPSEEK", Name: "Deepseek", URLs: PlatformURLs{
		Web: "https://chat.deepseek.com", IOS: "deepseek://", Android: "com.deepseek.chat://"}},
	{Key: "DOUBAO", Name: "豆包", URLs: PlatformURLs{
		Web: "https://www.doubao.com", IOS: "doubao://", Android: "com.doubao.chat://"}},
	{Key: "KIMI", Name: "Kimi", URLs: PlatformURLs{
		Web: "https://kimi.moonshot.cn", IOS: "kimi://", Android: "cn.moonshot.kimi://"}},
	{Key: "WENXIN", Name: "文心一言", URLs: PlatformURLs{
		Web: "https://yiyan.baidu.com", IOS: "baiduyiyan://", Android: "com.baidu.yiyan://"}},
	{Key: "QIANWEN", Name: "通义千问", URLs: PlatformURLs{
		Web: "https://qianwen.aliyun.com", IOS: "qianwen://", Android: "com.alibaba.qianwen://"}},
}

// Platforms returns the platform catalog in display order.
func Platforms() []Platform {
	out := make([]Platform, len(platforms))
	copy(out, platforms)
	return out
}

// LookupPlatform finds a platform by key, ignoring case.
func LookupPlatform(key string) (Platform, bool) {
	key = strings.ToUpper(strings.TrimSpace(key))
	for _, p := range platforms {
		if p.Key == key {
			return p, true
		}
	}
	return Platform{}, false
}
