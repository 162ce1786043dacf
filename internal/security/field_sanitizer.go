// Package security はアプリケーションのセキュリティ機能を提供する。
//
// FieldSanitizer はリクエスト由来の攻撃者が制御可能な文字列
// （User-Agent、URL、ルート名）を保存前にサニタイズする。
// これらの値は管理画面やAPI応答でそのまま表示されるため、
// bluemondayの厳格ポリシーでHTMLをすべて除去し、格納型XSSを防ぐ。
package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// 各フィールドの最大長。異常に長い値はDB肥大化を防ぐため切り詰める。
const (
	maxUserAgentLen  = 512
	maxURLLen        = 2048
	maxRouteLabelLen = 255
)

// FieldSanitizer は追跡フィールドのサニタイズ機能のインターフェース。
type FieldSanitizer interface {
	// SanitizeUserAgent はUser-Agent文字列からHTMLを除去し、最大長に切り詰める。
	SanitizeUserAgent(raw string) string
	// SanitizeURL はURL文字列からHTMLを除去し、最大長に切り詰める。
	SanitizeURL(raw string) string
	// SanitizeRouteLabel はルート名からHTMLを除去し、最大長に切り詰める。
	SanitizeRouteLabel(raw string) string
}

// fieldSanitizer はFieldSanitizerの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに処理を行う。
type fieldSanitizer struct {
	policy *bluemonday.Policy
}

// NewFieldSanitizer はFieldSanitizerの新しいインスタンスを生成する。
func NewFieldSanitizer() *fieldSanitizer {
	return &fieldSanitizer{
		// StrictPolicyはすべてのHTML要素と属性を除去する
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeUserAgent はUser-Agent文字列からHTMLを除去し、最大長に切り詰める。
func (s *fieldSanitizer) SanitizeUserAgent(raw string) string {
	return s.sanitize(raw, maxUserAgentLen)
}

// SanitizeURL はURL文字列からHTMLを除去し、最大長に切り詰める。
func (s *fieldSanitizer) SanitizeURL(raw string) string {
	return s.sanitize(raw, maxURLLen)
}

// SanitizeRouteLabel はルート名からHTMLを除去し、最大長に切り詰める。
func (s *fieldSanitizer) SanitizeRouteLabel(raw string) string {
	return s.sanitize(raw, maxRouteLabelLen)
}

func (s *fieldSanitizer) sanitize(raw string, maxLen int) string {
	cleaned := strings.TrimSpace(s.policy.Sanitize(raw))
	if len(cleaned) > maxLen {
		// マルチバイト文字の途中で切らないよう、ルーン境界まで戻す
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
	}
	return cleaned
}

var _ FieldSanitizer = (*fieldSanitizer)(nil)
