package services

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed common_passwords.txt
var commonPasswordsFile string

const (
	minPasswordLength = 8
	maxSimilarity     = 0.7
)

const (
	msgPasswordTooShort = "This password is too short. It must contain at least 8 characters."
	msgPasswordCommon   = "This password is too common."
	msgPasswordNumeric  = "This password is entirely numeric."
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// UserAttributes はパスワードとの類似度を比較するユーザー属性です。
type UserAttributes struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
}

// PasswordValidator は登録とリセットで共通のパスワードポリシーを適用します。
type PasswordValidator struct {
	minLength int
	common    map[string]struct{}
}

// NewPasswordValidator は埋め込みの一般的なパスワード一覧を読み込んだPasswordValidatorを作成します。
func NewPasswordValidator() *PasswordValidator {
	common := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(commonPasswordsFile))
	for sc.Scan() {
		if p := strings.ToLower(strings.TrimSpace(sc.Text())); p != "" {
			common[p] = struct{}{}
		}
	}
	return &PasswordValidator{minLength: minPasswordLength, common: common}
}

// Validate は違反したすべてのルールのメッセージを返します。問題がなければ空です。
func (v *PasswordValidator) Validate(password string, attrs UserAttributes) []string {
	var msgs []string
	if attr, ok := v.similarAttribute(password, attrs); ok {
		msgs = append(msgs, fmt.Sprintf("The password is too similar to the %s.", attr))
	}
	if utf8.RuneCountInString(password) < v.minLength {
		msgs = append(msgs, msgPasswordTooShort)
	}
	if _, ok := v.common[strings.ToLower(strings.TrimSpace(password))]; ok {
		msgs = append(msgs, msgPasswordCommon)
	}
	if isNumeric(password) {
		msgs = append(msgs, msgPasswordNumeric)
	}
	return msgs
}

func (v *PasswordValidator) similarAttribute(password string, attrs UserAttributes) (string, bool) {
	pw := strings.ToLower(password)
	candidates := []struct {
		name  string
		value string
	}{
		{"username", attrs.Username},
		{"first name", attrs.FirstName},
		{"last name", attrs.LastName},
		{"email address", attrs.Email},
	}
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		value := strings.ToLower(c.value)
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			if exceedsLengthRatio(pw, part) {
				continue
			}
			if quickRatio(pw, part) >= maxSimilarity {
				return c.name, true
			}
		}
	}
	return "", false
}

// exceedsLengthRatio は長さの差だけで類似度が閾値に届かない組み合わせを除外します。
func exceedsLengthRatio(password, value string) bool {
	pwLen := utf8.RuneCountInString(password)
	valueLen := utf8.RuneCountInString(value)
	bound := maxSimilarity / 2 * float64(pwLen)
	return pwLen >= 10*valueLen && float64(valueLen) < bound
}

// quickRatio は文字の多重集合の共通部分から類似度の上限を計算します。
func quickRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	avail := make(map[rune]int, len(rb))
	for _, r := range rb {
		avail[r]++
	}
	matches := 0
	for _, r := range ra {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
