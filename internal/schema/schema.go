// Package schema はワイヤ形式のJSONとドメイン型の相互変換と入力検証を提供する。
//
// Load系関数はリクエストボディを検証済みのコマンドに変換し、
// 失敗したフィールドをすべて集約した *ValidationError を返す。
// Dump系関数はドメイン型をcamelCaseのワイヤ表現に変換する。
package schema

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/hitoshi/choretracker/internal/model"
)

// MaxUnix はUNIX秒として受け付ける最大値（2^31-1）。
const MaxUnix = math.MaxInt32

// SchemaField はオブジェクト全体に関するエラーのフィールド名。
const SchemaField = "_schema"

const (
	reasonRequired   = "missing data for required field"
	reasonString     = "not a valid string"
	reasonText       = "must be valid UTF-8 text without NUL characters"
	reasonInteger    = "not a valid integer"
	reasonEmpty      = "must not be empty"
	reasonReadOnly   = "field is read-only"
	reasonEmail      = "not a valid email address"
	reasonWhitespace = "must not be empty or have leading or trailing whitespace"
	reasonJSON       = "invalid JSON"
	reasonObject     = "must be a JSON object"
)

var (
	validate       = validator.New()
	trimmedPattern = regexp.MustCompile(`^\S(?:.*\S)?$`)
)

// ValidationError はフィールド単位の検証エラーを集約したエラー。
type ValidationError struct {
	Fields map[string][]string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Kind は検証エラーのドメイン分類を返す。常にKindBadRequest。
func (e *ValidationError) Kind() model.ErrorKind {
	return model.KindBadRequest
}

func schemaError(reason string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{SchemaField: {reason}}}
}

// loader はJSONオブジェクトからフィールドを型付きで取り出し、エラーを蓄積する。
type loader struct {
	root gjson.Result
	errs map[string][]string
}

func newLoader(body []byte) (*loader, error) {
	if !gjson.ValidBytes(body) {
		return nil, schemaError(reasonJSON)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, schemaError(reasonObject)
	}
	return &loader{root: root, errs: make(map[string][]string)}, nil
}

func (l *loader) fail(field, reason string) {
	l.errs[field] = append(l.errs[field], reason)
}

func (l *loader) get(field string) (gjson.Result, bool) {
	r := l.root.Get(gjson.Escape(field))
	if !r.Exists() {
		l.fail(field, reasonRequired)
		return r, false
	}
	return r, true
}

// readOnly はサーバー側でのみ設定されるフィールドが入力に含まれていれば拒否する。
func (l *loader) readOnly(fields ...string) {
	for _, field := range fields {
		if l.root.Get(gjson.Escape(field)).Exists() {
			l.fail(field, reasonReadOnly)
		}
	}
}

func (l *loader) str(field string) (string, bool) {
	r, ok := l.get(field)
	if !ok {
		return "", false
	}
	if r.Type != gjson.String {
		l.fail(field, reasonString)
		return "", false
	}
	// Postgresのtext型はNULと不正なUTF-8を保存できない
	if !utf8.ValidString(r.Str) || strings.ContainsRune(r.Str, 0) {
		l.fail(field, reasonText)
		return "", false
	}
	return r.Str, true
}

// nonEmptyStr は空文字列を拒否する文字列フィールドを取り出す。
func (l *loader) nonEmptyStr(field string) string {
	s, ok := l.str(field)
	if ok && s == "" {
		l.fail(field, reasonEmpty)
	}
	return s
}

// integer は整数フィールドを取り出し、[min, max] の範囲を検証する。
// 1.0 のような整数値の浮動小数点表記も受け付ける。
func (l *loader) integer(field string, min, max int64) int64 {
	r, ok := l.get(field)
	if !ok {
		return 0
	}
	if r.Type != gjson.Number {
		l.fail(field, reasonInteger)
		return 0
	}

	v, err := strconv.ParseInt(r.Raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(r.Raw, 64)
		switch {
		case ferr != nil && !errors.Is(ferr, strconv.ErrRange), f != math.Trunc(f):
			l.fail(field, reasonInteger)
			return 0
		case f < math.MinInt64 || f >= math.MaxInt64:
			l.fail(field, rangeReason(min, max))
			return 0
		}
		v = int64(f)
	}

	if v < min || v > max {
		l.fail(field, rangeReason(min, max))
		return 0
	}
	return v
}

func (l *loader) email(field string) string {
	s, ok := l.str(field)
	if !ok {
		return s
	}
	if err := validate.Var(s, "required,email"); err != nil {
		l.fail(field, reasonEmail)
	}
	return s
}

// trimmedStr は空でなく、前後に空白を持たない文字列フィールドを取り出す。
func (l *loader) trimmedStr(field string) string {
	s, ok := l.str(field)
	if !ok {
		return s
	}
	if !trimmedPattern.MatchString(s) {
		l.fail(field, reasonWhitespace)
	}
	return s
}

func (l *loader) err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: l.errs}
}

func rangeReason(min, max int64) string {
	if max == math.MaxInt64 {
		return fmt.Sprintf("must be greater than or equal to %d", min)
	}
	return fmt.Sprintf("must be greater than or equal to %d and less than or equal to %d", min, max)
}
