package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	walletIDRe = regexp.MustCompile(`^W[0-9]{12}$`)
	// agent, voucher and bank account references
	referenceRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,63}$`)
)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("wallet_id", matches(walletIDRe))
	_ = v.RegisterValidation("safe_id", matches(referenceRe))
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// SanitizeStruct cleans the string and *string fields of a struct pointer.
// The `sanitize` tag picks the cleaner: "-" only trims (signed text and
// stored display names keep their bytes), "upper" trims and upper-cases,
// and the default trims and HTML-escapes.
func SanitizeStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return
	}

	rv = rv.Elem()
	rt := rv.Type()
	for i := range rv.NumField() {
		target := rv.Field(i)
		if target.Kind() == reflect.Pointer && !target.IsNil() {
			target = target.Elem()
		}
		if target.Kind() != reflect.String || !target.CanSet() {
			continue
		}
		target.SetString(cleanerFor(rt.Field(i).Tag.Get("sanitize"))(target.String()))
	}
}

func cleanerFor(tag string) func(string) string {
	switch tag {
	case "-":
		return strings.TrimSpace
	case "upper":
		return func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
	default:
		return func(s string) string { return html.EscapeString(strings.TrimSpace(s)) }
	}
}
