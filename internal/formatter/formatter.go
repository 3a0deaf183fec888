// Package formatter turns template variant bindings into the display strings
// substituted into a ZNS template.
package formatter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/lestrrat-go/strftime"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/models"
)

const (
	defaultDateFormat     = "%d/%m/%Y"
	defaultCurrencySymbol = "₫"
	isoDate               = "2006-01-02"
)

// Record is a source document flattened to a map, related records nested.
type Record = map[string]any

// Formatter resolves and formats variant values. The zero value is usable and
// keeps custom expressions disabled.
type Formatter struct {
	// AllowExpressions enables "custom" field models. Off unless a tenant
	// explicitly opts in.
	AllowExpressions bool
	Log              *logrus.Logger
}

func New(allowExpressions bool, log *logrus.Logger) *Formatter {
	return &Formatter{AllowExpressions: allowExpressions, Log: log}
}

// Format resolves the value for v from rec (when bound) or raw, and renders
// it per the variant's type. It never fails: any problem yields the
// variant's default value.
func (f *Formatter) Format(v models.Variant, rec Record, raw any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			f.logger().WithField("param", v.ParamName).Errorf("formatting parameter panicked: %v", r)
			out = v.DefaultValue
		}
	}()

	value := raw
	if rec != nil && v.FieldModel != "" && v.FieldName != "" {
		value = f.resolve(v, rec)
	}
	if value == nil {
		value = v.DefaultValue
	}

	formatted, err := f.render(v, value)
	if err != nil {
		f.logger().WithField("param", v.ParamName).WithError(err).Error("error formatting parameter value")
		return v.DefaultValue
	}
	return formatted
}

// BuildParams maps every active variant's param name to its formatted value.
func (f *Formatter) BuildParams(variants []models.Variant, rec Record) map[string]string {
	params := make(map[string]string, len(variants))
	for _, v := range variants {
		if !v.Active {
			continue
		}
		params[v.ParamName] = f.Format(v, rec, nil)
	}
	return params
}

func (f *Formatter) resolve(v models.Variant, rec Record) any {
	if v.FieldModel == models.ModelCustom {
		if !f.AllowExpressions {
			f.logger().WithField("param", v.ParamName).Warn("custom expressions disabled, using default value")
			return v.DefaultValue
		}
		val, err := evalExpression(v.FieldName, rec)
		if err != nil {
			f.logger().WithField("param", v.ParamName).WithError(err).Error("error evaluating custom expression")
			return v.DefaultValue
		}
		return val
	}
	return Lookup(rec, v.FieldName)
}

func (f *Formatter) render(v models.Variant, value any) (string, error) {
	var out any = value

	switch v.ParamType {
	case models.ParamNumber:
		n, _ := toFloat(value)
		out = FormatNumber(n, v.DecimalPlaces, v.ThousandSeparator)
	case models.ParamDate:
		if !isEmpty(value) {
			out = formatDate(value, v.DateFormat)
		}
	case models.ParamCurrency:
		if !isEmpty(value) {
			n, _ := toFloat(value)
			out = FormatCurrency(n, v.DecimalPlaces, v.CurrencySymbol, v.CurrencyPosition)
		}
	}

	s := stringify(out)
	if v.FieldFormat != "" && out != nil {
		s = applyFormat(v.FieldFormat, s)
	}
	return s, nil
}

// Lookup walks a dotted field path across nested records. A missing link
// stops the walk and yields nil.
func Lookup(rec Record, path string) any {
	var current any = rec
	for _, field := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok || m == nil {
			return nil
		}
		current = m[field]
		if current == nil {
			return nil
		}
	}
	return current
}

func evalExpression(code string, rec Record) (any, error) {
	env := map[string]any{"record": rec}
	program, err := expr.Compile(code, expr.Env(env))
	if err != nil {
		return nil, err
	}
	return expr.Run(program, env)
}

// FormatNumber renders n with a fixed number of decimals, grouping the
// integer digits by three with a space when group is set.
func FormatNumber(n float64, places int, group bool) string {
	if places < 0 {
		places = 0
	}
	s := strconv.FormatFloat(n, 'f', places, 64)
	if !group {
		return s
	}
	return groupThousands(s)
}

// FormatCurrency always groups digits, then places the symbol before or after.
func FormatCurrency(n float64, places int, symbol, position string) string {
	if symbol == "" {
		symbol = defaultCurrencySymbol
	}
	amount := FormatNumber(n, places, true)
	if position == "after" {
		return amount + symbol
	}
	return symbol + amount
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

func formatDate(value any, pattern string) any {
	if pattern == "" {
		pattern = defaultDateFormat
	}
	var t time.Time
	switch d := value.(type) {
	case time.Time:
		t = d
	case *time.Time:
		if d == nil {
			return value
		}
		t = *d
	case string:
		parsed, err := time.Parse(isoDate, d)
		if err != nil {
			return value
		}
		t = parsed
	default:
		return value
	}

	out, err := strftime.Format(pattern, t)
	if err != nil {
		return value
	}
	return out
}

// applyFormat substitutes the value into {} or {0} placeholders. A format
// without placeholders renders as itself.
func applyFormat(format, value string) string {
	out := strings.ReplaceAll(format, "{0}", value)
	return strings.ReplaceAll(out, "{}", value)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		f, err := strconv.ParseFloat(fmt.Sprint(n), 64)
		return f, err == nil
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case int:
		return x == 0
	}
	return false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func (f *Formatter) logger() *logrus.Logger {
	if f.Log != nil {
		return f.Log
	}
	return logrus.StandardLogger()
}
