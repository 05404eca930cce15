package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var errDivisionByZero = errors.New("division by zero")

// Truthy returns the truth value of v: None, False, zero, empty strings and
// empty lists are false.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []Value:
		return len(x) > 0
	}
	return true
}

// Format returns the str() form of v.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case string:
		return x
	case []Value:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = Repr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}

// Repr returns the repr() form of v.
func Repr(v Value) string {
	if s, ok := v.(string); ok {
		if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
			return `"` + s + `"`
		}
		return "'" + strings.Replace(s, "'", `\'`, -1) + "'"
	}
	return Format(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', 12, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []Value:
		return "list"
	}
	return fmt.Sprintf("%T", v)
}

// toNumber converts numeric values (including bools) to float64.
func toNumber(v Value) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// toInt converts integral values (including bools) to int64.
func toInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int64:
		return x, true
	}
	return 0, false
}

// EvaluateBinaryOperation applies an arithmetic operator.
func EvaluateBinaryOperation(left Value, op string, right Value) (Value, error) {
	switch op {
	case "+":
		switch l := left.(type) {
		case string:
			if r, ok := right.(string); ok {
				return l + r, nil
			}
		case []Value:
			if r, ok := right.([]Value); ok {
				return append(append([]Value(nil), l...), r...), nil
			}
		}
	case "*":
		if n, ok := toInt(right); ok {
			switch l := left.(type) {
			case string:
				return strings.Repeat(l, int(max(n, 0))), nil
			}
		}
		if n, ok := toInt(left); ok {
			if r, ok := right.(string); ok {
				return strings.Repeat(r, int(max(n, 0))), nil
			}
		}
	case "%":
		if l, ok := left.(string); ok {
			return formatPercent(l, right)
		}
	}

	if li, ok := toInt(left); ok {
		if ri, ok := toInt(right); ok {
			return intOp(li, op, ri)
		}
	}
	lf, lok := toNumber(left)
	rf, rok := toNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(left), typeName(right))
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, errDivisionByZero
		}
		return lf / rf, nil
	case "//":
		if rf == 0 {
			return nil, errDivisionByZero
		}
		return math.Floor(lf / rf), nil
	case "%":
		if rf == 0 {
			return nil, errDivisionByZero
		}
		m := math.Mod(lf, rf)
		if m != 0 && (m < 0) != (rf < 0) {
			m += rf
		}
		return m, nil
	case "**":
		return math.Pow(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown operator: %s", op)
}

func intOp(l int64, op string, r int64) (Value, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/", "//":
		if r == 0 {
			return nil, errDivisionByZero
		}
		q := l / r
		if (l%r != 0) && ((l < 0) != (r < 0)) {
			q--
		}
		return q, nil
	case "%":
		if r == 0 {
			return nil, errDivisionByZero
		}
		m := l % r
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m, nil
	case "**":
		if r < 0 {
			return math.Pow(float64(l), float64(r)), nil
		}
		result := int64(1)
		for i := int64(0); i < r; i++ {
			result *= l
		}
		return result, nil
	}
	return nil, fmt.Errorf("unknown operator: %s", op)
}

// formatPercent implements the string % operator for %s, %d and %r verbs.
func formatPercent(format string, arg Value) (Value, error) {
	args, ok := arg.([]Value)
	if !ok {
		args = []Value{arg}
	}
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		if i++; i >= len(format) {
			return nil, errors.New("incomplete format")
		}
		verb := format[i]
		if verb == '%' {
			sb.WriteByte('%')
			continue
		}
		if len(args) == 0 {
			return nil, errors.New("not enough arguments for format string")
		}
		v := args[0]
		args = args[1:]
		switch verb {
		case 's':
			sb.WriteString(Format(v))
		case 'r':
			sb.WriteString(Repr(v))
		case 'd', 'i':
			n, ok := toNumber(v)
			if !ok {
				return nil, fmt.Errorf("%%d format: a number is required, not %s", typeName(v))
			}
			sb.WriteString(strconv.FormatInt(int64(n), 10))
		default:
			return nil, fmt.Errorf("unsupported format character %q", verb)
		}
	}
	if len(args) > 0 {
		return nil, errors.New("not all arguments converted during string formatting")
	}
	return sb.String(), nil
}

// compare applies a comparison, membership or identity operator.
func compare(left Value, op string, right Value) (bool, error) {
	switch op {
	case "==":
		return equal(left, right), nil
	case "!=", "<>":
		return !equal(left, right), nil
	case "is":
		return identical(left, right), nil
	case "is not":
		return !identical(left, right), nil
	case "in", "not in":
		in, err := contains(right, left)
		if op == "not in" {
			in = !in
		}
		return in, err
	}
	c, err := order(left, right)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case ">":
		return c > 0, nil
	case "<=":
		return c <= 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("unknown operator: %s", op)
}

func identical(left, right Value) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok || rok {
		return lok && rok && lb == rb
	}
	return equal(left, right)
}

func equal(left, right Value) bool {
	if ln, ok := toNumber(left); ok {
		rn, ok := toNumber(right)
		return ok && ln == rn
	}
	switch l := left.(type) {
	case nil:
		return right == nil
	case string:
		r, ok := right.(string)
		return ok && l == r
	case []Value:
		r, ok := right.([]Value)
		if !ok || len(l) != len(r) {
			return false
		}
		for i := range l {
			if !equal(l[i], r[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// order compares two values of compatible types.
func order(left, right Value) (int, error) {
	if ln, ok := toNumber(left); ok {
		if rn, ok := toNumber(right); ok {
			switch {
			case ln < rn:
				return -1, nil
			case ln > rn:
				return 1, nil
			}
			return 0, nil
		}
	}
	if l, ok := left.(string); ok {
		if r, ok := right.(string); ok {
			return strings.Compare(l, r), nil
		}
	}
	if l, ok := left.([]Value); ok {
		if r, ok := right.([]Value); ok {
			for i := 0; i < len(l) && i < len(r); i++ {
				if c, err := order(l[i], r[i]); err != nil || c != 0 {
					return c, err
				}
			}
			return len(l) - len(r), nil
		}
	}
	return 0, fmt.Errorf("unorderable types: %s and %s", typeName(left), typeName(right))
}

func contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, fmt.Errorf("'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case []Value:
		for _, v := range c {
			if equal(v, item) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("argument of type '%s' is not iterable", typeName(container))
}

func length(v Value) (int, error) {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x), nil
	case []Value:
		return len(x), nil
	}
	return 0, fmt.Errorf("object of type '%s' has no len()", typeName(v))
}

func index(obj, i Value) (Value, error) {
	n, ok := toInt(i)
	if !ok {
		return nil, fmt.Errorf("indices must be integers, not %s", typeName(i))
	}
	switch x := obj.(type) {
	case string:
		runes := []rune(x)
		if n < 0 {
			n += int64(len(runes))
		}
		if n < 0 || n >= int64(len(runes)) {
			return nil, errors.New("string index out of range")
		}
		return string(runes[n]), nil
	case []Value:
		if n < 0 {
			n += int64(len(x))
		}
		if n < 0 || n >= int64(len(x)) {
			return nil, errors.New("list index out of range")
		}
		return x[n], nil
	}
	return nil, fmt.Errorf("'%s' object is not subscriptable", typeName(obj))
}

func sliceBounds(lo, hi Value, n int) (int, int, error) {
	bound := func(v Value, def int) (int, error) {
		if v == nil {
			return def, nil
		}
		i, ok := toInt(v)
		if !ok {
			return 0, fmt.Errorf("slice indices must be integers, not %s", typeName(v))
		}
		if i < 0 {
			i += int64(n)
		}
		if i < 0 {
			i = 0
		}
		if i > int64(n) {
			i = int64(n)
		}
		return int(i), nil
	}
	l, err := bound(lo, 0)
	if err != nil {
		return 0, 0, err
	}
	h, err := bound(hi, n)
	if err != nil {
		return 0, 0, err
	}
	if h < l {
		h = l
	}
	return l, h, nil
}

func slice(obj, lo, hi Value) (Value, error) {
	switch x := obj.(type) {
	case string:
		runes := []rune(x)
		l, h, err := sliceBounds(lo, hi, len(runes))
		if err != nil {
			return nil, err
		}
		return string(runes[l:h]), nil
	case []Value:
		l, h, err := sliceBounds(lo, hi, len(x))
		if err != nil {
			return nil, err
		}
		return append([]Value(nil), x[l:h]...), nil
	}
	return nil, fmt.Errorf("'%s' object is not subscriptable", typeName(obj))
}

var builtins = map[string]func(args []Value) (Value, error){
	"len": func(args []Value) (Value, error) {
		if err := arity("len", args, 1, 1); err != nil {
			return nil, err
		}
		n, err := length(args[0])
		return int64(n), err
	},
	"str": func(args []Value) (Value, error) {
		if err := arity("str", args, 0, 1); err != nil || len(args) == 0 {
			return "", err
		}
		return Format(args[0]), nil
	},
	"int": func(args []Value) (Value, error) {
		if err := arity("int", args, 0, 1); err != nil || len(args) == 0 {
			return int64(0), err
		}
		switch x := args[0].(type) {
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid literal for int(): %s", Repr(x))
			}
			return i, nil
		case float64:
			return int64(x), nil
		}
		if i, ok := toInt(args[0]); ok {
			return i, nil
		}
		return nil, fmt.Errorf("int() argument must be a string or a number, not '%s'", typeName(args[0]))
	},
	"float": func(args []Value) (Value, error) {
		if err := arity("float", args, 0, 1); err != nil || len(args) == 0 {
			return 0.0, err
		}
		if s, ok := args[0].(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("could not convert string to float: %s", Repr(s))
			}
			return f, nil
		}
		if f, ok := toNumber(args[0]); ok {
			return f, nil
		}
		return nil, fmt.Errorf("float() argument must be a string or a number, not '%s'", typeName(args[0]))
	},
	"bool": func(args []Value) (Value, error) {
		if err := arity("bool", args, 0, 1); err != nil || len(args) == 0 {
			return false, err
		}
		return Truthy(args[0]), nil
	},
	"abs": func(args []Value) (Value, error) {
		if err := arity("abs", args, 1, 1); err != nil {
			return nil, err
		}
		if i, ok := toInt(args[0]); ok {
			if i < 0 {
				i = -i
			}
			return i, nil
		}
		if f, ok := toNumber(args[0]); ok {
			return math.Abs(f), nil
		}
		return nil, fmt.Errorf("bad operand type for abs(): '%s'", typeName(args[0]))
	},
	"min": func(args []Value) (Value, error) { return extreme("min", args, -1) },
	"max": func(args []Value) (Value, error) { return extreme("max", args, 1) },
}

func arity(name string, args []Value, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return fmt.Errorf("%s() takes %d to %d arguments (%d given)", name, lo, hi, len(args))
	}
	return nil
}

func extreme(name string, args []Value, sign int) (Value, error) {
	if len(args) == 1 {
		if list, ok := args[0].([]Value); ok {
			args = list
		}
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s() arg is an empty sequence", name)
	}
	best := args[0]
	for _, v := range args[1:] {
		c, err := order(v, best)
		if err != nil {
			return nil, err
		}
		if c*sign > 0 {
			best = v
		}
	}
	return best, nil
}

// callMethod calls a string method.
func callMethod(obj Value, name string, args []Value) (Value, error) {
	s, ok := obj.(string)
	if !ok {
		return nil, fmt.Errorf("'%s' object has no attribute '%s'", typeName(obj), name)
	}
	strArg := func(i int) (string, error) {
		if i >= len(args) {
			return "", fmt.Errorf("%s() takes at least %d arguments", name, i+1)
		}
		a, ok := args[i].(string)
		if !ok {
			return "", fmt.Errorf("%s() argument %d must be str, not %s", name, i+1, typeName(args[i]))
		}
		return a, nil
	}
	switch name {
	case "lower":
		return strings.ToLower(s), nil
	case "upper":
		return strings.ToUpper(s), nil
	case "title":
		return cases.Title(language.Und, cases.NoLower).String(strings.ToLower(s)), nil
	case "capitalize":
		if s == "" {
			return s, nil
		}
		r, size := utf8.DecodeRuneInString(s)
		return strings.ToUpper(string(r)) + strings.ToLower(s[size:]), nil
	case "strip", "lstrip", "rstrip":
		cutset := " \t\n\r\v\f"
		if len(args) > 0 {
			var err error
			if cutset, err = strArg(0); err != nil {
				return nil, err
			}
		}
		switch name {
		case "lstrip":
			return strings.TrimLeft(s, cutset), nil
		case "rstrip":
			return strings.TrimRight(s, cutset), nil
		}
		return strings.Trim(s, cutset), nil
	case "startswith", "endswith", "find", "count", "split":
		if name == "split" && len(args) == 0 {
			fields := strings.Fields(s)
			list := make([]Value, len(fields))
			for i, f := range fields {
				list[i] = f
			}
			return list, nil
		}
		a, err := strArg(0)
		if err != nil {
			return nil, err
		}
		switch name {
		case "startswith":
			return strings.HasPrefix(s, a), nil
		case "endswith":
			return strings.HasSuffix(s, a), nil
		case "find":
			i := strings.Index(s, a)
			if i > 0 {
				i = utf8.RuneCountInString(s[:i])
			}
			return int64(i), nil
		case "count":
			return int64(strings.Count(s, a)), nil
		}
		parts := strings.Split(s, a)
		list := make([]Value, len(parts))
		for i, part := range parts {
			list[i] = part
		}
		return list, nil
	case "replace":
		old, err := strArg(0)
		if err != nil {
			return nil, err
		}
		repl, err := strArg(1)
		if err != nil {
			return nil, err
		}
		return strings.Replace(s, old, repl, -1), nil
	case "join":
		if len(args) != 1 {
			return nil, errors.New("join() takes exactly one argument")
		}
		list, ok := args[0].([]Value)
		if !ok {
			return nil, errors.New("can only join an iterable")
		}
		parts := make([]string, len(list))
		for i, v := range list {
			if parts[i], ok = v.(string); !ok {
				return nil, fmt.Errorf("sequence item %d: expected string, %s found", i, typeName(v))
			}
		}
		return strings.Join(parts, s), nil
	case "isdigit":
		if s == "" {
			return false, nil
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false, nil
			}
		}
		return true, nil
	}
	return nil, fmt.Errorf("'str' object has no attribute '%s'", name)
}
