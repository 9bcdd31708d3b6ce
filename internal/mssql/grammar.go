package mssql

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxIdentifierLength is the SQL Server identifier limit in characters.
const MaxIdentifierLength = 128

const (
	hashLength   = 12
	hashAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	hashBase     = 31
)

// hashModulus is 62^12, the number of distinct 12-character base-62 strings.
var hashModulus = new(big.Int).Exp(big.NewInt(62), big.NewInt(hashLength), nil)

// Hash returns a 12-character base-62 digest of s computed as a rolling
// polynomial over its code points modulo 62^12.
func Hash(s string) string {
	h := new(big.Int)
	base := big.NewInt(hashBase)
	cp := new(big.Int)
	for _, r := range s {
		h.Mul(h, base)
		h.Add(h, cp.SetInt64(int64(r)))
		h.Mod(h, hashModulus)
	}

	out := make([]byte, hashLength)
	sixtyTwo := big.NewInt(62)
	rem := new(big.Int)
	for i := hashLength - 1; i >= 0; i-- {
		h.DivMod(h, sixtyTwo, rem)
		out[i] = hashAlphabet[rem.Int64()]
	}
	return string(out)
}

// boundName joins parts and suffix with underscores. Names longer than the
// identifier limit keep a prefix, a hash of the full name and the suffix.
func boundName(suffix string, parts ...string) string {
	full := strings.Join(append(parts, suffix), "_")
	runes := []rune(full)
	if len(runes) <= MaxIdentifierLength {
		return full
	}
	keep := MaxIdentifierLength - hashLength - len([]rune(suffix)) - 2
	return string(runes[:keep]) + "_" + Hash(full) + "_" + suffix
}

// DefaultNameForPK returns the generated primary key name.
func DefaultNameForPK(table string) string {
	return boundName("pkey", table)
}

// DefaultNameForUnique returns the generated unique constraint name.
func DefaultNameForUnique(table string, columns []string) string {
	return boundName("key", append([]string{table}, columns...)...)
}

// DefaultNameForFK returns the generated foreign key name.
func DefaultNameForFK(table string, columns []string, tableTo string, columnsTo []string) string {
	parts := append([]string{table}, columns...)
	parts = append(parts, tableTo)
	parts = append(parts, columnsTo...)
	return boundName("fk", parts...)
}

// DefaultNameForIndex returns the generated index name.
func DefaultNameForIndex(table string, columns []string) string {
	return boundName("idx", append([]string{table}, columns...)...)
}

// DefaultNameForDefault returns the generated default constraint name.
func DefaultNameForDefault(table, column string) string {
	return boundName("default", table, column)
}

// -----------------------------------------------------------------------------
// Type strategies
// -----------------------------------------------------------------------------

// SQLType is the per-type behavior for default values and code generation.
type SQLType interface {
	// Is reports whether the strategy handles the SQL type.
	Is(sqlType string) bool
	// DefaultFromIntrospect normalizes a catalog default definition.
	DefaultFromIntrospect(value string) string
	// DefaultToSQL renders a stored default as a DEFAULT expression.
	DefaultToSQL(value string) string
	// ToDSL returns the schema builder call and default literal for code
	// generation.
	ToDSL(sqlType, value string) (string, string)
}

// sqlTypes is matched in order; the first strategy whose Is accepts the
// type wins.
var sqlTypes = []SQLType{
	bitType{},
	intType{},
	decimalType{},
	floatType{},
	charType{},
	dateType{},
	binaryType{},
	guidType{},
	customType{},
}

// TypeFor returns the strategy for sqlType.
func TypeFor(sqlType string) SQLType {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	for _, s := range sqlTypes {
		if s.Is(t) {
			return s
		}
	}
	return customType{}
}

// baseType splits "varchar(50)" into "varchar" and "50".
func baseType(sqlType string) (string, string) {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		return strings.TrimSpace(t[:i]), strings.TrimSuffix(strings.TrimSpace(t[i+1:]), ")")
	}
	return t, ""
}

func hasBase(sqlType string, names ...string) bool {
	b, _ := baseType(sqlType)
	for _, n := range names {
		if b == n {
			return true
		}
	}
	return false
}

// UnwrapParens strips every pair of outer parentheses that encloses the
// whole expression: "((10))" becomes "10".
func UnwrapParens(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && enclosing(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// enclosing reports whether the first parenthesis closes at the last byte.
func enclosing(s string) bool {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inString = !inString
		case inString:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

type bitType struct{}

func (bitType) Is(t string) bool { return hasBase(t, "bit") }

func (bitType) DefaultFromIntrospect(v string) string { return UnwrapParens(v) }

func (bitType) DefaultToSQL(v string) string {
	switch strings.ToLower(v) {
	case "true":
		return "(1)"
	case "false":
		return "(0)"
	}
	return "(" + v + ")"
}

func (bitType) ToDSL(_, v string) (string, string) {
	switch v {
	case "1":
		return "bit()", "true"
	case "0":
		return "bit()", "false"
	}
	return "bit()", v
}

type intType struct{}

func (intType) Is(t string) bool { return hasBase(t, "tinyint", "smallint", "int", "bigint") }

func (intType) DefaultFromIntrospect(v string) string { return UnwrapParens(v) }

func (intType) DefaultToSQL(v string) string { return "(" + v + ")" }

func (intType) ToDSL(t, v string) (string, string) {
	b, _ := baseType(t)
	return b + "()", v
}

// decimalType covers both the bare names and the parameterized forms.
type decimalType struct{}

func (decimalType) Is(t string) bool {
	return hasBase(t, "decimal", "numeric", "money", "smallmoney")
}

func (decimalType) DefaultFromIntrospect(v string) string {
	return strings.TrimSuffix(UnwrapParens(v), ".")
}

func (decimalType) DefaultToSQL(v string) string { return "(" + v + ")" }

func (decimalType) ToDSL(t, v string) (string, string) {
	b, args := baseType(t)
	if args == "" {
		return b + "()", v
	}
	p, s, _ := strings.Cut(args, ",")
	call := b + "({ precision: " + strings.TrimSpace(p)
	if s != "" {
		call += ", scale: " + strings.TrimSpace(s)
	}
	return call + " })", v
}

type floatType struct{}

func (floatType) Is(t string) bool { return hasBase(t, "float", "real") }

func (floatType) DefaultFromIntrospect(v string) string { return UnwrapParens(v) }

func (floatType) DefaultToSQL(v string) string { return "(" + v + ")" }

func (floatType) ToDSL(t, v string) (string, string) {
	b, args := baseType(t)
	if args == "" {
		return b + "()", v
	}
	return b + "({ precision: " + args + " })", v
}

type charType struct{}

func (charType) Is(t string) bool {
	return hasBase(t, "char", "varchar", "nchar", "nvarchar", "text", "ntext")
}

func (charType) DefaultFromIntrospect(v string) string {
	v = UnwrapParens(v)
	if strings.HasPrefix(v, "N'") {
		v = v[1:]
	}
	return v
}

func (charType) DefaultToSQL(v string) string {
	if isQuoted(v) || strings.HasSuffix(v, ")") {
		return "(" + v + ")"
	}
	return "(" + quoteString(v) + ")"
}

func (charType) ToDSL(t, v string) (string, string) {
	b, args := baseType(t)
	if args == "" {
		return b + "()", v
	}
	if args == "max" {
		return b + "({ length: 'max' })", v
	}
	return b + "({ length: " + args + " })", v
}

type dateType struct{}

func (dateType) Is(t string) bool {
	return hasBase(t, "date", "datetime", "datetime2", "datetimeoffset", "smalldatetime", "time")
}

func (dateType) DefaultFromIntrospect(v string) string { return UnwrapParens(v) }

func (dateType) DefaultToSQL(v string) string { return "(" + v + ")" }

func (dateType) ToDSL(t, v string) (string, string) {
	b, args := baseType(t)
	if args == "" {
		return b + "()", v
	}
	return b + "({ precision: " + args + " })", v
}

type binaryType struct{}

func (binaryType) Is(t string) bool { return hasBase(t, "binary", "varbinary", "image") }

func (binaryType) DefaultFromIntrospect(v string) string { return UnwrapParens(v) }

func (binaryType) DefaultToSQL(v string) string { return "(" + v + ")" }

func (binaryType) ToDSL(t, v string) (string, string) {
	b, args := baseType(t)
	if args == "" {
		return b + "()", v
	}
	return b + "({ length: " + args + " })", v
}

type guidType struct{}

func (guidType) Is(t string) bool { return hasBase(t, "uniqueidentifier") }

func (guidType) DefaultFromIntrospect(v string) string { return UnwrapParens(v) }

func (guidType) DefaultToSQL(v string) string { return "(" + v + ")" }

func (guidType) ToDSL(_, v string) (string, string) { return "uniqueidentifier()", v }

// customType accepts anything and passes values through.
type customType struct{}

func (customType) Is(string) bool { return true }

func (customType) DefaultFromIntrospect(v string) string { return UnwrapParens(v) }

func (customType) DefaultToSQL(v string) string { return "(" + v + ")" }

func (customType) ToDSL(t, v string) (string, string) {
	return "customType({ dataType: " + quoteString(t) + " })", v
}

func isQuoted(v string) bool {
	return len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\''
}

func quoteString(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// -----------------------------------------------------------------------------
// Equivalences
// -----------------------------------------------------------------------------

// DiffMode selects how lenient type and default comparison is.
type DiffMode string

const (
	// ModeDefault compares two declared schemas.
	ModeDefault DiffMode = "default"
	// ModePush compares a declared schema with a live database.
	ModePush DiffMode = "push"
)

// DiffModes lists the accepted modes.
var DiffModes = []string{string(ModeDefault), string(ModePush)}

var spaces = regexp.MustCompile(`\s+`)

// impliedArgs holds the argument SQL Server assumes when a type is written
// without one.
var impliedArgs = map[string]string{
	"char":           "1",
	"nchar":          "1",
	"varchar":        "1",
	"nvarchar":       "1",
	"binary":         "1",
	"varbinary":      "1",
	"decimal":        "18,0",
	"numeric":        "18,0",
	"float":          "53",
	"datetime2":      "7",
	"datetimeoffset": "7",
	"time":           "7",
}

// canonicalType lowercases a type, drops whitespace and fills in implied
// arguments so "decimal" and "decimal(18, 0)" compare equal.
func canonicalType(sqlType string, mode DiffMode) string {
	t := spaces.ReplaceAllString(strings.ToLower(sqlType), "")
	b, args := baseType(t)
	if args == "" {
		args = impliedArgs[b]
	}
	switch b {
	case "decimal", "numeric":
		if !strings.Contains(args, ",") {
			args += ",0"
		}
	case "real":
		b, args = "float", "24"
	case "float":
		if n, err := strconv.Atoi(args); err == nil {
			if n <= 24 {
				args = "24"
			} else {
				args = "53"
			}
		}
	}
	if mode == ModePush {
		switch b {
		case "text":
			b, args = "varchar", "max"
		case "ntext":
			b, args = "nvarchar", "max"
		case "image":
			b, args = "varbinary", "max"
		case "rowversion":
			b = "timestamp"
		}
	}
	if args == "" {
		return b
	}
	return b + "(" + args + ")"
}

// TypesCommutative reports whether two type strings describe the same type.
func TypesCommutative(from, to string, mode DiffMode) bool {
	return canonicalType(from, mode) == canonicalType(to, mode)
}

// normalizeDefault strips the parenthesization SQL Server adds around
// defaults and the trailing dot it prints on large numeric literals.
func normalizeDefault(v string) string {
	v = UnwrapParens(v)
	if strings.HasPrefix(v, "N'") {
		v = v[1:]
	}
	if _, err := decimal.NewFromString(strings.TrimSuffix(v, ".")); err == nil {
		v = strings.TrimSuffix(v, ".")
	}
	return v
}

// DefaultsEqual reports whether two default expressions are equivalent.
// Numeric literals compare by value, so "(10)" equals "((10.0))".
func DefaultsEqual(a, b string) bool {
	a, b = normalizeDefault(a), normalizeDefault(b)
	if a == b {
		return true
	}
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA == nil && errB == nil {
		return da.Equal(db)
	}
	return strings.EqualFold(a, b) && !isQuoted(a)
}
