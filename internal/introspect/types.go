package introspect

import (
	"strconv"
	"strings"
)

// FormatType rebuilds a type declaration from sys.columns metadata.
// Lengths of n-types are stored in bytes; -1 means max.
func FormatType(name string, maxLength, precision, scale int) string {
	name = strings.ToLower(name)
	switch name {
	case "char", "varchar", "binary", "varbinary":
		if maxLength == -1 {
			return name + "(max)"
		}
		return name + "(" + strconv.Itoa(maxLength) + ")"
	case "nchar", "nvarchar":
		if maxLength == -1 {
			return name + "(max)"
		}
		return name + "(" + strconv.Itoa(maxLength/2) + ")"
	case "decimal", "numeric":
		return name + "(" + strconv.Itoa(precision) + "," + strconv.Itoa(scale) + ")"
	case "float":
		if precision == 53 || precision == 0 {
			return "float"
		}
		return "float(" + strconv.Itoa(precision) + ")"
	case "datetime2", "datetimeoffset", "time":
		if scale == 7 {
			return name
		}
		return name + "(" + strconv.Itoa(scale) + ")"
	}
	return name
}
