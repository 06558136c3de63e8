// Special variable names

package ast

var specialVars = map[string]bool{
	"ARGC":        true,
	"CONVFMT":     true,
	"FIELDWIDTHS": true,
	"FILENAME":    true,
	"FNR":         true,
	"FPAT":        true,
	"FS":          true,
	"NF":          true,
	"NR":          true,
	"OFMT":        true,
	"OFS":         true,
	"ORS":         true,
	"RLENGTH":     true,
	"RS":          true,
	"RSTART":      true,
	"RT":          true,
	"SUBSEP":      true,
}

// IsSpecialVar returns true if name is one of AWK's built-in scalar
// variables (ARGV and ENVIRON are arrays and aren't included).
func IsSpecialVar(name string) bool {
	return specialVars[name]
}
